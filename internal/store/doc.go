// Package store persists agent run history with GORM.
//
// RunStore satisfies agent.RunRecorder; pass it to agent.WithRunRecorder and
// every terminated run (final answer, iteration limit or abort) is written to
// the agent_runs table with its steps as JSON.
package store
