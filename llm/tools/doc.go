// Package tools holds the tool registry and the invoker used by the agent
// loop.
//
// A ToolSpec pairs a name and description with a text-in/text-out callable
// and a model-safe FailureMessage. Specs are registered at startup; once an
// Invoker is built on a Registry the registry is sealed and further
// registration fails.
//
// The Invoker never returns an error. Every outcome (success, tool error,
// timeout, panic, unknown tool, rate-limit wait exceeding the timeout) is an
// Observation the loop feeds back to the model. Failure observations carry
// only the tool's FailureMessage; raw error text goes to the log.
package tools
