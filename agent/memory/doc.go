// Package memory implements the conversation window shared by the runs of
// one session: the k most recent (input, output) exchanges, evicted FIFO.
//
// A Window's mutex guards only Snapshot and Append. The executor snapshots
// once when a run starts and appends once when it ends; nothing holds the
// lock across a model or tool call. Persistence to a Store happens after
// the lock is released, so two concurrent runs on one session may persist
// in a different order than they were appended in memory.
//
// Sessions maps session IDs to windows through an LRU bounded by
// max_sessions. Evicted windows are rebuilt from the Store on next use.
package memory
