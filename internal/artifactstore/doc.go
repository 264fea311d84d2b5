// Package artifactstore provides the run-scoped, thread-safe, in-memory
// store through which job instances exchange named blobs.
//
// # Write-once, per producer
//
// The first Put of a key binds it to the producing instance. The same
// producer may Put again (a retry replaces its staged payload); any other
// instance gets a ConflictError.
//
// # Visibility
//
// A payload becomes readable only after the scheduler commits its producer,
// which it does once that instance has terminally succeeded. Reads before
// that point fail with NotReadyError, so consumers never observe the output of
// an attempt that later failed.
//
// The store is the only mutable structure shared between worker goroutines.
package artifactstore
