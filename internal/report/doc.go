// Package report carries the structured event stream of a run to its
// observers.
//
// The scheduler emits an InstanceEvent whenever an instance starts an
// attempt, ends a retried attempt or reaches its terminal outcome. The engine
// emits a RunSummary once the pipeline verdict is known. A Sink receives both;
// sink errors are logged by the caller and never affect the run.
package report
