// Package status holds the Outcome enumeration shared by every part of the
// engine and the rules that fold instance outcomes into a job outcome and job
// outcomes into a pipeline verdict.
//
// The allow set and the required set are always passed in explicitly. Nothing
// in this package reads global state, so the same functions serve the
// scheduler (for condition contexts and gates), the check jobs and the final
// run report.
package status
