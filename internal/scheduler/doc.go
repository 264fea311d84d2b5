// Package scheduler drives a Plan to completion.
//
// # How It Works
//
// A single control loop goroutine owns every outcome transition. It keeps a
// FIFO of instances whose dependencies have all become terminal and resolves
// them in order:
//
//  1. Evaluate the job's condition against the aggregate outcomes of the
//     resolved jobs. A false condition skips the instance.
//  2. For gated jobs in two-layer mode, require the upstream closure to
//     aggregate to Succeeded as well.
//  3. Check jobs are decided inline from their needs.
//  4. Everything else joins the dispatch queue.
//
// Dispatch is bounded by a weighted semaphore. Workers run the instance
// through the Runner and report back over a channel; the loop then records
// the outcome, commits artifacts, applies retry and fail-fast policy, and
// releases dependents into the FIFO in plan order.
//
// Cancelling the context cancels every non-terminal instance. Running
// instances are interrupted through their context and are recorded as
// Cancelled whatever the runner returns.
package scheduler
