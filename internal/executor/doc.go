// Package executor is the boundary between the scheduler and the actions that
// do real work.
//
// An action is an Adapter registered by name in a Registry. Steps reference
// actions through their `uses` field. The Runner executes the resolved steps
// of one job instance sequentially: it hands every step the artifacts it
// declared under `reads`, stages the artifacts the step returns under its
// declared `writes`, and stops at the first failing step.
//
// The executor never changes instance outcomes. It returns an error and the
// scheduler decides what that error means.
package executor
