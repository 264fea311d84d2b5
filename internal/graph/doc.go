// Package graph provides the run graph: a DAG whose vertices are job
// instances. Fan-out and fan-in come from matrix expansion: an instance of a
// job depends on every instance of every job it needs.
//
// Every query that returns several instances returns them in plan order, the
// order in which they were added. The scheduler relies on this to dispatch
// deterministically.
package graph
