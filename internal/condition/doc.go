// Package condition parses and evaluates job run conditions.
//
// Conditions are written in HCL expression syntax and compiled into a small
// tagged AST (Literal, And, Or, Not, OutcomeRef, ContextRef and a few
// predicates). Evaluation reads only the explicit Context it is given: the
// trigger facts and the aggregate outcomes of jobs that have already
// resolved.
//
//	always()
//	success() && trigger.branch == "main"
//	needs.test.result == "failure" || startswith(trigger.tag, "v")
//
// An explicit condition is evaluated as written. Only the absence of a
// condition implies "every direct need succeeded".
package condition
