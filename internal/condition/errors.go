package condition

import "fmt"

// EvaluationError marks defects in a condition that make a run unsafe to
// continue.
type EvaluationError interface {
	error
	evaluationError()
}

// PrematureEvaluationError reports a read of a job that has not resolved yet.
type PrematureEvaluationError struct {
	Job string
	// Ref is the referenced job that is still pending or running.
	Ref string
}

func (e *PrematureEvaluationError) Error() string {
	return fmt.Sprintf("condition of job %q reads job %q before it has resolved", e.Job, e.Ref)
}

func (*PrematureEvaluationError) evaluationError() {}

// UnknownJobError reports a reference to a job that is not declared.
type UnknownJobError struct {
	Job string
	Ref string
}

func (e *UnknownJobError) Error() string {
	return fmt.Sprintf("condition of job %q references undeclared job %q", e.Job, e.Ref)
}

func (*UnknownJobError) evaluationError() {}

// TypeError reports an operand of the wrong kind.
type TypeError struct {
	Job  string
	Expr string
	Want Kind
	Got  Kind
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("condition of job %q: %s is %s, want %s", e.Job, e.Expr, e.Got, e.Want)
}

func (*TypeError) evaluationError() {}
