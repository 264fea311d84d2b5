// Package instance holds the runtime representation of a job instance: one
// concrete matrix combination of a job with its resolved steps, its outcome
// and the history of its attempts.
package instance

import (
	"fmt"
	"sync"
	"time"

	"github.com/specialistvlad/gridci/internal/model"
	"github.com/specialistvlad/gridci/internal/nodeid"
	"github.com/specialistvlad/gridci/internal/status"
)

// Reason tags why an instance ended in its terminal outcome.
type Reason string

const (
	ReasonNone             Reason = "none"
	ReasonStepFailed       Reason = "step_failed"
	ReasonTimedOut         Reason = "timed_out"
	ReasonArtifactError    Reason = "artifact_error"
	ReasonConditionFalse   Reason = "condition_false"
	ReasonFailFast         Reason = "fail_fast"
	ReasonRunCancelled     Reason = "run_cancelled"
	ReasonDependencyFailed Reason = "dependency_failed"
	ReasonEvaluationError  Reason = "evaluation_error"
	ReasonAggregateGate    Reason = "aggregate_gate"
)

// Attempt is one dispatch of an instance.
type Attempt struct {
	Number  int
	Start   time.Time
	End     time.Time
	Outcome status.Outcome
	Reason  Reason
	Err     error
}

// Instance is a single vertex of the run graph.
//
// Only the scheduler's control loop mutates an Instance. The mutex exists so
// that observers (report sinks, the control server) can read a consistent
// snapshot while the run is in flight.
type Instance struct {
	// ID is the structured, unique identifier of the instance.
	ID  nodeid.Address
	Job *model.JobDefinition
	// Steps is the job's step list with matrix values substituted into inputs.
	Steps []model.StepDescriptor

	mu       sync.RWMutex
	outcome  status.Outcome
	reason   Reason
	err      error
	attempts []Attempt
}

// New creates a Pending instance.
func New(id nodeid.Address, job *model.JobDefinition, steps []model.StepDescriptor) *Instance {
	return &Instance{ID: id, Job: job, Steps: steps, outcome: status.Pending, reason: ReasonNone}
}

// Key returns the canonical string form of the instance id.
func (i *Instance) Key() string {
	return i.ID.String()
}

// Matrix returns the instance's axis values as a map.
func (i *Instance) Matrix() map[string]string {
	return i.ID.Map()
}

func (i *Instance) Outcome() status.Outcome {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.outcome
}

func (i *Instance) Reason() Reason {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.reason
}

func (i *Instance) Err() error {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.err
}

// Attempts returns a copy of the attempt history.
func (i *Instance) Attempts() []Attempt {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return append([]Attempt(nil), i.attempts...)
}

// Begin moves a Pending instance to Running and opens attempt 1.
func (i *Instance) Begin(now time.Time) (int, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.outcome != status.Pending {
		return 0, fmt.Errorf("instance %s: cannot start from %s", i.ID, i.outcome)
	}
	i.outcome = status.Running
	i.attempts = append(i.attempts, Attempt{Number: 1, Start: now, Outcome: status.Running})
	return 1, nil
}

// Retry opens the next attempt of a Running instance whose previous attempt
// has ended.
func (i *Instance) Retry(now time.Time) (int, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.outcome != status.Running {
		return 0, fmt.Errorf("instance %s: cannot retry from %s", i.ID, i.outcome)
	}
	if n := len(i.attempts); n > 0 && !i.attempts[n-1].Outcome.IsTerminal() {
		return 0, fmt.Errorf("instance %s: attempt %d is still open", i.ID, n)
	}
	next := len(i.attempts) + 1
	i.attempts = append(i.attempts, Attempt{Number: next, Start: now, Outcome: status.Running})
	return next, nil
}

// EndAttempt closes the open attempt without ending the instance, so it can
// be retried.
func (i *Instance) EndAttempt(outcome status.Outcome, reason Reason, err error, now time.Time) (Attempt, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.endAttemptLocked(outcome, reason, err, now)
}

func (i *Instance) endAttemptLocked(outcome status.Outcome, reason Reason, err error, now time.Time) (Attempt, error) {
	n := len(i.attempts)
	if n == 0 || i.attempts[n-1].Outcome.IsTerminal() {
		return Attempt{}, fmt.Errorf("instance %s: no open attempt", i.ID)
	}
	if !outcome.IsTerminal() {
		return Attempt{}, fmt.Errorf("instance %s: attempt cannot end as %s", i.ID, outcome)
	}
	a := &i.attempts[n-1]
	a.End = now
	a.Outcome = outcome
	a.Reason = reason
	a.Err = err
	return *a, nil
}

// Finish moves the instance to its terminal outcome, closing the open attempt
// if there is one. A Pending instance may only become Skipped or Cancelled.
func (i *Instance) Finish(outcome status.Outcome, reason Reason, err error, now time.Time) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if !outcome.IsTerminal() {
		return fmt.Errorf("instance %s: %s is not a terminal outcome", i.ID, outcome)
	}
	switch i.outcome {
	case status.Pending:
		if outcome != status.Skipped && outcome != status.Cancelled {
			return fmt.Errorf("instance %s: cannot move from pending to %s", i.ID, outcome)
		}
	case status.Running:
		if n := len(i.attempts); n > 0 && !i.attempts[n-1].Outcome.IsTerminal() {
			if _, aerr := i.endAttemptLocked(outcome, reason, err, now); aerr != nil {
				return aerr
			}
		}
	default:
		return fmt.Errorf("instance %s: already terminal (%s)", i.ID, i.outcome)
	}

	i.outcome = outcome
	i.reason = reason
	i.err = err
	return nil
}

// Snapshot is a point-in-time copy of an instance's observable state.
type Snapshot struct {
	ID       string            `json:"id"`
	Job      string            `json:"job"`
	Matrix   map[string]string `json:"matrix,omitempty"`
	Outcome  status.Outcome    `json:"outcome"`
	Reason   Reason            `json:"reason"`
	Error    string            `json:"error,omitempty"`
	Attempts int               `json:"attempts"`
}

func (i *Instance) Snapshot() Snapshot {
	i.mu.RLock()
	defer i.mu.RUnlock()
	s := Snapshot{
		ID:       i.ID.String(),
		Job:      i.ID.Job,
		Outcome:  i.outcome,
		Reason:   i.reason,
		Attempts: len(i.attempts),
	}
	if len(i.ID.Axes) > 0 {
		s.Matrix = i.ID.Map()
	}
	if i.err != nil {
		s.Error = i.err.Error()
	}
	return s
}
