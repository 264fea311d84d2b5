package report

import (
	"context"
	"errors"
	"time"

	"github.com/specialistvlad/gridci/internal/instance"
	"github.com/specialistvlad/gridci/internal/status"
)

// InstanceEvent describes one state change of a job instance.
type InstanceEvent struct {
	RunID    string            `json:"run_id"`
	Instance string            `json:"instance"`
	Job      string            `json:"job"`
	Matrix   map[string]string `json:"matrix,omitempty"`
	Outcome  status.Outcome    `json:"outcome"`
	Reason   instance.Reason   `json:"reason"`
	// Attempt is the attempt number, zero for instances that never ran.
	Attempt int `json:"attempt"`
	// Final is set on the event that carries the instance's terminal outcome.
	Final bool      `json:"final"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end,omitzero"`
	Error string    `json:"error,omitempty"`
}

// Duration is the time spent in the attempt, zero while it is still open.
func (e InstanceEvent) Duration() time.Duration {
	if e.End.IsZero() || e.Start.IsZero() {
		return 0
	}
	return e.End.Sub(e.Start)
}

// RunSummary is the final report of a run.
type RunSummary struct {
	RunID    string                    `json:"run_id"`
	Pipeline string                    `json:"pipeline"`
	Jobs     map[string]status.Outcome `json:"jobs"`
	Order    []string                  `json:"order"`
	Outcome  status.Outcome            `json:"outcome"`
	Start    time.Time                 `json:"start"`
	End      time.Time                 `json:"end"`
	Error    string                    `json:"error,omitempty"`
}

// NewRunSummary builds a summary from an aggregated report.
func NewRunSummary(runID, pipeline string, r status.Report, start, end time.Time, err error) RunSummary {
	s := RunSummary{
		RunID:    runID,
		Pipeline: pipeline,
		Jobs:     r.Jobs,
		Order:    r.Order,
		Outcome:  r.Pipeline,
		Start:    start,
		End:      end,
	}
	if err != nil {
		s.Error = err.Error()
	}
	return s
}

// Sink receives the event stream of runs.
type Sink interface {
	InstanceEvent(ctx context.Context, ev InstanceEvent) error
	RunFinished(ctx context.Context, s RunSummary) error
}

// Nop discards everything.
type Nop struct{}

func (Nop) InstanceEvent(context.Context, InstanceEvent) error { return nil }
func (Nop) RunFinished(context.Context, RunSummary) error      { return nil }

// Multi fans events out to several sinks. Every sink is called; the errors are
// joined.
type Multi []Sink

func (m Multi) InstanceEvent(ctx context.Context, ev InstanceEvent) error {
	var errs []error
	for _, s := range m {
		if err := s.InstanceEvent(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) RunFinished(ctx context.Context, summary RunSummary) error {
	var errs []error
	for _, s := range m {
		if err := s.RunFinished(ctx, summary); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
