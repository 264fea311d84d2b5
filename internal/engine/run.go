package engine

import (
	"context"
	"sync"
	"time"

	"github.com/specialistvlad/gridci/internal/artifactstore"
	"github.com/specialistvlad/gridci/internal/builder"
	"github.com/specialistvlad/gridci/internal/condition"
	"github.com/specialistvlad/gridci/internal/instance"
	"github.com/specialistvlad/gridci/internal/status"
)

// State is the lifecycle of a Run as seen from outside.
type State string

const (
	StateRunning   State = "running"
	StateFinished  State = "finished"
	StateCancelled State = "cancelled"
)

// Run is one execution of a pipeline.
type Run struct {
	ID       string
	Pipeline string
	Trigger  condition.Trigger
	Start    time.Time

	plan   *builder.Plan
	store  *artifactstore.Memory
	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.RWMutex
	cancelled bool
	end       time.Time
	report    status.Report
	err       error
}

// Done is closed once every instance of the run is terminal.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the run finishes or ctx is done. It returns the final
// report and the run's fatal error, if any.
func (r *Run) Wait(ctx context.Context) (status.Report, error) {
	select {
	case <-r.done:
	case <-ctx.Done():
		return status.Report{}, ctx.Err()
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.report, r.err
}

// Cancel requests cancellation of the run. It is safe to call more than
// once and reports false when the run had already finished.
func (r *Run) Cancel() bool {
	r.mu.Lock()
	if !r.end.IsZero() {
		r.mu.Unlock()
		return false
	}
	r.cancelled = true
	r.mu.Unlock()
	r.cancel()
	return true
}

// Artifacts returns the run's artifact store.
func (r *Run) Artifacts() *artifactstore.Memory {
	return r.store
}

func (r *Run) finish(rep status.Report, err error, end time.Time) {
	r.mu.Lock()
	r.report = rep
	r.err = err
	r.end = end
	r.mu.Unlock()
	close(r.done)
}

// Snapshot is the JSON view of a run served by the control server.
type Snapshot struct {
	ID        string                    `json:"id"`
	Pipeline  string                    `json:"pipeline"`
	State     State                     `json:"state"`
	Trigger   condition.Trigger         `json:"trigger"`
	Outcome   status.Outcome            `json:"outcome"`
	Jobs      map[string]status.Outcome `json:"jobs"`
	Instances []instance.Snapshot       `json:"instances,omitempty"`
	Artifacts []artifactstore.Handle    `json:"artifacts,omitempty"`
	Start     time.Time                 `json:"start"`
	End       time.Time                 `json:"end,omitzero"`
	Error     string                    `json:"error,omitempty"`
}

// Snapshot returns the current state of the run. detailed adds per-instance
// state and the artifact handles.
func (r *Run) Snapshot(detailed bool) Snapshot {
	current := r.plan.Report()

	r.mu.RLock()
	s := Snapshot{
		ID:       r.ID,
		Pipeline: r.Pipeline,
		State:    StateRunning,
		Trigger:  r.Trigger,
		Outcome:  current.Pipeline,
		Jobs:     current.Jobs,
		Start:    r.Start,
		End:      r.end,
	}
	select {
	case <-r.done:
		s.State = StateFinished
		if r.cancelled {
			s.State = StateCancelled
		}
	default:
	}
	if r.err != nil {
		s.Error = r.err.Error()
	}
	r.mu.RUnlock()

	if detailed {
		for _, inst := range r.plan.Graph.Instances() {
			s.Instances = append(s.Instances, inst.Snapshot())
		}
		s.Artifacts = r.store.Committed()
	}
	return s
}
