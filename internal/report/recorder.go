package report

import (
	"context"
	"sync"

	"github.com/specialistvlad/gridci/internal/status"
)

// Recorder keeps every event in memory.
type Recorder struct {
	mu        sync.Mutex
	events    []InstanceEvent
	summaries []RunSummary
}

func (r *Recorder) InstanceEvent(_ context.Context, ev InstanceEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *Recorder) RunFinished(_ context.Context, s RunSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summaries = append(r.summaries, s)
	return nil
}

// Events returns a copy of the recorded instance events.
func (r *Recorder) Events() []InstanceEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]InstanceEvent(nil), r.events...)
}

// Final returns the terminal event of every instance, in emission order.
func (r *Recorder) Final() []InstanceEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []InstanceEvent
	for _, ev := range r.events {
		if ev.Final {
			out = append(out, ev)
		}
	}
	return out
}

// Started returns the instance ids in the order their first attempt started.
func (r *Recorder) Started() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, ev := range r.events {
		if ev.Outcome == status.Running && ev.Attempt == 1 {
			out = append(out, ev.Instance)
		}
	}
	return out
}

func (r *Recorder) Summaries() []RunSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RunSummary(nil), r.summaries...)
}
