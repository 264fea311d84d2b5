package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/specialistvlad/gridci/internal/artifactstore"
	"github.com/specialistvlad/gridci/internal/builder"
	"github.com/specialistvlad/gridci/internal/condition"
	"github.com/specialistvlad/gridci/internal/ctxlog"
	"github.com/specialistvlad/gridci/internal/executor"
	"github.com/specialistvlad/gridci/internal/model"
	"github.com/specialistvlad/gridci/internal/objectstore"
	"github.com/specialistvlad/gridci/internal/report"
	"github.com/specialistvlad/gridci/internal/scheduler"
)

var (
	// ErrRunNotFound is returned for unknown run ids.
	ErrRunNotFound = errors.New("run not found")
	// ErrRunFinished is returned when cancelling a run that already ended.
	ErrRunFinished = errors.New("run already finished")
)

// Archiver persists the committed artifacts of a finished run.
type Archiver interface {
	Archive(ctx context.Context, runID string, src objectstore.Source) ([]string, error)
}

// Options configures an Engine.
type Options struct {
	Registry  *executor.Registry
	Scheduler scheduler.Config
	// Sink receives instance events and run summaries. Optional.
	Sink report.Sink
	// Archiver uploads artifacts once a run finishes. Optional.
	Archiver Archiver
}

// Engine starts runs and keeps them addressable by id.
type Engine struct {
	opts Options
	now  func() time.Time

	mu   sync.RWMutex
	runs map[string]*Run
}

func New(opts Options) *Engine {
	if opts.Registry == nil {
		opts.Registry = executor.NewRegistry()
	}
	if opts.Sink == nil {
		opts.Sink = report.Nop{}
	}
	return &Engine{opts: opts, now: time.Now, runs: make(map[string]*Run)}
}

// Start builds the plan for p and runs it in the background. Definition
// errors are returned before anything is dispatched.
func (e *Engine) Start(ctx context.Context, p *model.Pipeline, trigger condition.Trigger) (*Run, error) {
	plan, err := builder.Build(ctx, p)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctxlog.With(ctx, "pipeline", p.Name))
	run := &Run{
		ID:       uuid.NewString(),
		Pipeline: p.Name,
		Trigger:  trigger,
		Start:    e.now(),
		plan:     plan,
		store:    artifactstore.New(),
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	e.mu.Lock()
	e.runs[run.ID] = run
	e.mu.Unlock()

	sched := scheduler.New(e.opts.Scheduler, scheduler.Params{
		RunID:   run.ID,
		Plan:    plan,
		Trigger: trigger,
		Runner:  executor.NewRunner(e.opts.Registry, run.store),
		Store:   run.store,
		Sink:    e.opts.Sink,
	})

	logger := ctxlog.FromContext(runCtx).With("run", run.ID)
	logger.Info("🚀 Starting run", "instances", plan.Graph.Len())

	go func() {
		defer cancel()
		rep, err := sched.Execute(runCtx)
		end := e.now()

		// Reporting outlives a cancelled run.
		finishCtx := context.WithoutCancel(runCtx)
		summary := report.NewRunSummary(run.ID, p.Name, rep, run.Start, end, err)
		if serr := e.opts.Sink.RunFinished(finishCtx, summary); serr != nil {
			logger.Warn("Report sink failed.", "error", serr)
		}
		if e.opts.Archiver != nil {
			if _, aerr := e.opts.Archiver.Archive(finishCtx, run.ID, run.store); aerr != nil {
				logger.Error("Artifact archive failed.", "error", aerr)
			}
		}

		logger.Info("🏁 Run finished", "outcome", rep.Pipeline, "duration", end.Sub(run.Start))
		run.finish(rep, err, end)
	}()

	return run, nil
}

// Execute starts a run and waits for it.
func (e *Engine) Execute(ctx context.Context, p *model.Pipeline, trigger condition.Trigger) (*Run, error) {
	run, err := e.Start(ctx, p, trigger)
	if err != nil {
		return nil, err
	}
	<-run.Done()
	_, err = run.Wait(context.Background())
	return run, err
}

// Get returns the run with the given id.
func (e *Engine) Get(runID string) (*Run, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	run, ok := e.runs[runID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return run, nil
}

// Cancel cancels a run by id.
func (e *Engine) Cancel(runID string) error {
	run, err := e.Get(runID)
	if err != nil {
		return err
	}
	if !run.Cancel() {
		return fmt.Errorf("%w: %s", ErrRunFinished, runID)
	}
	return nil
}

// Runs returns every known run, oldest first.
func (e *Engine) Runs() []*Run {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*Run, 0, len(e.runs))
	for _, r := range e.runs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start.Equal(out[j].Start) {
			return out[i].ID < out[j].ID
		}
		return out[i].Start.Before(out[j].Start)
	})
	return out
}
