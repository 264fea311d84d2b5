package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/specialistvlad/gridci/internal/config"
	"github.com/specialistvlad/gridci/internal/ctxlog"
	"github.com/specialistvlad/gridci/internal/engine"
	"github.com/specialistvlad/gridci/internal/scheduler"
	"github.com/specialistvlad/gridci/internal/status"
)

// PipelineFailedError is returned by Run when the pipeline verdict is not
// Succeeded.
type PipelineFailedError struct {
	Pipeline string
	RunID    string
	Outcome  status.Outcome
	// Failed lists the jobs that aggregated to Failed.
	Failed []string
}

func (e *PipelineFailedError) Error() string {
	msg := fmt.Sprintf("pipeline %q (run %s) finished %s", e.Pipeline, e.RunID, e.Outcome)
	if len(e.Failed) > 0 {
		msg += ": failed jobs: " + strings.Join(e.Failed, ", ")
	}
	return msg
}

// Run loads the configured pipeline and executes it to completion. Cancelling
// ctx cancels the run.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	p, err := config.Load(ctx, a.config.PipelinePath, a.loaders...)
	if err != nil {
		return fmt.Errorf("failed to load pipeline: %w", err)
	}

	out, err := a.setupOutputs(ctx)
	if err != nil {
		return err
	}
	defer out.close()

	eng := engine.New(engine.Options{
		Registry: a.registry,
		Scheduler: scheduler.Config{
			MaxConcurrency:   a.config.Workers,
			FailFastPipeline: a.config.FailFastPipeline,
			GateMode:         a.config.GateMode,
		},
		Sink:     out.sink,
		Archiver: out.archiver,
	})

	a.startControlServer(ctx, eng)
	defer func() { _ = a.closeControlServer(ctx) }()

	run, err := eng.Start(ctx, p, a.config.Trigger)
	if err != nil {
		return fmt.Errorf("invalid pipeline %q: %w", p.Name, err)
	}

	// Cancellation reaches the run through ctx; waiting must outlive it.
	rep, err := run.Wait(context.WithoutCancel(ctx))
	if err != nil {
		return fmt.Errorf("run %s aborted: %w", run.ID, err)
	}

	if rep.Pipeline != status.Succeeded {
		return &PipelineFailedError{
			Pipeline: p.Name,
			RunID:    run.ID,
			Outcome:  rep.Pipeline,
			Failed:   rep.Failed(),
		}
	}

	a.logger.Info("✅ Pipeline succeeded.", "pipeline", p.Name, "run", run.ID)
	a.logger.Debug("App.Run method finished.")
	return nil
}
