package report

import (
	"context"
	"log/slog"

	"github.com/specialistvlad/gridci/internal/ctxlog"
	"github.com/specialistvlad/gridci/internal/status"
)

// LogSink writes the event stream to the logger found in the context.
type LogSink struct{}

func (LogSink) InstanceEvent(ctx context.Context, ev InstanceEvent) error {
	logger := ctxlog.FromContext(ctx).With("run", ev.RunID, "instance", ev.Instance, "attempt", ev.Attempt)

	switch {
	case ev.Outcome == status.Running:
		logger.Info("▶️ Instance started")
	case ev.Outcome == status.Succeeded:
		logger.Info("✅ Instance succeeded", "duration", ev.Duration())
	case ev.Outcome == status.Failed && !ev.Final:
		logger.Warn("Attempt failed, retrying", "reason", ev.Reason, "error", ev.Error)
	case ev.Outcome == status.Failed:
		logger.Error("❌ Instance failed", "reason", ev.Reason, "error", ev.Error)
	default:
		logger.Warn("Instance did not run", "outcome", ev.Outcome, "reason", ev.Reason)
	}
	return nil
}

func (LogSink) RunFinished(ctx context.Context, s RunSummary) error {
	logger := ctxlog.FromContext(ctx).With("run", s.RunID, "pipeline", s.Pipeline)
	attrs := make([]any, 0, len(s.Order))
	for _, id := range s.Order {
		attrs = append(attrs, slog.String(id, s.Jobs[id].String()))
	}
	level := slog.LevelInfo
	if s.Outcome != status.Succeeded {
		level = slog.LevelError
	}
	logger.Log(ctx, level, "Run finished", "outcome", s.Outcome, "duration", s.End.Sub(s.Start), slog.Group("jobs", attrs...))
	return nil
}
