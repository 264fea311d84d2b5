package app

import (
	"context"
	"fmt"
	"time"

	"github.com/specialistvlad/gridci/internal/ctxlog"
	"github.com/specialistvlad/gridci/internal/engine"
	"github.com/specialistvlad/gridci/internal/objectstore"
	"github.com/specialistvlad/gridci/internal/report"
)

const (
	sinkBuffer     = 256
	connectTimeout = 10 * time.Second
)

// outputs is everything a run reports to.
type outputs struct {
	sink     report.Sink
	archiver engine.Archiver
	closers  []func()
}

// close flushes the asynchronous sinks and releases their connections, in
// reverse order of creation.
func (o *outputs) close() {
	for i := len(o.closers) - 1; i >= 0; i-- {
		o.closers[i]()
	}
}

// setupOutputs builds the report sinks and the artifact archiver enabled by
// the configuration. The log and metrics sinks are always present; slow
// sinks are wrapped in report.Async, which drops instance events on overflow
// instead of stalling the scheduler.
func (a *App) setupOutputs(ctx context.Context) (*outputs, error) {
	logger := ctxlog.FromContext(ctx)
	out := &outputs{}
	sinks := report.Multi{report.LogSink{}, a.runMetrics}

	if a.config.PostgresURL != "" {
		logger.Debug("Configuring Postgres report sink.")
		db, err := report.OpenPostgres(ctx, a.config.PostgresURL, connectTimeout)
		if err != nil {
			out.close()
			return nil, fmt.Errorf("postgres report sink: %w", err)
		}
		pg := report.NewPostgresSink(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			out.close()
			return nil, fmt.Errorf("postgres report sink: %w", err)
		}
		async := report.NewAsync(ctx, pg, sinkBuffer)
		out.closers = append(out.closers, func() {
			async.Close()
			_ = db.Close()
		})
		sinks = append(sinks, async)
		logger.Info("📒 Postgres report sink enabled.")
	}

	if a.config.SocketIOURL != "" {
		logger.Debug("Configuring Socket.IO report sink.")
		client, err := report.DialSocketIO(ctx, a.config.SocketIOURL, a.config.SocketIONamespace, connectTimeout)
		if err != nil {
			out.close()
			return nil, fmt.Errorf("socket.io report sink: %w", err)
		}
		async := report.NewAsync(ctx, report.NewSocketIOSink(client), sinkBuffer)
		out.closers = append(out.closers, func() {
			async.Close()
			client.Disconnect()
		})
		sinks = append(sinks, async)
		logger.Info("📡 Socket.IO report sink enabled.")
	}

	if a.config.ObjectStore.Endpoint != "" {
		logger.Debug("Configuring artifact archive.", "endpoint", a.config.ObjectStore.Endpoint)
		client, err := objectstore.NewMinIOClient(a.config.ObjectStore)
		if err != nil {
			out.close()
			return nil, fmt.Errorf("artifact archive: %w", err)
		}
		if err := objectstore.EnsureBucket(ctx, client, a.config.ObjectStore); err != nil {
			out.close()
			return nil, fmt.Errorf("artifact archive: %w", err)
		}
		out.archiver = objectstore.NewArchiver(client, a.config.ObjectStore)
		logger.Info("🗄️ Artifact archive enabled.", "bucket", a.config.ObjectStore.Bucket)
	}

	out.sink = sinks
	return out, nil
}
