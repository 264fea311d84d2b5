package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/specialistvlad/gridci/internal/ctxlog"
	"github.com/specialistvlad/gridci/internal/engine"
)

// controlAPI exposes the runs of an engine over HTTP.
type controlAPI struct {
	ctx    context.Context
	engine *engine.Engine
}

// newControlRouter builds the control API routes.
func (a *App) newControlRouter(ctx context.Context, eng *engine.Engine) http.Handler {
	api := &controlAPI{ctx: ctx, engine: eng}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(api.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/health", api.handleHealth)
	r.Get("/runs", api.handleListRuns)
	r.Get("/runs/{runID}", api.handleGetRun)
	r.Post("/runs/{runID}/cancel", api.handleCancelRun)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(a.metrics, promhttp.HandlerOpts{}))
	return r
}

func (api *controlAPI) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		ctxlog.FromContext(api.ctx).Debug("Control API request served.",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (api *controlAPI) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

func (api *controlAPI) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs := api.engine.Runs()
	out := make([]engine.Snapshot, 0, len(runs))
	for _, run := range runs {
		out = append(out, run.Snapshot(false))
	}
	writeJSON(w, http.StatusOK, out)
}

func (api *controlAPI) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := api.engine.Get(chi.URLParam(r, "runID"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, run.Snapshot(true))
}

func (api *controlAPI) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	err := api.engine.Cancel(runID)
	switch {
	case errors.Is(err, engine.ErrRunNotFound):
		writeError(w, http.StatusNotFound, err)
		return
	case errors.Is(err, engine.ErrRunFinished):
		writeError(w, http.StatusConflict, err)
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	ctxlog.FromContext(api.ctx).Warn("🛑 Run cancellation requested over the control API.", "run", runID)
	run, err := api.engine.Get(runID)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusAccepted, run.Snapshot(false))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// startControlServer runs the control API in the background. It is a no-op
// when the control port is 0.
func (a *App) startControlServer(ctx context.Context, eng *engine.Engine) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Configuring control server.")
	if a.config.ControlPort <= 0 {
		logger.Debug("Control server not started: disabled")
		return
	}

	addr := fmt.Sprintf(":%d", a.config.ControlPort)
	a.httpServer = &http.Server{
		Addr:              addr,
		Handler:           a.newControlRouter(ctx, eng),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("🩺 Control server starting", "address", fmt.Sprintf("http://localhost%s", addr))
		// ListenAndServe will return an error on graceful shutdown.
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Control server failed unexpectedly", "error", err)
		}
	}()
}

func (a *App) closeControlServer(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	if a.httpServer == nil {
		logger.Debug("Control server was not running.")
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.config.ShutdownTimeout)
	defer cancel()

	logger.Info("🩺 Shutting down control server...")
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Control server shutdown failed", "error", err)
		return err
	}
	logger.Debug("Control server shut down gracefully.")
	return nil
}
