package app

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/specialistvlad/gridci/internal/config"
	"github.com/specialistvlad/gridci/internal/executor"
	"github.com/specialistvlad/gridci/internal/hcl"
	"github.com/specialistvlad/gridci/internal/report"
	"github.com/specialistvlad/gridci/internal/yamlcfg"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	config   *Config
	registry *executor.Registry
	loaders  []config.Loader
	metrics  *prometheus.Registry
	// runMetrics is registered once per App.
	runMetrics *report.MetricsSink

	httpServer *http.Server
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger, action
// registry and metrics registry. When no modules are given the core actions
// are registered.
func NewApp(outW io.Writer, cfg *Config, modules ...executor.Module) *App {
	logger := newLogger(cfg, outW)
	logger.Debug("Logger configured successfully.")

	if len(modules) == 0 {
		modules = coreModules(outW)
	}
	reg := executor.NewRegistry()
	reg.RegisterModules(modules...)
	logger.Debug("All Go modules registered.", "count", len(modules), "actions", reg.Names())

	metrics := prometheus.NewRegistry()
	metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &App{
		outW:     outW,
		logger:   logger,
		config:   cfg,
		registry: reg,
		loaders:  []config.Loader{hcl.NewLoader(), yamlcfg.NewLoader()},
		metrics:  metrics,

		runMetrics: report.NewMetricsSink(metrics),
	}
}

// Registry returns the application's action registry. This is primarily for
// testing.
func (a *App) Registry() *executor.Registry {
	return a.registry
}
