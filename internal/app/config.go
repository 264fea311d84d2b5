package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/specialistvlad/gridci/internal/condition"
	"github.com/specialistvlad/gridci/internal/objectstore"
	"github.com/specialistvlad/gridci/internal/scheduler"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// PipelinePath is a definition file or a directory of them.
	PipelinePath string
	Trigger      condition.Trigger

	Workers          int
	FailFastPipeline bool
	GateMode         scheduler.GateMode

	LogFormat string
	LogLevel  string

	// ControlPort serves the control API. 0 is disabled.
	ControlPort     int
	ShutdownTimeout time.Duration

	// PostgresURL enables the Postgres report sink.
	PostgresURL string
	// SocketIOURL enables the Socket.IO report sink.
	SocketIOURL       string
	SocketIONamespace string

	// ObjectStore enables artifact archiving when Endpoint is set.
	ObjectStore objectstore.Config
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.PipelinePath == "" {
		return nil, errors.New("PipelinePath is a required configuration field and cannot be empty")
	}

	switch cfg.LogFormat {
	case "":
		cfg.LogFormat = "text"
	case "text", "json":
	default:
		return nil, fmt.Errorf("invalid log-format %q: must be 'text' or 'json'", cfg.LogFormat)
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if _, ok := logLevels[cfg.LogLevel]; !ok {
		return nil, fmt.Errorf("invalid log-level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.LogLevel)
	}

	if cfg.Workers < 0 {
		return nil, errors.New("workers must be >= 0")
	}
	if cfg.Workers == 0 {
		cfg.Workers = scheduler.DefaultMaxConcurrency
	}

	mode, err := scheduler.ParseGateMode(string(cfg.GateMode))
	if err != nil {
		return nil, err
	}
	cfg.GateMode = mode

	if cfg.ControlPort < 0 || cfg.ControlPort > 65535 {
		return nil, fmt.Errorf("control-port %d is out of range", cfg.ControlPort)
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}

	if cfg.SocketIOURL != "" && cfg.SocketIONamespace == "" {
		cfg.SocketIONamespace = "/"
	}

	if cfg.ObjectStore.Endpoint != "" {
		if err := cfg.ObjectStore.Validate(); err != nil {
			return nil, fmt.Errorf("invalid object store configuration: %w", err)
		}
	}

	return &cfg, nil
}
