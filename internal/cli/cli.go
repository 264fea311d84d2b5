package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/specialistvlad/gridci/internal/app"
	"github.com/specialistvlad/gridci/internal/condition"
	"github.com/specialistvlad/gridci/internal/env"
	"github.com/specialistvlad/gridci/internal/objectstore"
	"github.com/specialistvlad/gridci/internal/scheduler"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

func usageError(format string, args ...any) *ExitError {
	return &ExitError{Code: 2, Message: fmt.Sprintf(format, args...)}
}

// envDefaults collects the typed GRIDCI_* lookups and remembers the first
// parse failure.
type envDefaults struct {
	err error
}

func (d *envDefaults) int(name string, def int) int {
	v, err := env.Int(name, def)
	if err != nil && d.err == nil {
		d.err = err
	}
	return v
}

func (d *envDefaults) bool(name string, def bool) bool {
	v, err := env.Bool(name, def)
	if err != nil && d.err == nil {
		d.err = err
	}
	return v
}

func (d *envDefaults) duration(name string, def time.Duration) time.Duration {
	v, err := env.Duration(name, def)
	if err != nil && d.err == nil {
		d.err = err
	}
	return v
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("gridci", flag.ContinueOnError)
	flagSet.SetOutput(output)

	// Custom usage/help text function
	flagSet.Usage = func() {
		fmt.Fprint(output, `
gridci - A matrix-aware CI pipeline runner.

Usage:
  gridci [options] [PIPELINE_PATH]

Arguments:
  PIPELINE_PATH
    Path to a single .hcl/.yaml file or a directory of them.

Every option may also be set through a GRIDCI_<OPTION> environment variable,
e.g. GRIDCI_LOG_LEVEL=debug or GRIDCI_MINIO_ENDPOINT=localhost:9000.

Options:
`)
		flagSet.PrintDefaults()
	}

	defs := &envDefaults{}

	pipelineFlag := flagSet.String("pipeline", env.String("pipeline", ""), "Path to the pipeline file or directory.")
	pFlag := flagSet.String("p", "", "Path to the pipeline file or directory (shorthand).")

	branchFlag := flagSet.String("branch", env.String("branch", ""), "Branch that triggered the run.")
	tagFlag := flagSet.String("tag", env.String("tag", ""), "Tag that triggered the run; implies a tag push.")
	eventFlag := flagSet.String("event", env.String("event", "push"), "Trigger event, e.g. 'push', 'pull_request', 'schedule'.")

	workersFlag := flagSet.Int("workers", defs.int("workers", scheduler.DefaultMaxConcurrency), "Maximum number of job instances running at once.")
	failFastFlag := flagSet.Bool("fail-fast-pipeline", defs.bool("fail-fast-pipeline", false), "Cancel pending work on the first failure of a job that is not allowed to fail.")
	gateModeFlag := flagSet.String("gate-mode", env.String("gate-mode", string(scheduler.GateTwoLayer)), "How gated jobs open. Options: 'two-layer' or 'condition-only'.")

	logFormatFlag := flagSet.String("log-format", env.String("log-format", "text"), "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", env.String("log-level", "info"), "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	controlPortFlag := flagSet.Int("control-port", defs.int("control-port", 0), "Port for the HTTP control API (/health, /runs, /metrics). 0 is disabled.")
	shutdownFlag := flagSet.Duration("shutdown-timeout", defs.duration("shutdown-timeout", 5*time.Second), "Grace period for the control server on exit.")

	postgresFlag := flagSet.String("report-postgres", env.String("report-postgres", ""), "Postgres URL for the run report sink. Empty is disabled.")
	socketIOFlag := flagSet.String("report-socketio", env.String("report-socketio", ""), "Socket.IO server URL for the live report sink. Empty is disabled.")
	socketIONSFlag := flagSet.String("report-socketio-namespace", env.String("report-socketio-namespace", "/"), "Socket.IO namespace for the live report sink.")

	minioEndpointFlag := flagSet.String("minio-endpoint", env.String("minio-endpoint", ""), "MinIO/S3 endpoint for artifact archiving. Empty is disabled.")
	minioAccessFlag := flagSet.String("minio-access-key", env.String("minio-access-key", ""), "MinIO access key.")
	minioSecretFlag := flagSet.String("minio-secret-key", env.String("minio-secret-key", ""), "MinIO secret key.")
	minioBucketFlag := flagSet.String("minio-bucket", env.String("minio-bucket", "gridci-artifacts"), "Bucket for archived artifacts.")
	minioRegionFlag := flagSet.String("minio-region", env.String("minio-region", ""), "Bucket region.")
	minioPrefixFlag := flagSet.String("minio-prefix", env.String("minio-prefix", ""), "Prefix for archived object keys.")
	minioSSLFlag := flagSet.Bool("minio-use-ssl", defs.bool("minio-use-ssl", false), "Use TLS for the MinIO endpoint.")

	if defs.err != nil {
		return nil, false, usageError("invalid environment: %v", defs.err)
	}

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, usageError("%s", err.Error())
	}
	slog.Debug("Arguments parsed successfully.")

	path := ""
	if *pipelineFlag != "" {
		path = *pipelineFlag
	} else if *pFlag != "" {
		path = *pFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}
	slog.Debug("Pipeline path determined.", "path", path)

	if path == "" {
		slog.Debug("No pipeline path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	config, err := app.NewConfig(app.Config{
		PipelinePath: path,
		Trigger: condition.Trigger{
			Event:   *eventFlag,
			Branch:  *branchFlag,
			Tag:     *tagFlag,
			TagPush: *tagFlag != "",
		},
		Workers:           *workersFlag,
		FailFastPipeline:  *failFastFlag,
		GateMode:          scheduler.GateMode(strings.ToLower(*gateModeFlag)),
		LogFormat:         strings.ToLower(*logFormatFlag),
		LogLevel:          strings.ToLower(*logLevelFlag),
		ControlPort:       *controlPortFlag,
		ShutdownTimeout:   *shutdownFlag,
		PostgresURL:       *postgresFlag,
		SocketIOURL:       *socketIOFlag,
		SocketIONamespace: *socketIONSFlag,
		ObjectStore: objectstore.Config{
			Endpoint:  *minioEndpointFlag,
			AccessKey: *minioAccessFlag,
			SecretKey: *minioSecretFlag,
			Bucket:    *minioBucketFlag,
			Region:    *minioRegionFlag,
			UseSSL:    *minioSSLFlag,
			Prefix:    *minioPrefixFlag,
		},
	})
	if err != nil {
		return nil, false, usageError("%s", err.Error())
	}

	slog.Debug("CLI parser finished successfully.", "pipeline", config.PipelinePath)
	return config, false, nil
}
