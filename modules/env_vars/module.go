package env_vars

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/specialistvlad/gridci/internal/executor"
	"github.com/specialistvlad/gridci/internal/model"
)

// Module implements the executor.Module interface for this package.
type Module struct{}

// Register registers the action with the engine.
func (m *Module) Register(r *executor.Registry) {
	r.Register("env_vars", executor.AdapterFunc(run))
}

// run snapshots the process environment, optionally filtered by the `prefix`
// input, merged with the job env. When `artifact` is set the snapshot is
// written as JSON under that artifact name.
func run(ctx context.Context, step model.StepDescriptor, env *executor.Environment) (executor.Result, error) {
	prefix := env.Input("prefix", "")

	envMap := make(map[string]string)
	for _, e := range os.Environ() {
		pair := strings.SplitN(e, "=", 2)
		if len(pair) == 2 && strings.HasPrefix(pair[0], prefix) {
			envMap[pair[0]] = pair[1]
		}
	}
	for k, v := range env.Env {
		if strings.HasPrefix(k, prefix) {
			envMap[k] = v
		}
	}

	result := executor.Result{Output: fmt.Sprintf("%d variables", len(envMap))}
	if name := env.Input("artifact", ""); name != "" {
		payload, err := json.Marshal(envMap)
		if err != nil {
			return executor.Result{}, fmt.Errorf("failed to encode environment: %w", err)
		}
		result.Artifacts = map[string][]byte{name: payload}
	}
	return result, nil
}
