// Package shell runs a step's `run` script with `sh -c`.
//
// The script runs in a scratch directory exported as GRIDCI_WORKSPACE. Every
// artifact the step reads is materialised there as a file named after the
// artifact before the script starts, and every artifact the step declares
// under `writes` is collected from the file of the same name afterwards.
package shell

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/specialistvlad/gridci/internal/ctxlog"
	"github.com/specialistvlad/gridci/internal/executor"
	"github.com/specialistvlad/gridci/internal/model"
)

// Module implements the executor.Module interface for this package.
type Module struct {
	// Shell is the interpreter; defaults to "sh".
	Shell string
}

// Register registers the action with the engine.
func (m *Module) Register(r *executor.Registry) {
	r.Register("shell", executor.AdapterFunc(m.run))
}

func (m *Module) run(ctx context.Context, step model.StepDescriptor, env *executor.Environment) (executor.Result, error) {
	script := env.Input("run", "")
	if strings.TrimSpace(script) == "" {
		return executor.Result{}, fmt.Errorf("input 'run' is required")
	}
	logger := ctxlog.FromContext(ctx).With("action", "shell", "instance", env.Instance)

	workspace, err := os.MkdirTemp("", "gridci-*")
	if err != nil {
		return executor.Result{}, fmt.Errorf("failed to create workspace: %w", err)
	}
	defer os.RemoveAll(workspace)

	for name, payload := range env.Artifacts {
		if err := os.WriteFile(filepath.Join(workspace, name), payload, 0o644); err != nil {
			return executor.Result{}, fmt.Errorf("failed to stage artifact %q: %w", name, err)
		}
	}

	interpreter := m.Shell
	if interpreter == "" {
		interpreter = "sh"
	}
	cmd := exec.CommandContext(ctx, interpreter, "-c", script)
	cmd.Dir = workspace
	cmd.Env = append(os.Environ(), environ(env, workspace)...)

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	logger.Debug("Running script.")
	if err := cmd.Run(); err != nil {
		return executor.Result{Output: out.String()}, fmt.Errorf("script failed: %w: %s", err, strings.TrimSpace(out.String()))
	}

	result := executor.Result{Output: out.String()}
	for _, name := range step.Writes {
		payload, err := os.ReadFile(filepath.Join(workspace, name))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return result, fmt.Errorf("failed to collect artifact %q: %w", name, err)
		}
		if result.Artifacts == nil {
			result.Artifacts = make(map[string][]byte, len(step.Writes))
		}
		result.Artifacts[name] = payload
	}
	return result, nil
}

// environ builds the variables exported to the script: the job env, the
// matrix values as MATRIX_<AXIS> and the run coordinates.
func environ(env *executor.Environment, workspace string) []string {
	vars := []string{
		"GRIDCI_WORKSPACE=" + workspace,
		"GRIDCI_RUN_ID=" + env.RunID,
		"GRIDCI_JOB=" + env.Job,
		"GRIDCI_INSTANCE=" + env.Instance,
		"GRIDCI_BRANCH=" + env.Trigger.Branch,
		"GRIDCI_TAG=" + env.Trigger.Tag,
		"GRIDCI_EVENT=" + env.Trigger.Event,
	}

	keys := make([]string, 0, len(env.Matrix))
	for k := range env.Matrix {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		vars = append(vars, "MATRIX_"+strings.ToUpper(k)+"="+env.Matrix[k])
	}

	keys = keys[:0]
	for k := range env.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		vars = append(vars, k+"="+env.Env[k])
	}
	return vars
}
