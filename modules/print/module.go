package print

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/specialistvlad/gridci/internal/ctxlog"
	"github.com/specialistvlad/gridci/internal/executor"
	"github.com/specialistvlad/gridci/internal/model"
)

// Module implements the executor.Module interface for this package.
type Module struct {
	// Out receives the printed inputs; defaults to os.Stdout.
	Out io.Writer
}

// Register registers the action with the engine.
func (m *Module) Register(r *executor.Registry) {
	r.Register("print", executor.AdapterFunc(m.run))
}

// run prints every input of the step, plus the size of each artifact it reads.
func (m *Module) run(ctx context.Context, step model.StepDescriptor, env *executor.Environment) (executor.Result, error) {
	ctxlog.FromContext(ctx).Info("Printing input", "instance", env.Instance)

	out := m.Out
	if out == nil {
		out = os.Stdout
	}

	fmt.Fprintf(out, "[%s]\n", env.Instance)
	if len(env.Inputs) == 0 {
		fmt.Fprintln(out, "      (null)")
	}

	// Sort keys for consistent output
	keys := make([]string, 0, len(env.Inputs))
	for k := range env.Inputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(out, "      %s = %q\n", k, env.Inputs[k])
	}

	for _, name := range step.Reads {
		fmt.Fprintf(out, "      artifact %s (%d bytes)\n", name, len(env.Artifacts[name]))
	}
	return executor.Result{}, nil
}
