package executor

import (
	"context"

	"github.com/specialistvlad/gridci/internal/condition"
	"github.com/specialistvlad/gridci/internal/model"
)

// Environment is everything an action may observe about the step it runs.
type Environment struct {
	RunID    string
	Instance string
	Job      string
	// Step is the zero based index of the step within the job.
	Step   int
	Matrix map[string]string
	// Inputs are the step's `with` values after template rendering.
	Inputs map[string]string
	// Env is the job's environment block.
	Env map[string]string
	// Artifacts holds the payload of every artifact the step declared under
	// `reads`, keyed by artifact name.
	Artifacts map[string][]byte
	Trigger   condition.Trigger
}

// Input returns an input value or def when it is unset or empty.
func (e *Environment) Input(name, def string) string {
	if v, ok := e.Inputs[name]; ok && v != "" {
		return v
	}
	return def
}

// Result is what an action hands back after a successful run.
type Result struct {
	// Artifacts maps artifact names to payloads. Every name must be declared
	// under the step's `writes`.
	Artifacts map[string][]byte
	// Output is a free-form summary recorded in the logs.
	Output string
}

// Adapter executes a single step. A non-nil error fails the step.
type Adapter interface {
	Run(ctx context.Context, step model.StepDescriptor, env *Environment) (Result, error)
}

// AdapterFunc lets an ordinary function act as an Adapter.
type AdapterFunc func(ctx context.Context, step model.StepDescriptor, env *Environment) (Result, error)

// Run calls f.
func (f AdapterFunc) Run(ctx context.Context, step model.StepDescriptor, env *Environment) (Result, error) {
	return f(ctx, step, env)
}
