package executor

import (
	"context"
	"fmt"
	"sort"

	"github.com/specialistvlad/gridci/internal/artifactstore"
	"github.com/specialistvlad/gridci/internal/condition"
	"github.com/specialistvlad/gridci/internal/ctxlog"
	"github.com/specialistvlad/gridci/internal/instance"
	"github.com/specialistvlad/gridci/internal/model"
)

// Invocation is one attempt at running an instance.
type Invocation struct {
	RunID    string
	Instance *instance.Instance
	Trigger  condition.Trigger
}

// Runner executes the steps of job instances.
type Runner struct {
	registry *Registry
	store    artifactstore.Store
}

// NewRunner creates a Runner resolving actions in registry and exchanging
// artifacts through store.
func NewRunner(registry *Registry, store artifactstore.Store) *Runner {
	return &Runner{registry: registry, store: store}
}

// Run executes every step of the instance in order and returns the first
// failure. Artifacts written by the steps are staged in the store; the caller
// commits them once the instance succeeds.
func (r *Runner) Run(ctx context.Context, inv Invocation) error {
	inst := inv.Instance
	logger := ctxlog.FromContext(ctx).With("instance", inst.Key())
	logger.Debug("Runner: Starting instance.", "steps", len(inst.Steps))

	for i, step := range inst.Steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.runStep(ctx, inv, i, step); err != nil {
			return &StepError{Instance: inst.Key(), Step: i, Name: step.Name, Err: err}
		}
	}

	logger.Debug("Runner: Instance steps finished.")
	return nil
}

func (r *Runner) runStep(ctx context.Context, inv Invocation, index int, step model.StepDescriptor) error {
	inst := inv.Instance
	logger := ctxlog.FromContext(ctx).With("instance", inst.Key(), "step", index, "uses", step.Uses)

	adapter, err := r.registry.Lookup(step.Uses)
	if err != nil {
		return err
	}

	reads := make(map[string][]byte, len(step.Reads))
	for _, key := range step.Reads {
		payload, err := r.store.Get(key)
		if err != nil {
			return fmt.Errorf("failed to read artifact: %w", err)
		}
		reads[key] = payload
	}

	env := &Environment{
		RunID:     inv.RunID,
		Instance:  inst.Key(),
		Job:       inst.ID.Job,
		Step:      index,
		Matrix:    inst.Matrix(),
		Inputs:    step.With,
		Env:       inst.Job.Env,
		Artifacts: reads,
		Trigger:   inv.Trigger,
	}

	logger.Debug("Runner: Calling action.")
	result, err := adapter.Run(ctx, step, env)
	if err != nil {
		return err
	}
	if result.Output != "" {
		logger.Debug("Runner: Action output.", "output", result.Output)
	}

	return r.stageWrites(inst.Key(), step, result.Artifacts)
}

func (r *Runner) stageWrites(producer string, step model.StepDescriptor, written map[string][]byte) error {
	declared := make(map[string]struct{}, len(step.Writes))
	for _, key := range step.Writes {
		declared[key] = struct{}{}
	}

	names := make([]string, 0, len(written))
	for name := range written {
		if _, ok := declared[name]; !ok {
			return &UndeclaredWriteError{Artifact: name}
		}
		names = append(names, name)
	}
	for _, key := range step.Writes {
		if _, ok := written[key]; !ok {
			return &MissingWriteError{Artifact: key}
		}
	}

	sort.Strings(names)
	for _, name := range names {
		if err := r.store.Put(name, producer, written[name]); err != nil {
			return fmt.Errorf("failed to write artifact: %w", err)
		}
	}
	return nil
}
