package integration_tests

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"

	"github.com/specialistvlad/gridci/internal/condition"
	"github.com/specialistvlad/gridci/internal/config"
	"github.com/specialistvlad/gridci/internal/engine"
	"github.com/specialistvlad/gridci/internal/executor"
	"github.com/specialistvlad/gridci/internal/hcl"
	"github.com/specialistvlad/gridci/internal/instance"
	"github.com/specialistvlad/gridci/internal/model"
	"github.com/specialistvlad/gridci/internal/report"
	"github.com/specialistvlad/gridci/internal/scheduler"
	"github.com/specialistvlad/gridci/internal/status"
	"github.com/specialistvlad/gridci/internal/testutil"
	"github.com/specialistvlad/gridci/internal/yamlcfg"
	"github.com/stretchr/testify/require"
)

// call is one recorded action invocation.
type call struct {
	Instance  string
	Inputs    map[string]string
	Artifacts map[string]string
}

// recorder registers the actions used by the scenarios and remembers every
// invocation.
//
//	record  succeeds and writes "<artifact>@<instance>" for each declared write
//	fail    always fails
//	flaky   fails until the instance has been attempted `failures` times
//	hang    blocks until cancelled
type recorder struct {
	mu       sync.Mutex
	calls    []call
	attempts map[string]int
}

func newRecorder() *recorder {
	return &recorder{attempts: make(map[string]int)}
}

func (r *recorder) Register(reg *executor.Registry) {
	reg.Register("record", executor.AdapterFunc(r.record))
	reg.Register("fail", executor.AdapterFunc(func(ctx context.Context, step model.StepDescriptor, env *executor.Environment) (executor.Result, error) {
		r.note(env)
		return executor.Result{}, errors.New("exit status 1")
	}))
	reg.Register("flaky", executor.AdapterFunc(func(ctx context.Context, step model.StepDescriptor, env *executor.Environment) (executor.Result, error) {
		n := r.note(env)
		failures, err := strconv.Atoi(env.Input("failures", "1"))
		if err != nil {
			return executor.Result{}, err
		}
		if n <= failures {
			return executor.Result{}, fmt.Errorf("flaky attempt %d", n)
		}
		return executor.Result{}, nil
	}))
	reg.Register("hang", executor.AdapterFunc(func(ctx context.Context, step model.StepDescriptor, env *executor.Environment) (executor.Result, error) {
		r.note(env)
		<-ctx.Done()
		return executor.Result{}, ctx.Err()
	}))
}

func (r *recorder) record(_ context.Context, step model.StepDescriptor, env *executor.Environment) (executor.Result, error) {
	r.note(env)
	out := executor.Result{Artifacts: make(map[string][]byte, len(step.Writes))}
	for _, name := range step.Writes {
		out.Artifacts[name] = []byte(name + "@" + env.Instance)
	}
	return out, nil
}

// note records env and returns how many times the instance has been seen.
func (r *recorder) note(env *executor.Environment) int {
	c := call{Instance: env.Instance, Inputs: env.Inputs, Artifacts: map[string]string{}}
	for name, payload := range env.Artifacts {
		c.Artifacts[name] = string(payload)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
	r.attempts[env.Instance]++
	return r.attempts[env.Instance]
}

func (r *recorder) Calls() []call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]call(nil), r.calls...)
}

func (r *recorder) Instances() []string {
	var out []string
	for _, c := range r.Calls() {
		out = append(out, c.Instance)
	}
	return out
}

func (r *recorder) Find(inst string) (call, bool) {
	for _, c := range r.Calls() {
		if c.Instance == inst {
			return c, true
		}
	}
	return call{}, false
}

// result is the outcome of one end-to-end run.
type result struct {
	run       *engine.Run
	report    status.Report
	err       error
	events    *report.Recorder
	instances map[string]instance.Snapshot
}

func (r result) outcome(key string) status.Outcome {
	snap, ok := r.instances[key]
	if !ok {
		panic("unknown instance " + key)
	}
	return snap.Outcome
}

func (r result) reason(key string) instance.Reason {
	return r.instances[key].Reason
}

// scenario describes a pipeline directory and how to run it.
type scenario struct {
	files   map[string]string
	trigger condition.Trigger
	config  scheduler.Config
}

// load materializes the scenario files and loads them like the CLI does.
func load(t *testing.T, files map[string]string) (*model.Pipeline, error) {
	t.Helper()
	ctx, _ := testutil.Context(t)
	dir := testutil.WriteFiles(t, files)
	return config.Load(ctx, dir, hcl.NewLoader(), yamlcfg.NewLoader())
}

// execute loads and runs a scenario to completion.
func execute(t *testing.T, s scenario, rec *recorder) result {
	t.Helper()
	p, err := load(t, s.files)
	require.NoError(t, err, "pipeline should load")

	ctx, _ := testutil.Context(t)
	registry := executor.NewRegistry()
	registry.RegisterModules(rec)
	events := &report.Recorder{}

	eng := engine.New(engine.Options{Registry: registry, Scheduler: s.config, Sink: events})
	run, err := eng.Start(ctx, p, s.trigger)
	require.NoError(t, err, "pipeline should pass validation")

	rep, err := run.Wait(ctx)
	res := result{run: run, report: rep, err: err, events: events, instances: map[string]instance.Snapshot{}}
	for _, snap := range run.Snapshot(true).Instances {
		res.instances[snap.ID] = snap
	}
	return res
}
