package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/specialistvlad/gridci/internal/artifactstore"
	"github.com/specialistvlad/gridci/internal/builder"
	"github.com/specialistvlad/gridci/internal/condition"
	"github.com/specialistvlad/gridci/internal/ctxlog"
	"github.com/specialistvlad/gridci/internal/executor"
	"github.com/specialistvlad/gridci/internal/instance"
	"github.com/specialistvlad/gridci/internal/report"
	"github.com/specialistvlad/gridci/internal/status"
	"golang.org/x/sync/semaphore"
)

// Runner executes one attempt of an instance. *executor.Runner implements it.
type Runner interface {
	Run(ctx context.Context, inv executor.Invocation) error
}

// Params are the per-run inputs of a Scheduler.
type Params struct {
	RunID   string
	Plan    *builder.Plan
	Trigger condition.Trigger
	Runner  Runner
	Store   artifactstore.Store
	// Sink receives instance events; it is called from the control loop and
	// should not block. Wrap slow sinks in report.Async.
	Sink report.Sink
}

// Scheduler runs a single Plan. It is not reusable.
type Scheduler struct {
	cfg Config
	p   Params
	now func() time.Time
}

func New(cfg Config, p Params) *Scheduler {
	if p.Sink == nil {
		p.Sink = report.Nop{}
	}
	if p.Store == nil {
		p.Store = artifactstore.New()
	}
	return &Scheduler{cfg: cfg.withDefaults(), p: p, now: time.Now}
}

type completion struct {
	inst     *instance.Instance
	err      error
	timedOut bool
}

// loop is the state owned by the control loop goroutine.
type loop struct {
	*Scheduler
	plan    *builder.Plan
	ctx     context.Context
	sinkCtx context.Context
	abort   context.CancelFunc
	logger  *slog.Logger
	sem     *semaphore.Weighted

	remaining  map[string]int
	unresolved int
	ready      []*instance.Instance
	dispatchQ  []*instance.Instance
	inflight   map[string]context.CancelFunc
	backoff    map[string]*time.Timer

	events  chan completion
	retries chan *instance.Instance
	done    chan struct{}

	stopping bool
	fatal    error
}

// Execute drives the plan until every instance is terminal and returns the
// aggregated report. The error is non-nil only when a condition could not be
// evaluated; the run is aborted in that case.
func (s *Scheduler) Execute(ctx context.Context) (status.Report, error) {
	runCtx, abort := context.WithCancel(ctx)
	defer abort()

	plan := s.p.Plan
	l := &loop{
		Scheduler: s,
		plan:      plan,
		ctx:       runCtx,
		sinkCtx:   context.WithoutCancel(ctx),
		abort:     abort,
		logger:    ctxlog.FromContext(ctx).With("run", s.p.RunID),
		sem:       semaphore.NewWeighted(int64(s.cfg.MaxConcurrency)),
		remaining: make(map[string]int, plan.Graph.Len()),
		inflight:  make(map[string]context.CancelFunc),
		backoff:   make(map[string]*time.Timer),
		events:    make(chan completion, s.cfg.MaxConcurrency),
		retries:   make(chan *instance.Instance),
		done:      make(chan struct{}),
	}
	defer close(l.done)

	for _, inst := range plan.Graph.Instances() {
		n := plan.Graph.DependencyCount(inst.Key())
		l.remaining[inst.Key()] = n
		if n == 0 {
			l.ready = append(l.ready, inst)
		}
	}
	l.unresolved = plan.Graph.Len()
	l.logger.Info("Scheduler: Run started.", "instances", l.unresolved, "max_concurrency", s.cfg.MaxConcurrency, "gate_mode", s.cfg.GateMode)

	cancelled := runCtx.Done()
	for {
		l.drain()
		l.dispatch()
		if l.unresolved == 0 {
			break
		}
		select {
		case c := <-l.events:
			l.complete(c)
		case inst := <-l.retries:
			l.requeue(inst)
		case <-cancelled:
			cancelled = nil
			l.logger.Warn("Scheduler: Run cancelled.", "in_flight", len(l.inflight))
			l.cancelAll()
		}
	}

	r := plan.Report()
	l.logger.Info("Scheduler: Run finished.", "outcome", r.Pipeline)
	return r, l.fatal
}

// drain resolves every instance whose dependencies are all terminal.
func (l *loop) drain() {
	for len(l.ready) > 0 {
		inst := l.ready[0]
		l.ready = l.ready[1:]
		if inst.Outcome() != status.Pending {
			continue
		}
		l.resolve(inst)
	}
}

func (l *loop) resolve(inst *instance.Instance) {
	if l.stopping || l.ctx.Err() != nil {
		l.finish(inst, status.Cancelled, instance.ReasonRunCancelled, nil)
		return
	}

	job := inst.Job
	outcomes := l.resolvedOutcomes()
	expr := l.plan.Conditions[job.ID]
	ok, err := condition.Evaluate(expr, &condition.Context{
		Trigger:  l.p.Trigger,
		Job:      job.ID,
		Needs:    job.Needs,
		Declared: l.plan.Declared,
		Outcomes: outcomes,
	})
	if err != nil {
		err = fmt.Errorf("instance %s: %w", inst.Key(), err)
		l.logger.Error("Scheduler: Condition evaluation failed, aborting run.", "instance", inst.Key(), "error", err)
		l.finish(inst, status.Cancelled, instance.ReasonEvaluationError, err)
		l.fail(err)
		return
	}
	if !ok {
		reason := instance.ReasonConditionFalse
		if expr == nil && anyFailed(job.Needs, outcomes) {
			reason = instance.ReasonDependencyFailed
		}
		l.finish(inst, status.Skipped, reason, nil)
		return
	}

	if job.Gated && l.cfg.GateMode == GateTwoLayer {
		upstream := l.plan.Pipeline.Upstream(job.ID)
		if verdict := status.PipelineOutcome(upstream, outcomes, l.plan.Allow, nil); verdict != status.Succeeded {
			l.logger.Debug("Scheduler: Gate closed by upstream aggregate.", "instance", inst.Key(), "upstream", verdict)
			l.finish(inst, status.Skipped, instance.ReasonAggregateGate, nil)
			return
		}
	}

	if job.IsCheck() {
		l.runCheck(inst, outcomes)
		return
	}

	l.logger.Debug("Scheduler: Instance ready for dispatch.", "instance", inst.Key())
	l.dispatchQ = append(l.dispatchQ, inst)
}

// resolvedOutcomes aggregates every job whose instances are all terminal.
func (l *loop) resolvedOutcomes() map[string]status.Outcome {
	out := make(map[string]status.Outcome, len(l.plan.JobOrder))
	for _, id := range l.plan.JobOrder {
		if l.plan.JobResolved(id) {
			out[id] = status.AggregateJob(id, l.plan.JobOutcomes(id), l.plan.Allow)
		}
	}
	return out
}

func anyFailed(jobs []string, outcomes map[string]status.Outcome) bool {
	for _, id := range jobs {
		if o := outcomes[id]; o == status.Failed || o == status.Cancelled {
			return true
		}
	}
	return false
}

// runCheck decides a check job from its needs without dispatching it.
func (l *loop) runCheck(inst *instance.Instance, outcomes map[string]status.Outcome) {
	job := inst.Job
	attempt, err := inst.Begin(l.now())
	if err != nil {
		l.logger.Error("Scheduler: Invalid transition.", "instance", inst.Key(), "error", err)
		return
	}
	l.emitStart(inst, attempt)

	// Every need is required: a Skipped need passes only when it is allowed.
	allow := status.NewSet(job.Check.AllowFailure...)
	if status.PipelineOutcome(job.Needs, outcomes, allow, status.NewSet(job.Needs...)) == status.Succeeded {
		l.finish(inst, status.Succeeded, instance.ReasonNone, nil)
		return
	}

	var failed []string
	for _, id := range job.Needs {
		if o := outcomes[id]; o != status.Succeeded && !allow.Has(id) {
			failed = append(failed, id+"="+o.String())
		}
	}
	l.finish(inst, status.Failed, instance.ReasonDependencyFailed,
		fmt.Errorf("check %s failed: %s", job.ID, strings.Join(failed, ", ")))
}

// dispatch starts queued instances while capacity is available.
func (l *loop) dispatch() {
	for len(l.dispatchQ) > 0 {
		inst := l.dispatchQ[0]
		if inst.Outcome().IsTerminal() {
			l.dispatchQ = l.dispatchQ[1:]
			continue
		}
		if !l.sem.TryAcquire(1) {
			return
		}
		l.dispatchQ = l.dispatchQ[1:]
		l.start(inst)
	}
}

func (l *loop) start(inst *instance.Instance) {
	var (
		attempt int
		err     error
	)
	if inst.Outcome() == status.Pending {
		attempt, err = inst.Begin(l.now())
	} else {
		attempt, err = inst.Retry(l.now())
	}
	if err != nil {
		l.sem.Release(1)
		l.logger.Error("Scheduler: Invalid transition.", "instance", inst.Key(), "error", err)
		return
	}
	l.logger.Debug("Scheduler: Dispatching instance.", "instance", inst.Key(), "attempt", attempt)
	l.emitStart(inst, attempt)

	var (
		workCtx context.Context
		cancel  context.CancelFunc
	)
	if timeout := inst.Job.Timeout; timeout > 0 {
		workCtx, cancel = context.WithTimeout(l.ctx, timeout)
	} else {
		workCtx, cancel = context.WithCancel(l.ctx)
	}
	l.inflight[inst.Key()] = cancel
	go l.work(workCtx, cancel, inst)
}

// work runs in its own goroutine. It frees its slot before reporting so the
// loop can dispatch the next instance as soon as it handles the completion.
func (l *loop) work(ctx context.Context, cancel context.CancelFunc, inst *instance.Instance) {
	err := l.p.Runner.Run(ctx, executor.Invocation{
		RunID:    l.p.RunID,
		Instance: inst,
		Trigger:  l.p.Trigger,
	})
	// An adapter may ignore ctx and return late without an error; the
	// deadline still decides.
	timedOut := errors.Is(ctx.Err(), context.DeadlineExceeded) && l.ctx.Err() == nil
	if timedOut && err == nil {
		err = ctx.Err()
	}
	cancel()
	l.sem.Release(1)
	l.events <- completion{inst: inst, err: err, timedOut: timedOut}
}

func (l *loop) complete(c completion) {
	inst := c.inst
	key := inst.Key()
	if cancel, ok := l.inflight[key]; ok {
		cancel()
		delete(l.inflight, key)
	}

	if l.stopping || l.ctx.Err() != nil {
		l.finish(inst, status.Cancelled, instance.ReasonRunCancelled, nil)
		return
	}

	if c.err == nil {
		if n := l.p.Store.Commit(key); n > 0 {
			l.logger.Debug("Scheduler: Artifacts committed.", "instance", key, "count", n)
		}
		l.finish(inst, status.Succeeded, instance.ReasonNone, nil)
		return
	}

	reason, err := instance.ReasonStepFailed, c.err
	switch {
	case c.timedOut:
		reason = instance.ReasonTimedOut
		err = &TimeoutError{Instance: key, Timeout: inst.Job.Timeout, Err: c.err}
	case executor.IsArtifactError(c.err):
		reason = instance.ReasonArtifactError
	}

	if attempt := len(inst.Attempts()); attempt <= inst.Job.Retry.MaxRetries {
		a, aerr := inst.EndAttempt(status.Failed, reason, err, l.now())
		if aerr != nil {
			l.logger.Error("Scheduler: Invalid transition.", "instance", key, "error", aerr)
			l.finish(inst, status.Failed, reason, err)
			return
		}
		l.logger.Warn("Scheduler: Attempt failed, scheduling retry.", "instance", key, "attempt", attempt, "backoff", inst.Job.Retry.Backoff, "error", err)
		l.emit(attemptEvent(l.p.RunID, inst, a, false))
		l.scheduleRetry(inst)
		return
	}

	l.finish(inst, status.Failed, reason, err)
}

func (l *loop) scheduleRetry(inst *instance.Instance) {
	backoff := inst.Job.Retry.Backoff
	if backoff <= 0 {
		l.dispatchQ = append(l.dispatchQ, inst)
		return
	}
	l.backoff[inst.Key()] = time.AfterFunc(backoff, func() {
		select {
		case l.retries <- inst:
		case <-l.done:
		}
	})
}

func (l *loop) requeue(inst *instance.Instance) {
	delete(l.backoff, inst.Key())
	if l.stopping || inst.Outcome().IsTerminal() {
		return
	}
	l.dispatchQ = append(l.dispatchQ, inst)
}

// finish records a terminal outcome and releases the instance's dependents.
func (l *loop) finish(inst *instance.Instance, outcome status.Outcome, reason instance.Reason, err error) {
	if ferr := inst.Finish(outcome, reason, err, l.now()); ferr != nil {
		l.logger.Error("Scheduler: Invalid transition.", "instance", inst.Key(), "error", ferr)
		return
	}
	l.unresolved--

	logger := l.logger.With("instance", inst.Key(), "reason", reason)
	switch outcome {
	case status.Succeeded:
		logger.Info("Scheduler: Instance succeeded.")
	case status.Failed:
		logger.Error("Scheduler: Instance failed.", "error", err)
	default:
		logger.Warn("Scheduler: Instance did not run.", "outcome", outcome)
	}
	l.emit(finalEvent(l.p.RunID, inst, l.now()))

	dependents, derr := l.plan.Graph.Dependents(inst.Key())
	if derr != nil {
		l.logger.Error("Scheduler: Failed to get dependents.", "instance", inst.Key(), "error", derr)
	}
	for _, d := range dependents {
		l.remaining[d.Key()]--
		if l.remaining[d.Key()] == 0 {
			l.ready = append(l.ready, d)
		}
	}

	if outcome == status.Failed {
		l.failFast(inst)
	}
}

func (l *loop) failFast(failed *instance.Instance) {
	job := failed.Job
	siblings := l.plan.ByJob[job.ID]
	if job.FailFastEnabled() && len(siblings) > 1 {
		for _, sib := range siblings {
			if sib.Outcome() == status.Pending {
				l.finish(sib, status.Cancelled, instance.ReasonFailFast, nil)
			}
		}
	}

	if l.cfg.FailFastPipeline && !l.plan.Allow.Has(job.ID) {
		l.logger.Warn("Scheduler: Pipeline fail-fast triggered.", "instance", failed.Key())
		for _, inst := range l.plan.Graph.Instances() {
			if inst.Outcome() == status.Pending {
				l.finish(inst, status.Cancelled, instance.ReasonFailFast, nil)
			}
		}
	}
}

// fail aborts the run after an evaluation error.
func (l *loop) fail(err error) {
	if l.fatal == nil {
		l.fatal = err
	}
	l.cancelAll()
	l.abort()
}

// cancelAll cancels every instance that is not terminal. Running attempts are
// interrupted and recorded when their worker reports back.
func (l *loop) cancelAll() {
	if l.stopping {
		return
	}
	l.stopping = true

	for key, t := range l.backoff {
		t.Stop()
		delete(l.backoff, key)
	}
	for _, cancel := range l.inflight {
		cancel()
	}
	l.dispatchQ = nil

	for _, inst := range l.plan.Graph.Instances() {
		if _, running := l.inflight[inst.Key()]; running {
			continue
		}
		if !inst.Outcome().IsTerminal() {
			l.finish(inst, status.Cancelled, instance.ReasonRunCancelled, nil)
		}
	}
}

func (l *loop) emitStart(inst *instance.Instance, attempt int) {
	attempts := inst.Attempts()
	a := attempts[len(attempts)-1]
	l.emit(report.InstanceEvent{
		RunID:    l.p.RunID,
		Instance: inst.Key(),
		Job:      inst.ID.Job,
		Matrix:   inst.Matrix(),
		Outcome:  status.Running,
		Reason:   instance.ReasonNone,
		Attempt:  attempt,
		Start:    a.Start,
	})
}

func (l *loop) emit(ev report.InstanceEvent) {
	if err := l.p.Sink.InstanceEvent(l.sinkCtx, ev); err != nil {
		l.logger.Warn("Scheduler: Report sink failed.", "instance", ev.Instance, "error", err)
	}
}

func attemptEvent(runID string, inst *instance.Instance, a instance.Attempt, final bool) report.InstanceEvent {
	ev := report.InstanceEvent{
		RunID:    runID,
		Instance: inst.Key(),
		Job:      inst.ID.Job,
		Matrix:   inst.Matrix(),
		Outcome:  a.Outcome,
		Reason:   a.Reason,
		Attempt:  a.Number,
		Final:    final,
		Start:    a.Start,
		End:      a.End,
	}
	if a.Err != nil {
		ev.Error = a.Err.Error()
	}
	return ev
}

// finalEvent describes the terminal state of inst. Instances that never ran
// report attempt zero.
func finalEvent(runID string, inst *instance.Instance, now time.Time) report.InstanceEvent {
	ev := report.InstanceEvent{
		RunID:    runID,
		Instance: inst.Key(),
		Job:      inst.ID.Job,
		Matrix:   inst.Matrix(),
		Start:    now,
		End:      now,
	}
	if attempts := inst.Attempts(); len(attempts) > 0 {
		last := attempts[len(attempts)-1]
		ev.Attempt = last.Number
		ev.Start = last.Start
		if !last.End.IsZero() {
			ev.End = last.End
		}
	}
	ev.Final = true
	ev.Outcome = inst.Outcome()
	ev.Reason = inst.Reason()
	if err := inst.Err(); err != nil {
		ev.Error = err.Error()
	}
	return ev
}
