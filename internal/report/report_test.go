package report

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/specialistvlad/gridci/internal/instance"
	"github.com/specialistvlad/gridci/internal/status"
	"github.com/specialistvlad/gridci/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	t0 = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	t1 = t0.Add(1500 * time.Millisecond)
)

func sampleEvents() []InstanceEvent {
	return []InstanceEvent{
		{RunID: "r1", Instance: "test[py=3.12]", Job: "test", Matrix: map[string]string{"py": "3.12"}, Outcome: status.Running, Attempt: 1, Start: t0},
		{RunID: "r1", Instance: "test[py=3.12]", Job: "test", Outcome: status.Failed, Reason: instance.ReasonStepFailed, Attempt: 1, Start: t0, End: t1, Error: "exit 1"},
		{RunID: "r1", Instance: "test[py=3.12]", Job: "test", Outcome: status.Running, Attempt: 2, Start: t1},
		{RunID: "r1", Instance: "test[py=3.12]", Job: "test", Outcome: status.Succeeded, Reason: instance.ReasonNone, Attempt: 2, Final: true, Start: t1, End: t1.Add(time.Second)},
		{RunID: "r1", Instance: "deploy", Job: "deploy", Outcome: status.Skipped, Reason: instance.ReasonConditionFalse, Final: true, Start: t1, End: t1},
	}
}

func sampleSummary() RunSummary {
	return RunSummary{
		RunID:    "r1",
		Pipeline: "ci",
		Jobs:     map[string]status.Outcome{"test": status.Succeeded, "deploy": status.Skipped},
		Order:    []string{"test", "deploy"},
		Outcome:  status.Succeeded,
		Start:    t0,
		End:      t1.Add(2 * time.Second),
	}
}

func TestRecorder(t *testing.T) {
	rec := &Recorder{}
	for _, ev := range sampleEvents() {
		require.NoError(t, rec.InstanceEvent(context.Background(), ev))
	}
	require.NoError(t, rec.RunFinished(context.Background(), sampleSummary()))

	assert.Len(t, rec.Events(), 5)
	assert.Equal(t, []string{"test[py=3.12]"}, rec.Started())
	final := rec.Final()
	require.Len(t, final, 2)
	assert.Equal(t, "deploy", final[1].Instance)
	assert.Len(t, rec.Summaries(), 1)
}

type failingSink struct{ Nop }

func (failingSink) InstanceEvent(context.Context, InstanceEvent) error { return errors.New("down") }

func TestMulti_CallsEverySink(t *testing.T) {
	rec := &Recorder{}
	m := Multi{failingSink{}, rec}

	err := m.InstanceEvent(context.Background(), sampleEvents()[0])
	assert.ErrorContains(t, err, "down")
	assert.Len(t, rec.Events(), 1)
	assert.NoError(t, m.RunFinished(context.Background(), sampleSummary()))
}

func TestAsync_FlushesOnClose(t *testing.T) {
	rec := &Recorder{}
	a := NewAsync(context.Background(), rec, len(sampleEvents())+1)
	for _, ev := range sampleEvents() {
		require.NoError(t, a.InstanceEvent(context.Background(), ev))
	}
	require.NoError(t, a.RunFinished(context.Background(), sampleSummary()))
	a.Close()

	assert.Equal(t, sampleEvents(), rec.Events())
	assert.Len(t, rec.Summaries(), 1)
	assert.Zero(t, a.Dropped())
}

// blockingSink holds every delivery until release is closed.
type blockingSink struct {
	Recorder
	release chan struct{}
}

func (b *blockingSink) InstanceEvent(ctx context.Context, ev InstanceEvent) error {
	<-b.release
	return b.Recorder.InstanceEvent(ctx, ev)
}

func TestAsync_DropsInstanceEventsWhenFull(t *testing.T) {
	ctx, logs := testutil.Context(t)
	slow := &blockingSink{release: make(chan struct{})}
	a := NewAsync(ctx, slow, 1)

	events := sampleEvents()
	sent := make(chan struct{})
	go func() {
		defer close(sent)
		for range 5 {
			for _, ev := range events {
				_ = a.InstanceEvent(ctx, ev)
			}
		}
	}()

	select {
	case <-sent:
	case <-time.After(time.Second):
		t.Fatal("InstanceEvent blocked on a full buffer")
	}

	close(slow.release)
	require.NoError(t, a.RunFinished(ctx, sampleSummary()))
	a.Close()

	assert.Positive(t, a.Dropped())
	assert.Equal(t, 5*len(events), len(slow.Events())+int(a.Dropped()))
	assert.Len(t, slow.Summaries(), 1)
	assert.Contains(t, logs.String(), "dropping instance event")
}

func TestLogSink(t *testing.T) {
	ctx, logs := testutil.Context(t)
	sink := LogSink{}
	for _, ev := range sampleEvents() {
		require.NoError(t, sink.InstanceEvent(ctx, ev))
	}
	require.NoError(t, sink.RunFinished(ctx, sampleSummary()))

	out := logs.String()
	assert.Contains(t, out, "Attempt failed, retrying")
	assert.Contains(t, out, "Instance succeeded")
	assert.Contains(t, out, "reason=condition_false")
	assert.Contains(t, out, "jobs.test=succeeded")
}

func TestMetricsSink(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsSink(reg)
	for _, ev := range sampleEvents() {
		require.NoError(t, m.InstanceEvent(context.Background(), ev))
	}
	require.NoError(t, m.RunFinished(context.Background(), sampleSummary()))

	assert.Equal(t, 1.0, promtest.ToFloat64(m.Retries.WithLabelValues("test")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.InstanceOutcomes.WithLabelValues("test", "succeeded", "none")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.InstanceOutcomes.WithLabelValues("deploy", "skipped", "condition_false")))
	assert.Equal(t, 0.0, promtest.ToFloat64(m.ActiveInstances))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.RunOutcomes.WithLabelValues("ci", "succeeded")))
	assert.Equal(t, 2, promtest.CollectAndCount(m.AttemptDuration))
}

type execCall struct {
	query string
	args  []any
}

type fakeDB struct {
	calls []execCall
	err   error
}

func (f *fakeDB) ExecContext(_ context.Context, query string, args ...any) (sql.Result, error) {
	f.calls = append(f.calls, execCall{query: query, args: args})
	return nil, f.err
}

func TestPostgresSink(t *testing.T) {
	db := &fakeDB{}
	sink := NewPostgresSink(db)

	require.NoError(t, sink.EnsureSchema(context.Background()))
	require.Len(t, db.calls, 2)
	assert.Contains(t, db.calls[0].query, "CREATE TABLE IF NOT EXISTS gridci_instance_events")
	assert.Contains(t, db.calls[1].query, "CREATE TABLE IF NOT EXISTS gridci_runs")

	db.calls = nil
	require.NoError(t, sink.InstanceEvent(context.Background(), sampleEvents()[1]))
	require.Len(t, db.calls, 1)
	call := db.calls[0]
	assert.True(t, strings.HasPrefix(call.query, "INSERT INTO gridci_instance_events"))
	assert.Contains(t, call.query, "ON CONFLICT (event_id) DO NOTHING")
	require.Len(t, call.args, 12)
	assert.Equal(t, "r1", call.args[1])
	assert.Equal(t, []byte(`{}`), call.args[4])
	assert.Equal(t, "failed", call.args[5])
	assert.Equal(t, "step_failed", call.args[6])
	assert.Equal(t, sql.NullString{String: "exit 1", Valid: true}, call.args[11])

	db.calls = nil
	require.NoError(t, sink.RunFinished(context.Background(), sampleSummary()))
	require.Len(t, db.calls, 1)
	assert.Contains(t, db.calls[0].query, "ON CONFLICT (run_id) DO NOTHING")
	assert.JSONEq(t, `{"test":"succeeded","deploy":"skipped"}`, string(db.calls[0].args[3].([]byte)))

	db.err = errors.New("connection refused")
	assert.ErrorContains(t, sink.RunFinished(context.Background(), sampleSummary()), "insert run")
}

type fakeEmitter struct {
	events []string
	args   []any
}

func (f *fakeEmitter) Emit(ev string, args ...any) error {
	f.events = append(f.events, ev)
	f.args = append(f.args, args...)
	return nil
}

func TestSocketIOSink(t *testing.T) {
	em := &fakeEmitter{}
	sink := NewSocketIOSink(em)

	require.NoError(t, sink.InstanceEvent(context.Background(), sampleEvents()[0]))
	require.NoError(t, sink.RunFinished(context.Background(), sampleSummary()))

	assert.Equal(t, []string{EventInstance, EventRunFinished}, em.events)
	assert.IsType(t, InstanceEvent{}, em.args[0])
	assert.IsType(t, RunSummary{}, em.args[1])
}
