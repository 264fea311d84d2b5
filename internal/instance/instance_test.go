package instance

import (
	"errors"
	"testing"
	"time"

	"github.com/specialistvlad/gridci/internal/model"
	"github.com/specialistvlad/gridci/internal/nodeid"
	"github.com/specialistvlad/gridci/internal/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestInstance() *Instance {
	job := &model.JobDefinition{ID: "test"}
	return New(nodeid.New("test", nodeid.AxisValue{Name: "os", Value: "linux"}), job, nil)
}

func TestInstance_HappyPath(t *testing.T) {
	inst := newTestInstance()
	now := time.Now()

	assert.Equal(t, status.Pending, inst.Outcome())
	assert.Equal(t, "test[os=linux]", inst.Key())

	n, err := inst.Begin(now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, status.Running, inst.Outcome())

	require.NoError(t, inst.Finish(status.Succeeded, ReasonNone, nil, now.Add(time.Second)))
	assert.Equal(t, status.Succeeded, inst.Outcome())

	attempts := inst.Attempts()
	require.Len(t, attempts, 1)
	assert.Equal(t, status.Succeeded, attempts[0].Outcome)
	assert.Equal(t, time.Second, attempts[0].End.Sub(attempts[0].Start))
}

func TestInstance_RetryKeepsRunning(t *testing.T) {
	inst := newTestInstance()
	now := time.Now()
	boom := errors.New("boom")

	_, err := inst.Begin(now)
	require.NoError(t, err)

	_, err = inst.Retry(now)
	require.Error(t, err, "retry must wait for the open attempt to end")

	a, err := inst.EndAttempt(status.Failed, ReasonStepFailed, boom, now)
	require.NoError(t, err)
	assert.Equal(t, 1, a.Number)
	assert.Equal(t, status.Running, inst.Outcome())

	n, err := inst.Retry(now)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, inst.Finish(status.Failed, ReasonStepFailed, boom, now))
	assert.Equal(t, status.Failed, inst.Outcome())
	assert.Equal(t, ReasonStepFailed, inst.Reason())
	assert.ErrorIs(t, inst.Err(), boom)
	assert.Len(t, inst.Attempts(), 2)
}

func TestInstance_IllegalTransitions(t *testing.T) {
	now := time.Now()

	t.Run("pending cannot succeed", func(t *testing.T) {
		inst := newTestInstance()
		assert.Error(t, inst.Finish(status.Succeeded, ReasonNone, nil, now))
	})

	t.Run("pending can be skipped once", func(t *testing.T) {
		inst := newTestInstance()
		require.NoError(t, inst.Finish(status.Skipped, ReasonConditionFalse, nil, now))
		assert.Error(t, inst.Finish(status.Cancelled, ReasonRunCancelled, nil, now))
		_, err := inst.Begin(now)
		assert.Error(t, err)
	})

	t.Run("non terminal target", func(t *testing.T) {
		inst := newTestInstance()
		assert.Error(t, inst.Finish(status.Running, ReasonNone, nil, now))
	})

	t.Run("begin twice", func(t *testing.T) {
		inst := newTestInstance()
		_, err := inst.Begin(now)
		require.NoError(t, err)
		_, err = inst.Begin(now)
		assert.Error(t, err)
	})
}

func TestInstance_Snapshot(t *testing.T) {
	inst := newTestInstance()
	require.NoError(t, inst.Finish(status.Cancelled, ReasonFailFast, errors.New("sibling failed"), time.Now()))

	snap := inst.Snapshot()
	assert.Equal(t, "test[os=linux]", snap.ID)
	assert.Equal(t, "test", snap.Job)
	assert.Equal(t, map[string]string{"os": "linux"}, snap.Matrix)
	assert.Equal(t, status.Cancelled, snap.Outcome)
	assert.Equal(t, ReasonFailFast, snap.Reason)
	assert.Equal(t, "sibling failed", snap.Error)
	assert.Zero(t, snap.Attempts)
}
