package status

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAggregateJob(t *testing.T) {
	testCases := []struct {
		name     string
		outcomes []Outcome
		allow    Set
		expected Outcome
	}{
		{name: "no instances", outcomes: nil, expected: Skipped},
		{name: "all succeeded", outcomes: []Outcome{Succeeded, Succeeded}, expected: Succeeded},
		{name: "all skipped", outcomes: []Outcome{Skipped, Skipped}, expected: Skipped},
		{name: "one failed", outcomes: []Outcome{Succeeded, Failed, Succeeded}, expected: Failed},
		{name: "failed wins over cancelled", outcomes: []Outcome{Cancelled, Failed}, expected: Failed},
		{name: "cancelled without failure", outcomes: []Outcome{Succeeded, Cancelled}, expected: Cancelled},
		{name: "mixed success and skip not allowed", outcomes: []Outcome{Succeeded, Skipped}, expected: Skipped},
		{name: "mixed success and skip allowed", outcomes: []Outcome{Succeeded, Skipped}, allow: NewSet("job"), expected: Succeeded},
		{name: "allowed job still reports failure", outcomes: []Outcome{Succeeded, Failed}, allow: NewSet("job"), expected: Failed},
		{name: "running instance", outcomes: []Outcome{Succeeded, Running, Pending}, expected: Running},
		{name: "pending instance", outcomes: []Outcome{Succeeded, Pending}, expected: Pending},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, AggregateJob("job", tc.outcomes, tc.allow))
		})
	}
}

func TestAggregate_Pipeline(t *testing.T) {
	jobs := []string{"lint", "test", "slow"}

	t.Run("all green", func(t *testing.T) {
		r := Aggregate(jobs, map[string][]Outcome{
			"lint": {Succeeded},
			"test": {Succeeded, Succeeded},
			"slow": {Succeeded},
		}, nil, nil)
		assert.Equal(t, Succeeded, r.Pipeline)
		assert.Empty(t, r.Failed())
	})

	t.Run("failure outside the allow set fails the pipeline", func(t *testing.T) {
		r := Aggregate(jobs, map[string][]Outcome{
			"lint": {Succeeded},
			"test": {Succeeded},
			"slow": {Failed},
		}, nil, nil)
		assert.Equal(t, Failed, r.Pipeline)
		assert.Equal(t, []string{"slow"}, r.Failed())
	})

	t.Run("failure inside the allow set is tolerated", func(t *testing.T) {
		r := Aggregate(jobs, map[string][]Outcome{
			"lint": {Succeeded},
			"test": {Succeeded},
			"slow": {Failed},
		}, NewSet("slow"), nil)
		assert.Equal(t, Failed, r.Jobs["slow"])
		assert.Equal(t, Succeeded, r.Pipeline)
	})

	t.Run("skipped job passes unless required", func(t *testing.T) {
		perJob := map[string][]Outcome{
			"lint": {Succeeded},
			"test": {Succeeded},
			"slow": {Skipped},
		}
		assert.Equal(t, Succeeded, Aggregate(jobs, perJob, nil, nil).Pipeline)
		assert.Equal(t, Failed, Aggregate(jobs, perJob, nil, NewSet("slow")).Pipeline)
		assert.Equal(t, Succeeded, Aggregate(jobs, perJob, NewSet("slow"), NewSet("slow")).Pipeline)
	})

	t.Run("cancelled job fails unless allowed", func(t *testing.T) {
		perJob := map[string][]Outcome{
			"lint": {Succeeded},
			"test": {Cancelled},
			"slow": {Succeeded},
		}
		assert.Equal(t, Failed, Aggregate(jobs, perJob, nil, nil).Pipeline)
		assert.Equal(t, Succeeded, Aggregate(jobs, perJob, NewSet("test"), nil).Pipeline)
	})

	t.Run("in-flight job keeps the pipeline open", func(t *testing.T) {
		r := Aggregate(jobs, map[string][]Outcome{
			"lint": {Failed},
			"test": {Running},
			"slow": {Pending},
		}, nil, nil)
		assert.Equal(t, Running, r.Pipeline)
	})
}

func TestParseOutcome(t *testing.T) {
	for input, expected := range map[string]Outcome{
		"success":   Succeeded,
		"Succeeded": Succeeded,
		"failure":   Failed,
		"skipped":   Skipped,
		"canceled":  Cancelled,
		" pending ": Pending,
	} {
		t.Run(input, func(t *testing.T) {
			got, err := ParseOutcome(input)
			assert.NoError(t, err)
			assert.Equal(t, expected, got)
		})
	}

	_, err := ParseOutcome("exploded")
	assert.Error(t, err)
}

func TestOutcome_IsTerminal(t *testing.T) {
	assert.False(t, Pending.IsTerminal())
	assert.False(t, Running.IsTerminal())
	for _, o := range []Outcome{Succeeded, Failed, Skipped, Cancelled} {
		assert.True(t, o.IsTerminal(), o.String())
	}
}
