package condition

import (
	"testing"

	"github.com/specialistvlad/gridci/internal/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newContext(outcomes map[string]status.Outcome, needs ...string) *Context {
	declared := status.NewSet("lint", "test", "build", "slow", "unit-tests", "deploy")
	return &Context{
		Trigger:  Trigger{Event: "push", Branch: "main"},
		Job:      "deploy",
		Needs:    needs,
		Declared: declared,
		Outcomes: outcomes,
	}
}

func TestParse_AST(t *testing.T) {
	testCases := []struct {
		src      string
		expected Expr
	}{
		{src: "always()", expected: Always{}},
		{src: "${{ success() }}", expected: StatusCheck{Check: CheckSuccess}},
		{src: "!failure()", expected: Not{Operand: StatusCheck{Check: CheckFailure}}},
		{
			src: `always() && trigger.tag_push`,
			expected: And{
				Left:  Always{},
				Right: ContextRef{Field: FieldTagPush},
			},
		},
		{
			src: `trigger.branch == "main" || startswith(trigger.tag, "v")`,
			expected: Or{
				Left:  Equal{Left: ContextRef{Field: FieldBranch}, Right: Literal{Value: StringValue("main")}},
				Right: Prefix{Subject: ContextRef{Field: FieldTag}, Prefix: Literal{Value: StringValue("v")}},
			},
		},
		{
			src:      `needs.unit-tests.result != "failure"`,
			expected: Equal{Left: OutcomeRef{Job: "unit-tests"}, Right: Literal{Value: StringValue("failure")}, Negate: true},
		},
		{
			src:      `needs["unit-tests"].outcome == "success"`,
			expected: Equal{Left: OutcomeRef{Job: "unit-tests"}, Right: Literal{Value: StringValue("success")}},
		},
		{src: "(true)", expected: Literal{Value: BoolValue(true)}},
	}

	for _, tc := range testCases {
		t.Run(tc.src, func(t *testing.T) {
			expr, err := Parse(tc.src)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, expr)
		})
	}
}

func TestParse_Empty(t *testing.T) {
	expr, err := Parse("   ")
	require.NoError(t, err)
	assert.Nil(t, expr)
}

func TestParse_Errors(t *testing.T) {
	for _, src := range []string{
		"always(",
		"unknown()",
		"always(1)",
		"var.foo",
		"trigger.sha",
		"needs.test",
		`"v${trigger.tag}"`,
		"1 + 2",
		"[true]",
	} {
		t.Run(src, func(t *testing.T) {
			_, err := Parse(src)
			assert.Error(t, err)
		})
	}
}

func TestEvaluate_DefaultCondition(t *testing.T) {
	ok, err := Evaluate(nil, newContext(map[string]status.Outcome{
		"lint": status.Succeeded,
		"test": status.Succeeded,
	}, "lint", "test"))
	require.NoError(t, err)
	assert.True(t, ok)

	for _, o := range []status.Outcome{status.Failed, status.Skipped, status.Cancelled} {
		t.Run(o.String(), func(t *testing.T) {
			ok, err := Evaluate(nil, newContext(map[string]status.Outcome{
				"lint": status.Succeeded,
				"test": o,
			}, "lint", "test"))
			require.NoError(t, err)
			assert.False(t, ok, "default condition must block on a %s need", o)
		})
	}

	ok, err = Evaluate(nil, newContext(nil))
	require.NoError(t, err)
	assert.True(t, ok, "a job without needs runs by default")
}

func TestEvaluate_Expressions(t *testing.T) {
	outcomes := map[string]status.Outcome{
		"lint": status.Succeeded,
		"test": status.Failed,
		"slow": status.Cancelled,
	}

	testCases := []struct {
		src      string
		trigger  *Trigger
		expected bool
	}{
		{src: "always()", expected: true},
		{src: "success()", expected: false},
		{src: "failure()", expected: true},
		{src: "cancelled()", expected: true},
		{src: "always() && trigger.tag_push", expected: false},
		{src: "always() && trigger.tag_push", trigger: &Trigger{TagPush: true, Tag: "v1.2.0"}, expected: true},
		{src: `startswith(trigger.tag, "v1.")`, trigger: &Trigger{TagPush: true, Tag: "v1.2.0"}, expected: true},
		{src: `trigger.branch == "main" && trigger.event == "push"`, expected: true},
		{src: `trigger.branch != "main"`, expected: false},
		{src: `needs.lint.result == "success"`, expected: true},
		{src: `needs.lint.outcome == "succeeded"`, expected: true},
		{src: `needs.test.result == "failure" && !success()`, expected: true},
		{src: `needs.lint.result == needs.test.result`, expected: false},
		{src: `false || needs.slow.result == "cancelled"`, expected: true},
	}

	for _, tc := range testCases {
		t.Run(tc.src, func(t *testing.T) {
			ctx := newContext(outcomes, "lint", "test", "slow")
			if tc.trigger != nil {
				ctx.Trigger = *tc.trigger
			}
			ok, err := Evaluate(MustParse(tc.src), ctx)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, ok)
		})
	}
}

func TestEvaluate_Errors(t *testing.T) {
	outcomes := map[string]status.Outcome{"lint": status.Succeeded, "test": status.Running}

	t.Run("premature read of a running job", func(t *testing.T) {
		_, err := Evaluate(MustParse(`needs.test.result == "success"`), newContext(outcomes))
		var premature *PrematureEvaluationError
		require.ErrorAs(t, err, &premature)
		assert.Equal(t, "test", premature.Ref)

		var evalErr EvaluationError
		assert.ErrorAs(t, err, &evalErr)
	})

	t.Run("premature default condition", func(t *testing.T) {
		_, err := Evaluate(nil, newContext(outcomes, "lint", "build"))
		var premature *PrematureEvaluationError
		assert.ErrorAs(t, err, &premature)
	})

	t.Run("unknown job", func(t *testing.T) {
		_, err := Evaluate(MustParse(`needs.ghost.result == "success"`), newContext(outcomes))
		var unknown *UnknownJobError
		require.ErrorAs(t, err, &unknown)
		assert.Equal(t, "ghost", unknown.Ref)
	})

	t.Run("not on a string", func(t *testing.T) {
		_, err := Evaluate(MustParse(`!trigger.branch`), newContext(outcomes))
		var typeErr *TypeError
		assert.ErrorAs(t, err, &typeErr)
	})

	t.Run("top level string", func(t *testing.T) {
		_, err := Evaluate(MustParse(`trigger.branch`), newContext(outcomes))
		var typeErr *TypeError
		assert.ErrorAs(t, err, &typeErr)
	})

	t.Run("outcome against bool", func(t *testing.T) {
		_, err := Evaluate(MustParse(`needs.lint.result == true`), newContext(outcomes))
		var typeErr *TypeError
		assert.ErrorAs(t, err, &typeErr)
	})

	t.Run("short circuit skips unresolved reads", func(t *testing.T) {
		ok, err := Evaluate(MustParse(`always() || needs.test.result == "success"`), newContext(outcomes))
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestReferences(t *testing.T) {
	expr := MustParse(`needs.lint.result == "success" && (needs.test.result == "failure" || needs.lint.outcome == "skipped")`)
	assert.Equal(t, []string{"lint", "test"}, References(expr))
}
