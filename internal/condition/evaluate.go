package condition

import (
	"strings"

	"github.com/specialistvlad/gridci/internal/status"
)

// Trigger holds the facts about what started the run.
type Trigger struct {
	Event   string `json:"event,omitempty"`
	Branch  string `json:"branch,omitempty"`
	Tag     string `json:"tag,omitempty"`
	TagPush bool   `json:"tag_push"`
}

// Context is everything a condition may read.
type Context struct {
	Trigger Trigger
	// Job is the id of the job whose condition is evaluated.
	Job string
	// Needs are the direct dependencies of Job.
	Needs []string
	// Declared is the set of every job in the pipeline.
	Declared status.Set
	// Outcomes holds the aggregate outcome of every job that has resolved.
	Outcomes map[string]status.Outcome
}

// Evaluate runs expr against ctx. A nil expr is the default condition.
func Evaluate(expr Expr, ctx *Context) (bool, error) {
	if expr == nil {
		expr = DefaultCondition
	}
	v, err := eval(expr, ctx)
	if err != nil {
		return false, err
	}
	if v.Kind != KindBool {
		return false, &TypeError{Job: ctx.Job, Expr: expr.String(), Want: KindBool, Got: v.Kind}
	}
	return v.Bool, nil
}

func (ctx *Context) outcome(job string) (status.Outcome, error) {
	if ctx.Declared != nil && !ctx.Declared.Has(job) {
		return status.Pending, &UnknownJobError{Job: ctx.Job, Ref: job}
	}
	o, ok := ctx.Outcomes[job]
	if !ok || !o.IsTerminal() {
		return status.Pending, &PrematureEvaluationError{Job: ctx.Job, Ref: job}
	}
	return o, nil
}

func eval(expr Expr, ctx *Context) (Value, error) {
	switch e := expr.(type) {
	case Literal:
		return e.Value, nil

	case Always:
		return BoolValue(true), nil

	case StatusCheck:
		return evalStatusCheck(e, ctx)

	case ContextRef:
		switch e.Field {
		case FieldBranch:
			return StringValue(ctx.Trigger.Branch), nil
		case FieldTag:
			return StringValue(ctx.Trigger.Tag), nil
		case FieldEvent:
			return StringValue(ctx.Trigger.Event), nil
		case FieldTagPush:
			return BoolValue(ctx.Trigger.TagPush), nil
		}
		return Value{}, &TypeError{Job: ctx.Job, Expr: e.String(), Want: KindString, Got: KindBool}

	case OutcomeRef:
		o, err := ctx.outcome(e.Job)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindOutcome, Outcome: o}, nil

	case Not:
		v, err := evalBool(e.Operand, ctx)
		if err != nil {
			return Value{}, err
		}
		return BoolValue(!v), nil

	case And:
		l, err := evalBool(e.Left, ctx)
		if err != nil || !l {
			return BoolValue(false), err
		}
		r, err := evalBool(e.Right, ctx)
		return BoolValue(r), err

	case Or:
		l, err := evalBool(e.Left, ctx)
		if err != nil || l {
			return BoolValue(l), err
		}
		r, err := evalBool(e.Right, ctx)
		return BoolValue(r), err

	case Equal:
		eq, err := evalEqual(e, ctx)
		if err != nil {
			return Value{}, err
		}
		return BoolValue(eq != e.Negate), nil

	case Prefix:
		subject, err := evalString(e.Subject, ctx)
		if err != nil {
			return Value{}, err
		}
		prefix, err := evalString(e.Prefix, ctx)
		if err != nil {
			return Value{}, err
		}
		return BoolValue(strings.HasPrefix(subject, prefix)), nil
	}

	return Value{}, &TypeError{Job: ctx.Job, Expr: expr.String(), Want: KindBool, Got: KindString}
}

func evalBool(expr Expr, ctx *Context) (bool, error) {
	v, err := eval(expr, ctx)
	if err != nil {
		return false, err
	}
	if v.Kind != KindBool {
		return false, &TypeError{Job: ctx.Job, Expr: expr.String(), Want: KindBool, Got: v.Kind}
	}
	return v.Bool, nil
}

func evalString(expr Expr, ctx *Context) (string, error) {
	v, err := eval(expr, ctx)
	if err != nil {
		return "", err
	}
	if v.Kind != KindString {
		return "", &TypeError{Job: ctx.Job, Expr: expr.String(), Want: KindString, Got: v.Kind}
	}
	return v.Str, nil
}

// evalStatusCheck applies a group predicate to the direct needs. Every need
// must have resolved.
func evalStatusCheck(e StatusCheck, ctx *Context) (Value, error) {
	result := e.Check == CheckSuccess
	for _, need := range ctx.Needs {
		o, err := ctx.outcome(need)
		if err != nil {
			return Value{}, err
		}
		switch e.Check {
		case CheckSuccess:
			if o != status.Succeeded {
				result = false
			}
		case CheckFailure:
			if o == status.Failed {
				result = true
			}
		case CheckCancelled:
			if o == status.Cancelled {
				result = true
			}
		}
	}
	return BoolValue(result), nil
}

// evalEqual compares two values. An outcome compares against a string by
// parsing the string as an outcome name, so "success" and "succeeded" both
// match a Succeeded job.
func evalEqual(e Equal, ctx *Context) (bool, error) {
	l, err := eval(e.Left, ctx)
	if err != nil {
		return false, err
	}
	r, err := eval(e.Right, ctx)
	if err != nil {
		return false, err
	}

	if l.Kind == KindOutcome || r.Kind == KindOutcome {
		lo, lerr := asOutcome(l)
		ro, rerr := asOutcome(r)
		if lerr != nil || rerr != nil {
			got := r.Kind
			if l.Kind != KindOutcome {
				got = l.Kind
			}
			return false, &TypeError{Job: ctx.Job, Expr: e.String(), Want: KindOutcome, Got: got}
		}
		return lo == ro, nil
	}
	if l.Kind != r.Kind {
		return false, &TypeError{Job: ctx.Job, Expr: e.String(), Want: l.Kind, Got: r.Kind}
	}
	if l.Kind == KindBool {
		return l.Bool == r.Bool, nil
	}
	return l.Str == r.Str, nil
}

func asOutcome(v Value) (status.Outcome, error) {
	switch v.Kind {
	case KindOutcome:
		return v.Outcome, nil
	case KindString:
		return status.ParseOutcome(v.Str)
	}
	return status.Pending, &TypeError{Want: KindOutcome, Got: v.Kind}
}
