package condition

import (
	"fmt"
	"strconv"

	"github.com/specialistvlad/gridci/internal/status"
)

// Kind is the runtime type of a Value.
type Kind int

const (
	KindBool Kind = iota
	KindString
	KindOutcome
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindOutcome:
		return "outcome"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Value is the result of evaluating a node.
type Value struct {
	Kind    Kind
	Bool    bool
	Str     string
	Outcome status.Outcome
}

func BoolValue(b bool) Value     { return Value{Kind: KindBool, Bool: b} }
func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }

func (v Value) String() string {
	switch v.Kind {
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindOutcome:
		return v.Outcome.String()
	}
	return strconv.Quote(v.Str)
}

// Expr is a node of the condition AST.
type Expr interface {
	String() string
	isExpr()
}

// Literal is a constant bool or string.
type Literal struct{ Value Value }

// And and Or short-circuit left to right.
type And struct{ Left, Right Expr }

type Or struct{ Left, Right Expr }

type Not struct{ Operand Expr }

// OutcomeRef reads the aggregate outcome of a resolved job.
type OutcomeRef struct{ Job string }

// ContextRef reads a trigger fact.
type ContextRef struct{ Field Field }

// Always is true regardless of upstream outcomes.
type Always struct{}

// StatusCheck tests the outcomes of the direct needs as a group.
type StatusCheck struct{ Check Check }

// Equal compares two values; Negate turns it into !=.
type Equal struct {
	Left, Right Expr
	Negate      bool
}

// Prefix is true when Subject starts with Prefix.
type Prefix struct{ Subject, Prefix Expr }

// Field names a trigger fact.
type Field string

const (
	FieldBranch  Field = "branch"
	FieldTag     Field = "tag"
	FieldTagPush Field = "tag_push"
	FieldEvent   Field = "event"
)

// Check names a group predicate over the direct needs.
type Check string

const (
	CheckSuccess   Check = "success"
	CheckFailure   Check = "failure"
	CheckCancelled Check = "cancelled"
)

func (Literal) isExpr()     {}
func (And) isExpr()         {}
func (Or) isExpr()          {}
func (Not) isExpr()         {}
func (OutcomeRef) isExpr()  {}
func (ContextRef) isExpr()  {}
func (Always) isExpr()      {}
func (StatusCheck) isExpr() {}
func (Equal) isExpr()       {}
func (Prefix) isExpr()      {}

func (e Literal) String() string     { return e.Value.String() }
func (e And) String() string         { return fmt.Sprintf("(%s && %s)", e.Left, e.Right) }
func (e Or) String() string          { return fmt.Sprintf("(%s || %s)", e.Left, e.Right) }
func (e Not) String() string         { return fmt.Sprintf("!%s", e.Operand) }
func (e OutcomeRef) String() string  { return fmt.Sprintf("needs.%s.outcome", e.Job) }
func (e ContextRef) String() string  { return fmt.Sprintf("trigger.%s", e.Field) }
func (Always) String() string        { return "always()" }
func (e StatusCheck) String() string { return string(e.Check) + "()" }
func (e Prefix) String() string      { return fmt.Sprintf("startswith(%s, %s)", e.Subject, e.Prefix) }

func (e Equal) String() string {
	op := "=="
	if e.Negate {
		op = "!="
	}
	return fmt.Sprintf("(%s %s %s)", e.Left, op, e.Right)
}

// DefaultCondition is used when a job declares no condition.
var DefaultCondition Expr = StatusCheck{Check: CheckSuccess}

// References lists the job ids read through OutcomeRef nodes, in first-seen
// order.
func References(expr Expr) []string {
	var out []string
	seen := map[string]bool{}
	walk(expr, func(e Expr) {
		if ref, ok := e.(OutcomeRef); ok && !seen[ref.Job] {
			seen[ref.Job] = true
			out = append(out, ref.Job)
		}
	})
	return out
}

func walk(expr Expr, fn func(Expr)) {
	if expr == nil {
		return
	}
	fn(expr)
	switch e := expr.(type) {
	case And:
		walk(e.Left, fn)
		walk(e.Right, fn)
	case Or:
		walk(e.Left, fn)
		walk(e.Right, fn)
	case Not:
		walk(e.Operand, fn)
	case Equal:
		walk(e.Left, fn)
		walk(e.Right, fn)
	case Prefix:
		walk(e.Subject, fn)
		walk(e.Prefix, fn)
	}
}
