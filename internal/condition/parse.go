package condition

import (
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
)

// Parse compiles a condition source into an AST. An empty source yields a nil
// Expr, which Evaluate treats as the default condition. A `${{ ... }}` wrapper
// is accepted and stripped.
func Parse(src string) (Expr, error) {
	src = strings.TrimSpace(src)
	if strings.HasPrefix(src, "${{") && strings.HasSuffix(src, "}}") {
		src = strings.TrimSpace(src[3 : len(src)-2])
	}
	if src == "" {
		return nil, nil
	}

	syntaxExpr, diags := hclsyntax.ParseExpression([]byte(src), "condition", hcl.InitialPos)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse condition %q: %w", src, diags)
	}
	expr, diags := convert(syntaxExpr)
	if diags.HasErrors() {
		return nil, fmt.Errorf("invalid condition %q: %w", src, diags)
	}
	return expr, nil
}

// MustParse is like Parse but panics on error. It is meant for tests and
// static conditions.
func MustParse(src string) Expr {
	expr, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return expr
}

func unsupported(rng hcl.Range, summary, detail string) hcl.Diagnostics {
	return hcl.Diagnostics{{
		Severity: hcl.DiagError,
		Summary:  summary,
		Detail:   detail,
		Subject:  &rng,
	}}
}

// convert walks the HCL syntax tree and builds the condition AST, rejecting
// every construct the condition language does not support.
func convert(expr hclsyntax.Expression) (Expr, hcl.Diagnostics) {
	switch e := expr.(type) {
	case *hclsyntax.ParenthesesExpr:
		return convert(e.Expression)

	case *hclsyntax.BinaryOpExpr:
		lhs, diags := convert(e.LHS)
		if diags.HasErrors() {
			return nil, diags
		}
		rhs, diags := convert(e.RHS)
		if diags.HasErrors() {
			return nil, diags
		}
		switch e.Op {
		case hclsyntax.OpLogicalAnd:
			return And{Left: lhs, Right: rhs}, nil
		case hclsyntax.OpLogicalOr:
			return Or{Left: lhs, Right: rhs}, nil
		case hclsyntax.OpEqual:
			return Equal{Left: lhs, Right: rhs}, nil
		case hclsyntax.OpNotEqual:
			return Equal{Left: lhs, Right: rhs, Negate: true}, nil
		}
		return nil, unsupported(e.Range(), "Unsupported operator", "Only &&, ||, == and != are allowed in conditions.")

	case *hclsyntax.UnaryOpExpr:
		if e.Op != hclsyntax.OpLogicalNot {
			return nil, unsupported(e.Range(), "Unsupported operator", "Only ! is allowed as a unary operator.")
		}
		operand, diags := convert(e.Val)
		if diags.HasErrors() {
			return nil, diags
		}
		return Not{Operand: operand}, nil

	case *hclsyntax.FunctionCallExpr:
		return convertCall(e)

	case *hclsyntax.ScopeTraversalExpr, *hclsyntax.RelativeTraversalExpr, *hclsyntax.IndexExpr:
		names, ok := referenceNames(e)
		if !ok {
			return nil, unsupported(e.Range(), "Unsupported reference", "References may only use attribute access or string keys.")
		}
		return convertReference(names, e.Range())

	case *hclsyntax.LiteralValueExpr:
		return convertLiteral(e.Val, e.Range())

	case *hclsyntax.TemplateExpr:
		if !e.IsStringLiteral() {
			return nil, unsupported(e.Range(), "Unsupported template", "String interpolation is not allowed in conditions.")
		}
		val, diags := e.Value(nil)
		if diags.HasErrors() {
			return nil, diags
		}
		return convertLiteral(val, e.Range())

	case *hclsyntax.TemplateWrapExpr:
		return convert(e.Wrapped)
	}

	return nil, unsupported(expr.Range(), "Unsupported expression", fmt.Sprintf("Expressions of type %T are not allowed in conditions.", expr))
}

func convertLiteral(val cty.Value, rng hcl.Range) (Expr, hcl.Diagnostics) {
	if val.IsNull() || !val.IsKnown() {
		return nil, unsupported(rng, "Unsupported literal", "Null values are not allowed in conditions.")
	}
	switch val.Type() {
	case cty.Bool:
		return Literal{Value: BoolValue(val.True())}, nil
	case cty.String:
		return Literal{Value: StringValue(val.AsString())}, nil
	case cty.Number:
		return Literal{Value: StringValue(val.AsBigFloat().Text('f', -1))}, nil
	}
	return nil, unsupported(rng, "Unsupported literal", fmt.Sprintf("Literals of type %s are not allowed in conditions.", val.Type().FriendlyName()))
}

func convertCall(e *hclsyntax.FunctionCallExpr) (Expr, hcl.Diagnostics) {
	arity := func(n int) hcl.Diagnostics {
		if len(e.Args) != n {
			return unsupported(e.Range(), "Wrong number of arguments", fmt.Sprintf("%s() takes %d argument(s), got %d.", e.Name, n, len(e.Args)))
		}
		return nil
	}

	switch e.Name {
	case "always":
		if diags := arity(0); diags.HasErrors() {
			return nil, diags
		}
		return Always{}, nil
	case "success", "failure", "cancelled":
		if diags := arity(0); diags.HasErrors() {
			return nil, diags
		}
		return StatusCheck{Check: Check(e.Name)}, nil
	case "startswith":
		if diags := arity(2); diags.HasErrors() {
			return nil, diags
		}
		subject, diags := convert(e.Args[0])
		if diags.HasErrors() {
			return nil, diags
		}
		prefix, diags := convert(e.Args[1])
		if diags.HasErrors() {
			return nil, diags
		}
		return Prefix{Subject: subject, Prefix: prefix}, nil
	}
	return nil, unsupported(e.Range(), "Unknown function", fmt.Sprintf("There is no function named %q in conditions.", e.Name))
}

// traversalNames flattens a traversal into attribute names. Index steps with
// string keys are accepted so job ids can be written as needs["unit-tests"].
func traversalNames(t hcl.Traversal) ([]string, bool) {
	names := make([]string, 0, len(t))
	for _, step := range t {
		switch s := step.(type) {
		case hcl.TraverseRoot:
			names = append(names, s.Name)
		case hcl.TraverseAttr:
			names = append(names, s.Name)
		case hcl.TraverseIndex:
			if s.Key.Type() != cty.String || s.Key.IsNull() {
				return nil, false
			}
			names = append(names, s.Key.AsString())
		default:
			return nil, false
		}
	}
	return names, true
}

// referenceNames flattens the reference forms the parser may produce for
// needs["unit-tests"].result into one list of names.
func referenceNames(expr hclsyntax.Expression) ([]string, bool) {
	switch e := expr.(type) {
	case *hclsyntax.ScopeTraversalExpr:
		return traversalNames(e.Traversal)
	case *hclsyntax.RelativeTraversalExpr:
		head, ok := referenceNames(e.Source)
		if !ok {
			return nil, false
		}
		tail, ok := traversalNames(e.Traversal)
		if !ok {
			return nil, false
		}
		return append(head, tail...), true
	case *hclsyntax.IndexExpr:
		head, ok := referenceNames(e.Collection)
		if !ok || len(e.Key.Variables()) > 0 {
			return nil, false
		}
		key, diags := e.Key.Value(nil)
		if diags.HasErrors() || key.IsNull() || key.Type() != cty.String {
			return nil, false
		}
		return append(head, key.AsString()), true
	}
	return nil, false
}

func convertReference(names []string, rng hcl.Range) (Expr, hcl.Diagnostics) {
	switch names[0] {
	case "trigger":
		if len(names) == 2 {
			switch f := Field(names[1]); f {
			case FieldBranch, FieldTag, FieldTagPush, FieldEvent:
				return ContextRef{Field: f}, nil
			}
		}
		return nil, unsupported(rng, "Unknown trigger attribute", "Valid references are trigger.branch, trigger.tag, trigger.tag_push and trigger.event.")
	case "needs":
		if len(names) == 3 && (names[2] == "outcome" || names[2] == "result") {
			return OutcomeRef{Job: names[1]}, nil
		}
		return nil, unsupported(rng, "Invalid needs reference", "Job outcomes are referenced as needs.<job>.outcome or needs.<job>.result.")
	case "true", "false":
		if len(names) == 1 {
			return Literal{Value: BoolValue(names[0] == "true")}, nil
		}
	}
	return nil, unsupported(rng, "Unknown reference", fmt.Sprintf("%q is not available in conditions.", names[0]))
}
