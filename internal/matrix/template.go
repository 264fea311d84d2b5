package matrix

import (
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/specialistvlad/gridci/internal/model"
	"github.com/specialistvlad/gridci/internal/nodeid"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// EvalContext builds the HCL evaluation context visible to step inputs of an
// instance: `matrix.<axis>` and `job.id`.
func EvalContext(addr nodeid.Address) *hcl.EvalContext {
	axes := make(map[string]cty.Value, len(addr.Axes))
	for _, av := range addr.Axes {
		axes[av.Name] = cty.StringVal(av.Value)
	}
	matrixVal := cty.EmptyObjectVal
	if len(axes) > 0 {
		matrixVal = cty.ObjectVal(axes)
	}

	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"matrix": matrixVal,
			"job": cty.ObjectVal(map[string]cty.Value{
				"id": cty.StringVal(addr.Job),
			}),
		},
	}
}

// Render evaluates a single input template. Strings without interpolation
// sequences are returned unchanged.
func Render(src string, ctx *hcl.EvalContext, name string) (string, error) {
	if !strings.Contains(src, "${") && !strings.Contains(src, "%{") {
		return src, nil
	}

	expr, diags := hclsyntax.ParseTemplate([]byte(src), name, hcl.InitialPos)
	if diags.HasErrors() {
		return "", fmt.Errorf("failed to parse template: %w", diags)
	}
	val, diags := expr.Value(ctx)
	if diags.HasErrors() {
		return "", fmt.Errorf("failed to evaluate template: %w", diags)
	}
	if val.IsNull() || !val.IsKnown() {
		return "", fmt.Errorf("template evaluated to an unknown or null value")
	}
	str, err := convert.Convert(val, cty.String)
	if err != nil {
		return "", fmt.Errorf("template result is not a string: %w", err)
	}
	return str.AsString(), nil
}

// resolveSteps snapshots the job's steps with every input rendered for addr.
func resolveSteps(job *model.JobDefinition, addr nodeid.Address) ([]model.StepDescriptor, error) {
	ctx := EvalContext(addr)
	steps := make([]model.StepDescriptor, len(job.Steps))
	for i, step := range job.Steps {
		resolved := step
		resolved.Reads = append([]string(nil), step.Reads...)
		resolved.Writes = append([]string(nil), step.Writes...)
		if step.With != nil {
			resolved.With = make(map[string]string, len(step.With))
			for key, raw := range step.With {
				val, err := Render(raw, ctx, fmt.Sprintf("%s.steps[%d].with.%s", job.ID, i, key))
				if err != nil {
					return nil, fmt.Errorf("instance %s: input %q of step %d: %w", addr, key, i, err)
				}
				resolved.With[key] = val
			}
		}
		steps[i] = resolved
	}
	return steps, nil
}
