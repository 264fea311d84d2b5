// This file translates the decoded HCL structures into model types.

package hcl

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/specialistvlad/gridci/internal/model"
	"github.com/specialistvlad/gridci/internal/nodeid"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

func translateJob(j *hclJob, src []byte, path string) (*model.JobDefinition, hcl.Diagnostics) {
	var diags hcl.Diagnostics
	invalid := func(summary, detail string) {
		diags = append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  summary,
			Detail:   detail,
			Subject:  j.DefRange.Ptr(),
		})
	}

	job := &model.JobDefinition{
		ID:            j.ID,
		Needs:         j.Needs,
		Condition:     j.Condition,
		AllowFailure:  j.AllowFailure,
		FailFast:      j.FailFast,
		Gated:         j.Gated,
		Env:           j.Env,
		FSInformation: model.NewFSInfo(path),
	}

	if j.Timeout != "" {
		d, err := time.ParseDuration(j.Timeout)
		if err != nil {
			invalid("Invalid timeout", fmt.Sprintf("Job %q: %s.", j.ID, err))
		}
		job.Timeout = d
	}

	if j.Retry != nil {
		job.Retry.MaxRetries = j.Retry.MaxRetries
		if j.Retry.Backoff != "" {
			d, err := time.ParseDuration(j.Retry.Backoff)
			if err != nil {
				invalid("Invalid retry backoff", fmt.Sprintf("Job %q: %s.", j.ID, err))
			}
			job.Retry.Backoff = d
		}
	}

	if j.Check != nil {
		job.Check = &model.CheckSpec{AllowFailure: j.Check.AllowFailure}
	}

	if j.Matrix != nil {
		m, mDiags := translateMatrix(j.Matrix)
		diags = append(diags, mDiags...)
		job.Matrix = m
	}

	for _, s := range j.Steps {
		step := model.StepDescriptor{
			Name:   s.Name,
			Uses:   s.Uses,
			Reads:  s.Reads,
			Writes: s.Writes,
		}
		if s.With != nil {
			with, wDiags := stepInputs(s.With.Body, src)
			diags = append(diags, wDiags...)
			step.With = with
		}
		job.Steps = append(job.Steps, step)
	}

	if diags.HasErrors() {
		return nil, diags
	}
	return job, diags
}

func translateMatrix(m *hclMatrix) (*model.MatrixSpec, hcl.Diagnostics) {
	var diags hcl.Diagnostics
	spec := &model.MatrixSpec{}
	for _, a := range m.Axes {
		spec.Axes = append(spec.Axes, model.Axis{Name: a.Name, Values: a.Values})
	}
	for _, t := range m.Include {
		c, d := combination(t.Body)
		diags = append(diags, d...)
		spec.Include = append(spec.Include, c)
	}
	for _, t := range m.Exclude {
		c, d := combination(t.Body)
		diags = append(diags, d...)
		spec.Exclude = append(spec.Exclude, c)
	}
	return spec, diags
}

// combination reads the attributes of an include or exclude block in source
// order.
func combination(body hcl.Body) (model.Combination, hcl.Diagnostics) {
	attrs, diags := body.JustAttributes()
	if diags.HasErrors() {
		return nil, diags
	}

	ordered := make([]*hcl.Attribute, 0, len(attrs))
	for _, attr := range attrs {
		ordered = append(ordered, attr)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Range.Start.Byte < ordered[j].Range.Start.Byte
	})

	out := make(model.Combination, 0, len(ordered))
	for _, attr := range ordered {
		val, vDiags := attr.Expr.Value(nil)
		diags = append(diags, vDiags...)
		if vDiags.HasErrors() {
			continue
		}
		str, ok := asString(val)
		if !ok {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Unsuitable matrix value",
				Detail:   fmt.Sprintf("The value of %q must be a string, number or bool.", attr.Name),
				Subject:  attr.Expr.Range().Ptr(),
			})
			continue
		}
		out = append(out, nodeid.AxisValue{Name: attr.Name, Value: str})
	}
	return out, diags
}

// stepInputs keeps every input as a template source. Constant values are
// escaped so they render to themselves; values that reference variables must
// be quoted strings and are taken verbatim from the file.
func stepInputs(body hcl.Body, src []byte) (map[string]string, hcl.Diagnostics) {
	attrs, diags := body.JustAttributes()
	if diags.HasErrors() {
		return nil, diags
	}

	out := make(map[string]string, len(attrs))
	for name, attr := range attrs {
		if len(attr.Expr.Variables()) == 0 {
			val, vDiags := attr.Expr.Value(nil)
			diags = append(diags, vDiags...)
			if vDiags.HasErrors() {
				continue
			}
			str, ok := asString(val)
			if !ok {
				diags = append(diags, &hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Unsuitable step input",
					Detail:   fmt.Sprintf("The value of %q must be a string, number or bool.", name),
					Subject:  attr.Expr.Range().Ptr(),
				})
				continue
			}
			out[name] = escapeTemplate(str)
			continue
		}

		tmpl, ok := quotedSource(attr.Expr, src)
		if !ok {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Unsupported step input",
				Detail:   fmt.Sprintf("Input %q references variables; only quoted string templates may do so.", name),
				Subject:  attr.Expr.Range().Ptr(),
			})
			continue
		}
		out[name] = tmpl
	}
	return out, diags
}

func quotedSource(expr hcl.Expression, src []byte) (string, bool) {
	switch expr.(type) {
	case *hclsyntax.TemplateExpr, *hclsyntax.TemplateWrapExpr:
	default:
		return "", false
	}
	rng := expr.Range()
	if rng.End.Byte > len(src) || rng.End.Byte-rng.Start.Byte < 2 {
		return "", false
	}
	if src[rng.Start.Byte] != '"' || src[rng.End.Byte-1] != '"' {
		return "", false
	}
	return string(src[rng.Start.Byte+1 : rng.End.Byte-1]), true
}

func asString(val cty.Value) (string, bool) {
	if val.IsNull() || !val.IsWhollyKnown() {
		return "", false
	}
	str, err := convert.Convert(val, cty.String)
	if err != nil {
		return "", false
	}
	return str.AsString(), true
}

func escapeTemplate(s string) string {
	s = strings.ReplaceAll(s, "${", "$${")
	return strings.ReplaceAll(s, "%{", "%%{")
}
