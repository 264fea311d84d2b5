package builder

import (
	"github.com/specialistvlad/gridci/internal/condition"
	"github.com/specialistvlad/gridci/internal/graph"
	"github.com/specialistvlad/gridci/internal/instance"
	"github.com/specialistvlad/gridci/internal/model"
	"github.com/specialistvlad/gridci/internal/status"
)

// Plan is a fully expanded, linked pipeline ready to be scheduled.
type Plan struct {
	Pipeline *model.Pipeline
	Graph    *graph.Graph
	// JobOrder lists job ids in topological order.
	JobOrder []string
	// ByJob holds each job's instances in expansion order.
	ByJob map[string][]*instance.Instance
	// Conditions holds the parsed condition of every job; nil means default.
	Conditions map[string]condition.Expr
	// Allow is the explicit pipeline allow set.
	Allow status.Set
	// Declared is the set of every job id.
	Declared status.Set
}

// JobOutcomes returns the current outcomes of a job's instances.
func (p *Plan) JobOutcomes(job string) []status.Outcome {
	instances := p.ByJob[job]
	out := make([]status.Outcome, len(instances))
	for i, inst := range instances {
		out[i] = inst.Outcome()
	}
	return out
}

// JobResolved reports whether every instance of job is terminal.
func (p *Plan) JobResolved(job string) bool {
	for _, inst := range p.ByJob[job] {
		if !inst.Outcome().IsTerminal() {
			return false
		}
	}
	return true
}

// Report aggregates the current instance outcomes.
func (p *Plan) Report() status.Report {
	perJob := make(map[string][]status.Outcome, len(p.JobOrder))
	for _, id := range p.JobOrder {
		perJob[id] = p.JobOutcomes(id)
	}
	return status.Aggregate(p.JobOrder, perJob, p.Allow, nil)
}
