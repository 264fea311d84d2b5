package builder

import (
	"context"
	"fmt"

	"github.com/specialistvlad/gridci/internal/condition"
	"github.com/specialistvlad/gridci/internal/ctxlog"
	"github.com/specialistvlad/gridci/internal/graph"
	"github.com/specialistvlad/gridci/internal/instance"
	"github.com/specialistvlad/gridci/internal/matrix"
	"github.com/specialistvlad/gridci/internal/model"
	"github.com/specialistvlad/gridci/internal/status"
)

// Build validates the pipeline and constructs its Plan. Every error returned
// before the graph exists is a model.DefinitionError.
func Build(ctx context.Context, p *model.Pipeline) (*Plan, error) {
	logger := ctxlog.FromContext(ctx).With("pipeline", p.Name)
	logger.Debug("Build: Starting plan construction.")

	if err := p.Validate(); err != nil {
		return nil, err
	}
	conditions, err := parseConditions(p)
	if err != nil {
		return nil, err
	}
	logger.Debug("Build: Definition validated.", "jobs", len(p.Jobs))

	order, err := p.TopologicalOrder()
	if err != nil {
		return nil, err
	}

	plan := &Plan{
		Pipeline:   p,
		Graph:      graph.New(),
		ByJob:      make(map[string][]*instance.Instance, len(p.Jobs)),
		Conditions: conditions,
		Allow:      p.AllowSet(),
		Declared:   status.NewSet(p.JobIDs()...),
	}

	// First pass: expand jobs into instances in topological order.
	for _, job := range order {
		instances, err := matrix.Expand(job)
		if err != nil {
			return nil, &model.ValidationError{Issues: []error{
				&model.MalformedMatrixError{Job: job.ID, Reason: err.Error()},
			}}
		}
		for _, inst := range instances {
			if err := plan.Graph.AddNode(inst); err != nil {
				return nil, fmt.Errorf("failed to add instance to graph: %w", err)
			}
		}
		plan.JobOrder = append(plan.JobOrder, job.ID)
		plan.ByJob[job.ID] = instances
		logger.Debug("Build: Job expanded.", "job", job.ID, "instances", len(instances))
	}

	// Second pass: link every instance to every instance of each need.
	for _, job := range order {
		for _, need := range job.Needs {
			for _, from := range plan.ByJob[need] {
				for _, to := range plan.ByJob[job.ID] {
					if err := plan.Graph.AddEdge(from.Key(), to.Key()); err != nil {
						return nil, fmt.Errorf("failed to link %s -> %s: %w", from.Key(), to.Key(), err)
					}
				}
			}
		}
	}

	if err := plan.Graph.DetectCycles(); err != nil {
		return nil, fmt.Errorf("error validating run graph: %w", err)
	}

	logger.Info("Build: Plan construction successful.", "jobs", len(plan.JobOrder), "instances", plan.Graph.Len())
	return plan, nil
}

func parseConditions(p *model.Pipeline) (map[string]condition.Expr, error) {
	conditions := make(map[string]condition.Expr, len(p.Jobs))
	issues := &model.ValidationError{}
	for i, job := range p.Jobs {
		expr, err := condition.Parse(job.Condition)
		if err != nil {
			issues.Add(&model.InvalidJobError{Job: job.ID, Index: i, Reason: err.Error()})
			continue
		}
		if expr == nil && job.IsCheck() {
			expr = condition.Always{}
		}
		conditions[job.ID] = expr
	}
	if err := issues.OrNil(); err != nil {
		return nil, err
	}
	return conditions, nil
}
