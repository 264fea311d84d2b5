// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines the Pipeline structure, the root container for all jobs
// loaded from one or more definition files.
package model

import "github.com/specialistvlad/gridci/internal/status"

// Pipeline is the validated-or-not input of a run.
type Pipeline struct {
	Name string
	Jobs []*JobDefinition
	// AllowFailure lists jobs whose failure, cancellation or skip does not
	// fail the pipeline. It is merged with every job's AllowFailure flag.
	AllowFailure []string
}

// NewPipeline creates an empty pipeline with the given name.
func NewPipeline(name string) *Pipeline {
	return &Pipeline{Name: name, Jobs: []*JobDefinition{}}
}

// Job looks up a job by id.
func (p *Pipeline) Job(id string) (*JobDefinition, bool) {
	for _, j := range p.Jobs {
		if j.ID == id {
			return j, true
		}
	}
	return nil, false
}

// JobIDs returns the job ids in declaration order.
func (p *Pipeline) JobIDs() []string {
	ids := make([]string, 0, len(p.Jobs))
	for _, j := range p.Jobs {
		ids = append(ids, j.ID)
	}
	return ids
}

// AllowSet is the explicit allow set used for pipeline aggregation: the
// pipeline-level list, every job flagged AllowFailure and the allow lists of
// check jobs.
func (p *Pipeline) AllowSet() status.Set {
	set := status.NewSet(p.AllowFailure...)
	for _, j := range p.Jobs {
		if j.AllowFailure {
			set[j.ID] = struct{}{}
		}
		if j.Check != nil {
			for _, id := range j.Check.AllowFailure {
				set[id] = struct{}{}
			}
		}
	}
	return set
}

// Upstream returns the transitive needs of a job in declaration order. It
// tolerates unknown ids and cycles so it can be called on unvalidated input.
func (p *Pipeline) Upstream(id string) []string {
	seen := map[string]bool{}
	var walk func(string)
	walk = func(cur string) {
		job, ok := p.Job(cur)
		if !ok {
			return
		}
		for _, need := range job.Needs {
			if seen[need] {
				continue
			}
			seen[need] = true
			walk(need)
		}
	}
	walk(id)
	delete(seen, id)

	var out []string
	for _, j := range p.Jobs {
		if seen[j.ID] {
			out = append(out, j.ID)
		}
	}
	return out
}
