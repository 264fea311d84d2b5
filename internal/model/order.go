// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package model

import "fmt"

// TopologicalOrder returns the jobs ordered so that every job comes after all
// of its needs. Among jobs that are ready at the same time, declaration order
// wins, so the result is deterministic. The pipeline is expected to be valid;
// a cycle or unknown need is still reported as an error.
func (p *Pipeline) TopologicalOrder() ([]*JobDefinition, error) {
	position := make(map[string]int, len(p.Jobs))
	for i, job := range p.Jobs {
		position[job.ID] = i
	}

	indegree := make([]int, len(p.Jobs))
	dependents := make([][]int, len(p.Jobs))
	for i, job := range p.Jobs {
		for _, need := range job.Needs {
			j, ok := position[need]
			if !ok {
				return nil, &UnknownDependencyError{Job: job.ID, Dependency: need, Field: "needs"}
			}
			indegree[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	// ready is kept sorted by declaration index.
	var ready []int
	for i := range p.Jobs {
		if indegree[i] == 0 {
			ready = append(ready, i)
		}
	}

	order := make([]*JobDefinition, 0, len(p.Jobs))
	for len(ready) > 0 {
		cur := ready[0]
		ready = ready[1:]
		order = append(order, p.Jobs[cur])
		for _, dep := range dependents[cur] {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = insertSorted(ready, dep)
			}
		}
	}

	if len(order) != len(p.Jobs) {
		ids := map[string]*JobDefinition{}
		for _, job := range p.Jobs {
			ids[job.ID] = job
		}
		if cycle := findCycle(p.Jobs, ids); cycle != nil {
			return nil, cycle
		}
		return nil, fmt.Errorf("topological order incomplete: %d of %d jobs ordered", len(order), len(p.Jobs))
	}
	return order, nil
}

func insertSorted(s []int, v int) []int {
	i := len(s)
	for i > 0 && s[i-1] > v {
		i--
	}
	s = append(s, 0)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}
