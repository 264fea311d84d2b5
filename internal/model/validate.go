// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package model

import (
	"fmt"
	"strings"

	"github.com/specialistvlad/gridci/internal/nodeid"
)

// Validate checks the structural invariants of the pipeline and returns a
// *ValidationError listing every violation, or nil. It has no side effects.
func (p *Pipeline) Validate() error {
	issues := &ValidationError{}
	ids := make(map[string]*JobDefinition, len(p.Jobs))

	for i, job := range p.Jobs {
		if job == nil {
			issues.Add(&InvalidJobError{Index: i, Reason: "job is nil"})
			continue
		}
		if strings.TrimSpace(job.ID) == "" {
			issues.Add(&InvalidJobError{Index: i, Reason: "id is required"})
			continue
		}
		if !nodeid.ValidName(job.ID) {
			issues.Add(&InvalidJobError{Job: job.ID, Index: i, Reason: "id may only contain letters, digits, '_', '-' and '.'"})
		}
		if first, dup := ids[job.ID]; dup {
			issues.Add(&DuplicateJobError{
				Job:    job.ID,
				First:  first.FSInformation.String(),
				Second: job.FSInformation.String(),
			})
			continue
		}
		ids[job.ID] = job
		validateJob(issues, i, job)
	}

	for _, job := range p.Jobs {
		if job == nil || job.ID == "" {
			continue
		}
		for _, need := range job.Needs {
			if _, ok := ids[need]; !ok {
				issues.Add(&UnknownDependencyError{Job: job.ID, Dependency: need, Field: "needs"})
			}
		}
		if job.Check != nil {
			for _, id := range job.Check.AllowFailure {
				if _, ok := ids[id]; !ok {
					issues.Add(&UnknownDependencyError{Job: job.ID, Dependency: id, Field: "check.allow_failure"})
				}
			}
		}
	}

	for _, id := range p.AllowFailure {
		if _, ok := ids[id]; !ok {
			issues.Add(&UnknownDependencyError{Dependency: id, Field: "allow_failure"})
		}
	}

	if cycle := findCycle(p.Jobs, ids); cycle != nil {
		issues.Add(cycle)
	}

	return issues.OrNil()
}

func validateJob(issues *ValidationError, index int, job *JobDefinition) {
	invalid := func(reason string) {
		issues.Add(&InvalidJobError{Job: job.ID, Index: index, Reason: reason})
	}

	if job.Retry.MaxRetries < 0 {
		invalid("retry.max_retries must not be negative")
	}
	if job.Retry.Backoff < 0 {
		invalid("retry.backoff must not be negative")
	}
	if job.Timeout < 0 {
		invalid("timeout must not be negative")
	}

	if job.Check != nil {
		if len(job.Steps) > 0 {
			invalid("check job cannot declare steps")
		}
		if job.Matrix != nil {
			invalid("check job cannot declare a matrix")
		}
	}

	seenSteps := map[string]bool{}
	for i, step := range job.Steps {
		if strings.TrimSpace(step.Uses) == "" {
			issues.Add(&InvalidJobError{Job: job.ID, Index: index, Reason: fmt.Sprintf("step #%d has no action (uses)", i)})
		}
		// Artifact names become file names in action workspaces.
		for _, name := range append(append([]string(nil), step.Reads...), step.Writes...) {
			if !nodeid.ValidName(name) {
				invalid(fmt.Sprintf("step #%d: invalid artifact name %q", i, name))
			}
		}
		if step.Name != "" {
			if seenSteps[step.Name] {
				invalid(fmt.Sprintf("step %q is declared more than once", step.Name))
			}
			seenSteps[step.Name] = true
		}
	}

	if job.Matrix != nil {
		for _, err := range job.Matrix.validate(job.ID) {
			issues.Add(err)
		}
	}
}

// findCycle runs a DFS over the needs relation in declaration order and returns
// the first cycle found. Unknown needs are ignored; they are reported
// separately.
func findCycle(jobs []*JobDefinition, ids map[string]*JobDefinition) *CycleError {
	const (
		unvisited = iota
		visiting
		visited
	)
	state := make(map[string]int, len(ids))
	var stack []string

	var visit func(id string) *CycleError
	visit = func(id string) *CycleError {
		state[id] = visiting
		stack = append(stack, id)
		for _, need := range ids[id].Needs {
			if _, ok := ids[need]; !ok {
				continue
			}
			switch state[need] {
			case visiting:
				start := 0
				for i, s := range stack {
					if s == need {
						start = i
						break
					}
				}
				path := append(append([]string(nil), stack[start:]...), need)
				return &CycleError{Path: path}
			case unvisited:
				if c := visit(need); c != nil {
					return c
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = visited
		return nil
	}

	for _, job := range jobs {
		if job == nil || ids[job.ID] != job {
			continue
		}
		if state[job.ID] == unvisited {
			if c := visit(job.ID); c != nil {
				return c
			}
		}
	}
	return nil
}
