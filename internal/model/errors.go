// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines the typed definition errors reported by Validate.
//
// Every error here is fatal before any dispatch happens. They share the
// DefinitionError marker so callers can tell a broken pipeline apart from a
// failed one without matching on messages.
package model

import (
	"fmt"
	"strings"
)

// DefinitionError marks errors caused by a malformed pipeline definition.
type DefinitionError interface {
	error
	definitionError()
}

// CycleError reports a dependency cycle. Path starts and ends with the same id.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Path, " -> "))
}

func (*CycleError) definitionError() {}

// UnknownDependencyError reports a reference to a job that is not declared.
type UnknownDependencyError struct {
	Job        string
	Dependency string
	// Field is where the reference appeared: "needs", "allow_failure" or
	// "check.allow_failure".
	Field string
}

func (e *UnknownDependencyError) Error() string {
	field := e.Field
	if field == "" {
		field = "needs"
	}
	if e.Job == "" {
		return fmt.Sprintf("pipeline %s references undeclared job %q", field, e.Dependency)
	}
	return fmt.Sprintf("job %q: %s references undeclared job %q", e.Job, field, e.Dependency)
}

func (*UnknownDependencyError) definitionError() {}

// MalformedMatrixError reports a structurally invalid matrix.
type MalformedMatrixError struct {
	Job    string
	Reason string
}

func (e *MalformedMatrixError) Error() string {
	return fmt.Sprintf("job %q: malformed matrix: %s", e.Job, e.Reason)
}

func (*MalformedMatrixError) definitionError() {}

// DuplicateJobError reports two jobs sharing an id. First and Second are the
// source files of the two declarations when known.
type DuplicateJobError struct {
	Job    string
	First  string
	Second string
}

func (e *DuplicateJobError) Error() string {
	if e.First == "" && e.Second == "" {
		return fmt.Sprintf("job %q is declared more than once", e.Job)
	}
	return fmt.Sprintf("job %q is declared more than once (%s and %s)", e.Job, orUnknown(e.First), orUnknown(e.Second))
}

func orUnknown(path string) string {
	if path == "" {
		return "<unknown>"
	}
	return path
}

func (*DuplicateJobError) definitionError() {}

// InvalidJobError reports any other structural problem with a single job.
type InvalidJobError struct {
	Job    string
	Index  int
	Reason string
}

func (e *InvalidJobError) Error() string {
	if e.Job == "" {
		return fmt.Sprintf("job #%d: %s", e.Index, e.Reason)
	}
	return fmt.Sprintf("job %q: %s", e.Job, e.Reason)
}

func (*InvalidJobError) definitionError() {}

// ValidationError aggregates every issue found by Validate.
type ValidationError struct {
	Issues []error
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 1 {
		return e.Issues[0].Error()
	}
	msgs := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		msgs = append(msgs, issue.Error())
	}
	return fmt.Sprintf("%d definition errors: %s", len(e.Issues), strings.Join(msgs, "; "))
}

// Unwrap exposes the individual issues to errors.Is and errors.As.
func (e *ValidationError) Unwrap() []error {
	return e.Issues
}

func (*ValidationError) definitionError() {}

func (e *ValidationError) Add(err error) {
	if err != nil {
		e.Issues = append(e.Issues, err)
	}
}

// OrNil returns nil when no issue was recorded.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Issues) == 0 {
		return nil
	}
	return e
}
