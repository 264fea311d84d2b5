// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines the JobDefinition structure and its parts.
//
// A JobDefinition is a node of the job graph. The execution policy of a job
// (fail-fast, retries, timeout) lives next to its graph shape so a single
// struct fully describes how every instance of the job is scheduled.
package model

import "time"

// JobDefinition is one declared job.
type JobDefinition struct {
	ID    string
	Needs []string
	// Matrix is nil for a job that runs exactly once.
	Matrix *MatrixSpec
	// Condition is the source of the job's run condition. Empty means the
	// default condition (every direct need succeeded).
	Condition    string
	AllowFailure bool
	Steps        []StepDescriptor
	// FailFast cancels not-yet-running sibling instances when one instance
	// fails. Nil means enabled.
	FailFast *bool
	Retry    RetryPolicy
	// Timeout bounds every attempt. Zero means no limit.
	Timeout time.Duration
	// Gated jobs additionally require their whole upstream closure to pass.
	Gated bool
	// Check marks an aggregate-only job that runs no steps.
	Check *CheckSpec
	Env   map[string]string

	FSInformation *FSInfo
}

// FailFastEnabled resolves the FailFast default.
func (j *JobDefinition) FailFastEnabled() bool {
	return j.FailFast == nil || *j.FailFast
}

// IsCheck reports whether the job is an aggregate-only check job.
func (j *JobDefinition) IsCheck() bool {
	return j.Check != nil
}

// StepDescriptor is an opaque action invocation.
type StepDescriptor struct {
	Name string
	// Uses names the action in the executor registry.
	Uses string
	// With holds the action inputs. Values may reference `${matrix.<axis>}`.
	With   map[string]string
	Reads  []string
	Writes []string
}

// RetryPolicy bounds how many times a failed attempt is re-dispatched.
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
}

// CheckSpec configures a check job.
type CheckSpec struct {
	// AllowFailure lists needs whose failure does not fail the check.
	AllowFailure []string
}

// Bool is a helper for optional boolean fields.
func Bool(v bool) *bool {
	return &v
}
