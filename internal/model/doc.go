// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// Package model provides the format-agnostic Go representation of a CI
// pipeline definition: jobs, their dependencies, execution matrices, steps and
// the allow-failure policy. Loaders for concrete file formats (HCL, YAML)
// translate into these types; everything downstream (matrix expansion, graph
// building, scheduling) reads only this model.
//
// # Core Concepts
//
//   - Pipeline: The root container. It holds the ordered list of jobs and the
//     pipeline-level allow-failure list.
//
//   - JobDefinition: A node of the job graph. It names the jobs it needs, an
//     optional matrix, an optional run condition and the ordered steps to run.
//
//   - MatrixSpec: Ordered axes plus include/exclude combinations that the
//     matrix expander turns into concrete job instances.
//
//   - StepDescriptor: An opaque action reference resolved by name in the
//     executor registry, together with its inputs and declared artifact I/O.
//
// Why validate here?
//
// Every structural rule (unique ids, resolvable needs, acyclic graph, well
// formed matrices) can be checked on the model alone, before any expression is
// evaluated or any action is dispatched. Validate reports all problems at once
// as typed errors, so callers can inspect them with errors.As, and a definition
// that passes validation can be planned without further structural checks.
package model
