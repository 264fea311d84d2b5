// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines the matrix specification of a job.
package model

import (
	"fmt"

	"github.com/specialistvlad/gridci/internal/nodeid"
)

// Axis is one named dimension of a matrix.
type Axis struct {
	Name   string
	Values []string
}

// Combination is an ordered list of axis bindings used by include and exclude
// entries.
type Combination []nodeid.AxisValue

// Get returns the value bound to axis.
func (c Combination) Get(axis string) (string, bool) {
	for _, av := range c {
		if av.Name == axis {
			return av.Value, true
		}
	}
	return "", false
}

// MatrixSpec parameterizes a job over one or more axes.
type MatrixSpec struct {
	Axes    []Axis
	Include []Combination
	Exclude []Combination
}

// Axis looks up a declared axis by name.
func (m *MatrixSpec) Axis(name string) (Axis, bool) {
	for _, a := range m.Axes {
		if a.Name == name {
			return a, true
		}
	}
	return Axis{}, false
}

// validate returns every structural problem of the matrix.
func (m *MatrixSpec) validate(job string) []error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, &MalformedMatrixError{Job: job, Reason: fmt.Sprintf(format, args...)})
	}

	if len(m.Axes) == 0 && len(m.Include) == 0 {
		bad("matrix declares no axes and no include entries")
	}

	seen := map[string]bool{}
	for _, axis := range m.Axes {
		switch {
		case !nodeid.ValidName(axis.Name):
			bad("invalid axis name %q", axis.Name)
		case seen[axis.Name]:
			bad("axis %q declared more than once", axis.Name)
		case len(axis.Values) == 0:
			bad("axis %q has no values", axis.Name)
		}
		seen[axis.Name] = true
	}

	for i, entry := range m.Exclude {
		if len(entry) == 0 {
			bad("exclude entry %d is empty", i)
			continue
		}
		for _, av := range entry {
			if _, ok := m.Axis(av.Name); !ok {
				bad("exclude entry %d references undeclared axis %q", i, av.Name)
			}
		}
	}

	for i, entry := range m.Include {
		if len(entry) == 0 {
			bad("include entry %d is empty", i)
			continue
		}
		keys := map[string]bool{}
		for _, av := range entry {
			if !nodeid.ValidName(av.Name) {
				bad("include entry %d has invalid key %q", i, av.Name)
			}
			if keys[av.Name] {
				bad("include entry %d binds %q more than once", i, av.Name)
			}
			keys[av.Name] = true
		}
	}
	return errs
}
