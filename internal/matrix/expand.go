package matrix

import (
	"fmt"

	"github.com/specialistvlad/gridci/internal/instance"
	"github.com/specialistvlad/gridci/internal/model"
	"github.com/specialistvlad/gridci/internal/nodeid"
)

// Expand returns the instances of a job in deterministic order: the filtered
// cartesian product first, then include entries. A job without a matrix yields
// exactly one instance with an empty axis tuple.
func Expand(job *model.JobDefinition) ([]*instance.Instance, error) {
	tuples := Tuples(job.Matrix)

	instances := make([]*instance.Instance, 0, len(tuples))
	seen := make(map[string]bool, len(tuples))
	for _, tuple := range tuples {
		addr := nodeid.New(job.ID, tuple...)
		key := addr.String()
		if seen[key] {
			return nil, fmt.Errorf("job %q: matrix produces instance %s more than once", job.ID, key)
		}
		seen[key] = true

		steps, err := resolveSteps(job, addr)
		if err != nil {
			return nil, err
		}
		instances = append(instances, instance.New(addr, job, steps))
	}
	return instances, nil
}

// Tuples computes the ordered axis tuples of a matrix without building
// instances.
func Tuples(m *model.MatrixSpec) [][]nodeid.AxisValue {
	if m == nil {
		return [][]nodeid.AxisValue{nil}
	}

	var tuples [][]nodeid.AxisValue
	for _, tuple := range product(m.Axes) {
		if !excluded(tuple, m.Exclude) {
			tuples = append(tuples, tuple)
		}
	}
	for _, entry := range m.Include {
		tuples = append(tuples, append([]nodeid.AxisValue(nil), entry...))
	}
	return tuples
}

// product enumerates the cartesian product with an odometer over the axis
// indices; the last axis turns fastest.
func product(axes []model.Axis) [][]nodeid.AxisValue {
	if len(axes) == 0 {
		return nil
	}
	for _, a := range axes {
		if len(a.Values) == 0 {
			return nil
		}
	}

	idx := make([]int, len(axes))
	var out [][]nodeid.AxisValue
	for {
		tuple := make([]nodeid.AxisValue, len(axes))
		for i, a := range axes {
			tuple[i] = nodeid.AxisValue{Name: a.Name, Value: a.Values[idx[i]]}
		}
		out = append(out, tuple)

		pos := len(axes) - 1
		for pos >= 0 {
			idx[pos]++
			if idx[pos] < len(axes[pos].Values) {
				break
			}
			idx[pos] = 0
			pos--
		}
		if pos < 0 {
			return out
		}
	}
}

// excluded reports whether tuple matches every key of at least one entry.
func excluded(tuple []nodeid.AxisValue, excludes []model.Combination) bool {
	for _, entry := range excludes {
		if len(entry) > 0 && matches(tuple, entry) {
			return true
		}
	}
	return false
}

func matches(tuple []nodeid.AxisValue, entry model.Combination) bool {
	for _, want := range entry {
		found := false
		for _, have := range tuple {
			if have.Name == want.Name {
				found = have.Value == want.Value
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
