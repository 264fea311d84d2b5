package nodeid

// AxisValue binds one matrix axis to the value chosen for an instance.
type AxisValue struct {
	Name  string
	Value string
}

// Address identifies a single job instance: the job id plus the ordered axis
// tuple that produced it.
type Address struct {
	Job  string
	Axes []AxisValue
}

// New creates an Address. The axes slice is copied.
func New(job string, axes ...AxisValue) Address {
	return Address{Job: job, Axes: append([]AxisValue(nil), axes...)}
}

// Value returns the value bound to axis, if any.
func (a Address) Value(axis string) (string, bool) {
	for _, av := range a.Axes {
		if av.Name == axis {
			return av.Value, true
		}
	}
	return "", false
}

// Map returns the axis tuple as a map.
func (a Address) Map() map[string]string {
	m := make(map[string]string, len(a.Axes))
	for _, av := range a.Axes {
		m[av.Name] = av.Value
	}
	return m
}
