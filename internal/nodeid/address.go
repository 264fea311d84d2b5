package nodeid

import (
	"strconv"
	"strings"
)

// String serializes the Address into its canonical string representation.
func (a Address) String() string {
	if len(a.Axes) == 0 {
		return a.Job
	}

	var sb strings.Builder
	sb.WriteString(a.Job)
	sb.WriteRune('[')
	for i, av := range a.Axes {
		if i > 0 {
			sb.WriteRune(',')
		}
		sb.WriteString(av.Name)
		sb.WriteRune('=')
		sb.WriteString(formatValue(av.Value))
	}
	sb.WriteRune(']')
	return sb.String()
}

// Equal reports whether both addresses name the same instance. Axis order is
// significant.
func (a Address) Equal(other Address) bool {
	if a.Job != other.Job || len(a.Axes) != len(other.Axes) {
		return false
	}
	for i := range a.Axes {
		if a.Axes[i] != other.Axes[i] {
			return false
		}
	}
	return true
}

func formatValue(v string) string {
	if v == "" || strings.ContainsAny(v, ",=[]\" \t\n\\") {
		return strconv.Quote(v)
	}
	return v
}
