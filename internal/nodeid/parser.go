package nodeid

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// nameRegex matches job ids and axis names.
var nameRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

// isValidName checks for undesirable but technically valid names.
func isValidName(name string) bool {
	if name == "." || name == ".." || name == "-" {
		return false
	}
	return nameRegex.MatchString(name)
}

// ValidName reports whether s can be used as a job id or axis name.
func ValidName(s string) bool {
	return isValidName(s)
}

// Parse creates a new Address by parsing its canonical string representation.
func Parse(rawID string) (Address, error) {
	if rawID == "" {
		return Address{}, fmt.Errorf("identifier cannot be empty")
	}

	open := strings.IndexByte(rawID, '[')
	if open < 0 {
		if !isValidName(rawID) {
			return Address{}, fmt.Errorf("invalid job id: %q", rawID)
		}
		return Address{Job: rawID}, nil
	}

	job := rawID[:open]
	if !isValidName(job) {
		return Address{}, fmt.Errorf("invalid job id: %q", job)
	}
	if !strings.HasSuffix(rawID, "]") {
		return Address{}, fmt.Errorf("identifier %q is missing closing bracket", rawID)
	}

	axes, err := parseAxes(rawID[open+1 : len(rawID)-1])
	if err != nil {
		return Address{}, fmt.Errorf("invalid identifier %q: %w", rawID, err)
	}
	return Address{Job: job, Axes: axes}, nil
}

func parseAxes(body string) ([]AxisValue, error) {
	if body == "" {
		return nil, fmt.Errorf("empty axis tuple")
	}

	var axes []AxisValue
	rest := body
	for {
		eq := strings.IndexByte(rest, '=')
		if eq < 0 {
			return nil, fmt.Errorf("axis entry %q has no value", rest)
		}
		name := rest[:eq]
		if !isValidName(name) {
			return nil, fmt.Errorf("invalid axis name: %q", name)
		}
		rest = rest[eq+1:]

		var value string
		if strings.HasPrefix(rest, `"`) {
			quoted, err := strconv.QuotedPrefix(rest)
			if err != nil {
				return nil, fmt.Errorf("axis %q: malformed quoted value", name)
			}
			value, _ = strconv.Unquote(quoted)
			rest = rest[len(quoted):]
		} else {
			end := strings.IndexByte(rest, ',')
			if end < 0 {
				end = len(rest)
			}
			value = rest[:end]
			if value == "" || strings.ContainsAny(value, "=[]\"") {
				return nil, fmt.Errorf("axis %q: invalid value %q", name, value)
			}
			rest = rest[end:]
		}
		axes = append(axes, AxisValue{Name: name, Value: value})

		if rest == "" {
			return axes, nil
		}
		if rest[0] != ',' {
			return nil, fmt.Errorf("unexpected %q after axis %q", rest, name)
		}
		rest = rest[1:]
	}
}
