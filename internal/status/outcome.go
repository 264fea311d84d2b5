package status

import (
	"fmt"
	"strings"
)

// Outcome is the lifecycle state of a job instance, or the aggregate state of
// a job or a whole pipeline.
type Outcome int

const (
	Pending Outcome = iota
	Running
	Succeeded
	Failed
	Skipped
	Cancelled
)

var outcomeNames = map[Outcome]string{
	Pending:   "pending",
	Running:   "running",
	Succeeded: "succeeded",
	Failed:    "failed",
	Skipped:   "skipped",
	Cancelled: "cancelled",
}

func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// IsTerminal reports whether the outcome can no longer change.
func (o Outcome) IsTerminal() bool {
	switch o {
	case Succeeded, Failed, Skipped, Cancelled:
		return true
	}
	return false
}

// ParseOutcome accepts the canonical names plus the short forms used in
// condition expressions ("success", "failure", "skip", "cancel").
func ParseOutcome(s string) (Outcome, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending":
		return Pending, nil
	case "running":
		return Running, nil
	case "succeeded", "success":
		return Succeeded, nil
	case "failed", "failure":
		return Failed, nil
	case "skipped", "skip":
		return Skipped, nil
	case "cancelled", "canceled", "cancel":
		return Cancelled, nil
	}
	return Pending, fmt.Errorf("unknown outcome %q", s)
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *Outcome) UnmarshalText(b []byte) error {
	parsed, err := ParseOutcome(string(b))
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// Set is a set of job ids. The zero value is an empty, read-only set.
type Set map[string]struct{}

// NewSet builds a set from the given ids.
func NewSet(ids ...string) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports whether id is in the set. It is safe on a nil set.
func (s Set) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Union returns a new set holding the members of both sets.
func (s Set) Union(other Set) Set {
	out := make(Set, len(s)+len(other))
	for id := range s {
		out[id] = struct{}{}
	}
	for id := range other {
		out[id] = struct{}{}
	}
	return out
}
