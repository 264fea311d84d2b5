package scheduler

import "fmt"

// GateMode selects how gated jobs are opened.
type GateMode string

const (
	// GateTwoLayer requires both the upstream aggregate and the job's own
	// condition to pass.
	GateTwoLayer GateMode = "two-layer"
	// GateConditionOnly lets the job's condition alone decide.
	GateConditionOnly GateMode = "condition-only"
)

// DefaultMaxConcurrency is used when Config.MaxConcurrency is not positive.
const DefaultMaxConcurrency = 4

// ParseGateMode parses a gate mode name. The empty string is two-layer.
func ParseGateMode(s string) (GateMode, error) {
	switch GateMode(s) {
	case "", GateTwoLayer:
		return GateTwoLayer, nil
	case GateConditionOnly:
		return GateConditionOnly, nil
	}
	return "", fmt.Errorf("invalid gate mode %q (want %q or %q)", s, GateTwoLayer, GateConditionOnly)
}

// Config holds the run-level scheduling policy.
type Config struct {
	// MaxConcurrency bounds the number of instances running at once.
	MaxConcurrency int
	// FailFastPipeline cancels every not yet running instance on the first
	// terminal failure of a job that is not allowed to fail.
	FailFastPipeline bool
	GateMode         GateMode
}

func (c Config) withDefaults() Config {
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = DefaultMaxConcurrency
	}
	if c.GateMode == "" {
		c.GateMode = GateTwoLayer
	}
	return c
}
