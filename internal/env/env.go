// Package env reads typed configuration defaults from GRIDCI_* environment
// variables. Unset or blank variables yield the supplied default.
package env

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Prefix is prepended to every key.
const Prefix = "GRIDCI_"

// Key returns the environment variable name for a setting, e.g.
// Key("log-level") is "GRIDCI_LOG_LEVEL".
func Key(name string) string {
	return Prefix + strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(name))
}

func lookup(name string) (string, bool) {
	v, ok := os.LookupEnv(Key(name))
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func String(name string, def string) string {
	if v, ok := lookup(name); ok {
		return v
	}
	return def
}

func Int(name string, def int) (int, error) {
	if v, ok := lookup(name); ok {
		i, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("parse %s: %w", Key(name), err)
		}
		return i, nil
	}
	return def, nil
}

func Bool(name string, def bool) (bool, error) {
	if v, ok := lookup(name); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, fmt.Errorf("parse %s: %w", Key(name), err)
		}
		return b, nil
	}
	return def, nil
}

func Duration(name string, def time.Duration) (time.Duration, error) {
	if v, ok := lookup(name); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("parse %s: %w", Key(name), err)
		}
		return d, nil
	}
	return def, nil
}
