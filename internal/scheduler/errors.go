package scheduler

import (
	"fmt"
	"time"
)

// TimeoutError reports an attempt that exceeded its job's timeout.
type TimeoutError struct {
	Instance string
	Timeout  time.Duration
	Err      error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("instance %s exceeded its timeout of %s", e.Instance, e.Timeout)
}

func (e *TimeoutError) Unwrap() error { return e.Err }
