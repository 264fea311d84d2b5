package artifactstore

import (
	"errors"
	"fmt"
)

// ConflictError reports a Put of a key owned by another instance, or a
// rewrite of an already committed key.
type ConflictError struct {
	Key       string
	Producer  string
	Attempted string
}

func (e *ConflictError) Error() string {
	if e.Producer == e.Attempted {
		return fmt.Sprintf("artifact %q is already committed by %s", e.Key, e.Producer)
	}
	return fmt.Sprintf("artifact %q is owned by %s, cannot be written by %s", e.Key, e.Producer, e.Attempted)
}

// NotFoundError reports a Get of a key nobody wrote.
type NotFoundError struct {
	Key string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("artifact %q not found", e.Key)
}

// NotReadyError reports a Get of a key whose producer has not succeeded yet.
type NotReadyError struct {
	Key      string
	Producer string
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("artifact %q is not ready: producer %s has not completed", e.Key, e.Producer)
}

// IsArtifactError reports whether err is one of this package's errors.
func IsArtifactError(err error) bool {
	var (
		conflict *ConflictError
		notFound *NotFoundError
		notReady *NotReadyError
	)
	return errors.As(err, &conflict) || errors.As(err, &notFound) || errors.As(err, &notReady)
}
