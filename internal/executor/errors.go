package executor

import (
	"errors"
	"fmt"

	"github.com/specialistvlad/gridci/internal/artifactstore"
)

// UnknownActionError reports a step whose `uses` names no registered action.
type UnknownActionError struct {
	Name string
}

func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("unknown action '%s'", e.Name)
}

// StepError wraps the failure of a single step.
type StepError struct {
	Instance string
	Step     int
	Name     string
	Err      error
}

func (e *StepError) Error() string {
	label := e.Name
	if label == "" {
		label = fmt.Sprintf("#%d", e.Step)
	}
	return fmt.Sprintf("instance %s: step %s failed: %v", e.Instance, label, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// UndeclaredWriteError reports an artifact returned by a step that is not
// listed in its `writes`.
type UndeclaredWriteError struct {
	Artifact string
}

func (e *UndeclaredWriteError) Error() string {
	return fmt.Sprintf("artifact %q was written but not declared", e.Artifact)
}

// MissingWriteError reports a declared write the step never produced.
type MissingWriteError struct {
	Artifact string
}

func (e *MissingWriteError) Error() string {
	return fmt.Sprintf("declared artifact %q was not produced", e.Artifact)
}

// IsArtifactError reports whether err stems from artifact exchange rather
// than the action itself.
func IsArtifactError(err error) bool {
	var (
		undeclared *UndeclaredWriteError
		missing    *MissingWriteError
	)
	return artifactstore.IsArtifactError(err) || errors.As(err, &undeclared) || errors.As(err, &missing)
}
