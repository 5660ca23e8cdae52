package domain

import (
	"errors"
	"fmt"
)

var (
	ErrConfiguration = errors.New("configuration error")
	ErrValidation    = errors.New("validation error")
	ErrPlanning      = errors.New("planning failed")
	ErrSubmission    = errors.New("submission failed")
	ErrPollTimeout   = errors.New("video generation timed out")
	ErrPollFailure   = errors.New("video generation failed")
	ErrPrecondition  = errors.New("precondition failed")
	ErrCancelled     = errors.New("pipeline cancelled")
	ErrStepTimeout   = errors.New("step timed out")
)

// StepError tags a failure with the scene and step that produced it. Kind is
// one of the sentinel errors above so callers can use errors.Is on the
// category while errors.As still reaches the underlying cause.
type StepError struct {
	Scene int
	Step  string
	Kind  error
	Err   error
}

func (e *StepError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("scene %d %s: %v", e.Scene, e.Step, e.Kind)
	}
	return fmt.Sprintf("scene %d %s: %v", e.Scene, e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

func (e *StepError) Is(target error) bool {
	return e.Kind != nil && target == e.Kind
}

// NewStepError wraps err for the given scene and step. When err already
// carries one of the taxonomy sentinels that category wins over kind.
func NewStepError(scene int, step string, kind, err error) *StepError {
	for _, known := range []error{ErrCancelled, ErrStepTimeout, ErrPollTimeout, ErrPollFailure, ErrPrecondition, ErrPlanning, ErrSubmission} {
		if errors.Is(err, known) {
			kind = known
			break
		}
	}
	return &StepError{Scene: scene, Step: step, Kind: kind, Err: err}
}

// SceneOf reports the scene a failure is attributed to, or 0 when the error
// does not belong to a specific scene.
func SceneOf(err error) int {
	var se *StepError
	if errors.As(err, &se) {
		return se.Scene
	}
	return 0
}
