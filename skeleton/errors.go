package skeleton

import (
	"errors"
	"fmt"
)

var (
	// ErrState is matched by every StateError.
	ErrState = errors.New("invalid skeleton state")

	// ErrRestingPresent is the reason given when resting-pose extraction runs twice.
	ErrRestingPresent = errors.New("resting frame extraction failed, resting frame already present")

	// ErrNoFrames is the reason given when there is no frame to turn into a resting pose.
	ErrNoFrames = errors.New("resting frame extraction failed, no frames to extract")

	// ErrNotFound is matched by every LookupError.
	ErrNotFound = errors.New("not found")
)

// StateError reports an operation invoked on a joint in the wrong state.
type StateError struct {
	Joint  string
	Reason error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("joint %q: %v", e.Joint, e.Reason)
}

// Unwrap exposes the reason so errors.Is(err, ErrRestingPresent) works.
func (e *StateError) Unwrap() error { return e.Reason }

// Is matches ErrState.
func (e *StateError) Is(target error) bool { return target == ErrState }

// LookupError reports a missing root, joint alias or frame index.
type LookupError struct {
	Key string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("%s: %v", e.Key, ErrNotFound)
}

// Is matches ErrNotFound.
func (e *LookupError) Is(target error) bool { return target == ErrNotFound }
