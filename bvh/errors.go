package bvh

import (
	"errors"
	"fmt"
)

var (
	// ErrFormat is matched by every FormatError.
	ErrFormat = errors.New("malformed bvh")

	// ErrConsistency is matched by every ConsistencyError.
	ErrConsistency = errors.New("inconsistent bvh")
)

// FormatError reports an unexpected token, a missing brace or a premature
// end of file.
type FormatError struct {
	// Joint is the joint being parsed, empty outside the hierarchy.
	Joint string
	// Line is the 1-based line number, 0 at end of file.
	Line int
	Msg  string
}

func (e *FormatError) Error() string {
	where := "end of file"
	if e.Line > 0 {
		where = fmt.Sprintf("line %d", e.Line)
	}
	if e.Joint != "" {
		return fmt.Sprintf("%v: %s in joint %q: %s", ErrFormat, where, e.Joint, e.Msg)
	}
	return fmt.Sprintf("%v: %s: %s", ErrFormat, where, e.Msg)
}

// Is matches ErrFormat.
func (e *FormatError) Is(target error) bool { return target == ErrFormat }

// ConsistencyError reports a count that disagrees with what the file declared.
type ConsistencyError struct {
	What     string
	Expected int
	Actual   int
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("%v: %s: expected %d got %d", ErrConsistency, e.What, e.Expected, e.Actual)
}

// Is matches ErrConsistency.
func (e *ConsistencyError) Is(target error) bool { return target == ErrConsistency }
