package task

import (
	"errors"
	"fmt"
)

// InvalidTypeError rejects task creation for a type outside the closed set.
// This is a producer error: nothing is persisted when it is returned.
type InvalidTypeError struct {
	Type string
}

func (e *InvalidTypeError) Error() string {
	return fmt.Sprintf("invalid task type %q", e.Type)
}

// ProcessingError is a precondition violation inside a processor (for
// example the target entity is missing). It is terminal for the attempt and
// counts against the retry budget.
type ProcessingError struct {
	Reason string
}

func (e *ProcessingError) Error() string {
	return "processing error: " + e.Reason
}

// PersistenceError wraps a storage failure. The failing operation is aborted
// without corrupting in-memory state; batch isolation keeps it from
// affecting sibling tasks.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error in %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ErrUnknownTask is returned by store lookups for an id that does not exist.
var ErrUnknownTask = errors.New("task not found")
