package core

import (
	"errors"
	"fmt"
)

// ErrStagePanic wraps a panic recovered inside a stage.
var ErrStagePanic = errors.New("stage panicked")

// StageError records a collaborator failure. It never aborts a tick; the
// failing stage contributes nothing and the tick continues.
type StageError struct {
	Cycle uint64
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("cycle %d: stage %s: %v", e.Cycle, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func panicError(v interface{}) error {
	if err, ok := v.(error); ok {
		return fmt.Errorf("%w: %w", ErrStagePanic, err)
	}
	return fmt.Errorf("%w: %v", ErrStagePanic, v)
}
