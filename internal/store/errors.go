package store

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/phrazzld/audio2srt/internal/domain"
)

var (
	// ErrNotFound is the base error for missing rows.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is the base error for primary key collisions.
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when an entity fails validation before
	// being stored. Check the wrapped error for specific validation details.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrUpdateFailed is returned when a job update is rejected.
	ErrUpdateFailed = errors.New("update failed")

	// ErrJobNotFound indicates that the requested job does not exist in the store.
	ErrJobNotFound = fmt.Errorf("%w: job", ErrNotFound)

	// ErrJobExists indicates that a job with the same ID was already created.
	ErrJobExists = fmt.Errorf("%w: job", ErrDuplicate)

	// ErrJobFinished is returned when a terminal job would be completed again.
	ErrJobFinished = fmt.Errorf("%w: job already finished", ErrUpdateFailed)
)

// TransitionError reports a rejected status change on a job.
type TransitionError struct {
	JobID uuid.UUID
	From  domain.JobStatus
	To    domain.JobStatus
}

// Error implements the error interface.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("job %s: cannot move from %s to %s", e.JobID, e.From, e.To)
}

// Unwrap lets errors.Is match ErrJobFinished and ErrUpdateFailed.
func (e *TransitionError) Unwrap() error {
	return ErrJobFinished
}

// CheckTransition returns a *TransitionError when from is terminal.
func CheckTransition(id uuid.UUID, from, to domain.JobStatus) error {
	if from.IsTerminal() {
		return &TransitionError{JobID: id, From: from, To: to}
	}
	return nil
}
