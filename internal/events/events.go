package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/audio2srt/internal/domain"
)

// JobEvent reports a job's new status.
type JobEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// JobID identifies the job that changed
	JobID uuid.UUID `json:"job_id"`

	// Status is the job's status after the change
	Status domain.JobStatus `json:"status"`

	// Error holds the failure message for failed jobs
	Error string `json:"error,omitempty"`

	// CreatedAt is the timestamp when the event was created
	CreatedAt time.Time `json:"created_at"`
}

// NewJobEvent creates an event describing a status change.
func NewJobEvent(jobID uuid.UUID, status domain.JobStatus, errMsg string) *JobEvent {
	return &JobEvent{
		ID:        uuid.New(),
		JobID:     jobID,
		Status:    status,
		Error:     errMsg,
		CreatedAt: time.Now().UTC(),
	}
}

// Terminal reports whether this is the last event for the job.
func (e *JobEvent) Terminal() bool {
	return e.Status.IsTerminal()
}

// EventHandler defines an interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	HandleEvent(ctx context.Context, event *JobEvent) error
}

// EventEmitter defines an interface for components that can emit events.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	EmitEvent(ctx context.Context, event *JobEvent) error
}
