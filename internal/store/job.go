package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/audio2srt/internal/domain"
)

// DBTX is the query surface shared by *sql.DB and *sql.Tx, so a SQL-backed
// JobStore runs unchanged inside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// JobStore persists transcription jobs.
type JobStore interface {
	// Create saves a new job. It returns ErrJobExists if the ID is taken and
	// an error wrapping ErrInvalidEntity if the job fails validation.
	Create(ctx context.Context, job *domain.Job) error

	// Get returns the job with the given ID or ErrJobNotFound.
	Get(ctx context.Context, id uuid.UUID) (*domain.Job, error)

	// UpdateStatus moves a job to a non-terminal status. errMsg is stored
	// as the job's Error field and may be empty.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.JobStatus, errMsg string) error

	// Complete marks a job completed and stores its transcript.
	Complete(ctx context.Context, id uuid.UUID, result *domain.Transcript) error

	// Fail marks a job failed with the given message.
	Fail(ctx context.Context, id uuid.UUID, errMsg string) error

	// ListByStatus returns jobs in the given status, oldest first. If
	// olderThan is non-zero, only jobs not updated within that duration are
	// returned.
	ListByStatus(ctx context.Context, status domain.JobStatus, olderThan time.Duration) ([]*domain.Job, error)
}
