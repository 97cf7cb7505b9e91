package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/audio2srt/internal/domain"
	"github.com/phrazzld/audio2srt/internal/platform/logger"
	"github.com/phrazzld/audio2srt/internal/store"
)

const jobColumns = `id, status, filename, language, audio_path, result, error_message, created_at, updated_at`

// PostgresJobStore implements store.JobStore using PostgreSQL.
type PostgresJobStore struct {
	db  store.DBTX
	now func() time.Time
}

var _ store.JobStore = (*PostgresJobStore)(nil)

// NewPostgresJobStore creates a new PostgresJobStore.
func NewPostgresJobStore(db store.DBTX) *PostgresJobStore {
	return &PostgresJobStore{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// WithTx returns a store that runs its queries in tx.
func (s *PostgresJobStore) WithTx(tx *sql.Tx) *PostgresJobStore {
	return &PostgresJobStore{db: tx, now: s.now}
}

// Create implements store.JobStore.
func (s *PostgresJobStore) Create(ctx context.Context, job *domain.Job) error {
	log := logger.FromContext(ctx)

	if err := job.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	result, err := marshalResult(job.Result)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO jobs (`+jobColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		job.ID,
		string(job.Status),
		job.Filename,
		job.Language,
		job.AudioPath,
		result,
		job.Error,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		err = wrapDBError("failed to save job", err)
		if !errors.Is(err, store.ErrJobExists) {
			log.Error("failed to save job", "job_id", job.ID, "error", err)
		}
		return err
	}
	return nil
}

// Get implements store.JobStore.
func (s *PostgresJobStore) Get(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)

	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrJobNotFound
		}
		logger.FromContext(ctx).Error("failed to get job", "job_id", id, "error", err)
		return nil, wrapDBError("failed to get job", err)
	}
	return job, nil
}

// UpdateStatus implements store.JobStore.
func (s *PostgresJobStore) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	status domain.JobStatus,
	errMsg string,
) error {
	if !status.Valid() || status.IsTerminal() {
		return fmt.Errorf("%w: %w: %q", store.ErrUpdateFailed, domain.ErrInvalidJobStatus, status)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = $1, error_message = $2, updated_at = $3
		WHERE id = $4 AND status NOT IN ('completed', 'failed')`,
		string(status), errMsg, s.now(), id,
	)
	if err != nil {
		logger.FromContext(ctx).Error("failed to update job status",
			"job_id", id,
			"status", status,
			"error", err)
		return wrapDBError("failed to update job status", err)
	}
	return s.checkUpdated(ctx, res, id, status)
}

// Complete implements store.JobStore. The status check and the update run in
// one transaction so a job finished by one worker is never overwritten by
// another that picked up a requeued copy.
func (s *PostgresJobStore) Complete(ctx context.Context, id uuid.UUID, result *domain.Transcript) error {
	data, err := marshalResult(result)
	if err != nil {
		return err
	}

	return s.inTx(ctx, func(ctx context.Context, q store.DBTX) error {
		var current string
		err := q.QueryRowContext(ctx, `SELECT status FROM jobs WHERE id = $1 FOR UPDATE`, id).Scan(&current)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return store.ErrJobNotFound
			}
			return wrapDBError("failed to lock job", err)
		}
		if err := store.CheckTransition(id, domain.JobStatus(current), domain.JobStatusCompleted); err != nil {
			return err
		}

		_, err = q.ExecContext(ctx, `
			UPDATE jobs
			SET status = $1, result = $2, error_message = '', updated_at = $3
			WHERE id = $4`,
			string(domain.JobStatusCompleted), data, s.now(), id,
		)
		if err != nil {
			return wrapDBError("failed to complete job", err)
		}
		return nil
	})
}

// Fail implements store.JobStore.
func (s *PostgresJobStore) Fail(ctx context.Context, id uuid.UUID, errMsg string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = $1, error_message = $2, updated_at = $3
		WHERE id = $4 AND status NOT IN ('completed', 'failed')`,
		string(domain.JobStatusFailed), errMsg, s.now(), id,
	)
	if err != nil {
		logger.FromContext(ctx).Error("failed to mark job failed", "job_id", id, "error", err)
		return wrapDBError("failed to mark job failed", err)
	}
	return s.checkUpdated(ctx, res, id, domain.JobStatusFailed)
}

// ListByStatus implements store.JobStore.
func (s *PostgresJobStore) ListByStatus(
	ctx context.Context,
	status domain.JobStatus,
	olderThan time.Duration,
) ([]*domain.Job, error) {
	log := logger.FromContext(ctx)

	query := `SELECT ` + jobColumns + ` FROM jobs WHERE status = $1 ORDER BY created_at ASC`
	args := []interface{}{string(status)}
	if olderThan > 0 {
		query = `SELECT ` + jobColumns + ` FROM jobs WHERE status = $1 AND updated_at < $2 ORDER BY created_at ASC`
		args = append(args, s.now().Add(-olderThan))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query jobs by status", "status", status, "error", err)
		return nil, wrapDBError("failed to query jobs by status", err)
	}
	defer func() { _ = rows.Close() }()

	jobs := make([]*domain.Job, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			log.Error("failed to scan job row", "status", status, "error", err)
			return nil, fmt.Errorf("failed to scan job row: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job rows: %w", err)
	}
	return jobs, nil
}

// checkUpdated explains an UPDATE guarded against finished jobs that
// matched no row: the job is missing, or it is already terminal.
func (s *PostgresJobStore) checkUpdated(ctx context.Context, res sql.Result, id uuid.UUID, to domain.JobStatus) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}

	var current string
	err = s.db.QueryRowContext(ctx, `SELECT status FROM jobs WHERE id = $1`, id).Scan(&current)
	if err != nil {
		return wrapDBError("failed to read job status", err)
	}
	if err := store.CheckTransition(id, domain.JobStatus(current), to); err != nil {
		return err
	}
	return fmt.Errorf("%w: job %s changed concurrently", store.ErrUpdateFailed, id)
}

// inTx runs fn in a transaction when the store holds a *sql.DB, and directly
// against the current DBTX when it is already inside one.
func (s *PostgresJobStore) inTx(ctx context.Context, fn func(ctx context.Context, q store.DBTX) error) error {
	db, ok := s.db.(*sql.DB)
	if !ok {
		return fn(ctx, s.db)
	}
	return store.RunInTransaction(ctx, db, nil, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, tx)
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var (
		job    domain.Job
		status string
		result []byte
	)
	if err := row.Scan(
		&job.ID,
		&status,
		&job.Filename,
		&job.Language,
		&job.AudioPath,
		&result,
		&job.Error,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		return nil, err
	}
	job.Status = domain.JobStatus(status)

	if len(result) > 0 {
		var tr domain.Transcript
		if err := json.Unmarshal(result, &tr); err != nil {
			return nil, fmt.Errorf("failed to decode job result: %w", err)
		}
		job.Result = &tr
	}
	return &job, nil
}

func marshalResult(tr *domain.Transcript) ([]byte, error) {
	if tr == nil {
		return nil, nil
	}
	data, err := json.Marshal(tr)
	if err != nil {
		return nil, fmt.Errorf("failed to encode job result: %w", err)
	}
	return data, nil
}
