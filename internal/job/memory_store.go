package job

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/audio2srt/internal/domain"
	"github.com/phrazzld/audio2srt/internal/store"
)

// MemoryStore is a process-local store.JobStore. Jobs do not survive a
// restart, so recovery only matters for the PostgreSQL store.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*domain.Job
	now  func() time.Time
}

var _ store.JobStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs: make(map[uuid.UUID]*domain.Job),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Create implements store.JobStore.
func (s *MemoryStore) Create(ctx context.Context, job *domain.Job) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; exists {
		return store.ErrJobExists
	}
	s.jobs[job.ID] = cloneJob(job)
	return nil
}

// Get implements store.JobStore.
func (s *MemoryStore) Get(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrJobNotFound
	}
	return cloneJob(job), nil
}

// UpdateStatus implements store.JobStore.
func (s *MemoryStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.JobStatus, errMsg string) error {
	if !status.Valid() || status.IsTerminal() {
		return fmt.Errorf("%w: %w: %q", store.ErrUpdateFailed, domain.ErrInvalidJobStatus, status)
	}
	return s.update(id, func(job *domain.Job) error {
		if err := store.CheckTransition(id, job.Status, status); err != nil {
			return err
		}
		job.Status = status
		job.Error = errMsg
		return nil
	})
}

// Complete implements store.JobStore.
func (s *MemoryStore) Complete(ctx context.Context, id uuid.UUID, result *domain.Transcript) error {
	return s.update(id, func(job *domain.Job) error {
		if err := store.CheckTransition(id, job.Status, domain.JobStatusCompleted); err != nil {
			return err
		}
		job.Status = domain.JobStatusCompleted
		job.Result = result
		job.Error = ""
		return nil
	})
}

// Fail implements store.JobStore.
func (s *MemoryStore) Fail(ctx context.Context, id uuid.UUID, errMsg string) error {
	return s.update(id, func(job *domain.Job) error {
		if err := store.CheckTransition(id, job.Status, domain.JobStatusFailed); err != nil {
			return err
		}
		job.Status = domain.JobStatusFailed
		job.Error = errMsg
		return nil
	})
}

func (s *MemoryStore) update(id uuid.UUID, fn func(job *domain.Job) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return store.ErrJobNotFound
	}
	if err := fn(job); err != nil {
		return err
	}
	job.UpdatedAt = s.now()
	return nil
}

// ListByStatus implements store.JobStore.
func (s *MemoryStore) ListByStatus(ctx context.Context, status domain.JobStatus, olderThan time.Duration) ([]*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := s.now().Add(-olderThan)
	jobs := make([]*domain.Job, 0)
	for _, job := range s.jobs {
		if job.Status != status {
			continue
		}
		if olderThan > 0 && job.UpdatedAt.After(cutoff) {
			continue
		}
		jobs = append(jobs, cloneJob(job))
	}

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
	})
	return jobs, nil
}

// cloneJob copies the job so callers cannot mutate stored state. The
// transcript is shared; it is never modified after completion.
func cloneJob(job *domain.Job) *domain.Job {
	c := *job
	return &c
}
