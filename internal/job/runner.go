package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/audio2srt/internal/domain"
	"github.com/phrazzld/audio2srt/internal/events"
	"github.com/phrazzld/audio2srt/internal/platform/logger"
	"github.com/phrazzld/audio2srt/internal/redact"
	"github.com/phrazzld/audio2srt/internal/store"
	"github.com/phrazzld/audio2srt/internal/transcribe"
)

// Errors returned by the Runner.
var (
	ErrQueueFull     = errors.New("job queue is full")
	ErrRunnerStopped = errors.New("job runner is stopped")
)

// Transcriber is the part of transcribe.Service the runner needs.
type Transcriber interface {
	ResolveLanguage(requested string) (string, error)
	TranscribeFile(ctx context.Context, path, language string) (*domain.Transcript, error)
}

// RunnerConfig holds configuration for the job runner
type RunnerConfig struct {
	// WorkerCount determines how many jobs are processed concurrently
	WorkerCount int

	// QueueSize determines the buffer size for the in-memory job queue
	QueueSize int

	// SpoolDir is where uploads wait until a worker picks them up
	SpoolDir string

	// StuckJobAge defines how long a job can be processing before it is
	// considered stuck and requeued
	StuckJobAge time.Duration

	// StuckJobCheckInterval defines how often to check for stuck jobs.
	// If zero, defaults to 5 minutes
	StuckJobCheckInterval time.Duration
}

// DefaultRunnerConfig returns a RunnerConfig with reasonable defaults
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		WorkerCount:           1,
		QueueSize:             100,
		SpoolDir:              os.TempDir(),
		StuckJobAge:           30 * time.Minute,
		StuckJobCheckInterval: 5 * time.Minute,
	}
}

// Runner manages background transcription jobs
type Runner struct {
	store       store.JobStore
	transcriber Transcriber
	emitter     events.EventEmitter
	queue       chan uuid.UUID
	ctx         context.Context
	cancelFunc  context.CancelFunc
	wg          sync.WaitGroup
	config      RunnerConfig
	logger      *slog.Logger

	mu      sync.RWMutex
	stopped bool
}

// NewRunner creates a new Runner. emitter may be nil.
func NewRunner(
	jobStore store.JobStore,
	transcriber Transcriber,
	emitter events.EventEmitter,
	config RunnerConfig,
	logger *slog.Logger,
) *Runner {
	if config.StuckJobCheckInterval == 0 {
		config.StuckJobCheckInterval = 5 * time.Minute
	}
	if config.WorkerCount <= 0 {
		logger.Warn("invalid worker count specified, using default",
			"specified_count", config.WorkerCount,
			"default_count", 1)
		config.WorkerCount = 1
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 1
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Runner{
		store:       jobStore,
		transcriber: transcriber,
		emitter:     emitter,
		queue:       make(chan uuid.UUID, config.QueueSize),
		ctx:         ctx,
		cancelFunc:  cancel,
		config:      config,
		logger:      logger.With("component", "job_runner"),
	}
}

// SubmitUpload spools an upload and submits it as a new job.
func (r *Runner) SubmitUpload(ctx context.Context, up transcribe.Upload) (*domain.Job, error) {
	lang, err := r.transcriber.ResolveLanguage(up.Language)
	if err != nil {
		return nil, err
	}

	path, err := transcribe.SaveUpload(r.config.SpoolDir, up.Filename, up.Body)
	if err != nil {
		return nil, err
	}

	job, err := domain.NewJob(up.Filename, lang, path)
	if err != nil {
		r.removeSpool(ctx, path)
		return nil, err
	}

	if err := r.Submit(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// Submit persists a job, then adds it to the queue. When the queue is full
// the job is marked failed, its audio removed, and ErrQueueFull returned.
func (r *Runner) Submit(ctx context.Context, job *domain.Job) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.stopped {
		r.removeSpool(ctx, job.AudioPath)
		return ErrRunnerStopped
	}

	if err := r.store.Create(ctx, job); err != nil {
		r.removeSpool(ctx, job.AudioPath)
		return fmt.Errorf("failed to save job: %w", err)
	}
	r.emit(ctx, job.ID, domain.JobStatusPending, "")

	select {
	case r.queue <- job.ID:
		logger.FromContext(ctx).Info("job queued",
			"job_id", job.ID,
			"queue_len", len(r.queue),
			"queue_cap", cap(r.queue))
		return nil
	default:
		msg := "job queue is full, try again later"
		if err := r.store.Fail(ctx, job.ID, msg); err != nil {
			r.logger.Error("failed to mark rejected job failed", "job_id", job.ID, "error", err)
		}
		r.emit(ctx, job.ID, domain.JobStatusFailed, msg)
		r.removeSpool(ctx, job.AudioPath)
		return fmt.Errorf("%w: queue capacity %d reached", ErrQueueFull, cap(r.queue))
	}
}

// Start starts the workers and stuck-job monitor, then feeds unfinished jobs
// from a previous run back into the queue. Recovered jobs are enqueued in the
// background so a backlog larger than the queue waits for free slots instead
// of being dropped.
func (r *Runner) Start() error {
	recovered, err := r.Recover()
	if err != nil {
		return fmt.Errorf("failed to recover jobs: %w", err)
	}

	for i := 0; i < r.config.WorkerCount; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}

	r.wg.Add(1)
	go r.stuckJobMonitor()

	if len(recovered) > 0 {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			for _, id := range recovered {
				if !r.requeue(id, "recovered") {
					return
				}
			}
		}()
	}

	return nil
}

// Stop cancels in-flight work and waits for workers to exit. Jobs left in
// the queue stay pending in the store and are recovered on the next start.
func (r *Runner) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	r.mu.Unlock()

	r.cancelFunc()
	r.wg.Wait()
}

// Recover resets jobs that were processing when the previous process exited
// back to pending, and returns the IDs of all unfinished jobs, pending ones
// first.
func (r *Runner) Recover() ([]uuid.UUID, error) {
	ctx := r.ctx

	pending, err := r.store.ListByStatus(ctx, domain.JobStatusPending, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending jobs: %w", err)
	}

	processing, err := r.store.ListByStatus(ctx, domain.JobStatusProcessing, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to get processing jobs: %w", err)
	}

	r.logger.Info("recovering unfinished jobs",
		"pending_count", len(pending),
		"processing_count", len(processing))

	ids := make([]uuid.UUID, 0, len(pending)+len(processing))
	for _, job := range pending {
		ids = append(ids, job.ID)
	}
	for _, job := range processing {
		if err := r.store.UpdateStatus(ctx, job.ID, domain.JobStatusPending, "reset after recovery"); err != nil {
			if !errors.Is(err, store.ErrJobFinished) {
				r.logger.Error("failed to reset processing job status", "job_id", job.ID, "error", err)
			}
			continue
		}
		ids = append(ids, job.ID)
	}

	return ids, nil
}

// requeue blocks until id is in the queue or the runner stops, and reports
// whether it was queued.
func (r *Runner) requeue(id uuid.UUID, reason string) bool {
	select {
	case r.queue <- id:
		r.logger.Info("requeued job", "job_id", id, "reason", reason)
		return true
	case <-r.ctx.Done():
		r.logger.Warn("runner stopped before job was requeued", "job_id", id, "reason", reason)
		return false
	}
}

// worker processes jobs from the queue
func (r *Runner) worker(id int) {
	defer r.wg.Done()

	r.logger.Debug("starting worker", "worker_id", id)

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Debug("stopping worker", "worker_id", id)
			return
		case jobID := <-r.queue:
			r.process(jobID, id)
		}
	}
}

// process runs one job to a terminal state.
func (r *Runner) process(jobID uuid.UUID, workerID int) {
	log := r.logger.With("job_id", jobID, "worker_id", workerID)
	ctx := logger.WithLogger(r.ctx, log)

	job, err := r.store.Get(ctx, jobID)
	if err != nil {
		log.Error("failed to load job", "error", err)
		return
	}
	if job.Status.IsTerminal() {
		log.Debug("skipping finished job", "status", job.Status)
		return
	}

	if err := r.store.UpdateStatus(ctx, jobID, domain.JobStatusProcessing, ""); err != nil {
		if errors.Is(err, store.ErrJobFinished) {
			log.Debug("skipping job that finished while queued")
			return
		}
		log.Error("failed to update job status to processing", "error", err)
		return
	}
	r.emit(ctx, jobID, domain.JobStatusProcessing, "")
	log.Info("processing job", "filename", job.Filename, "language", job.Language)

	lang := job.Language
	if lang == "" {
		lang = "auto"
	}

	start := time.Now()
	result, err := r.transcriber.TranscribeFile(ctx, job.AudioPath, lang)
	if err != nil {
		if r.ctx.Err() != nil {
			// Shutting down: leave the job processing so that recovery
			// picks it up, and keep the spooled audio.
			log.Warn("job interrupted by shutdown")
			return
		}
		msg := failureMessage(err)
		if updateErr := r.store.Fail(ctx, jobID, msg); updateErr != nil {
			if errors.Is(updateErr, store.ErrJobFinished) {
				// Another run of the same job already finished it.
				log.Warn("discarding failure for job that already finished", "error", redact.Error(err))
				r.removeSpool(ctx, job.AudioPath)
				return
			}
			log.Error("failed to update job status to failed", "error", updateErr)
		}
		log.Error("job failed", "error", redact.Error(err))
		r.emit(ctx, jobID, domain.JobStatusFailed, msg)
		r.removeSpool(ctx, job.AudioPath)
		return
	}

	if err := r.store.Complete(ctx, jobID, result); err != nil {
		if errors.Is(err, store.ErrJobFinished) {
			log.Warn("discarding result for job that already finished", "error", err)
			r.removeSpool(ctx, job.AudioPath)
			return
		}
		log.Error("failed to store job result", "error", err)
		return
	}
	log.Info("job completed",
		"segments", len(result.Segments),
		"duration_ms", time.Since(start).Milliseconds())
	r.emit(ctx, jobID, domain.JobStatusCompleted, "")
	r.removeSpool(ctx, job.AudioPath)
}

// failureMessage turns an error into the message stored on a failed job.
// Only the outermost sentinel is exposed.
func failureMessage(err error) string {
	switch {
	case errors.Is(err, transcribe.ErrConversionFailed):
		return "Audio conversion failed"
	case errors.Is(err, domain.ErrInvalidLanguage):
		return "Invalid language"
	case errors.Is(err, os.ErrNotExist):
		return "Spooled audio is missing"
	default:
		return "Transcription failed"
	}
}

// stuckJobMonitor periodically requeues jobs that have been processing for
// longer than StuckJobAge.
func (r *Runner) stuckJobMonitor() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.StuckJobCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.resetStuckJobs()
		}
	}
}

func (r *Runner) resetStuckJobs() {
	ctx := r.ctx

	stuck, err := r.store.ListByStatus(ctx, domain.JobStatusProcessing, r.config.StuckJobAge)
	if err != nil {
		r.logger.Error("failed to check for stuck jobs", "error", err)
		return
	}
	if len(stuck) == 0 {
		return
	}

	r.logger.Info("found stuck jobs", "count", len(stuck))
	for _, job := range stuck {
		if err := r.store.UpdateStatus(ctx, job.ID, domain.JobStatusPending,
			"reset after being stuck in processing state"); err != nil {
			if !errors.Is(err, store.ErrJobFinished) {
				r.logger.Error("failed to reset stuck job status", "job_id", job.ID, "error", err)
			}
			continue
		}
		r.emit(ctx, job.ID, domain.JobStatusPending, "")
		if !r.requeue(job.ID, "stuck") {
			return
		}
	}
}

func (r *Runner) emit(ctx context.Context, id uuid.UUID, status domain.JobStatus, errMsg string) {
	if r.emitter == nil {
		return
	}
	if err := r.emitter.EmitEvent(ctx, events.NewJobEvent(id, status, errMsg)); err != nil {
		r.logger.Warn("failed to emit job event", "job_id", id, "status", status, "error", err)
	}
}

func (r *Runner) removeSpool(ctx context.Context, path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.FromContext(ctx).Warn("failed to remove spooled audio", "error", redact.Error(err))
	}
}
