package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the processing state of a transcription job.
type JobStatus string

// Possible job status values
const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether no further transitions will happen.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Valid reports whether s is a known status.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

// ErrEmptyJobID is returned when a job has a nil ID.
var ErrEmptyJobID = errors.New("job ID cannot be empty")

// Job is an asynchronous transcription request. The uploaded audio is spooled
// to AudioPath until the job reaches a terminal state.
type Job struct {
	ID        uuid.UUID   `json:"id"`
	Status    JobStatus   `json:"status"`
	Filename  string      `json:"filename"`
	Language  string      `json:"language,omitempty"`
	AudioPath string      `json:"-"`
	Result    *Transcript `json:"result,omitempty"`
	Error     string      `json:"error,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// NewJob creates a pending job for audio already spooled at audioPath.
func NewJob(filename, language, audioPath string) (*Job, error) {
	now := time.Now().UTC()
	job := &Job{
		ID:        uuid.New(),
		Status:    JobStatusPending,
		Filename:  filename,
		Language:  language,
		AudioPath: audioPath,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := job.Validate(); err != nil {
		return nil, err
	}
	return job, nil
}

// Validate checks if the Job has valid data.
func (j *Job) Validate() error {
	if j.ID == uuid.Nil {
		return ErrEmptyJobID
	}
	if j.AudioPath == "" {
		return ErrEmptyAudioPath
	}
	if !j.Status.Valid() {
		return ErrInvalidJobStatus
	}
	return ValidateLanguage(j.Language)
}
