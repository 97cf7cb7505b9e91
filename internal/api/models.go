package api

import (
	"time"

	"github.com/phrazzld/audio2srt/internal/domain"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// SegmentResponse is one timed segment of a transcript.
type SegmentResponse struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// TranscriptResponse is the JSON rendering of a transcript.
type TranscriptResponse struct {
	Text     string            `json:"text"`
	Segments []SegmentResponse `json:"segments"`
	Language string            `json:"language,omitempty"`
}

// JobCreatedResponse is returned when a job is accepted.
type JobCreatedResponse struct {
	ID     string           `json:"id"`
	Status domain.JobStatus `json:"status"`
}

// JobResponse describes a job and, once completed, its transcript.
type JobResponse struct {
	ID        string              `json:"id"`
	Status    domain.JobStatus    `json:"status"`
	Filename  string              `json:"filename"`
	Language  string              `json:"language,omitempty"`
	Result    *TranscriptResponse `json:"result,omitempty"`
	Error     string              `json:"error,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

func transcriptToResponse(tr *domain.Transcript) *TranscriptResponse {
	if tr == nil {
		return nil
	}
	segments := make([]SegmentResponse, 0, len(tr.Segments))
	for _, seg := range tr.Segments {
		segments = append(segments, SegmentResponse{
			ID:    seg.ID,
			Start: seg.Start,
			End:   seg.End,
			Text:  seg.Text,
		})
	}
	return &TranscriptResponse{
		Text:     tr.Text,
		Segments: segments,
		Language: tr.Language,
	}
}

func jobToResponse(job *domain.Job) JobResponse {
	return JobResponse{
		ID:        job.ID.String(),
		Status:    job.Status,
		Filename:  job.Filename,
		Language:  job.Language,
		Result:    transcriptToResponse(job.Result),
		Error:     job.Error,
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	}
}
