package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/phrazzld/audio2srt/internal/api/shared"
	"github.com/phrazzld/audio2srt/internal/domain"
	"github.com/phrazzld/audio2srt/internal/events"
	"github.com/phrazzld/audio2srt/internal/platform/logger"
	"github.com/phrazzld/audio2srt/internal/redact"
	"github.com/phrazzld/audio2srt/internal/subtitle"
	"github.com/phrazzld/audio2srt/internal/transcribe"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10
)

// JobSubmitter accepts uploads for background transcription.
type JobSubmitter interface {
	SubmitUpload(ctx context.Context, up transcribe.Upload) (*domain.Job, error)
}

// JobReader looks up jobs by ID.
type JobReader interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Job, error)
}

// JobSubscriber streams status events for a job.
type JobSubscriber interface {
	Subscribe(jobID uuid.UUID) (<-chan *events.JobEvent, func())
}

// JobHandler handles the asynchronous job endpoints.
type JobHandler struct {
	submitter      JobSubmitter
	jobs           JobReader
	subscriber     JobSubscriber
	upgrader       websocket.Upgrader
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewJobHandler creates a new JobHandler.
func NewJobHandler(
	submitter JobSubmitter,
	jobs JobReader,
	subscriber JobSubscriber,
	maxUploadBytes int64,
	logger *slog.Logger,
) *JobHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for JobHandler")
	}

	return &JobHandler{
		submitter:  submitter,
		jobs:       jobs,
		subscriber: subscriber,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origins are governed by the CORS policy on the router.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		maxUploadBytes: maxUploadBytes,
		logger:         logger.With(slog.String("component", "job_handler")),
	}
}

// CreateJob handles POST /jobs.
// It spools the upload and returns 202 with the new job's ID.
func (h *JobHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	up, ok := readUpload(w, r, h.maxUploadBytes)
	if !ok {
		return
	}
	defer cleanupMultipart(r)
	defer up.Close()

	job, err := h.submitter.SubmitUpload(r.Context(), up.toTranscribe())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create job")
		return
	}

	log.Info("job accepted",
		slog.String("job_id", job.ID.String()),
		slog.String("subject", shared.GetSubject(r.Context())))

	w.Header().Set("Location", "/jobs/"+job.ID.String())
	shared.RespondWithJSON(w, r, http.StatusAccepted, JobCreatedResponse{
		ID:     job.ID.String(),
		Status: job.Status,
	})
}

// GetJob handles GET /jobs/{id}.
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := h.lookupJob(w, r)
	if !ok {
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, jobToResponse(job))
}

// GetSubtitles handles GET /jobs/{id}/subtitles.
// The format defaults to SubRip; 409 is returned until the job completes.
func (h *JobHandler) GetSubtitles(w http.ResponseWriter, r *http.Request) {
	format := subtitle.FormatSRT
	if name := r.URL.Query().Get("format"); name != "" {
		parsed, err := subtitle.ParseFormat(name)
		if err != nil {
			HandleAPIError(w, r, err, "")
			return
		}
		format = parsed
	}

	job, ok := h.lookupJob(w, r)
	if !ok {
		return
	}
	if job.Status != domain.JobStatusCompleted || job.Result == nil {
		HandleAPIError(w, r, ErrJobNotCompleted, "")
		return
	}

	writeTranscript(w, r, http.StatusOK, job.Result, format, job.Filename)
}

// StreamEvents handles GET /jobs/{id}/events.
// It upgrades to a websocket and sends the job's current state followed by
// every status change until the job is terminal, then closes.
func (h *JobHandler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	// Subscribe before reading the job so no transition falls between the
	// two.
	eventsCh, cancel := h.subscriber.Subscribe(id)
	defer cancel()

	job, err := h.jobs.Get(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to retrieve job")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error.
		log.Debug("websocket upgrade failed", slog.String("error", redact.Error(err)))
		return
	}
	defer conn.Close()

	done := make(chan struct{})
	go h.readPump(conn, done)

	last := events.NewJobEvent(job.ID, job.Status, job.Error)
	if err := writeEvent(conn, last); err != nil {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for !last.Terminal() {
		select {
		case ev, ok := <-eventsCh:
			if !ok {
				// The hub closed the subscription; report whatever the store
				// holds in case the terminal event was dropped.
				if job, err := h.jobs.Get(context.WithoutCancel(r.Context()), id); err == nil {
					last = events.NewJobEvent(job.ID, job.Status, job.Error)
					_ = writeEvent(conn, last)
				}
				closeConn(conn)
				return
			}
			last = ev
			if err := writeEvent(conn, ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			log.Debug("websocket client disconnected", slog.String("job_id", id.String()))
			return
		}
	}

	closeConn(conn)
}

// readPump drains client frames so control messages are processed, and
// closes done when the peer goes away.
func (h *JobHandler) readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read error", slog.String("error", redact.Error(err)))
			}
			return
		}
	}
}

// lookupJob resolves the {id} path parameter to a job, writing the error
// response when it cannot.
func (h *JobHandler) lookupJob(w http.ResponseWriter, r *http.Request) (*domain.Job, bool) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return nil, false
	}

	job, err := h.jobs.Get(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to retrieve job")
		return nil, false
	}
	return job, true
}

func writeEvent(conn *websocket.Conn, ev *events.JobEvent) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(ev)
}

func closeConn(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "job finished")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
