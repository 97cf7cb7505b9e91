package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/phrazzld/audio2srt/internal/domain"
	"github.com/phrazzld/audio2srt/internal/platform/logger"
	"github.com/phrazzld/audio2srt/internal/transcribe"
)

// UploadTranscriber transcribes a single upload synchronously.
type UploadTranscriber interface {
	TranscribeUpload(ctx context.Context, up transcribe.Upload) (*domain.Transcript, error)
}

// TranscribeHandler handles synchronous transcription requests.
type TranscribeHandler struct {
	transcriber    UploadTranscriber
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewTranscribeHandler creates a new TranscribeHandler. maxUploadBytes of
// zero disables the body limit.
func NewTranscribeHandler(
	transcriber UploadTranscriber,
	maxUploadBytes int64,
	logger *slog.Logger,
) *TranscribeHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for TranscribeHandler")
	}

	return &TranscribeHandler{
		transcriber:    transcriber,
		maxUploadBytes: maxUploadBytes,
		logger:         logger.With(slog.String("component", "transcribe_handler")),
	}
}

// Transcribe handles POST /transcribe.
// It reads the multipart "file" field, transcribes it, and renders the
// transcript as JSON or subtitles depending on the "format" parameter.
func (h *TranscribeHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	up, ok := readUpload(w, r, h.maxUploadBytes)
	if !ok {
		return
	}
	defer cleanupMultipart(r)
	defer up.Close()

	format, err := parseFormat(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	log.Debug("transcribing upload",
		slog.String("format", string(format)),
		slog.String("language", up.language))

	tr, err := h.transcriber.TranscribeUpload(r.Context(), up.toTranscribe())
	if err != nil {
		HandleAPIError(w, r, err, "Transcription failed")
		return
	}

	writeTranscript(w, r, http.StatusOK, tr, format, up.filename)
}
