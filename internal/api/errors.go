package api

import (
	"errors"
	"net/http"

	"github.com/phrazzld/audio2srt/internal/api/shared"
	"github.com/phrazzld/audio2srt/internal/domain"
	"github.com/phrazzld/audio2srt/internal/job"
	"github.com/phrazzld/audio2srt/internal/service/auth"
	"github.com/phrazzld/audio2srt/internal/store"
	"github.com/phrazzld/audio2srt/internal/subtitle"
	"github.com/phrazzld/audio2srt/internal/transcribe"
)

// ErrJobNotCompleted is returned when subtitles are requested for a job that
// has not finished successfully.
var ErrJobNotCompleted = errors.New("job has not completed")

const genericErrorMessage = "An unexpected error occurred"

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Authentication errors
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrInvalidAPIKey):
		return http.StatusUnauthorized

	// Not found errors
	case errors.Is(err, store.ErrJobNotFound):
		return http.StatusNotFound

	// Conflict errors
	case errors.Is(err, ErrJobNotCompleted):
		return http.StatusConflict

	// Bad request errors
	case errors.Is(err, domain.ErrInvalidLanguage),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, subtitle.ErrUnknownFormat),
		errors.Is(err, transcribe.ErrEmptyUpload),
		errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	// Back-pressure
	case errors.Is(err, job.ErrQueueFull),
		errors.Is(err, job.ErrRunnerStopped):
		return http.StatusServiceUnavailable

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return genericErrorMessage
	}

	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return "Token expired"

	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrTokenNotYetValid):
		return "Invalid token"

	case errors.Is(err, auth.ErrMissingToken):
		return "Authorization header required"

	case errors.Is(err, auth.ErrInvalidAPIKey):
		return "Invalid API key"

	case errors.Is(err, store.ErrJobNotFound):
		return "Job not found"

	case errors.Is(err, ErrJobNotCompleted):
		return "Job has not completed"

	case errors.Is(err, domain.ErrInvalidLanguage):
		return "Invalid language code"

	case errors.Is(err, subtitle.ErrUnknownFormat):
		return "Unknown output format"

	case errors.Is(err, transcribe.ErrEmptyUpload):
		return "Uploaded file is empty"

	case errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, domain.ErrValidation):
		return "Invalid request data"

	case errors.Is(err, job.ErrQueueFull):
		return "Job queue is full, try again later"

	case errors.Is(err, job.ErrRunnerStopped):
		return "Server is shutting down"

	case errors.Is(err, transcribe.ErrSaveUpload):
		return "Failed to save uploaded file"

	case errors.Is(err, transcribe.ErrConversionFailed):
		return "Audio conversion failed"

	case errors.Is(err, transcribe.ErrTranscriptionFailed):
		return "Transcription failed"

	default:
		return genericErrorMessage
	}
}

// HandleAPIError writes the status and safe message for err, logging the
// redacted cause. defaultMsg replaces the generic message when set.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, defaultMsg string) {
	status := MapErrorToStatusCode(err)
	message := GetSafeErrorMessage(err)
	if defaultMsg != "" && message == genericErrorMessage {
		message = defaultMsg
	}
	shared.RespondWithErrorAndLog(w, r, status, message, err)
}
