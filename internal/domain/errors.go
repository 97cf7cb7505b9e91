package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidSegment is returned when a segment's timing is impossible.
	ErrInvalidSegment = errors.New("invalid segment")

	// ErrInvalidLanguage is returned for a language that is not an ISO 639 code.
	ErrInvalidLanguage = errors.New("invalid language code")

	// ErrInvalidJobStatus is returned when a job status is not valid.
	ErrInvalidJobStatus = errors.New("invalid job status")

	// ErrEmptyAudioPath is returned when a job has no spooled audio.
	ErrEmptyAudioPath = errors.New("audio path cannot be empty")
)
