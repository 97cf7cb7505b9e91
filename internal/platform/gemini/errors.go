package gemini

import "errors"

// Error definitions for the gemini package.
var (
	// ErrInvalidConfig is returned when the engine is constructed without an
	// API key or model name.
	ErrInvalidConfig = errors.New("invalid gemini configuration")

	// ErrAudioTooLarge is returned when the audio exceeds the inline request limit.
	ErrAudioTooLarge = errors.New("audio too large for inline request")

	// ErrInvalidResponse is returned when the API answers with no usable content.
	ErrInvalidResponse = errors.New("invalid response from gemini")

	// ErrContentBlocked is returned when the request or response was blocked
	// by safety filters.
	ErrContentBlocked = errors.New("content blocked by gemini safety filters")

	// ErrTransientFailure is returned once retries are exhausted.
	ErrTransientFailure = errors.New("gemini transient failure")
)
