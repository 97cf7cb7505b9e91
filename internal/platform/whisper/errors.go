package whisper

import "errors"

// Error definitions for the whisper package.
var (
	// ErrModelNotFound is returned when the ggml model file is missing.
	ErrModelNotFound = errors.New("whisper model file not found")

	// ErrBinaryNotFound is returned when whisper-cli cannot be executed.
	ErrBinaryNotFound = errors.New("whisper binary not found")

	// ErrEngineFailed is returned when whisper-cli exits unsuccessfully.
	ErrEngineFailed = errors.New("whisper engine failed")

	// ErrInvalidOutput is returned when the JSON output cannot be parsed.
	ErrInvalidOutput = errors.New("invalid whisper output")
)
