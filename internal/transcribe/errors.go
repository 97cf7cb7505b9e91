package transcribe

import "errors"

// Error definitions for the transcribe package.
var (
	// ErrSaveUpload is returned when the uploaded audio cannot be written to disk.
	ErrSaveUpload = errors.New("failed to save uploaded file")

	// ErrEmptyUpload is returned for an upload with no bytes.
	ErrEmptyUpload = errors.New("uploaded file is empty")

	// ErrConversionFailed is returned when audio normalization fails.
	ErrConversionFailed = errors.New("audio conversion failed")

	// ErrTranscriptionFailed is returned when the engine fails.
	ErrTranscriptionFailed = errors.New("transcription failed")

	// ErrCacheMiss is returned by Cache implementations for absent keys.
	ErrCacheMiss = errors.New("transcript not cached")
)
