package transcribe

import (
	"context"

	"github.com/phrazzld/audio2srt/internal/domain"
)

// Request describes one engine invocation. An empty Language asks the engine
// to detect the language itself.
type Request struct {
	AudioPath string
	Language  string
}

// Engine converts an audio file into a transcript.
type Engine interface {
	// Name identifies the engine and model, and is part of cache keys.
	Name() string

	// Transcribe runs recognition on req.AudioPath. It must honor ctx
	// cancellation and must not remove the input file.
	Transcribe(ctx context.Context, req Request) (*domain.Transcript, error)
}

// WAVRequirer is implemented by engines that only accept 16 kHz mono WAV.
type WAVRequirer interface {
	NeedsWAV() bool
}

// Converter normalizes arbitrary audio or video into 16 kHz mono PCM WAV.
type Converter interface {
	ToWAV(ctx context.Context, inputPath, outputPath string) error
}

// Cache stores finished transcripts by content key. Implementations return an
// error wrapping ErrCacheMiss when the key is absent.
type Cache interface {
	Get(ctx context.Context, key string) (*domain.Transcript, error)
	Set(ctx context.Context, key string, tr *domain.Transcript) error
}
