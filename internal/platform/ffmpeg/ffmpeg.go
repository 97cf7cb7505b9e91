// Package ffmpeg normalizes uploaded audio and video into the 16 kHz mono PCM
// WAV that whisper.cpp expects, by shelling out to the ffmpeg binary installed
// in the runtime image.
package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/phrazzld/audio2srt/internal/redact"
)

// Error definitions for the ffmpeg package.
var (
	// ErrFFmpegNotFound is returned when the configured binary cannot be executed.
	ErrFFmpegNotFound = errors.New("ffmpeg binary not found")

	// ErrConvert is returned when ffmpeg exits unsuccessfully.
	ErrConvert = errors.New("ffmpeg conversion failed")
)

// SampleRate is the rate whisper models are trained on.
const SampleRate = 16000

// maxStderr bounds how much ffmpeg diagnostics are kept for logging.
const maxStderr = 4 << 10

// Converter runs ffmpeg.
type Converter struct {
	binary string
	logger *slog.Logger
}

// NewConverter creates a Converter for the given binary path or name.
func NewConverter(binary string, logger *slog.Logger) *Converter {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &Converter{
		binary: binary,
		logger: logger.With("component", "ffmpeg"),
	}
}

// Available reports whether the binary can be found on PATH or at its path.
func (c *Converter) Available() bool {
	_, err := exec.LookPath(c.binary)
	return err == nil
}

// Args returns the ffmpeg argument list for converting in to out.
func Args(in, out string) []string {
	return []string{
		"-nostdin", "-hide_banner", "-loglevel", "error", "-y",
		"-i", in,
		"-vn",
		"-ar", fmt.Sprint(SampleRate),
		"-ac", "1",
		"-c:a", "pcm_s16le",
		out,
	}
}

// ToWAV converts inputPath to a 16 kHz mono WAV at outputPath.
func (c *Converter) ToWAV(ctx context.Context, inputPath, outputPath string) error {
	cmd := exec.CommandContext(ctx, c.binary, Args(inputPath, outputPath)...)
	var stderr bytes.Buffer
	cmd.Stderr = &limitedWriter{buf: &stderr, max: maxStderr}

	start := time.Now()
	err := cmd.Run()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrFFmpegNotFound, c.binary)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		c.logger.ErrorContext(ctx, "ffmpeg exited with error",
			"error", err,
			"stderr", redact.String(strings.TrimSpace(stderr.String())))
		return fmt.Errorf("%w: %v", ErrConvert, err)
	}

	c.logger.DebugContext(ctx, "audio normalized", "duration_ms", time.Since(start).Milliseconds())
	return nil
}

// limitedWriter keeps the first max bytes written and discards the rest.
type limitedWriter struct {
	buf *bytes.Buffer
	max int
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	if room := w.max - w.buf.Len(); room > 0 {
		if len(p) > room {
			w.buf.Write(p[:room])
		} else {
			w.buf.Write(p)
		}
	}
	return len(p), nil
}
