package whisper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/phrazzld/audio2srt/internal/config"
	"github.com/phrazzld/audio2srt/internal/domain"
	"github.com/phrazzld/audio2srt/internal/platform/logger"
	"github.com/phrazzld/audio2srt/internal/redact"
	"github.com/phrazzld/audio2srt/internal/transcribe"
)

// Engine runs whisper-cli for each transcription.
type Engine struct {
	binary    string
	model     string
	modelPath string
	threads   int
	logger    *slog.Logger
}

var _ transcribe.Engine = (*Engine)(nil)

// ModelPath returns the conventional ggml file name for a model size.
func ModelPath(dir, model string) string {
	return filepath.Join(dir, "ggml-"+model+".bin")
}

// NewEngine creates an Engine from config. The model file must exist so that
// a bad deployment fails at startup rather than on the first request.
func NewEngine(cfg config.WhisperConfig, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	modelPath := ModelPath(cfg.ModelDir, cfg.Model)
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, modelPath)
	}

	binary := cfg.BinaryPath
	if binary == "" {
		binary = "whisper-cli"
	}

	logger.Info("Loading Whisper model", "model", cfg.Model, "path", modelPath)

	return &Engine{
		binary:    binary,
		model:     cfg.Model,
		modelPath: modelPath,
		threads:   cfg.Threads,
		logger:    logger.With("component", "whisper_engine"),
	}, nil
}

// Name implements transcribe.Engine.
func (e *Engine) Name() string {
	return "whispercpp/" + e.model
}

// NeedsWAV implements transcribe.WAVRequirer.
func (e *Engine) NeedsWAV() bool {
	return true
}

// args builds the whisper-cli argument list.
func (e *Engine) args(audioPath, outBase, language string) []string {
	if language == "" {
		language = "auto"
	}
	args := []string{
		"-m", e.modelPath,
		"-f", audioPath,
		"-l", language,
		"-oj",
		"-of", outBase,
		"-np",
	}
	if e.threads > 0 {
		args = append(args, "-t", strconv.Itoa(e.threads))
	}
	return args
}

// Transcribe implements transcribe.Engine.
func (e *Engine) Transcribe(ctx context.Context, req transcribe.Request) (*domain.Transcript, error) {
	log := logger.FromContext(ctx).With("component", "whisper_engine", "model", e.model)

	outBase := strings.TrimSuffix(req.AudioPath, filepath.Ext(req.AudioPath)) + ".whisper"
	outPath := outBase + ".json"
	defer func() {
		if err := os.Remove(outPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn("failed to remove whisper output", "error", redact.Error(err))
		}
	}()

	cmd := exec.CommandContext(ctx, e.binary, e.args(req.AudioPath, outBase, req.Language)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrBinaryNotFound, e.binary)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		log.Error("whisper-cli exited with error",
			"error", err,
			"stderr", redact.String(tail(stderr.String(), 2048)))
		return nil, fmt.Errorf("%w: %v", ErrEngineFailed, err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("%w: reading output: %v", ErrInvalidOutput, err)
	}

	tr, err := ParseOutput(data)
	if err != nil {
		return nil, err
	}

	log.Debug("whisper-cli finished",
		"duration_ms", time.Since(start).Milliseconds(),
		"detected_language", tr.Language)
	return tr, nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
