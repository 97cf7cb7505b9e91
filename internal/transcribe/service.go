package transcribe

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/phrazzld/audio2srt/internal/domain"
	"github.com/phrazzld/audio2srt/internal/platform/logger"
	"github.com/phrazzld/audio2srt/internal/redact"
	"golang.org/x/sync/semaphore"
)

// DefaultSuffix is used for uploads whose filename has no usable extension.
const DefaultSuffix = ".mp3"

// ServiceConfig holds the settings the Service needs from the application config.
type ServiceConfig struct {
	// DefaultLanguage applies when a request names no language. Empty means auto-detect.
	DefaultLanguage string

	// Concurrency bounds how many engine invocations run at once.
	// If zero or negative, defaults to 1.
	Concurrency int

	// TempDir holds uploads while they are transcribed. Empty means os.TempDir().
	TempDir string
}

// Upload is an audio file received from a client.
type Upload struct {
	Filename string
	Body     io.Reader
	Language string
}

// Service coordinates temp files, the concurrency gate, conversion, caching,
// and the engine.
type Service struct {
	engine    Engine
	converter Converter
	cache     Cache
	sem       *semaphore.Weighted
	config    ServiceConfig
	logger    *slog.Logger
}

// NewService creates a Service. converter and cache may be nil.
func NewService(engine Engine, converter Converter, cache Cache, config ServiceConfig, logger *slog.Logger) (*Service, error) {
	if engine == nil {
		return nil, errors.New("engine cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if config.Concurrency <= 0 {
		logger.Warn("invalid transcription concurrency specified, using default",
			"specified", config.Concurrency,
			"default", 1)
		config.Concurrency = 1
	}
	if config.TempDir == "" {
		config.TempDir = os.TempDir()
	}

	return &Service{
		engine:    engine,
		converter: converter,
		cache:     cache,
		sem:       semaphore.NewWeighted(int64(config.Concurrency)),
		config:    config,
		logger:    logger.With("component", "transcribe_service", "engine", engine.Name()),
	}, nil
}

// EngineName returns the configured engine's name.
func (s *Service) EngineName() string {
	return s.engine.Name()
}

// ResolveLanguage applies the service default to a requested language.
func (s *Service) ResolveLanguage(requested string) (string, error) {
	return domain.ResolveLanguage(requested, s.config.DefaultLanguage)
}

// TranscribeUpload saves the upload to a temporary file, transcribes it, and
// removes the file again regardless of outcome.
func (s *Service) TranscribeUpload(ctx context.Context, up Upload) (*domain.Transcript, error) {
	lang, err := s.ResolveLanguage(up.Language)
	if err != nil {
		return nil, err
	}

	path, err := SaveUpload(s.config.TempDir, up.Filename, up.Body)
	if err != nil {
		return nil, err
	}
	defer s.remove(ctx, path)

	return s.transcribePath(ctx, path, lang)
}

// TranscribeFile transcribes audio that is already on disk, such as a spooled
// job upload. The file is left in place.
func (s *Service) TranscribeFile(ctx context.Context, path, language string) (*domain.Transcript, error) {
	lang, err := s.ResolveLanguage(language)
	if err != nil {
		return nil, err
	}
	return s.transcribePath(ctx, path, lang)
}

func (s *Service) transcribePath(ctx context.Context, path, lang string) (*domain.Transcript, error) {
	log := logger.FromContext(ctx).With("engine", s.engine.Name(), "language", lang)

	var key string
	if s.cache != nil {
		var err error
		key, err = s.cacheKey(path, lang)
		if err != nil {
			log.Warn("failed to hash audio for cache lookup", "error", redact.Error(err))
		} else if tr, err := s.cache.Get(ctx, key); err == nil {
			log.Info("transcript served from cache", "segments", len(tr.Segments))
			return tr, nil
		} else if !errors.Is(err, ErrCacheMiss) {
			log.Warn("transcript cache lookup failed", "error", redact.Error(err))
		}
	}

	waitStart := time.Now()
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for transcription slot: %w", err)
	}
	defer s.sem.Release(1)
	log.Debug("transcription slot acquired", "wait_ms", time.Since(waitStart).Milliseconds())

	input := path
	if req, ok := s.engine.(WAVRequirer); ok && req.NeedsWAV() && s.converter != nil {
		wav := strings.TrimSuffix(path, filepath.Ext(path)) + ".16k.wav"
		if err := s.converter.ToWAV(ctx, path, wav); err != nil {
			s.remove(ctx, wav)
			return nil, fmt.Errorf("%w: %w", ErrConversionFailed, err)
		}
		defer s.remove(ctx, wav)
		input = wav
	}

	start := time.Now()
	tr, err := s.engine.Transcribe(ctx, Request{AudioPath: input, Language: lang})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTranscriptionFailed, err)
	}
	if tr.Language == "" {
		tr.Language = lang
	}

	log.Info("transcription completed",
		"duration_ms", time.Since(start).Milliseconds(),
		"audio_seconds", tr.Duration,
		"segments", len(tr.Segments))

	if key != "" {
		if err := s.cache.Set(ctx, key, tr); err != nil {
			log.Warn("failed to cache transcript", "error", redact.Error(err))
		}
	}

	return tr, nil
}

// cacheKey derives a key from the audio content, the engine, and the language.
func (s *Service) cacheKey(path, lang string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	if lang == "" {
		lang = "auto"
	}
	return fmt.Sprintf("%s:%s:%s", s.engine.Name(), lang, hex.EncodeToString(h.Sum(nil))), nil
}

func (s *Service) remove(ctx context.Context, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.FromContext(ctx).Warn("failed to remove temporary audio", "error", redact.Error(err))
	}
}

// SaveUpload writes body to a new file in dir, keeping the upload's extension
// so engines and ffmpeg can sniff the container. Returns the file path.
func SaveUpload(dir, filename string, body io.Reader) (string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("%w: %w", ErrSaveUpload, err)
	}

	f, err := os.CreateTemp(dir, "upload-*"+UploadSuffix(filename))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSaveUpload, err)
	}

	n, copyErr := io.Copy(f, body)
	closeErr := f.Close()
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr == nil && n == 0 {
		copyErr = ErrEmptyUpload
	}
	if copyErr != nil {
		_ = os.Remove(f.Name())
		if errors.Is(copyErr, ErrEmptyUpload) {
			return "", copyErr
		}
		return "", fmt.Errorf("%w: %w", ErrSaveUpload, copyErr)
	}

	return f.Name(), nil
}

// UploadSuffix returns the lowercased extension of filename, or DefaultSuffix
// when the name has none or the extension is not a plain alphanumeric token.
func UploadSuffix(filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if len(ext) < 2 || len(ext) > 8 {
		return DefaultSuffix
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return DefaultSuffix
		}
	}
	return ext
}
