package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/phrazzld/audio2srt/internal/config"
	"github.com/phrazzld/audio2srt/internal/domain"
	"github.com/phrazzld/audio2srt/internal/transcribe"
	"google.golang.org/genai"
)

const promptText = `Transcribe the attached audio verbatim.
{{- if .Language}}
The audio is spoken in the language with ISO 639-1 code "{{.Language}}".
{{- else}}
Detect the spoken language and report its ISO 639-1 code.
{{- end}}
Split the transcript into short segments of at most two sentences each.
Give every segment its start and end time in seconds from the beginning of the audio.
Do not translate, summarize, or add speaker labels.`

var promptTemplate = template.Must(template.New("transcribe").Parse(promptText))

// contentGenerator is the subset of *genai.Models used by the engine.
type contentGenerator interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// Engine implements transcribe.Engine using the Gemini API.
type Engine struct {
	// logger is used for structured logging
	logger *slog.Logger

	// config contains retry and model settings
	config config.GeminiConfig

	// models makes the generate requests
	models contentGenerator

	// model is the name of the Gemini model to use
	model string

	// wait sleeps between retries; replaced in tests
	wait func(ctx context.Context, d time.Duration) error
}

var _ transcribe.Engine = (*Engine)(nil)

// NewEngine creates an Engine with a real genai client.
func NewEngine(ctx context.Context, logger *slog.Logger, cfg config.GeminiConfig) (*Engine, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", ErrInvalidConfig, err)
	}

	return newEngine(logger, cfg, client.Models)
}

func newEngine(logger *slog.Logger, cfg config.GeminiConfig, models contentGenerator) (*Engine, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if models == nil {
		return nil, errors.New("gemini client cannot be nil")
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", ErrInvalidConfig)
	}

	return &Engine{
		logger: logger.With("component", "gemini_engine"),
		config: cfg,
		models: models,
		model:  cfg.ModelName,
		wait:   sleepContext,
	}, nil
}

// Name implements transcribe.Engine.
func (e *Engine) Name() string {
	return "gemini/" + e.model
}

// Transcribe implements transcribe.Engine.
func (e *Engine) Transcribe(ctx context.Context, req transcribe.Request) (*domain.Transcript, error) {
	info, err := os.Stat(req.AudioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat audio: %w", err)
	}
	if info.Size() > MaxInlineBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrAudioTooLarge, info.Size())
	}

	audio, err := os.ReadFile(req.AudioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio: %w", err)
	}

	prompt, err := createPrompt(req.Language)
	if err != nil {
		return nil, err
	}

	contents := []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			{InlineData: &genai.Blob{Data: audio, MIMEType: MIMEType(req.AudioPath)}},
			{Text: prompt},
		},
	}}

	response, err := e.callWithRetry(ctx, contents)
	if err != nil {
		return nil, err
	}

	return parseResponse(response, req.Language)
}

func createPrompt(language string) (string, error) {
	var buf bytes.Buffer
	if err := promptTemplate.Execute(&buf, promptData{Language: language}); err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}
	return buf.String(), nil
}

func (e *Engine) generateConfig() *genai.GenerateContentConfig {
	temperature := float32(0)
	return &genai.GenerateContentConfig{
		Temperature:      &temperature,
		ResponseMIMEType: "application/json",
		ResponseSchema:   responseSchema(),
	}
}

// callWithRetry makes a call to the Gemini API with exponential backoff.
// Blocked content and unparseable responses are returned immediately.
func (e *Engine) callWithRetry(ctx context.Context, contents []*genai.Content) (*ResponseSchema, error) {
	maxRetries := e.config.MaxRetries
	baseDelaySeconds := e.config.RetryDelaySeconds

	if maxRetries < 0 {
		e.logger.WarnContext(ctx, "Invalid max retries value, using default", "max_retries", 3)
		maxRetries = 3
	}
	if baseDelaySeconds < 1 {
		baseDelaySeconds = 1
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	for attempt := 0; ; attempt++ {
		attemptNum := attempt + 1
		e.logger.InfoContext(ctx, "Making Gemini API call",
			"attempt", attemptNum,
			"max_attempts", maxRetries+1)

		resp, err := e.models.GenerateContent(ctx, e.model, contents, e.generateConfig())
		if err == nil {
			var parsed *ResponseSchema
			parsed, err = decodeResponse(resp)
			if err == nil {
				e.logger.InfoContext(ctx, "Gemini API call successful", "attempt", attemptNum)
				return parsed, nil
			}
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		e.logger.ErrorContext(ctx, "Gemini API call failed",
			"attempt", attemptNum,
			"error", err)

		if errors.Is(err, ErrContentBlocked) || errors.Is(err, ErrInvalidResponse) {
			e.logger.WarnContext(ctx, "Permanent error occurred, not retrying", "error_type", err)
			return nil, err
		}

		if attempt >= maxRetries {
			e.logger.WarnContext(ctx, "Maximum retry attempts reached", "max_retries", maxRetries)
			return nil, fmt.Errorf("%w: exceeded maximum retry attempts (%d): %v",
				ErrTransientFailure, maxRetries, err)
		}

		// delay = baseDelay * 2^attempt * [0.5, 1.0)
		backoffSeconds := float64(baseDelaySeconds) * math.Pow(2, float64(attempt))
		delay := time.Duration(backoffSeconds * (0.5 + rng.Float64()*0.5) * float64(time.Second))

		e.logger.InfoContext(ctx, "Retrying after delay",
			"attempt", attemptNum,
			"delay", delay)

		if err := e.wait(ctx, delay); err != nil {
			e.logger.WarnContext(ctx, "API call cancelled during retry delay",
				"attempt", attemptNum,
				"ctx_err", err)
			return nil, err
		}
	}
}

// decodeResponse extracts the structured transcript from a response.
func decodeResponse(resp *genai.GenerateContentResponse) (*ResponseSchema, error) {
	if resp == nil {
		return nil, fmt.Errorf("%w: nil response", ErrInvalidResponse)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return nil, fmt.Errorf("%w: prompt blocked (%s)", ErrContentBlocked, resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("%w: no content generated", ErrInvalidResponse)
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return nil, ErrContentBlocked
	}
	if candidate.Content == nil {
		return nil, fmt.Errorf("%w: empty content in response", ErrInvalidResponse)
	}

	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil {
			text.WriteString(part.Text)
		}
	}

	var parsed ResponseSchema
	if err := json.Unmarshal([]byte(text.String()), &parsed); err != nil {
		return nil, fmt.Errorf("%w: failed to parse JSON response: %v", ErrInvalidResponse, err)
	}
	return &parsed, nil
}

// parseResponse converts the model's segments into a transcript. A requested
// language overrides whatever the model reports. Timestamps the model gets
// wrong are clamped so that a segment never starts before zero or ends before
// it starts.
func parseResponse(response *ResponseSchema, requested string) (*domain.Transcript, error) {
	segments := make([]domain.Segment, 0, len(response.Segments))
	for i, s := range response.Segments {
		start := max(s.Start, 0)
		end := max(s.End, start)
		segments = append(segments, domain.Segment{
			ID:    i,
			Start: start,
			End:   end,
			Text:  s.Text,
		})
	}

	language := requested
	if language == "" {
		language = strings.ToLower(strings.TrimSpace(response.Language))
		if domain.ValidateLanguage(language) != nil {
			language = ""
		}
	}

	tr, err := domain.NewTranscript(language, segments)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return tr, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
