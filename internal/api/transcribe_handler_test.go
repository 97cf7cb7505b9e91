package api_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/phrazzld/audio2srt/internal/api"
	"github.com/phrazzld/audio2srt/internal/api/shared"
	"github.com/phrazzld/audio2srt/internal/domain"
	"github.com/phrazzld/audio2srt/internal/platform/logger"
	"github.com/phrazzld/audio2srt/internal/transcribe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTranscribeHandler(t *testing.T, fake *fakeTranscriber, maxBytes int64) *api.TranscribeHandler {
	t.Helper()
	log, _ := logger.NewTestLogger(t)
	return api.NewTranscribeHandler(fake, maxBytes, log)
}

func TestTranscribeJSON(t *testing.T) {
	fake := &fakeTranscriber{result: sampleTranscript()}
	h := newTranscribeHandler(t, fake, 1<<20)

	req := newUploadRequest(t, "/transcribe?language=hi", "talk.m4a", []byte("audio"), nil)
	rec := httptest.NewRecorder()
	h.Transcribe(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body api.TranscriptResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Hello there. General Kenobi.", body.Text)
	require.Len(t, body.Segments, 2)
	assert.Equal(t, api.SegmentResponse{ID: 0, Start: 0, End: 1.5, Text: "Hello there."}, body.Segments[0])
	assert.Equal(t, "en", body.Language)

	assert.Equal(t, "talk.m4a", fake.filename)
	assert.Equal(t, "hi", fake.language)
	assert.Equal(t, []byte("audio"), fake.body)
}

func TestTranscribeLanguageFromForm(t *testing.T) {
	fake := &fakeTranscriber{result: sampleTranscript()}
	h := newTranscribeHandler(t, fake, 1<<20)

	req := newUploadRequest(t, "/transcribe", "talk.mp3", []byte("audio"), map[string]string{"language": "de"})
	rec := httptest.NewRecorder()
	h.Transcribe(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "de", fake.language)
}

func TestTranscribeQueryLanguageWinsOverForm(t *testing.T) {
	fake := &fakeTranscriber{result: sampleTranscript()}
	h := newTranscribeHandler(t, fake, 1<<20)

	req := newUploadRequest(t, "/transcribe?language=fr", "talk.mp3", []byte("audio"), map[string]string{"language": "de"})
	rec := httptest.NewRecorder()
	h.Transcribe(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "fr", fake.language)
}

func TestTranscribeSubtitleFormats(t *testing.T) {
	tests := []struct {
		format      string
		contentType string
		filename    string
		contains    string
	}{
		{"srt", "application/x-subrip", "talk.srt", "00:00:00,000 --> 00:00:01,500\nHello there."},
		{"vtt", "text/vtt; charset=utf-8", "talk.vtt", "WEBVTT\n"},
		{"text", "text/plain; charset=utf-8", "talk.txt", "Hello there. General Kenobi.\n"},
	}

	for _, tc := range tests {
		t.Run(tc.format, func(t *testing.T) {
			fake := &fakeTranscriber{result: sampleTranscript()}
			h := newTranscribeHandler(t, fake, 1<<20)

			req := newUploadRequest(t, "/transcribe?format="+tc.format, "dir/talk.wav", []byte("audio"), nil)
			rec := httptest.NewRecorder()
			h.Transcribe(rec, req)

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tc.contentType, rec.Header().Get("Content-Type"))
			assert.Equal(t, fmt.Sprintf("attachment; filename=%q", tc.filename), rec.Header().Get("Content-Disposition"))
			assert.Contains(t, rec.Body.String(), tc.contains)
		})
	}
}

func TestTranscribeMissingFile(t *testing.T) {
	fake := &fakeTranscriber{result: sampleTranscript()}
	h := newTranscribeHandler(t, fake, 1<<20)

	req := newUploadRequest(t, "/transcribe", "", nil, map[string]string{"language": "en"})
	rec := httptest.NewRecorder()
	h.Transcribe(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body shared.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Error, "file")
}

func TestTranscribeNotMultipart(t *testing.T) {
	fake := &fakeTranscriber{result: sampleTranscript()}
	h := newTranscribeHandler(t, fake, 1<<20)

	req := httptest.NewRequest(http.MethodPost, "/transcribe", strings.NewReader(`{"file":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.Transcribe(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTranscribeUploadTooLarge(t *testing.T) {
	fake := &fakeTranscriber{result: sampleTranscript()}
	h := newTranscribeHandler(t, fake, 1<<10)

	req := newUploadRequest(t, "/transcribe", "big.mp3", make([]byte, 64<<10), nil)
	rec := httptest.NewRecorder()
	h.Transcribe(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Empty(t, fake.filename, "transcriber must not be called")
}

func TestTranscribeUnknownFormat(t *testing.T) {
	fake := &fakeTranscriber{result: sampleTranscript()}
	h := newTranscribeHandler(t, fake, 1<<20)

	req := newUploadRequest(t, "/transcribe?format=docx", "talk.mp3", []byte("audio"), nil)
	rec := httptest.NewRecorder()
	h.Transcribe(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, fake.filename)
}

func TestTranscribeErrors(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantMessage string
	}{
		{
			name:        "invalid language",
			err:         fmt.Errorf("%w: %q", domain.ErrInvalidLanguage, "english"),
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Invalid language code",
		},
		{
			name:        "empty upload",
			err:         transcribe.ErrEmptyUpload,
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Uploaded file is empty",
		},
		{
			name:        "save failure",
			err:         fmt.Errorf("%w: open /tmp/upload-1.mp3: no space left on device", transcribe.ErrSaveUpload),
			wantStatus:  http.StatusInternalServerError,
			wantMessage: "Failed to save uploaded file",
		},
		{
			name:        "engine failure",
			err:         fmt.Errorf("%w: whisper-cli exited 1", transcribe.ErrTranscriptionFailed),
			wantStatus:  http.StatusInternalServerError,
			wantMessage: "Transcription failed",
		},
		{
			name:        "unexpected error",
			err:         errors.New("boom"),
			wantStatus:  http.StatusInternalServerError,
			wantMessage: "Transcription failed",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fake := &fakeTranscriber{err: tc.err}
			h := newTranscribeHandler(t, fake, 1<<20)

			req := newUploadRequest(t, "/transcribe", "talk.mp3", []byte("audio"), nil)
			rec := httptest.NewRecorder()
			h.Transcribe(rec, req)

			assert.Equal(t, tc.wantStatus, rec.Code)
			var body shared.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tc.wantMessage, body.Error)
			assert.NotContains(t, rec.Body.String(), "/tmp/")
		})
	}
}
