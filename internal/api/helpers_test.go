package api_test

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/phrazzld/audio2srt/internal/domain"
	"github.com/phrazzld/audio2srt/internal/transcribe"
	"github.com/stretchr/testify/require"
)

// newUploadRequest builds a multipart POST with the audio in the "file"
// field and any extra form fields.
func newUploadRequest(t *testing.T, target, filename string, audio []byte, fields map[string]string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(audio)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func sampleTranscript() *domain.Transcript {
	tr, err := domain.NewTranscript("en", []domain.Segment{
		{ID: 0, Start: 0, End: 1.5, Text: " Hello there. "},
		{ID: 1, Start: 1.5, End: 3.25, Text: "General Kenobi."},
	})
	if err != nil {
		panic(err)
	}
	return tr
}

// fakeTranscriber records the upload it receives.
type fakeTranscriber struct {
	mu       sync.Mutex
	result   *domain.Transcript
	err      error
	filename string
	language string
	body     []byte
}

func (f *fakeTranscriber) TranscribeUpload(_ context.Context, up transcribe.Upload) (*domain.Transcript, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(up.Body); err != nil {
		return nil, err
	}
	f.filename = up.Filename
	f.language = up.Language
	f.body = buf.Bytes()

	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}
