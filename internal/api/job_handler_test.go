package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/phrazzld/audio2srt/internal/api"
	"github.com/phrazzld/audio2srt/internal/domain"
	"github.com/phrazzld/audio2srt/internal/events"
	"github.com/phrazzld/audio2srt/internal/job"
	"github.com/phrazzld/audio2srt/internal/platform/logger"
	"github.com/phrazzld/audio2srt/internal/transcribe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSubmitter creates pending jobs in a MemoryStore without running them.
type fakeSubmitter struct {
	store *job.MemoryStore
	err   error
	got   transcribe.Upload
}

func (f *fakeSubmitter) SubmitUpload(ctx context.Context, up transcribe.Upload) (*domain.Job, error) {
	f.got = up
	if f.err != nil {
		return nil, f.err
	}
	j, err := domain.NewJob(up.Filename, up.Language, "/spool/"+up.Filename)
	if err != nil {
		return nil, err
	}
	if err := f.store.Create(ctx, j); err != nil {
		return nil, err
	}
	return j, nil
}

type jobFixture struct {
	store     *job.MemoryStore
	hub       *events.Hub
	submitter *fakeSubmitter
	router    http.Handler
}

func newJobFixture(t *testing.T) *jobFixture {
	t.Helper()
	log, _ := logger.NewTestLogger(t)

	f := &jobFixture{
		store: job.NewMemoryStore(),
		hub:   events.NewHub(0),
	}
	f.submitter = &fakeSubmitter{store: f.store}
	h := api.NewJobHandler(f.submitter, f.store, f.hub, 1<<20, log)

	r := chi.NewRouter()
	r.Post("/jobs", h.CreateJob)
	r.Get("/jobs/{id}", h.GetJob)
	r.Get("/jobs/{id}/subtitles", h.GetSubtitles)
	r.Get("/jobs/{id}/events", h.StreamEvents)
	f.router = r
	return f
}

func (f *jobFixture) createJob(t *testing.T) *domain.Job {
	t.Helper()
	j, err := domain.NewJob("talk.mp3", "en", "/spool/talk.mp3")
	require.NoError(t, err)
	require.NoError(t, f.store.Create(context.Background(), j))
	return j
}

func (f *jobFixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestCreateJob(t *testing.T) {
	f := newJobFixture(t)

	req := newUploadRequest(t, "/jobs?language=es", "talk.ogg", []byte("audio"), nil)
	rec := f.do(req)

	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var body api.JobCreatedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, domain.JobStatusPending, body.Status)
	assert.Equal(t, "/jobs/"+body.ID, rec.Header().Get("Location"))

	assert.Equal(t, "talk.ogg", f.submitter.got.Filename)
	assert.Equal(t, "es", f.submitter.got.Language)
}

func TestCreateJobErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"queue full", fmt.Errorf("%w: queue capacity 1 reached", job.ErrQueueFull), http.StatusServiceUnavailable},
		{"runner stopped", job.ErrRunnerStopped, http.StatusServiceUnavailable},
		{"invalid language", domain.ErrInvalidLanguage, http.StatusBadRequest},
		{"save failure", transcribe.ErrSaveUpload, http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newJobFixture(t)
			f.submitter.err = tc.err

			rec := f.do(newUploadRequest(t, "/jobs", "talk.mp3", []byte("audio"), nil))
			assert.Equal(t, tc.wantStatus, rec.Code)
		})
	}
}

func TestCreateJobMissingFile(t *testing.T) {
	f := newJobFixture(t)

	rec := f.do(newUploadRequest(t, "/jobs", "", nil, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetJob(t *testing.T) {
	f := newJobFixture(t)
	j := f.createJob(t)

	t.Run("pending", func(t *testing.T) {
		rec := f.do(httptest.NewRequest(http.MethodGet, "/jobs/"+j.ID.String(), nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var body api.JobResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, j.ID.String(), body.ID)
		assert.Equal(t, domain.JobStatusPending, body.Status)
		assert.Equal(t, "talk.mp3", body.Filename)
		assert.Nil(t, body.Result)
		assert.NotContains(t, rec.Body.String(), "/spool/", "spool path must not leak")
	})

	t.Run("completed", func(t *testing.T) {
		require.NoError(t, f.store.Complete(context.Background(), j.ID, sampleTranscript()))

		rec := f.do(httptest.NewRequest(http.MethodGet, "/jobs/"+j.ID.String(), nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var body api.JobResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, domain.JobStatusCompleted, body.Status)
		require.NotNil(t, body.Result)
		assert.Equal(t, "Hello there. General Kenobi.", body.Result.Text)
		assert.Len(t, body.Result.Segments, 2)
	})

	t.Run("unknown", func(t *testing.T) {
		rec := f.do(httptest.NewRequest(http.MethodGet, "/jobs/6f1f0a52-3c1b-4b5e-9a43-8c1de0f6a111", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "Job not found")
	})

	t.Run("malformed", func(t *testing.T) {
		rec := f.do(httptest.NewRequest(http.MethodGet, "/jobs/not-a-uuid", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGetSubtitles(t *testing.T) {
	f := newJobFixture(t)
	j := f.createJob(t)
	target := "/jobs/" + j.ID.String() + "/subtitles"

	rec := f.do(httptest.NewRequest(http.MethodGet, target, nil))
	assert.Equal(t, http.StatusConflict, rec.Code)

	require.NoError(t, f.store.Complete(context.Background(), j.ID, sampleTranscript()))

	rec = f.do(httptest.NewRequest(http.MethodGet, target, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-subrip", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="talk.srt"`, rec.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "1\n00:00:00,000 --> 00:00:01,500\nHello there.\n"))

	rec = f.do(httptest.NewRequest(http.MethodGet, target+"?format=vtt", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "WEBVTT\n"))

	rec = f.do(httptest.NewRequest(http.MethodGet, target+"?format=json", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"segments"`)

	rec = f.do(httptest.NewRequest(http.MethodGet, target+"?format=ass", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetSubtitlesFailedJob(t *testing.T) {
	f := newJobFixture(t)
	j := f.createJob(t)
	require.NoError(t, f.store.Fail(context.Background(), j.ID, "Transcription failed"))

	rec := f.do(httptest.NewRequest(http.MethodGet, "/jobs/"+j.ID.String()+"/subtitles", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func dialEvents(t *testing.T, f *jobFixture, id string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(f.router)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/jobs/" + id + "/events"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
		_ = resp.Body.Close()
	})
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) events.JobEvent {
	t.Helper()
	var ev events.JobEvent
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestStreamEventsTerminalJob(t *testing.T) {
	f := newJobFixture(t)
	j := f.createJob(t)
	require.NoError(t, f.store.Complete(context.Background(), j.ID, sampleTranscript()))

	conn := dialEvents(t, f, j.ID.String())

	ev := readEvent(t, conn)
	assert.Equal(t, j.ID, ev.JobID)
	assert.Equal(t, domain.JobStatusCompleted, ev.Status)

	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestStreamEventsFollowsJob(t *testing.T) {
	f := newJobFixture(t)
	j := f.createJob(t)

	conn := dialEvents(t, f, j.ID.String())

	ev := readEvent(t, conn)
	assert.Equal(t, domain.JobStatusPending, ev.Status)
	require.Equal(t, 1, f.hub.Subscribers(j.ID))

	ctx := context.Background()
	require.NoError(t, f.hub.HandleEvent(ctx, events.NewJobEvent(j.ID, domain.JobStatusProcessing, "")))
	require.NoError(t, f.hub.HandleEvent(ctx, events.NewJobEvent(j.ID, domain.JobStatusFailed, "Transcription failed")))

	ev = readEvent(t, conn)
	assert.Equal(t, domain.JobStatusProcessing, ev.Status)

	ev = readEvent(t, conn)
	assert.Equal(t, domain.JobStatusFailed, ev.Status)
	assert.Equal(t, "Transcription failed", ev.Error)

	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)

	assert.Eventually(t, func() bool { return f.hub.Subscribers(j.ID) == 0 }, time.Second, 10*time.Millisecond)
}

func TestStreamEventsUnknownJob(t *testing.T) {
	f := newJobFixture(t)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/jobs/6f1f0a52-3c1b-4b5e-9a43-8c1de0f6a111/events"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
