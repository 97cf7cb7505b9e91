// Package client is a Go client for the audio2srt HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/phrazzld/audio2srt/internal/api"
	"github.com/phrazzld/audio2srt/internal/api/middleware"
	"github.com/phrazzld/audio2srt/internal/api/shared"
	"github.com/phrazzld/audio2srt/internal/domain"
	"github.com/phrazzld/audio2srt/internal/events"
)

// ErrJobFailed is returned by WaitForJob when the job ends in failure.
var ErrJobFailed = errors.New("job failed")

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
	TraceID    string
}

func (e *APIError) Error() string {
	if e.TraceID != "" {
		return fmt.Sprintf("server returned %d: %s (trace %s)", e.StatusCode, e.Message, e.TraceID)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Options configures a Client.
type Options struct {
	// APIKey is sent as X-API-Key when set.
	APIKey string

	// Token is sent as a bearer token when set and APIKey is empty.
	Token string

	// HTTPClient defaults to a client with no overall timeout, since
	// synchronous transcription can take minutes.
	HTTPClient *http.Client
}

// Client talks to one audio2srt server.
type Client struct {
	baseURL *url.URL
	opts    Options
	http    *http.Client
}

// New creates a Client for the server at baseURL.
func New(baseURL string, opts Options) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid server URL %q: scheme must be http or https", baseURL)
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{baseURL: u, opts: opts, http: hc}, nil
}

// TranscribeOptions selects the language and output format of a transcription.
type TranscribeOptions struct {
	Language string
	Format   string
}

// Result is a rendered transcript.
type Result struct {
	ContentType string
	Filename    string
	Body        []byte
}

// Health checks that the server is up.
func (c *Client) Health(ctx context.Context) (*api.HealthResponse, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/health", nil, nil)
	if err != nil {
		return nil, err
	}

	var out api.HealthResponse
	if err := c.doJSON(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Transcribe uploads the audio at path and waits for the rendered result.
func (c *Client) Transcribe(ctx context.Context, path string, opts TranscribeOptions) (*Result, error) {
	req, err := c.newUploadRequest(ctx, "/transcribe", path, opts)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return &Result{
		ContentType: resp.Header.Get("Content-Type"),
		Filename:    dispositionFilename(resp.Header.Get("Content-Disposition")),
		Body:        body,
	}, nil
}

// SubmitJob uploads the audio at path as a background job.
func (c *Client) SubmitJob(ctx context.Context, path string, opts TranscribeOptions) (*api.JobCreatedResponse, error) {
	req, err := c.newUploadRequest(ctx, "/jobs", path, TranscribeOptions{Language: opts.Language})
	if err != nil {
		return nil, err
	}

	var out api.JobCreatedResponse
	if err := c.doJSON(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetJob returns the job with the given ID.
func (c *Client) GetJob(ctx context.Context, id string) (*api.JobResponse, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/jobs/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return nil, err
	}

	var out api.JobResponse
	if err := c.doJSON(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Subtitles downloads a completed job's transcript in format.
func (c *Client) Subtitles(ctx context.Context, id, format string) (*Result, error) {
	q := url.Values{}
	if format != "" {
		q.Set("format", format)
	}
	req, err := c.newRequest(ctx, http.MethodGet, "/jobs/"+url.PathEscape(id)+"/subtitles", q, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return &Result{
		ContentType: resp.Header.Get("Content-Type"),
		Filename:    dispositionFilename(resp.Header.Get("Content-Disposition")),
		Body:        body,
	}, nil
}

// WaitForJob follows the job's event stream, calling onEvent for each status
// change, until the job is terminal. It returns an error wrapping
// ErrJobFailed if the job failed.
func (c *Client) WaitForJob(ctx context.Context, id string, onEvent func(*events.JobEvent)) (*events.JobEvent, error) {
	u := *c.baseURL
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = u.Path + "/jobs/" + url.PathEscape(id) + "/events"

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), c.authHeader())
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			if apiErr := decodeAPIError(resp); apiErr != nil {
				return nil, apiErr
			}
		}
		return nil, fmt.Errorf("failed to open event stream: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	var last *events.JobEvent
	for {
		var ev events.JobEvent
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return last, ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) && last != nil && last.Terminal() {
				break
			}
			return last, fmt.Errorf("event stream ended: %w", err)
		}
		last = &ev
		if onEvent != nil {
			onEvent(last)
		}
		if last.Terminal() {
			break
		}
	}

	if last.Status != domain.JobStatusCompleted {
		return last, fmt.Errorf("%w: %s", ErrJobFailed, last.Error)
	}
	return last, nil
}

func (c *Client) newUploadRequest(ctx context.Context, path, audioPath string, opts TranscribeOptions) (*http.Request, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(fw, f); err != nil {
		return nil, fmt.Errorf("failed to read audio: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	q := url.Values{}
	if opts.Language != "" {
		q.Set("language", opts.Language)
	}
	if opts.Format != "" {
		q.Set("format", opts.Format)
	}

	req, err := c.newRequest(ctx, http.MethodPost, path, q, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, q url.Values, body io.Reader) (*http.Request, error) {
	u := *c.baseURL
	u.Path = u.Path + path
	if len(q) > 0 {
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	for k, vs := range c.authHeader() {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return req, nil
}

func (c *Client) authHeader() http.Header {
	h := http.Header{}
	switch {
	case c.opts.APIKey != "":
		h.Set(middleware.APIKeyHeader, c.opts.APIKey)
	case c.opts.Token != "":
		h.Set("Authorization", "Bearer "+c.opts.Token)
	}
	return h
}

// do sends req and converts non-2xx responses into *APIError.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", req.URL.Path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, decodeAPIError(resp)
	}
	return resp, nil
}

func (c *Client) doJSON(req *http.Request, out interface{}) error {
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	var body shared.ErrorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err == nil && body.Error != "" {
		apiErr.Message = body.Error
		apiErr.TraceID = body.TraceID
	}
	return apiErr
}

func dispositionFilename(header string) string {
	if header == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return params["filename"]
}
