package api

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/audio2srt/internal/api/shared"
	"github.com/phrazzld/audio2srt/internal/domain"
	"github.com/phrazzld/audio2srt/internal/platform/logger"
	"github.com/phrazzld/audio2srt/internal/subtitle"
	"github.com/phrazzld/audio2srt/internal/transcribe"
)

// uploadFormField is the multipart field holding the audio.
const uploadFormField = "file"

// multipartMemory is how much of a multipart body is kept in memory before
// ParseMultipartForm spills to disk.
const multipartMemory = 8 << 20

// upload is an open multipart file plus the request options that came with it.
type upload struct {
	file     multipart.File
	filename string
	language string
}

func (u *upload) Close() error {
	return u.file.Close()
}

func (u *upload) toTranscribe() transcribe.Upload {
	return transcribe.Upload{
		Filename: u.filename,
		Body:     u.file,
		Language: u.language,
	}
}

// requestParam reads name from the query string, falling back to a form value.
func requestParam(r *http.Request, name string) string {
	if v := r.URL.Query().Get(name); v != "" {
		return v
	}
	if r.MultipartForm != nil {
		if vs := r.MultipartForm.Value[name]; len(vs) > 0 {
			return vs[0]
		}
	}
	return ""
}

// parseFormat reads the requested output format.
func parseFormat(r *http.Request) (subtitle.Format, error) {
	return subtitle.ParseFormat(requestParam(r, "format"))
}

// readUpload enforces the body limit, parses the multipart form, and opens
// the uploaded file. It writes an error response and returns false on failure.
func readUpload(w http.ResponseWriter, r *http.Request, maxBytes int64) (*upload, bool) {
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			shared.RespondWithError(w, r, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("Upload exceeds the %d MB limit", tooLarge.Limit>>20))
			return nil, false
		}
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid multipart form", err)
		return nil, false
	}

	file, header, err := r.FormFile(uploadFormField)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Missing file field \"file\"")
		return nil, false
	}

	return &upload{
		file:     file,
		filename: header.Filename,
		language: requestParam(r, "language"),
	}, true
}

// cleanupMultipart removes any temporary files created for the form.
func cleanupMultipart(r *http.Request) {
	if r.MultipartForm != nil {
		_ = r.MultipartForm.RemoveAll()
	}
}

// getPathUUID extracts a UUID from the URL path parameters.
func getPathUUID(r *http.Request, paramName string) (uuid.UUID, error) {
	pathParam := chi.URLParam(r, paramName)
	if pathParam == "" {
		return uuid.Nil, fmt.Errorf("%w: %s is required", domain.ErrValidation, paramName)
	}

	id, err := uuid.Parse(pathParam)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s has invalid format", domain.ErrValidation, paramName)
	}

	return id, nil
}

// attachmentName builds the download filename for a rendered transcript.
func attachmentName(filename string, format subtitle.Format) string {
	base := filepath.Base(filename)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." || base == string(filepath.Separator) {
		base = "transcript"
	}
	return base + "." + format.Extension()
}

// writeTranscript renders tr in the requested format.
func writeTranscript(w http.ResponseWriter, r *http.Request, status int, tr *domain.Transcript, format subtitle.Format, filename string) {
	if format == subtitle.FormatJSON {
		shared.RespondWithJSON(w, r, status, transcriptToResponse(tr))
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", attachmentName(filename, format)))
	w.WriteHeader(status)
	if err := subtitle.Write(w, format, tr); err != nil {
		logger.FromContext(r.Context()).Error("failed to write subtitles", "error", err)
	}
}
