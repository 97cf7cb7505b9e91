// Package subtitle renders transcripts as SubRip, WebVTT, plain text, or JSON.
package subtitle

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/phrazzld/audio2srt/internal/domain"
)

// Format is an output representation of a transcript.
type Format string

// Supported formats.
const (
	FormatJSON Format = "json"
	FormatSRT  Format = "srt"
	FormatVTT  Format = "vtt"
	FormatText Format = "text"
)

// ErrUnknownFormat is returned by ParseFormat for unsupported names.
var ErrUnknownFormat = errors.New("unknown subtitle format")

// ParseFormat parses a format name. The empty string selects JSON.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return FormatJSON, nil
	case "srt":
		return FormatSRT, nil
	case "vtt", "webvtt":
		return FormatVTT, nil
	case "text", "txt":
		return FormatText, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
}

// ContentType returns the MIME type served for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatSRT:
		return "application/x-subrip"
	case FormatVTT:
		return "text/vtt; charset=utf-8"
	case FormatText:
		return "text/plain; charset=utf-8"
	default:
		return "application/json"
	}
}

// Extension returns the file extension, without the dot.
func (f Format) Extension() string {
	if f == FormatText {
		return "txt"
	}
	return string(f)
}

// Write renders tr to w in format f.
func Write(w io.Writer, f Format, tr *domain.Transcript) error {
	switch f {
	case FormatSRT:
		return WriteSRT(w, tr)
	case FormatVTT:
		return WriteVTT(w, tr)
	case FormatText:
		return WriteText(w, tr)
	case FormatJSON:
		return json.NewEncoder(w).Encode(tr)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, string(f))
}
