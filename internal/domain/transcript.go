package domain

import (
	"fmt"
	"strings"
)

// Segment is one timed span of recognized speech. Start and End are seconds
// from the beginning of the audio.
type Segment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Validate checks that the segment's timing is well-formed.
func (s Segment) Validate() error {
	if s.Start < 0 {
		return fmt.Errorf("%w: segment %d starts before zero", ErrInvalidSegment, s.ID)
	}
	if s.End < s.Start {
		return fmt.Errorf("%w: segment %d ends before it starts", ErrInvalidSegment, s.ID)
	}
	return nil
}

// Duration returns the segment length in seconds.
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// Transcript is the result of transcribing one audio file.
type Transcript struct {
	Text     string    `json:"text"`
	Language string    `json:"language,omitempty"`
	Duration float64   `json:"duration,omitempty"`
	Segments []Segment `json:"segments"`
}

// NewTranscript builds a transcript from engine segments. Segment text is
// trimmed, and the full text is the non-empty segment texts joined by a
// single space. Segment IDs are kept as the engine reported them.
func NewTranscript(language string, segments []Segment) (*Transcript, error) {
	cleaned := make([]Segment, 0, len(segments))
	parts := make([]string, 0, len(segments))
	var duration float64

	for _, seg := range segments {
		seg.Text = strings.TrimSpace(seg.Text)
		if err := seg.Validate(); err != nil {
			return nil, err
		}
		cleaned = append(cleaned, seg)
		if seg.Text != "" {
			parts = append(parts, seg.Text)
		}
		if seg.End > duration {
			duration = seg.End
		}
	}

	return &Transcript{
		Text:     strings.Join(parts, " "),
		Language: NormalizeLanguage(language),
		Duration: duration,
		Segments: cleaned,
	}, nil
}
