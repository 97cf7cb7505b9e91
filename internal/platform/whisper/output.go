package whisper

import (
	"encoding/json"
	"fmt"

	"github.com/phrazzld/audio2srt/internal/domain"
)

// output mirrors the document whisper-cli writes with --output-json.
type output struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

// ParseOutput converts whisper-cli JSON into a transcript. Offsets are in
// milliseconds; segment IDs are assigned in output order.
func ParseOutput(data []byte) (*domain.Transcript, error) {
	var out output
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}

	segments := make([]domain.Segment, 0, len(out.Transcription))
	for i, t := range out.Transcription {
		segments = append(segments, domain.Segment{
			ID:    i,
			Start: float64(t.Offsets.From) / 1000,
			End:   float64(t.Offsets.To) / 1000,
			Text:  t.Text,
		})
	}

	tr, err := domain.NewTranscript(out.Result.Language, segments)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	return tr, nil
}
