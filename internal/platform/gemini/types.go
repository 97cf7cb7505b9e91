package gemini

import (
	"mime"
	"path/filepath"
	"strings"

	"google.golang.org/genai"
)

// MaxInlineBytes is the largest audio payload sent inline. Gemini rejects
// requests above roughly 20 MB including the prompt.
const MaxInlineBytes = 19 << 20

// promptData represents the data passed to the prompt template.
type promptData struct {
	Language string
}

// ResponseSchema is the JSON document the model is asked to return.
type ResponseSchema struct {
	// Language is the ISO 639-1 code of the spoken language.
	Language string `json:"language"`

	// Segments are the timed utterances in order.
	Segments []SegmentSchema `json:"segments"`
}

// SegmentSchema is one timed utterance in seconds.
type SegmentSchema struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// responseSchema mirrors ResponseSchema for the API's structured output mode.
func responseSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"language": {
				Type:        genai.TypeString,
				Description: "ISO 639-1 code of the spoken language",
			},
			"segments": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"start": {Type: genai.TypeNumber, Description: "segment start in seconds"},
						"end":   {Type: genai.TypeNumber, Description: "segment end in seconds"},
						"text":  {Type: genai.TypeString},
					},
					Required: []string{"start", "end", "text"},
				},
			},
		},
		Required: []string{"language", "segments"},
	}
}

var audioMIMETypes = map[string]string{
	".mp3":  "audio/mp3",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".oga":  "audio/ogg",
	".opus": "audio/ogg",
	".flac": "audio/flac",
	".aac":  "audio/aac",
	".m4a":  "audio/aac",
	".aiff": "audio/aiff",
	".aif":  "audio/aiff",
}

// MIMEType guesses the audio MIME type from a file name. Unknown extensions
// fall back to audio/mp3, the service's default upload suffix.
func MIMEType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if t, ok := audioMIMETypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); strings.HasPrefix(t, "audio/") {
		return t
	}
	return "audio/mp3"
}
