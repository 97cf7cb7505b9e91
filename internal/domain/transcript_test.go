package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTranscript(t *testing.T) {
	segments := []Segment{
		{ID: 0, Start: 0, End: 1.5, Text: "  Hello there. "},
		{ID: 1, Start: 1.5, End: 2.0, Text: "   "},
		{ID: 2, Start: 2.0, End: 4.25, Text: "General Kenobi."},
	}

	tr, err := NewTranscript("EN", segments)
	require.NoError(t, err)

	assert.Equal(t, "Hello there. General Kenobi.", tr.Text)
	assert.Equal(t, "en", tr.Language)
	assert.Equal(t, 4.25, tr.Duration)
	require.Len(t, tr.Segments, 3)
	assert.Equal(t, "Hello there.", tr.Segments[0].Text)
	assert.Equal(t, "", tr.Segments[1].Text)
	assert.Equal(t, 2, tr.Segments[2].ID)
}

func TestNewTranscriptEmpty(t *testing.T) {
	tr, err := NewTranscript("", nil)
	require.NoError(t, err)
	assert.Equal(t, "", tr.Text)
	assert.NotNil(t, tr.Segments, "segments should encode as [] rather than null")
	assert.Zero(t, tr.Duration)
}

func TestNewTranscriptRejectsBadTiming(t *testing.T) {
	_, err := NewTranscript("", []Segment{{ID: 3, Start: 2, End: 1, Text: "x"}})
	assert.ErrorIs(t, err, ErrInvalidSegment)

	_, err = NewTranscript("", []Segment{{ID: 4, Start: -0.5, End: 1}})
	assert.ErrorIs(t, err, ErrInvalidSegment)
}

func TestResolveLanguage(t *testing.T) {
	tests := []struct {
		name       string
		requested  string
		configured string
		want       string
		wantErr    bool
	}{
		{"request wins", "fr", "hi", "fr", false},
		{"config fallback", "", "hi", "hi", false},
		{"auto detect", "", "", "", false},
		{"explicit auto overrides config", "auto", "hi", "", false},
		{"uppercase normalized", "DE", "", "de", false},
		{"too long", "english", "", "", true},
		{"digits", "e1", "", "", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ResolveLanguage(tc.requested, tc.configured)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidLanguage)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNewJob(t *testing.T) {
	job, err := NewJob("talk.mp3", "en", "/spool/abc.mp3")
	require.NoError(t, err)
	assert.Equal(t, JobStatusPending, job.Status)
	assert.False(t, job.Status.IsTerminal())
	assert.NotZero(t, job.CreatedAt)

	_, err = NewJob("talk.mp3", "en", "")
	assert.ErrorIs(t, err, ErrEmptyAudioPath)

	_, err = NewJob("talk.mp3", "klingon", "/spool/x")
	assert.ErrorIs(t, err, ErrInvalidLanguage)

	assert.True(t, JobStatusFailed.IsTerminal())
	assert.False(t, JobStatus("bogus").Valid())
}
