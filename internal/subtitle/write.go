package subtitle

import (
	"bufio"
	"fmt"
	"io"
	"math"

	"github.com/phrazzld/audio2srt/internal/domain"
)

// Timestamp formats seconds as HH:MM:SS<sep>mmm, rounded to the nearest
// millisecond. Negative input is clamped to zero.
func Timestamp(seconds float64, sep byte) string {
	ms := int64(math.Round(seconds * 1000))
	if ms < 0 {
		ms = 0
	}
	h := ms / 3_600_000
	m := (ms / 60_000) % 60
	s := (ms / 1000) % 60
	return fmt.Sprintf("%02d:%02d:%02d%c%03d", h, m, s, sep, ms%1000)
}

// WriteSRT renders tr as SubRip. Cues are numbered from 1 in segment order and
// segments with no text are skipped without consuming a number.
func WriteSRT(w io.Writer, tr *domain.Transcript) error {
	bw := bufio.NewWriter(w)
	n := 0
	for _, seg := range tr.Segments {
		if seg.Text == "" {
			continue
		}
		if n > 0 {
			bw.WriteString("\n")
		}
		n++
		fmt.Fprintf(bw, "%d\n%s --> %s\n%s\n", n,
			Timestamp(seg.Start, ','), Timestamp(seg.End, ','), seg.Text)
	}
	return bw.Flush()
}

// WriteVTT renders tr as WebVTT.
func WriteVTT(w io.Writer, tr *domain.Transcript) error {
	bw := bufio.NewWriter(w)
	bw.WriteString("WEBVTT\n")
	for _, seg := range tr.Segments {
		if seg.Text == "" {
			continue
		}
		fmt.Fprintf(bw, "\n%s --> %s\n%s\n",
			Timestamp(seg.Start, '.'), Timestamp(seg.End, '.'), seg.Text)
	}
	return bw.Flush()
}

// WriteText renders the full transcript text followed by a newline.
func WriteText(w io.Writer, tr *domain.Transcript) error {
	_, err := io.WriteString(w, tr.Text+"\n")
	return err
}
