// Package transcribe turns live speech recognizer output into finalized text segments.
package transcribe

import (
	"fmt"
	"strings"
	"time"
)

type Word struct {
	Speaker        *int
	PunctuatedWord string
	Start          float64
	End            float64
}

// Segment is one finalized utterance.
type Segment struct {
	Text      string    `json:"text"`
	StartTime float64   `json:"start_time"`
	EndTime   float64   `json:"end_time"`
	Timestamp time.Time `json:"timestamp"`
}

// NewSegment joins words into a segment. It reports false when the words
// carry no text.
func NewSegment(words []Word, at time.Time) (Segment, bool) {
	parts := make([]string, 0, len(words))
	for _, w := range words {
		if text := strings.TrimSpace(w.PunctuatedWord); text != "" {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		return Segment{}, false
	}
	return Segment{
		Text:      strings.Join(parts, " "),
		StartTime: words[0].Start,
		EndTime:   words[len(words)-1].End,
		Timestamp: at,
	}, true
}

// JoinSegments renders the accumulated transcript as plain text.
func JoinSegments(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if text := strings.TrimSpace(s.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

func (s Segment) FormatMarkdown() string {
	return fmt.Sprintf("**[%s]** %s", s.Timestamp.Format("15:04:05"), strings.TrimSpace(s.Text))
}
