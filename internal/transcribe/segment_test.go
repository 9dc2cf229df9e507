package transcribe

import (
	"strings"
	"testing"
	"time"
)

func intPtr(i int) *int { return &i }

func TestNewSegmentJoinsWords(t *testing.T) {
	at := time.Date(2026, 2, 26, 10, 30, 0, 0, time.UTC)
	words := []Word{
		{Speaker: intPtr(0), PunctuatedWord: "I", Start: 0.2, End: 0.3},
		{Speaker: nil, PunctuatedWord: "led", Start: 0.3, End: 0.6},
		{PunctuatedWord: " ", Start: 0.6, End: 0.6},
		{PunctuatedWord: "migrations.", Start: 0.6, End: 1.4},
	}

	seg, ok := NewSegment(words, at)
	if !ok {
		t.Fatal("expected a segment")
	}
	if seg.Text != "I led migrations." {
		t.Fatalf("unexpected text %q", seg.Text)
	}
	if seg.StartTime != 0.2 || seg.EndTime != 1.4 {
		t.Fatalf("unexpected bounds %v-%v", seg.StartTime, seg.EndTime)
	}
	if !seg.Timestamp.Equal(at) {
		t.Fatalf("unexpected timestamp %v", seg.Timestamp)
	}
}

func TestNewSegmentEmpty(t *testing.T) {
	if _, ok := NewSegment(nil, time.Now()); ok {
		t.Fatal("expected no segment for nil words")
	}
	if _, ok := NewSegment([]Word{{PunctuatedWord: "  "}}, time.Now()); ok {
		t.Fatal("expected no segment for blank words")
	}
}

func TestJoinSegments(t *testing.T) {
	got := JoinSegments([]Segment{{Text: "First part."}, {Text: "  "}, {Text: "Second part. "}})
	if got != "First part. Second part." {
		t.Fatalf("unexpected transcript %q", got)
	}
	if JoinSegments(nil) != "" {
		t.Fatal("expected empty transcript")
	}
}

func TestSegmentFormatMarkdown(t *testing.T) {
	seg := Segment{Text: " Hello world. ", Timestamp: time.Date(2026, 2, 26, 14, 5, 9, 0, time.Local)}
	md := seg.FormatMarkdown()
	if !strings.Contains(md, "14:05:09") || !strings.HasSuffix(md, "Hello world.") {
		t.Fatalf("unexpected markdown %q", md)
	}
}
