package transcribe

import (
	"context"
	"io"
)

// Handler receives recognizer output. OnSegment is called only for finalized
// utterances; interim hypotheses are never delivered.
type Handler struct {
	OnSegment func(Segment)
	OnError   func(error)
}

// Stream accepts PCM16-LE mono audio until stopped.
type Stream interface {
	io.Writer
	Stop()
}

// Recognizer opens live speech-to-text streams.
type Recognizer interface {
	Start(ctx context.Context, sampleRate int, h Handler) (Stream, error)
}

// Probe reports whether live speech recognition is available. It returns
// the recognizer to use when supported.
func Probe(apiKey, language string) (Recognizer, bool) {
	if apiKey == "" {
		return nil, false
	}
	return NewDeepgram(apiKey, language), true
}
