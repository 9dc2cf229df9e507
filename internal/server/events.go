package server

import (
	"time"

	"github.com/sjawhar/interview-coach/internal/practice"
	"github.com/sjawhar/interview-coach/internal/recorder"
)

const EventVersion = 1

type Event struct {
	Type      string `json:"type"`
	Version   int    `json:"version"`
	Timestamp string `json:"timestamp"`
}

// PracticeEvent carries a state machine transition or countdown tick.
type PracticeEvent struct {
	Event
	Practice practice.Snapshot `json:"practice"`
}

type TranscriptUpdateEvent struct {
	Event
	Transcript string `json:"transcript"`
}

type RecordingCompleteEvent struct {
	Event
	Media recorder.Media `json:"media"`
}

type RecorderErrorEvent struct {
	Event
	Error string `json:"error"`
	Code  int    `json:"code"`
}

type QuestionsIngestedEvent struct {
	Event
	Inserted map[string]int `json:"inserted"`
}

type ConnectionEvent struct {
	Event
	Connected bool   `json:"connected"`
	User      string `json:"user"`
}

func newEvent(eventType string, now time.Time) Event {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return Event{
		Type:      eventType,
		Version:   EventVersion,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	}
}
