package recorder

import "time"

type EventKind string

const (
	EventChunk            EventKind = "chunk"
	EventTranscriptUpdate EventKind = "transcript_update"
	EventError            EventKind = "error"
	EventComplete         EventKind = "complete"
)

// Event is the single message type the recorder reports through its Sink.
type Event struct {
	Kind       EventKind
	Bytes      int
	Transcript string
	Err        error
	Media      *Media
}

// Sink receives recorder events. It is never called with the recorder lock held.
type Sink func(Event)

// Media is a finalized local recording.
type Media struct {
	Name      string    `json:"name"`
	Path      string    `json:"-"`
	URL       string    `json:"url"`
	Bytes     int64     `json:"bytes"`
	Duration  float64   `json:"duration_seconds"`
	CreatedAt time.Time `json:"created_at"`
}

// Status is a point-in-time view of the recorder.
type Status struct {
	Capturing              bool   `json:"capturing"`
	Transcribing           bool   `json:"transcribing"`
	TranscriptionSupported bool   `json:"transcription_supported"`
	DeviceOpen             bool   `json:"device_open"`
	SampleRate             int    `json:"sample_rate,omitempty"`
	Transcript             string `json:"transcript"`
}
