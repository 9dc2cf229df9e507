package server

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/sjawhar/interview-coach/internal/practice"
	"github.com/sjawhar/interview-coach/internal/recorder"
)

// Hub fans events out to socket subscribers. Each subscriber belongs to one
// user; practice events reach only that user's subscribers.
type Hub struct {
	mu      sync.RWMutex
	clients map[chan []byte]string
}

func NewHub() *Hub {
	return &Hub{clients: make(map[chan []byte]string)}
}

func (h *Hub) Subscribe(user string) chan []byte {
	ch := make(chan []byte, 64)
	h.mu.Lock()
	h.clients[ch] = user
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan []byte) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
	close(ch)
}

// Broadcast sends msg to every subscriber.
func (h *Hub) Broadcast(msg []byte) {
	h.send(msg, func(string) bool { return true })
}

// BroadcastTo sends msg to the subscribers of one user.
func (h *Hub) BroadcastTo(user string, msg []byte) {
	h.send(msg, func(u string) bool { return u == user })
}

func (h *Hub) send(msg []byte, match func(user string) bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch, user := range h.clients {
		if !match(user) {
			continue
		}
		select {
		case ch <- msg:
		default:
		}
	}
}

func (h *Hub) BroadcastPractice(eventType string, snap practice.Snapshot) {
	payload, ok := marshalEvent(PracticeEvent{
		Event:    newEvent(eventType, time.Now().UTC()),
		Practice: snap,
	})
	if ok {
		h.BroadcastTo(snap.User, payload)
	}
}

// BroadcastRecorder forwards recorder events. Raw chunk notifications stay
// local; clients follow the transcript and completion events.
func (h *Hub) BroadcastRecorder(e recorder.Event) {
	now := time.Now().UTC()
	switch e.Kind {
	case recorder.EventTranscriptUpdate:
		h.broadcastEvent(TranscriptUpdateEvent{
			Event:      newEvent("transcript_update", now),
			Transcript: e.Transcript,
		})
	case recorder.EventComplete:
		if e.Media == nil {
			return
		}
		h.broadcastEvent(RecordingCompleteEvent{
			Event: newEvent("recording_complete", now),
			Media: *e.Media,
		})
	case recorder.EventError:
		if e.Err == nil {
			return
		}
		h.broadcastEvent(RecorderErrorEvent{
			Event: newEvent("recorder_error", now),
			Error: e.Err.Error(),
			Code:  statusFor(e.Err),
		})
	}
}

func (h *Hub) BroadcastQuestionsIngested(inserted map[string]int) {
	h.broadcastEvent(QuestionsIngestedEvent{
		Event:    newEvent("questions_ingested", time.Now().UTC()),
		Inserted: inserted,
	})
}

func (h *Hub) broadcastEvent(event any) {
	if payload, ok := marshalEvent(event); ok {
		h.Broadcast(payload)
	}
}

func marshalEvent(event any) ([]byte, bool) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("event marshal error: %v", err)
		return nil, false
	}
	return payload, true
}
