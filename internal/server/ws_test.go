package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sjawhar/interview-coach/internal/apperr"
	"github.com/sjawhar/interview-coach/internal/practice"
	"github.com/sjawhar/interview-coach/internal/recorder"
)

func receive(t *testing.T, ch chan []byte) map[string]any {
	t.Helper()
	select {
	case msg := <-ch:
		var payload map[string]any
		if err := json.Unmarshal(msg, &payload); err != nil {
			t.Fatalf("unmarshal failed: %v", err)
		}
		return payload
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for broadcast")
	}
	return nil
}

func TestHubBroadcastPractice(t *testing.T) {
	hub := NewHub()
	ch := hub.Subscribe("local")
	defer hub.Unsubscribe(ch)

	hub.BroadcastPractice(practice.EventTimerTick, practice.Snapshot{User: "local", State: practice.Running, Remaining: 41})

	payload := receive(t, ch)
	if payload["type"] != "timer_tick" {
		t.Fatalf("expected timer_tick, got %#v", payload["type"])
	}
	snap, ok := payload["practice"].(map[string]any)
	if !ok || snap["remaining_seconds"] != float64(41) {
		t.Fatalf("expected snapshot in payload, got %#v", payload["practice"])
	}
}

func TestHubBroadcastRecorder(t *testing.T) {
	hub := NewHub()
	ch := hub.Subscribe("local")
	defer hub.Unsubscribe(ch)

	hub.BroadcastRecorder(recorder.Event{Kind: recorder.EventChunk, Bytes: 320})
	hub.BroadcastRecorder(recorder.Event{Kind: recorder.EventError, Err: fmt.Errorf("mic: %w", apperr.ErrDevice)})
	hub.BroadcastRecorder(recorder.Event{Kind: recorder.EventComplete, Media: &recorder.Media{Name: "a.wav"}})
	hub.BroadcastRecorder(recorder.Event{Kind: recorder.EventError})

	payload := receive(t, ch)
	if payload["type"] != "recorder_error" || payload["code"] != float64(503) {
		t.Fatalf("expected device error first with chunk skipped, got %#v", payload)
	}
	payload = receive(t, ch)
	if payload["type"] != "recording_complete" {
		t.Fatalf("expected recording_complete, got %#v", payload["type"])
	}
	select {
	case msg := <-ch:
		t.Fatalf("expected error without cause to be dropped, got %s", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubScopesPracticeToUser(t *testing.T) {
	hub := NewHub()
	alice := hub.Subscribe("alice")
	defer hub.Unsubscribe(alice)
	bob := hub.Subscribe("bob")
	defer hub.Unsubscribe(bob)

	hub.BroadcastPractice(practice.EventFeedbackReady, practice.Snapshot{User: "alice", Answer: "my answer", Feedback: "## Strengths"})
	hub.BroadcastQuestionsIngested(map[string]int{"leetcode": 1})

	if payload := receive(t, alice); payload["type"] != "feedback_ready" {
		t.Fatalf("expected alice to get her snapshot, got %#v", payload)
	}
	if payload := receive(t, bob); payload["type"] != "questions_ingested" {
		t.Fatalf("expected bob to skip alice's snapshot, got %#v", payload)
	}
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	hub := NewHub()
	ch := hub.Subscribe("local")
	defer hub.Unsubscribe(ch)

	for i := 0; i < cap(ch)+10; i++ {
		hub.Broadcast([]byte("x"))
	}
	if len(ch) != cap(ch) {
		t.Fatalf("expected full buffer, got %d", len(ch))
	}
}

func dialWS(t *testing.T, srv *httptest.Server, query string, header http.Header) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws"+query, header)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := conn.ReadJSON(&payload); err != nil {
		t.Fatalf("read event failed: %v", err)
	}
	return payload
}

func TestWSScopesPracticeEventsToUser(t *testing.T) {
	hub := NewHub()
	h, err := Handler(testStaticFS(t), hub, Deps{DefaultUser: "local", Users: newFakeUsers()})
	if err != nil {
		t.Fatalf("Handler failed: %v", err)
	}
	srv := httptest.NewServer(h)
	defer srv.Close()

	bob := dialWS(t, srv, "?user=bob", nil)
	alice := dialWS(t, srv, "", http.Header{userHeader: []string{"alice"}})

	if first := readEvent(t, bob); first["user"] != "bob" {
		t.Fatalf("expected bob's connection event, got %#v", first)
	}
	if first := readEvent(t, alice); first["user"] != "alice" {
		t.Fatalf("expected alice's connection event, got %#v", first)
	}

	hub.BroadcastPractice(practice.EventFeedbackReady, practice.Snapshot{User: "alice", Answer: "secret answer"})
	hub.BroadcastQuestionsIngested(map[string]int{"leetcode": 1})

	if next := readEvent(t, alice); next["type"] != "feedback_ready" {
		t.Fatalf("expected alice's snapshot, got %#v", next)
	}
	if next := readEvent(t, bob); next["type"] != "questions_ingested" {
		t.Fatalf("expected bob to miss alice's snapshot, got %#v", next)
	}
}

func TestWSRejectsInvalidUser(t *testing.T) {
	h, err := Handler(testStaticFS(t), NewHub(), Deps{DefaultUser: "local", Users: newFakeUsers()})
	if err != nil {
		t.Fatalf("Handler failed: %v", err)
	}
	srv := httptest.NewServer(h)
	defer srv.Close()

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws?user=bad%20id", nil)
	if err == nil {
		t.Fatal("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %#v", resp)
	}
}

func TestWSDeliversConnectionAndEvents(t *testing.T) {
	hub := NewHub()
	h, err := Handler(testStaticFS(t), hub, Deps{DefaultUser: "local", Users: newFakeUsers()})
	if err != nil {
		t.Fatalf("Handler failed: %v", err)
	}
	srv := httptest.NewServer(h)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer func() { _ = conn.Close() }()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first map[string]any
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read connection event failed: %v", err)
	}
	if first["type"] != "connection" || first["connected"] != true {
		t.Fatalf("unexpected first event %#v", first)
	}

	hub.BroadcastQuestionsIngested(map[string]int{"leetcode": 1})

	var next map[string]any
	if err := conn.ReadJSON(&next); err != nil {
		t.Fatalf("read event failed: %v", err)
	}
	if next["type"] != "questions_ingested" {
		t.Fatalf("unexpected event %#v", next)
	}
}
