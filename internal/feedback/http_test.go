package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/sjawhar/interview-coach/internal/apperr"
)

func TestHTTPClientSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/feedback" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Question != "Why Go?" || req.Answer != "Simplicity." {
			t.Errorf("unexpected body: %+v", req)
		}
		_ = json.NewEncoder(w).Encode(Response{Feedback: "## Strengths\n- Brief"})
	}))
	defer server.Close()

	got, err := NewHTTPClient(server.URL+"/", nil).RequestFeedback(context.Background(), "Why Go?", "Simplicity.")
	if err != nil {
		t.Fatalf("RequestFeedback failed: %v", err)
	}
	if got != "## Strengths\n- Brief" {
		t.Fatalf("unexpected feedback %q", got)
	}
}

func TestHTTPClientFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{name: "error body", status: http.StatusInternalServerError, body: `{"error":"Gemini API request failed"}`, wantMsg: "Gemini API request failed"},
		{name: "plain 502", status: http.StatusBadGateway, body: `bad gateway`, wantMsg: "returned 502"},
		{name: "malformed", status: http.StatusOK, body: `{"feedback":`, wantMsg: "decode feedback response"},
		{name: "empty feedback", status: http.StatusOK, body: `{"feedback":"  "}`, wantMsg: "empty feedback"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewHTTPClient(server.URL, server.Client()).RequestFeedback(context.Background(), "q", "a")
			if !errors.Is(err, apperr.ErrService) {
				t.Fatalf("expected ErrService, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Fatalf("expected %q in error, got %q", tt.wantMsg, err.Error())
			}
		})
	}
}

func TestHTTPClientValidatesBeforeSending(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	_, err := NewHTTPClient(server.URL, nil).RequestFeedback(context.Background(), "q", "")
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("expected no request, got %d", calls.Load())
	}
}

func TestHTTPClientUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewHTTPClient(url, nil).RequestFeedback(context.Background(), "q", "a")
	if !errors.Is(err, apperr.ErrService) {
		t.Fatalf("expected ErrService, got %v", err)
	}
}
