package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMiddlewarePassesStatusThrough(t *testing.T) {
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("expected 418, got %d", rec.Code)
	}
}

func TestHandlerExposesCounters(t *testing.T) {
	SessionStarted()
	FeedbackRequest(OutcomeSuccess, 2*time.Second)
	HistoryAppended()
	QuestionsIngested("leetcode", 3)

	Middleware(http.NotFoundHandler()).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/media/a.mp3", nil))

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()

	for _, want := range []string{
		"interview_coach_practice_sessions_started_total",
		`interview_coach_feedback_requests_total{outcome="success"}`,
		"interview_coach_history_records_appended_total",
		`interview_coach_questions_ingested_total{source="leetcode"} 3`,
		`path="/api/media/{name}"`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %s in metrics output", want)
		}
	}
}

func TestRouteLabel(t *testing.T) {
	tests := map[string]string{
		"/api/media/20260301.mp3": "/api/media/{name}",
		"/api/practice/start":     "/api/practice/start",
		"/ws":                     "/ws",
		"/assets/app.js":          "/static",
	}
	for path, want := range tests {
		if got := routeLabel(path); got != want {
			t.Fatalf("routeLabel(%q) = %q, want %q", path, got, want)
		}
	}
}
