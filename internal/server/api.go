package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/sjawhar/interview-coach/internal/apperr"
	"github.com/sjawhar/interview-coach/internal/feedback"
	"github.com/sjawhar/interview-coach/internal/history"
	"github.com/sjawhar/interview-coach/internal/practice"
	"github.com/sjawhar/interview-coach/internal/question"
	"github.com/sjawhar/interview-coach/internal/recorder"
)

const (
	userHeader   = "X-User-ID"
	maxBodyBytes = 1 << 20
	insightTopN  = 2
)

var (
	userIDPattern    = regexp.MustCompile(`^[a-zA-Z0-9_.@-]{1,128}$`)
	mediaNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+\.(mp3|wav)$`)
)

// PracticeSession is one user's state machine.
type PracticeSession interface {
	Snapshot() practice.Snapshot
	Start(filter question.Filter) (practice.Snapshot, error)
	SubmitAnswer(ctx context.Context, text string) (practice.Snapshot, error)
	SetDraft(text string) (practice.Snapshot, error)
	NextQuestion() (practice.Snapshot, error)
	AttachRecording(ref string) practice.Snapshot
	Reset() practice.Snapshot
}

type CustomQuestions interface {
	List() ([]question.Question, error)
	Add(q question.Question) (question.Question, error)
}

// Users resolves the per-user stores behind a request.
type Users interface {
	Practice(user string) PracticeSession
	History(user string) history.Store
	Custom(user string) CustomQuestions
}

type Recorder interface {
	StartCapture() error
	StopCapture() (recorder.Media, error)
	StartTranscription() error
	StopTranscription()
	Reset() error
	Status() recorder.Status
	MediaDir() string
}

type Ingester interface {
	Run(ctx context.Context) (map[string]int, error)
}

type Deps struct {
	Questions   question.Source
	Users       Users
	Feedback    feedback.Client
	Recorder    Recorder
	Ingester    Ingester
	DefaultUser string
	// Location buckets history stats by calendar day.
	Location    *time.Location
	Warnings    func() []string
	CORSOrigins []string
}

func registerAPIRoutes(mux *http.ServeMux, hub *Hub, deps Deps) {
	registerQuestionRoutes(mux, deps)
	registerPracticeRoutes(mux, deps)
	registerRecorderRoutes(mux, deps)
	registerHistoryRoutes(mux, deps)

	mux.HandleFunc("POST /api/feedback", func(w http.ResponseWriter, r *http.Request) {
		var req feedback.Request
		if err := decodeBody(r, &req); err != nil {
			writeAppError(w, err)
			return
		}
		if err := apperr.Check(req); err != nil {
			writeJSONError(w, http.StatusBadRequest, feedback.MissingInputMessage)
			return
		}
		if deps.Feedback == nil {
			writeJSONError(w, http.StatusBadGateway, "feedback is not configured")
			return
		}

		text, err := deps.Feedback.RequestFeedback(r.Context(), req.Question, req.Answer)
		if err != nil {
			status := statusFor(err)
			if status == http.StatusInternalServerError {
				status = http.StatusBadGateway
			}
			writeJSONError(w, status, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, feedback.Response{Feedback: text})
	})

	fetchQuestions := func(w http.ResponseWriter, r *http.Request) {
		if deps.Ingester == nil {
			writeJSONError(w, http.StatusNotImplemented, "question ingestion is not configured")
			return
		}

		inserted, err := deps.Ingester.Run(r.Context())
		if hub != nil && len(inserted) > 0 {
			hub.BroadcastQuestionsIngested(inserted)
		}
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "inserted": inserted, "error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "inserted": inserted})
	}
	// Scheduled cron callers issue GET.
	mux.HandleFunc("GET /api/cron/fetch-questions", fetchQuestions)
	mux.HandleFunc("POST /api/cron/fetch-questions", fetchQuestions)

	mux.HandleFunc("GET /api/status", func(w http.ResponseWriter, r *http.Request) {
		var warnings []string
		if deps.Warnings != nil {
			warnings = deps.Warnings()
		}
		if warnings == nil {
			warnings = []string{}
		}

		body := map[string]any{
			"warnings":                warnings,
			"default_user":            deps.DefaultUser,
			"feedback_configured":     deps.Feedback != nil,
			"ingestion_configured":    deps.Ingester != nil,
			"capture_supported":       deps.Recorder != nil,
			"transcription_supported": false,
		}
		if deps.Recorder != nil {
			st := deps.Recorder.Status()
			body["recorder"] = st
			body["transcription_supported"] = st.TranscriptionSupported
		}
		writeJSON(w, http.StatusOK, body)
	})
}

func registerQuestionRoutes(mux *http.ServeMux, deps Deps) {
	mux.HandleFunc("GET /api/questions", func(w http.ResponseWriter, r *http.Request) {
		filter := question.Filter{
			Category:   r.URL.Query().Get("category"),
			Difficulty: r.URL.Query().Get("difficulty"),
		}.Normalize()

		qs := []question.Question{}
		if deps.Questions != nil {
			found, err := deps.Questions.Questions(filter)
			if err != nil {
				writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("list questions: %v", err))
				return
			}
			qs = question.Apply(found, filter)
		}
		writeJSON(w, http.StatusOK, qs)
	})

	mux.HandleFunc("GET /api/questions/custom", func(w http.ResponseWriter, r *http.Request) {
		user, ok := userFrom(w, r, deps)
		if !ok {
			return
		}
		qs, err := deps.Users.Custom(user).List()
		if err != nil {
			writeAppError(w, err)
			return
		}
		if qs == nil {
			qs = []question.Question{}
		}
		writeJSON(w, http.StatusOK, qs)
	})

	mux.HandleFunc("POST /api/questions/custom", func(w http.ResponseWriter, r *http.Request) {
		user, ok := userFrom(w, r, deps)
		if !ok {
			return
		}
		var q question.Question
		if err := decodeBody(r, &q); err != nil {
			writeAppError(w, err)
			return
		}
		q, err := question.Prepare(q)
		if err != nil {
			writeAppError(w, err)
			return
		}
		added, err := deps.Users.Custom(user).Add(q)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, added)
	})
}

type answerRequest struct {
	Answer string `json:"answer"`
}

func registerPracticeRoutes(mux *http.ServeMux, deps Deps) {
	mux.HandleFunc("GET /api/practice", func(w http.ResponseWriter, r *http.Request) {
		user, ok := userFrom(w, r, deps)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, deps.Users.Practice(user).Snapshot())
	})

	mux.HandleFunc("POST /api/practice/start", func(w http.ResponseWriter, r *http.Request) {
		user, ok := userFrom(w, r, deps)
		if !ok {
			return
		}
		var filter question.Filter
		if err := decodeOptionalBody(r, &filter); err != nil {
			writeAppError(w, err)
			return
		}
		snap, err := deps.Users.Practice(user).Start(filter)
		writePractice(w, snap, err)
	})

	mux.HandleFunc("POST /api/practice/answer", func(w http.ResponseWriter, r *http.Request) {
		user, ok := userFrom(w, r, deps)
		if !ok {
			return
		}
		var req answerRequest
		if err := decodeBody(r, &req); err != nil {
			writeAppError(w, err)
			return
		}
		snap, err := deps.Users.Practice(user).SubmitAnswer(r.Context(), req.Answer)
		writePractice(w, snap, err)
	})

	mux.HandleFunc("PUT /api/practice/draft", func(w http.ResponseWriter, r *http.Request) {
		user, ok := userFrom(w, r, deps)
		if !ok {
			return
		}
		var req answerRequest
		if err := decodeBody(r, &req); err != nil {
			writeAppError(w, err)
			return
		}
		snap, err := deps.Users.Practice(user).SetDraft(req.Answer)
		writePractice(w, snap, err)
	})

	mux.HandleFunc("POST /api/practice/next", func(w http.ResponseWriter, r *http.Request) {
		user, ok := userFrom(w, r, deps)
		if !ok {
			return
		}
		snap, err := deps.Users.Practice(user).NextQuestion()
		writePractice(w, snap, err)
	})

	mux.HandleFunc("POST /api/practice/reset", func(w http.ResponseWriter, r *http.Request) {
		user, ok := userFrom(w, r, deps)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, deps.Users.Practice(user).Reset())
	})
}

func registerRecorderRoutes(mux *http.ServeMux, deps Deps) {
	withRecorder := func(fn func(w http.ResponseWriter, r *http.Request, rec Recorder)) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if deps.Recorder == nil {
				writeJSONError(w, http.StatusNotImplemented, "capture is not available on this host")
				return
			}
			fn(w, r, deps.Recorder)
		}
	}

	mux.HandleFunc("GET /api/recorder", withRecorder(func(w http.ResponseWriter, r *http.Request, rec Recorder) {
		writeJSON(w, http.StatusOK, rec.Status())
	}))

	mux.HandleFunc("POST /api/recorder/capture/start", withRecorder(func(w http.ResponseWriter, r *http.Request, rec Recorder) {
		if err := rec.StartCapture(); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rec.Status())
	}))

	mux.HandleFunc("POST /api/recorder/capture/stop", withRecorder(func(w http.ResponseWriter, r *http.Request, rec Recorder) {
		user, ok := userFrom(w, r, deps)
		if !ok {
			return
		}
		media, err := rec.StopCapture()
		if err != nil {
			writeAppError(w, err)
			return
		}
		snap := deps.Users.Practice(user).AttachRecording(media.URL)
		writeJSON(w, http.StatusOK, map[string]any{"media": media, "practice": snap})
	}))

	mux.HandleFunc("POST /api/recorder/transcription/start", withRecorder(func(w http.ResponseWriter, r *http.Request, rec Recorder) {
		if err := rec.StartTranscription(); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rec.Status())
	}))

	mux.HandleFunc("POST /api/recorder/transcription/stop", withRecorder(func(w http.ResponseWriter, r *http.Request, rec Recorder) {
		rec.StopTranscription()
		writeJSON(w, http.StatusOK, rec.Status())
	}))

	mux.HandleFunc("POST /api/recorder/reset", withRecorder(func(w http.ResponseWriter, r *http.Request, rec Recorder) {
		if err := rec.Reset(); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rec.Status())
	}))

	mux.HandleFunc("GET /api/media/{name}", withRecorder(func(w http.ResponseWriter, r *http.Request, rec Recorder) {
		name := r.PathValue("name")
		if !mediaNamePattern.MatchString(name) {
			writeJSONError(w, http.StatusForbidden, "invalid media name")
			return
		}

		f, err := os.Open(filepath.Join(rec.MediaDir(), name))
		if err != nil {
			writeJSONError(w, http.StatusNotFound, "media not found")
			return
		}
		defer func() { _ = f.Close() }()

		info, err := f.Stat()
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("stat media: %v", err))
			return
		}

		w.Header().Set("Accept-Ranges", "bytes")
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		w.Header().Set("Content-Type", contentTypeForAudio(name))
		http.ServeContent(w, r, name, info.ModTime(), f)
	}))
}

func registerHistoryRoutes(mux *http.ServeMux, deps Deps) {
	mux.HandleFunc("GET /api/history", func(w http.ResponseWriter, r *http.Request) {
		user, ok := userFrom(w, r, deps)
		if !ok {
			return
		}
		records, err := deps.Users.History(user).List()
		if err != nil {
			writeAppError(w, err)
			return
		}
		if records == nil {
			records = []history.Record{}
		}
		writeJSON(w, http.StatusOK, records)
	})

	mux.HandleFunc("DELETE /api/history", func(w http.ResponseWriter, r *http.Request) {
		user, ok := userFrom(w, r, deps)
		if !ok {
			return
		}
		if r.URL.Query().Get("confirm") != "true" {
			writeJSONError(w, http.StatusBadRequest, "clearing history requires confirm=true")
			return
		}
		if err := deps.Users.History(user).Clear(); err != nil {
			writeAppError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /api/history/stats", func(w http.ResponseWriter, r *http.Request) {
		user, ok := userFrom(w, r, deps)
		if !ok {
			return
		}
		records, err := deps.Users.History(user).List()
		if err != nil {
			writeAppError(w, err)
			return
		}

		loc := deps.Location
		if tz := r.URL.Query().Get("tz"); tz != "" {
			parsed, err := time.LoadLocation(tz)
			if err != nil {
				writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid tz %q", tz))
				return
			}
			loc = parsed
		}
		writeJSON(w, http.StatusOK, history.Summarize(records, loc, insightTopN))
	})
}

// userFrom resolves the user scope from the X-User-ID header, then the user
// query parameter (browsers cannot set headers on a socket upgrade), then the
// configured default. It writes a 400 and reports false when the ID is malformed.
func userFrom(w http.ResponseWriter, r *http.Request, deps Deps) (string, bool) {
	user := strings.TrimSpace(r.Header.Get(userHeader))
	if user == "" {
		user = strings.TrimSpace(r.URL.Query().Get("user"))
	}
	if user == "" {
		user = deps.DefaultUser
	}
	if !userIDPattern.MatchString(user) {
		writeJSONError(w, http.StatusBadRequest, "invalid "+userHeader)
		return "", false
	}
	return user, true
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes)).Decode(v); err != nil {
		return apperr.Validation("invalid JSON body: %v", err)
	}
	return nil
}

// decodeOptionalBody treats an empty body as the zero value.
func decodeOptionalBody(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return apperr.Validation("invalid JSON body: %v", err)
}

// statusFor maps an error category to its HTTP status.
func statusFor(err error) int {
	switch apperr.Category(err) {
	case apperr.ErrValidation:
		return http.StatusBadRequest
	case apperr.ErrPermission:
		return http.StatusForbidden
	case apperr.ErrDevice:
		return http.StatusServiceUnavailable
	case apperr.ErrUnsupported:
		return http.StatusNotImplemented
	case apperr.ErrService:
		return http.StatusBadGateway
	case apperr.ErrNoMatch:
		return http.StatusNotFound
	case apperr.ErrBusy:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeAppError(w http.ResponseWriter, err error) {
	writeJSONError(w, statusFor(err), err.Error())
}

// writePractice returns the snapshot on success, and the error alongside the
// snapshot otherwise so the UI can keep rendering the session.
func writePractice(w http.ResponseWriter, snap practice.Snapshot, err error) {
	if err != nil {
		writeJSON(w, statusFor(err), map[string]any{"error": err.Error(), "practice": snap})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func contentTypeForAudio(path string) string {
	ext := filepath.Ext(path)
	switch ext {
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	default:
		return "application/octet-stream"
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
