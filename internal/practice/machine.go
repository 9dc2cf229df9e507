// Package practice runs the practice session state machine: question
// selection, countdown, feedback request and history persistence.
package practice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sjawhar/interview-coach/internal/apperr"
	"github.com/sjawhar/interview-coach/internal/feedback"
	"github.com/sjawhar/interview-coach/internal/history"
	"github.com/sjawhar/interview-coach/internal/metrics"
	"github.com/sjawhar/interview-coach/internal/question"
)

type State string

const (
	Idle             State = "idle"
	Selecting        State = "selecting"
	Running          State = "running"
	AwaitingFeedback State = "awaiting_feedback"
	Reviewed         State = "reviewed"
)

// Event types broadcast by the machine.
const (
	EventSessionStarted  = "session_started"
	EventTimerTick       = "timer_tick"
	EventTimeUp          = "time_up"
	EventFeedbackPending = "feedback_pending"
	EventFeedbackReady   = "feedback_ready"
	EventFeedbackFailed  = "feedback_failed"
	EventSessionReset    = "session_reset"
)

const defaultFeedbackTimeout = 45 * time.Second

// Picker selects one question matching a filter.
type Picker interface {
	Pick(filter question.Filter) (question.Question, error)
}

// Resetter is the recorder hook released on reset.
type Resetter interface {
	Reset() error
}

type Broadcaster interface {
	BroadcastPractice(eventType string, snap Snapshot)
}

type Options struct {
	User            string
	Picker          Picker
	Feedback        feedback.Client
	History         history.Store
	Timer           TimerPolicy
	FeedbackTimeout time.Duration
	Recorder        Resetter
	Broadcaster     Broadcaster
}

// Snapshot is a copy of the transient session state.
type Snapshot struct {
	User        string             `json:"user"`
	SessionID   string             `json:"session_id,omitempty"`
	State       State              `json:"state"`
	Question    *question.Question `json:"question,omitempty"`
	Filter      question.Filter    `json:"filter"`
	Duration    int                `json:"duration_seconds"`
	Remaining   int                `json:"remaining_seconds"`
	TimerFrozen bool               `json:"timer_frozen"`
	Answer      string             `json:"answer"`
	Feedback    string             `json:"feedback,omitempty"`
	Error       string             `json:"error,omitempty"`
	Recording   string             `json:"recording,omitempty"`
}

// Machine owns one user's practice session. Input stays editable throughout
// Running, including after the countdown reaches zero; AwaitingFeedback
// rejects edits and resubmission with apperr.ErrBusy.
type Machine struct {
	opts      Options
	now       func() time.Time
	newTicker func(time.Duration) Ticker

	mu        sync.Mutex
	state     State
	sessionID string
	question  *question.Question
	filter    question.Filter
	duration  int
	remaining int
	frozen    bool
	answer    string
	feedback  string
	errMsg    string
	recording string

	// gen changes on every start and reset; late ticks and feedback results
	// carrying an older gen are dropped.
	gen       int
	stopTimer chan struct{}
	cancel    context.CancelFunc
}

func NewMachine(opts Options) *Machine {
	if opts.FeedbackTimeout <= 0 {
		opts.FeedbackTimeout = defaultFeedbackTimeout
	}
	return &Machine{
		opts:      opts,
		now:       time.Now,
		newTicker: newRealTicker,
		state:     Idle,
	}
}

// Start picks a question and starts the countdown. When nothing matches the
// filter the machine is left Idle and apperr.ErrNoMatch is returned.
func (m *Machine) Start(filter question.Filter) (Snapshot, error) {
	filter = filter.Normalize()

	m.mu.Lock()
	if m.state == AwaitingFeedback {
		snap := m.snapshotLocked()
		m.mu.Unlock()
		return snap, fmt.Errorf("start session: %w", apperr.ErrBusy)
	}

	m.haltLocked()
	m.clearLocked()
	m.filter = filter
	m.state = Selecting

	if m.opts.Picker == nil {
		m.state = Idle
		m.mu.Unlock()
		return m.Snapshot(), fmt.Errorf("%w: no question source configured", apperr.ErrNoMatch)
	}
	q, err := m.opts.Picker.Pick(filter)
	if err != nil {
		m.state = Idle
		snap := m.snapshotLocked()
		m.mu.Unlock()
		return snap, err
	}

	m.sessionID = uuid.NewString()
	m.question = &q
	m.duration = m.opts.Timer.Seconds(q.Difficulty)
	m.remaining = m.duration
	m.state = Running

	stop := make(chan struct{})
	m.stopTimer = stop
	go m.countdown(m.gen, m.newTicker(time.Second), stop)

	snap := m.snapshotLocked()
	m.mu.Unlock()

	metrics.SessionStarted()
	m.emit(EventSessionStarted, snap)
	return snap, nil
}

// NextQuestion starts a new session with the last filter. Only valid once
// feedback has been reviewed.
func (m *Machine) NextQuestion() (Snapshot, error) {
	m.mu.Lock()
	if m.state != Reviewed {
		snap := m.snapshotLocked()
		m.mu.Unlock()
		return snap, apperr.Validation("next question is only available after feedback")
	}
	filter := m.filter
	m.mu.Unlock()

	return m.Start(filter)
}

// SetDraft replaces the answer draft.
func (m *Machine) SetDraft(text string) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case Running:
		m.answer = text
		return m.snapshotLocked(), nil
	case AwaitingFeedback:
		return m.snapshotLocked(), fmt.Errorf("update draft: %w", apperr.ErrBusy)
	default:
		return m.snapshotLocked(), apperr.Validation("no question selected")
	}
}

// AttachRecording stores the reference of a finalized capture for the
// current session. It is ignored outside Running and AwaitingFeedback.
func (m *Machine) AttachRecording(ref string) Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == Running || m.state == AwaitingFeedback {
		m.recording = ref
	}
	return m.snapshotLocked()
}

// SubmitAnswer freezes the countdown and requests feedback. On success one
// history record is appended and the session moves to Reviewed. On failure
// the session returns to Running with the countdown still frozen so the
// answer can be resubmitted.
func (m *Machine) SubmitAnswer(ctx context.Context, text string) (Snapshot, error) {
	m.mu.Lock()
	switch m.state {
	case Running:
	case AwaitingFeedback:
		snap := m.snapshotLocked()
		m.mu.Unlock()
		return snap, fmt.Errorf("submit answer: %w", apperr.ErrBusy)
	default:
		snap := m.snapshotLocked()
		m.mu.Unlock()
		return snap, apperr.Validation("no question selected")
	}
	if strings.TrimSpace(text) == "" {
		snap := m.snapshotLocked()
		m.mu.Unlock()
		return snap, apperr.Validation("answer is required")
	}

	m.answer = text
	m.errMsg = ""
	m.frozen = true
	m.stopTimerLocked()
	m.state = AwaitingFeedback

	reqCtx, cancel := context.WithTimeout(ctx, m.opts.FeedbackTimeout)
	m.cancel = cancel
	gen := m.gen
	q := *m.question
	pending := m.snapshotLocked()
	m.mu.Unlock()

	m.emit(EventFeedbackPending, pending)

	started := m.now()
	fb, err := m.requestFeedback(reqCtx, q.Text, text)
	cancel()
	took := m.now().Sub(started)

	m.mu.Lock()
	if gen != m.gen {
		snap := m.snapshotLocked()
		m.mu.Unlock()
		metrics.FeedbackRequest(metrics.OutcomeCancelled, took)
		return snap, fmt.Errorf("%w: session was reset while awaiting feedback", apperr.ErrBusy)
	}
	m.cancel = nil

	if err != nil {
		m.state = Running
		m.errMsg = userMessage(err)
		snap := m.snapshotLocked()
		m.mu.Unlock()

		metrics.FeedbackRequest(metrics.OutcomeFailure, took)
		slog.Warn("practice: feedback request failed", "user", m.opts.User, "error", err)
		m.emit(EventFeedbackFailed, snap)
		return snap, err
	}

	metrics.FeedbackRequest(metrics.OutcomeSuccess, took)
	m.feedback = fb
	m.state = Reviewed

	record := history.Record{
		Timestamp:  m.now().UTC(),
		Question:   q.Text,
		Category:   string(q.Category),
		Difficulty: string(q.Difficulty),
		Answer:     text,
		Recording:  m.recording,
		Feedback:   fb,
	}
	var appendErr error
	if m.opts.History != nil {
		if appendErr = m.opts.History.Append(record); appendErr != nil {
			m.errMsg = "Feedback received, but the session could not be saved to history."
		} else {
			metrics.HistoryAppended()
		}
	}
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.emit(EventFeedbackReady, snap)
	if appendErr != nil {
		return snap, fmt.Errorf("save practice record: %w", appendErr)
	}
	return snap, nil
}

func (m *Machine) requestFeedback(ctx context.Context, questionText, answer string) (string, error) {
	if m.opts.Feedback == nil {
		return "", apperr.Service("request feedback", errors.New("no feedback client configured"))
	}
	text, err := m.opts.Feedback.RequestFeedback(ctx, questionText, answer)
	if err != nil {
		if apperr.Category(err) == nil {
			err = apperr.Service("request feedback", err)
		}
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", apperr.Service("request feedback", errors.New("empty feedback"))
	}
	return text, nil
}

// Reset cancels any in-flight feedback request, releases the recorder and
// clears all transient state. Calling it repeatedly is harmless.
func (m *Machine) Reset() Snapshot {
	m.mu.Lock()
	active := m.state != Idle || m.question != nil || m.answer != "" || m.errMsg != ""
	m.haltLocked()
	m.clearLocked()
	m.filter = question.Filter{}
	m.state = Idle
	snap := m.snapshotLocked()
	m.mu.Unlock()

	if m.opts.Recorder != nil {
		if err := m.opts.Recorder.Reset(); err != nil {
			slog.Warn("practice: recorder reset failed", "user", m.opts.User, "error", err)
		}
	}
	if active {
		m.emit(EventSessionReset, snap)
	}
	return snap
}

func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Machine) countdown(gen int, t Ticker, stop <-chan struct{}) {
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C():
			snap, event, more := m.tick(gen)
			if event != "" {
				m.emit(event, snap)
			}
			if !more {
				return
			}
		}
	}
}

// tick applies one second of countdown if the session is still running and
// unfrozen. It reports whether further ticks are needed.
func (m *Machine) tick(gen int) (Snapshot, string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen || m.state != Running || m.frozen || m.remaining <= 0 {
		return Snapshot{}, "", false
	}
	m.remaining--
	if m.remaining == 0 {
		return m.snapshotLocked(), EventTimeUp, false
	}
	return m.snapshotLocked(), EventTimerTick, true
}

// haltLocked invalidates the current session's countdown and feedback request.
func (m *Machine) haltLocked() {
	m.gen++
	m.stopTimerLocked()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

func (m *Machine) stopTimerLocked() {
	if m.stopTimer != nil {
		close(m.stopTimer)
		m.stopTimer = nil
	}
}

func (m *Machine) clearLocked() {
	m.sessionID = ""
	m.question = nil
	m.duration = 0
	m.remaining = 0
	m.frozen = false
	m.answer = ""
	m.feedback = ""
	m.errMsg = ""
	m.recording = ""
}

func (m *Machine) snapshotLocked() Snapshot {
	snap := Snapshot{
		User:        m.opts.User,
		SessionID:   m.sessionID,
		State:       m.state,
		Filter:      m.filter,
		Duration:    m.duration,
		Remaining:   m.remaining,
		TimerFrozen: m.frozen,
		Answer:      m.answer,
		Feedback:    m.feedback,
		Error:       m.errMsg,
		Recording:   m.recording,
	}
	if m.question != nil {
		q := *m.question
		snap.Question = &q
	}
	return snap
}

func (m *Machine) emit(eventType string, snap Snapshot) {
	if m.opts.Broadcaster != nil {
		m.opts.Broadcaster.BroadcastPractice(eventType, snap)
	}
}

func userMessage(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "Feedback timed out. Please try again."
	case errors.Is(err, apperr.ErrService):
		return "Could not get feedback right now. Please try again."
	default:
		return err.Error()
	}
}
