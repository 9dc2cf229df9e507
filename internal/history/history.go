// Package history keeps the user-scoped log of completed practice sessions.
package history

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/sjawhar/interview-coach/internal/apperr"
)

// Record is one completed practice session. It is created only after
// feedback was obtained and is never modified afterwards.
type Record struct {
	Timestamp  time.Time `json:"timestamp"`
	Question   string    `json:"question"`
	Category   string    `json:"category"`
	Difficulty string    `json:"difficulty"`
	Answer     string    `json:"answer"`
	Recording  string    `json:"recording,omitempty"`
	Feedback   string    `json:"aiFeedback,omitempty"`
}

// FormatMarkdown renders the record as a journal entry.
func (r Record) FormatMarkdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "### [%s] %s\n\n", r.Timestamp.Local().Format("15:04:05"), r.Question)
	fmt.Fprintf(&b, "_%s · %s_\n\n", r.Category, r.Difficulty)
	fmt.Fprintf(&b, "**Answer**\n\n%s\n", strings.TrimSpace(r.Answer))
	if r.Recording != "" {
		fmt.Fprintf(&b, "\nRecording: %s\n", r.Recording)
	}
	if feedback := strings.TrimSpace(r.Feedback); feedback != "" {
		fmt.Fprintf(&b, "\n%s\n", feedback)
	}
	return b.String()
}

// Store is the history log consumed by the practice flow.
type Store interface {
	Append(r Record) error
	List() ([]Record, error)
	Clear() error
}

// KV is the namespaced local-state store history persists in.
type KV interface {
	Get(key string) ([]byte, bool, error)
	Update(key string, fn func(current []byte) ([]byte, error)) error
	Delete(key string) error
}

// Key returns the namespaced key holding a user's history.
func Key(user string) string {
	return "practice-history:" + user
}

// KVStore keeps a user's records as one JSON array in insertion order.
type KVStore struct {
	kv  KV
	key string
}

func NewKVStore(kv KV, user string) *KVStore {
	return &KVStore{kv: kv, key: Key(user)}
}

func (s *KVStore) Append(r Record) error {
	err := s.kv.Update(s.key, func(current []byte) ([]byte, error) {
		records := []Record{}
		if current != nil {
			decoded, err := decode(current)
			if err != nil {
				return nil, err
			}
			records = decoded
		}
		records = append(records, r)
		return json.Marshal(records)
	})
	if err != nil {
		return fmt.Errorf("append history record: %w", err)
	}
	return nil
}

// List returns all records, most recent first. Equal timestamps keep
// reverse insertion order.
func (s *KVStore) List() ([]Record, error) {
	data, ok, err := s.kv.Get(s.key)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	if !ok {
		return []Record{}, nil
	}
	records, err := decode(data)
	if err != nil {
		return nil, err
	}

	out := make([]Record, len(records))
	for i, r := range records {
		out[len(records)-1-i] = r
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}

func (s *KVStore) Clear() error {
	if err := s.kv.Delete(s.key); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

func decode(data []byte) ([]Record, error) {
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: practice history: %v", apperr.ErrCorrupt, err)
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

// Journal receives a markdown copy of every appended record.
type Journal interface {
	Append(at time.Time, markdown string) error
}

type journaled struct {
	Store
	journal Journal
}

// WithJournal mirrors appended records to journal. Journal failures are
// logged and never fail the append.
func WithJournal(store Store, journal Journal) Store {
	if journal == nil {
		return store
	}
	return &journaled{Store: store, journal: journal}
}

func (j *journaled) Append(r Record) error {
	if err := j.Store.Append(r); err != nil {
		return err
	}
	if err := j.journal.Append(r.Timestamp, r.FormatMarkdown()); err != nil {
		slog.Warn("history: journal append failed", "error", err)
	}
	return nil
}
