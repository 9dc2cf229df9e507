// Package ingest refreshes the stored question set from public lists.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/sjawhar/interview-coach/internal/metrics"
	"github.com/sjawhar/interview-coach/internal/question"
)

// Inserter stores questions, skipping texts already present, and reports how
// many were new.
type Inserter interface {
	InsertQuestions(qs []question.Question) (int, error)
}

type Ingester struct {
	store   Inserter
	sources []Source

	// Only one run at a time; the scheduler and the HTTP trigger share it.
	mu sync.Mutex
}

func New(store Inserter, sources []Source) *Ingester {
	return &Ingester{store: store, sources: sources}
}

// Run fetches every source and inserts what is new. A failing source does not
// stop the others; its error is joined into the result.
func (i *Ingester) Run(ctx context.Context) (map[string]int, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	inserted := make(map[string]int, len(i.sources))
	var errs []error

	for _, src := range i.sources {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		qs, err := src.Fetch(ctx)
		if err != nil {
			slog.Warn("ingest: fetch failed", "source", src.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
			continue
		}

		n, err := i.store.InsertQuestions(dedupe(qs))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: insert: %w", src.Name(), err))
			continue
		}
		inserted[src.Name()] = n
		metrics.QuestionsIngested(src.Name(), n)
		slog.Info("ingest: source refreshed", "source", src.Name(), "fetched", len(qs), "inserted", n)
	}

	return inserted, errors.Join(errs...)
}

func dedupe(qs []question.Question) []question.Question {
	seen := make(map[string]struct{}, len(qs))
	out := qs[:0:0]
	for _, q := range qs {
		key := strings.TrimSpace(q.Text)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, q)
	}
	return out
}

// Scheduler runs the ingester on a fixed interval.
type Scheduler struct {
	scheduler *gocron.Scheduler
	ingester  *Ingester
	timeout   time.Duration
}

func NewScheduler(ingester *Ingester, timeout time.Duration) *Scheduler {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{scheduler: s, ingester: ingester, timeout: timeout}
}

// Start schedules a run every interval, the first one immediately.
func (s *Scheduler) Start(interval time.Duration) error {
	if _, err := s.scheduler.Every(interval).Do(s.runOnce); err != nil {
		return fmt.Errorf("schedule ingestion: %w", err)
	}
	s.scheduler.StartAsync()
	return nil
}

func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

func (s *Scheduler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if _, err := s.ingester.Run(ctx); err != nil {
		slog.Warn("ingest: scheduled run finished with errors", "error", err)
	}
}
