package main

import (
	"context"
	"embed"
	"errors"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/sjawhar/interview-coach/internal/config"
	"github.com/sjawhar/interview-coach/internal/feedback"
	"github.com/sjawhar/interview-coach/internal/gdrive"
	"github.com/sjawhar/interview-coach/internal/history"
	"github.com/sjawhar/interview-coach/internal/ingest"
	"github.com/sjawhar/interview-coach/internal/llm"
	"github.com/sjawhar/interview-coach/internal/practice"
	"github.com/sjawhar/interview-coach/internal/question"
	"github.com/sjawhar/interview-coach/internal/recorder"
	"github.com/sjawhar/interview-coach/internal/server"
	"github.com/sjawhar/interview-coach/internal/storage"
	"github.com/sjawhar/interview-coach/internal/transcribe"
)

//go:embed static/*
var staticFiles embed.FS

const (
	gdriveInterval = 5 * time.Minute

	// Coaching output is a few short markdown sections.
	feedbackMaxTokens   = 1024
	feedbackTemperature = 0.4
)

// users scopes per-user state to the shared store.
type users struct {
	store    *storage.SQLiteStore
	journal  history.Journal
	registry *practice.Registry
}

func (u users) Practice(user string) server.PracticeSession { return u.registry.Get(user) }

func (u users) History(user string) history.Store {
	return history.WithJournal(history.NewKVStore(u.store, user), u.journal)
}

func (u users) Custom(user string) server.CustomQuestions {
	return question.NewCustomList(u.store, user)
}

func main() {
	log.Println("interview-coach: starting")

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("warning: .env not loaded: %v", err)
	}

	configPath := os.Getenv(config.EnvPrefix + "CONFIG")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, warnings, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	for _, w := range warnings {
		log.Printf("warning: %s", w)
	}

	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("storage init failed: %v", err)
	}
	defer func() { _ = store.Close() }()

	var base question.Source = question.NewStatic(question.Starter())
	if cfg.QuestionSource == config.QuestionSourceStore {
		seeded, err := store.SeedQuestions(question.Starter())
		if err != nil {
			log.Fatalf("seed questions failed: %v", err)
		}
		if seeded > 0 {
			log.Printf("seeded %d starter questions", seeded)
		}
		base = store
	}

	assets, err := fs.Sub(staticFiles, "static")
	if err != nil {
		log.Fatalf("static assets init failed: %v", err)
	}

	hub := server.NewHub()
	journal := storage.NewWriter(cfg.JournalDir)

	coach := newFeedbackClient(&cfg)

	var rec *recorder.Recorder
	teardown, err := recorder.InitAudio()
	if err != nil {
		log.Printf("warning: audio unavailable, capture disabled: %v", err)
	} else {
		defer teardown()
		rec = recorder.New(recorder.NewMic(cfg.SampleRateCandidates()), recorder.Options{
			MediaDir: cfg.MediaDir,
			Probe: func() (transcribe.Recognizer, bool) {
				return transcribe.Probe(cfg.DeepgramAPIKey, cfg.TranscriptionLanguage)
			},
			Sink: hub.BroadcastRecorder,
		})
		defer func() { _ = rec.Close() }()
	}

	timer := practice.TimerPolicy{Default: cfg.DefaultTimer(), ByDifficulty: cfg.TimerTable()}
	u := users{store: store, journal: journal}
	u.registry = practice.NewRegistry(func(user string) *practice.Machine {
		opts := practice.Options{
			User:            user,
			Picker:          question.NewPool(base, question.NewCustomList(store, user)),
			Feedback:        coach,
			History:         u.History(user),
			Timer:           timer,
			FeedbackTimeout: cfg.ParsedFeedbackTimeout(),
			Broadcaster:     hub,
		}
		if rec != nil {
			opts.Recorder = rec
		}
		return practice.NewMachine(opts)
	})
	defer u.registry.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var ingester *ingest.Ingester
	var scheduler *ingest.Scheduler
	if cfg.QuestionSource == config.QuestionSourceStore {
		ingester = ingest.New(store, ingest.DefaultSources(&http.Client{Timeout: 30 * time.Second}, cfg.Ingest.Limit))
		if cfg.Ingest.Enabled {
			scheduler = ingest.NewScheduler(ingester, 2*time.Minute)
			if err := scheduler.Start(cfg.IngestInterval()); err != nil {
				log.Printf("warning: ingestion scheduler disabled: %v", err)
				scheduler = nil
			} else {
				log.Printf("question ingestion every %s", cfg.IngestInterval())
			}
		}
	}

	if cfg.GDriveFolderID != "" {
		syncer, syncErr := gdrive.NewSyncer(ctx, cfg.GoogleCredentialsFile, cfg.GDriveFolderID)
		if syncErr != nil {
			log.Printf("warning: gdrive sync disabled: %v", syncErr)
		} else {
			go syncer.Run(ctx, gdriveInterval, journal.CurrentPath)
		}
	}

	deps := server.Deps{
		Questions:   base,
		Users:       u,
		Feedback:    coach,
		DefaultUser: cfg.DefaultUser,
		Location:    time.Local,
		Warnings:    func() []string { return warnings },
		CORSOrigins: cfg.CORSOrigins,
	}
	if rec != nil {
		deps.Recorder = rec
	}
	if ingester != nil {
		deps.Ingester = ingester
	}

	handler, err := server.Handler(assets, hub, deps)
	if err != nil {
		log.Fatalf("build http handler failed: %v", err)
	}

	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	log.Printf("interview-coach: web UI on http://%s", displayAddr(cfg.ListenAddr))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Println("interview-coach: shutting down")
	cancel()

	if scheduler != nil {
		scheduler.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("warning: http shutdown failed: %v", err)
	}
}

// newFeedbackClient prefers a remote coaching endpoint when one is configured
// and otherwise asks the configured LLM directly.
func newFeedbackClient(cfg *config.Config) feedback.Client {
	if endpoint, ok := cfg.FeedbackEndpoint(); ok {
		log.Printf("feedback from remote endpoint %s", endpoint)
		return feedback.NewHTTPClient(endpoint, &http.Client{Timeout: cfg.ParsedFeedbackTimeout()})
	}
	return feedback.NewGenerator(cfg.FeedbackModel, func(provider, model string) (llm.Client, error) {
		return llm.NewClient(provider, cfg.APIKeyFor(provider), model,
			llm.WithMaxTokens(feedbackMaxTokens), llm.WithTemperature(feedbackTemperature))
	}, cfg.FeedbackRetries)
}

func displayAddr(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "127.0.0.1" + addr
	}
	return addr
}
