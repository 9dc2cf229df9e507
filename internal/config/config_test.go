package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"LISTEN_ADDR", "DB_PATH", "MEDIA_DIR", "JOURNAL_DIR", "DEFAULT_USER", "QUESTION_SOURCE",
		"TIMER_DEFAULT", "TIMER_EASY", "TIMER_MEDIUM", "TIMER_HARD",
		"FEEDBACK_MODEL", "FEEDBACK_TIMEOUT", "FEEDBACK_RETRIES", "FEEDBACK_URL",
		"MIC_SAMPLE_RATE", "MIC_SAMPLE_RATES", "TRANSCRIPTION_LANGUAGE",
		"INGEST_ENABLED", "INGEST_INTERVAL", "INGEST_LIMIT", "CORS_ORIGINS",
		"GDRIVE_FOLDER_ID", "GOOGLE_CREDENTIALS_FILE",
		"GEMINI_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY", "DEEPGRAM_API_KEY",
	} {
		t.Setenv(EnvPrefix+key, "")
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)

	cfg, _, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DBPath != "data/interview-coach.db" {
		t.Fatalf("expected default db_path, got %q", cfg.DBPath)
	}
	if cfg.MediaDir != "data/media" {
		t.Fatalf("expected default media_dir, got %q", cfg.MediaDir)
	}
	if cfg.DefaultUser != "local" {
		t.Fatalf("expected default user local, got %q", cfg.DefaultUser)
	}
	if cfg.QuestionSource != QuestionSourceStore {
		t.Fatalf("expected store question source, got %q", cfg.QuestionSource)
	}
	if cfg.DefaultTimer() != 60*time.Second {
		t.Fatalf("expected default timer 60s, got %v", cfg.DefaultTimer())
	}
	want := map[string]time.Duration{"Easy": 60 * time.Second, "Medium": 120 * time.Second, "Hard": 180 * time.Second}
	if got := cfg.TimerTable(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected timer table: got=%v want=%v", got, want)
	}
	if cfg.FeedbackModel != "gemini/gemini-1.5-flash" {
		t.Fatalf("expected default feedback_model, got %q", cfg.FeedbackModel)
	}
	if cfg.ParsedFeedbackTimeout() != 45*time.Second {
		t.Fatalf("expected default feedback timeout 45s, got %v", cfg.ParsedFeedbackTimeout())
	}
	if cfg.Ingest.Enabled {
		t.Fatal("expected ingestion disabled by default")
	}
	if cfg.IngestInterval() != 24*time.Hour {
		t.Fatalf("expected default ingest interval 24h, got %v", cfg.IngestInterval())
	}
}

func TestYAMLLoading(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	yamlContent := `
listen_addr: 127.0.0.1:9000
db_path: /custom/db.sqlite
media_dir: /custom/media
question_source: static
timer:
  default: 90s
  by_difficulty:
    Hard: 5m
feedback_model: openai/gpt-4o-mini
feedback_retries: 2
mic_sample_rate: 48000
mic_sample_rates: [44100, 32000]
ingest:
  enabled: true
  interval: 6h
  limit: 20
cors_origins: [http://localhost:3000]
gdrive_folder_id: my-folder
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ListenAddr != "127.0.0.1:9000" {
		t.Fatalf("expected yaml listen_addr, got %q", cfg.ListenAddr)
	}
	if cfg.DBPath != "/custom/db.sqlite" {
		t.Fatalf("expected yaml db_path, got %q", cfg.DBPath)
	}
	if cfg.QuestionSource != QuestionSourceStatic {
		t.Fatalf("expected yaml question_source, got %q", cfg.QuestionSource)
	}
	if cfg.DefaultTimer() != 90*time.Second {
		t.Fatalf("expected yaml timer default, got %v", cfg.DefaultTimer())
	}
	if got := cfg.TimerTable(); !reflect.DeepEqual(got, map[string]time.Duration{"Hard": 5 * time.Minute}) {
		t.Fatalf("expected yaml timer table to replace defaults, got %v", got)
	}
	if cfg.FeedbackModel != "openai/gpt-4o-mini" || cfg.FeedbackRetries != 2 {
		t.Fatalf("expected yaml feedback settings, got %q retries=%d", cfg.FeedbackModel, cfg.FeedbackRetries)
	}
	if !reflect.DeepEqual(cfg.MicSampleRates, []int{44100, 32000}) {
		t.Fatalf("expected yaml mic_sample_rates, got %v", cfg.MicSampleRates)
	}
	if !cfg.Ingest.Enabled || cfg.IngestInterval() != 6*time.Hour || cfg.Ingest.Limit != 20 {
		t.Fatalf("expected yaml ingest settings, got %+v", cfg.Ingest)
	}
	if !reflect.DeepEqual(cfg.CORSOrigins, []string{"http://localhost:3000"}) {
		t.Fatalf("expected yaml cors_origins, got %v", cfg.CORSOrigins)
	}
	if cfg.GDriveFolderID != "my-folder" {
		t.Fatalf("expected yaml gdrive_folder_id, got %q", cfg.GDriveFolderID)
	}
}

func TestEnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	yamlContent := `
db_path: /from/yaml
feedback_model: openai/gpt-yaml
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	clearEnv(t)
	t.Setenv(EnvPrefix+"DB_PATH", "/from/env")
	t.Setenv(EnvPrefix+"FEEDBACK_MODEL", "anthropic/claude-env")
	t.Setenv(EnvPrefix+"MEDIA_DIR", "/env/media")
	t.Setenv(EnvPrefix+"CORS_ORIGINS", "http://a.test, http://b.test")

	cfg, _, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DBPath != "/from/env" {
		t.Fatalf("expected env override for db_path, got %q", cfg.DBPath)
	}
	if cfg.FeedbackModel != "anthropic/claude-env" {
		t.Fatalf("expected env override for feedback_model, got %q", cfg.FeedbackModel)
	}
	if cfg.MediaDir != "/env/media" {
		t.Fatalf("expected env override for media_dir, got %q", cfg.MediaDir)
	}
	if !reflect.DeepEqual(cfg.CORSOrigins, []string{"http://a.test", "http://b.test"}) {
		t.Fatalf("expected env cors origins, got %v", cfg.CORSOrigins)
	}
}

func TestTimerEnvAcceptsBareSeconds(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPrefix+"TIMER_EASY", "30")
	t.Setenv(EnvPrefix+"TIMER_HARD", "4m")

	cfg, _, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	table := cfg.TimerTable()
	if table["Easy"] != 30*time.Second {
		t.Fatalf("expected Easy 30s, got %v", table["Easy"])
	}
	if table["Medium"] != 120*time.Second {
		t.Fatalf("expected Medium default to survive, got %v", table["Medium"])
	}
	if table["Hard"] != 4*time.Minute {
		t.Fatalf("expected Hard 4m, got %v", table["Hard"])
	}
}

func TestSecretsFromEnvOnly(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPrefix+"DEEPGRAM_API_KEY", "dg-secret")
	t.Setenv(EnvPrefix+"GEMINI_API_KEY", "gm-secret")
	t.Setenv(EnvPrefix+"ANTHROPIC_API_KEY", "an-secret")

	cfg, _, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DeepgramAPIKey != "dg-secret" {
		t.Fatalf("expected deepgram key from env, got %q", cfg.DeepgramAPIKey)
	}
	if cfg.APIKeyFor("gemini") != "gm-secret" {
		t.Fatalf("expected gemini key from env, got %q", cfg.APIKeyFor("gemini"))
	}
	if cfg.APIKeyFor("anthropic") != "an-secret" {
		t.Fatalf("expected anthropic key from env, got %q", cfg.APIKeyFor("anthropic"))
	}
	if cfg.APIKeyFor("unknown") != "" {
		t.Fatal("expected empty key for unknown provider")
	}
}

func TestSecretsIgnoredInYAML(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	yamlContent := `
deepgram_api_key: should-be-ignored
gemini_api_key: also-ignored
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DeepgramAPIKey != "" {
		t.Fatalf("expected empty deepgram key (yaml should be ignored), got %q", cfg.DeepgramAPIKey)
	}
	if cfg.GeminiAPIKey != "" {
		t.Fatalf("expected empty gemini key (yaml should be ignored), got %q", cfg.GeminiAPIKey)
	}
}

func TestValidationWarnings(t *testing.T) {
	clearEnv(t)

	_, warnings, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	var deepgramWarning, feedbackWarning bool
	for _, w := range warnings {
		if strings.Contains(w, "Deepgram") {
			deepgramWarning = true
		}
		if strings.Contains(w, "gemini API key") {
			feedbackWarning = true
		}
	}

	if !deepgramWarning {
		t.Fatalf("expected Deepgram warning when key is missing, got warnings: %v", warnings)
	}
	if !feedbackWarning {
		t.Fatalf("expected feedback provider warning when key is missing, got warnings: %v", warnings)
	}
}

func TestValidationNoWarningsWhenConfigured(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPrefix+"DEEPGRAM_API_KEY", "key")
	t.Setenv(EnvPrefix+"GEMINI_API_KEY", "key")

	_, warnings, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(warnings) != 0 {
		t.Fatalf("expected no warnings when fully configured, got: %v", warnings)
	}
}

func TestInvalidTimerWarning(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPrefix+"DEEPGRAM_API_KEY", "key")
	t.Setenv(EnvPrefix+"GEMINI_API_KEY", "key")
	t.Setenv(EnvPrefix+"TIMER_DEFAULT", "not-a-duration")

	cfg, warnings, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(warnings) != 1 || !strings.Contains(warnings[0], "timer.default") {
		t.Fatalf("expected timer.default warning, got: %v", warnings)
	}
	if cfg.DefaultTimer() != 60*time.Second {
		t.Fatalf("expected fallback to 60s, got %v", cfg.DefaultTimer())
	}
}

func TestInvalidFeedbackModelWarning(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPrefix+"DEEPGRAM_API_KEY", "key")
	t.Setenv(EnvPrefix+"FEEDBACK_MODEL", "gemini")

	_, warnings, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(warnings) != 1 || !strings.Contains(warnings[0], "feedback_model") {
		t.Fatalf("expected feedback_model warning, got: %v", warnings)
	}
}

func TestFeedbackEndpoint(t *testing.T) {
	tests := []struct {
		name        string
		url         string
		wantURL     string
		wantRemote  bool
		wantWarning string
	}{
		{name: "unset uses model", wantWarning: "gemini API key"},
		{name: "remote skips model keys", url: " https://coach.example.com ", wantURL: "https://coach.example.com", wantRemote: true},
		{name: "bad scheme falls back", url: "ftp://coach.example.com", wantWarning: "feedback_url"},
		{name: "no host falls back", url: "http://", wantWarning: "feedback_url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(EnvPrefix+"DEEPGRAM_API_KEY", "key")
			t.Setenv(EnvPrefix+"FEEDBACK_URL", tt.url)

			cfg, warnings, err := Load("")
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			got, remote := cfg.FeedbackEndpoint()
			if remote != tt.wantRemote || got != tt.wantURL {
				t.Fatalf("expected (%q, %v), got (%q, %v)", tt.wantURL, tt.wantRemote, got, remote)
			}
			if tt.wantWarning == "" {
				if len(warnings) != 0 {
					t.Fatalf("expected no warnings, got %v", warnings)
				}
				return
			}
			var found bool
			for _, w := range warnings {
				found = found || strings.Contains(w, tt.wantWarning)
			}
			if !found {
				t.Fatalf("expected %q warning, got %v", tt.wantWarning, warnings)
			}
		})
	}
}

func TestFeedbackURLFromYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("feedback_url: http://localhost:9000\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got, ok := cfg.FeedbackEndpoint(); !ok || got != "http://localhost:9000" {
		t.Fatalf("expected yaml feedback_url, got %q %v", got, ok)
	}
}

func TestUnknownQuestionSourceFallsBack(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPrefix+"QUESTION_SOURCE", "mongo")

	cfg, warnings, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.QuestionSource != QuestionSourceStore {
		t.Fatalf("expected fallback to store, got %q", cfg.QuestionSource)
	}
	found := false
	for _, w := range warnings {
		if strings.Contains(w, "question_source") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected question_source warning, got %v", warnings)
	}
}

func TestMissingConfigFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, _, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("Load should not fail for missing config file, got: %v", err)
	}

	if cfg.DBPath != "data/interview-coach.db" {
		t.Fatalf("expected defaults when config file missing, got db_path=%q", cfg.DBPath)
	}
}

func TestInvalidConfigFileReturnsError(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(configPath, []byte(":::invalid yaml"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	clearEnv(t)

	_, _, err := Load(configPath)
	if err == nil {
		t.Fatal("expected error for invalid yaml, got nil")
	}
}

func TestSampleRateCandidatesDefault(t *testing.T) {
	cfg := defaults()
	got := cfg.SampleRateCandidates()
	want := []int{16000, 48000, 44100, 32000, 24000}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected default sample rates: got=%v want=%v", got, want)
	}
}

func TestSampleRateCandidatesEnvOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPrefix+"MIC_SAMPLE_RATE", "48000")
	t.Setenv(EnvPrefix+"MIC_SAMPLE_RATES", "44100,16000,48000,abc,32000")

	cfg, _, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	got := cfg.SampleRateCandidates()
	want := []int{48000, 44100, 16000, 32000, 24000}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected env sample rates: got=%v want=%v", got, want)
	}
}

func TestParseSampleRates(t *testing.T) {
	got := parseSampleRates(" 16000,  ,invalid,0,-1,44100,16000 ")
	want := []int{16000, 44100}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected parsed sample rates: got=%v want=%v", got, want)
	}
}
