package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sjawhar/interview-coach/internal/llm"
)

// EnvPrefix is the namespace prefix for all interview-coach environment variables.
const EnvPrefix = "INTERVIEW_COACH_"

const (
	QuestionSourceStatic = "static"
	QuestionSourceStore  = "store"
)

// Timer holds the countdown policy. ByDifficulty entries override Default.
type Timer struct {
	Default      string            `yaml:"default"`
	ByDifficulty map[string]string `yaml:"by_difficulty"`
}

// Ingest controls the background question ingestion job.
type Ingest struct {
	Enabled  bool   `yaml:"enabled"`
	Interval string `yaml:"interval"`
	Limit    int    `yaml:"limit"`
}

// Config holds all application configuration. Secrets (API keys) are loaded
// exclusively from environment variables and never appear in the config file.
type Config struct {
	ListenAddr            string   `yaml:"listen_addr"`
	DBPath                string   `yaml:"db_path"`
	MediaDir              string   `yaml:"media_dir"`
	JournalDir            string   `yaml:"journal_dir"`
	DefaultUser           string   `yaml:"default_user"`
	QuestionSource        string   `yaml:"question_source"`
	Timer                 Timer    `yaml:"timer"`
	FeedbackModel         string   `yaml:"feedback_model"`
	FeedbackTimeout       string   `yaml:"feedback_timeout"`
	FeedbackRetries       int      `yaml:"feedback_retries"`
	FeedbackURL           string   `yaml:"feedback_url"`
	MicSampleRate         int      `yaml:"mic_sample_rate"`
	MicSampleRates        []int    `yaml:"mic_sample_rates"`
	TranscriptionLanguage string   `yaml:"transcription_language"`
	Ingest                Ingest   `yaml:"ingest"`
	CORSOrigins           []string `yaml:"cors_origins"`
	GDriveFolderID        string   `yaml:"gdrive_folder_id"`
	GoogleCredentialsFile string   `yaml:"google_credentials_file"`

	// Secrets, env vars only.
	GeminiAPIKey    string `yaml:"-"`
	OpenAIAPIKey    string `yaml:"-"`
	AnthropicAPIKey string `yaml:"-"`
	DeepgramAPIKey  string `yaml:"-"`
}

func defaults() Config {
	return Config{
		ListenAddr:     ":8080",
		DBPath:         "data/interview-coach.db",
		MediaDir:       "data/media",
		JournalDir:     "data/journal",
		DefaultUser:    "local",
		QuestionSource: QuestionSourceStore,
		Timer: Timer{
			Default: "60s",
			ByDifficulty: map[string]string{
				"Easy":   "60s",
				"Medium": "120s",
				"Hard":   "180s",
			},
		},
		FeedbackModel:         "gemini/gemini-1.5-flash",
		FeedbackTimeout:       "45s",
		MicSampleRate:         16000,
		MicSampleRates:        []int{48000, 44100},
		TranscriptionLanguage: "en-US",
		Ingest: Ingest{
			Interval: "24h",
			Limit:    50,
		},
		CORSOrigins:           []string{"*"},
		GoogleCredentialsFile: "./service-account.json",
	}
}

// Load reads configuration from a YAML file (if it exists), applies
// environment variable overrides, loads secrets, and validates the result.
// It returns the config, any validation warnings, and an error if the file
// exists but cannot be read or parsed.
func Load(path string) (Config, []string, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, nil, fmt.Errorf("read config file: %w", err)
			}
		} else {
			// A file-provided timer table replaces the default one instead of
			// merging into it.
			table := cfg.Timer.ByDifficulty
			cfg.Timer.ByDifficulty = nil
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, nil, fmt.Errorf("parse config file: %w", err)
			}
			if cfg.Timer.ByDifficulty == nil {
				cfg.Timer.ByDifficulty = table
			}
		}
	}

	applyEnvOverrides(&cfg)
	loadSecrets(&cfg)

	warnings := validate(&cfg)
	return cfg, warnings, nil
}

// DefaultTimer returns the flat countdown, falling back to 60s if invalid.
func (c *Config) DefaultTimer() time.Duration {
	return parseDurationOr(c.Timer.Default, 60*time.Second)
}

// TimerTable returns the valid entries of the difficulty-indexed timer table.
func (c *Config) TimerTable() map[string]time.Duration {
	table := make(map[string]time.Duration, len(c.Timer.ByDifficulty))
	for difficulty, raw := range c.Timer.ByDifficulty {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			continue
		}
		table[difficulty] = d
	}
	return table
}

// FeedbackEndpoint returns the remote coaching endpoint when feedback_url is a
// valid http(s) URL. Without one, feedback comes from feedback_model.
func (c *Config) FeedbackEndpoint() (string, bool) {
	raw := strings.TrimSpace(c.FeedbackURL)
	if raw == "" {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", false
	}
	return raw, true
}

// ParsedFeedbackTimeout returns FeedbackTimeout, falling back to 45s if invalid.
func (c *Config) ParsedFeedbackTimeout() time.Duration {
	return parseDurationOr(c.FeedbackTimeout, 45*time.Second)
}

// IngestInterval returns Ingest.Interval, falling back to 24h if invalid.
func (c *Config) IngestInterval() time.Duration {
	return parseDurationOr(c.Ingest.Interval, 24*time.Hour)
}

// APIKeyFor returns the secret configured for an LLM provider name.
func (c *Config) APIKeyFor(provider string) string {
	switch provider {
	case llm.ProviderGemini:
		return c.GeminiAPIKey
	case llm.ProviderOpenAI:
		return c.OpenAIAPIKey
	case llm.ProviderAnthropic:
		return c.AnthropicAPIKey
	default:
		return ""
	}
}

// SampleRateCandidates returns a deduplicated ordered list of sample rates
// to try: preferred rate first, then configured alternatives, then defaults.
func (c *Config) SampleRateCandidates() []int {
	hardcoded := []int{16000, 48000, 44100, 32000, 24000}

	combined := make([]int, 0, 1+len(c.MicSampleRates)+len(hardcoded))
	combined = append(combined, c.MicSampleRate)
	combined = append(combined, c.MicSampleRates...)
	combined = append(combined, hardcoded...)

	seen := make(map[int]struct{}, len(combined))
	result := make([]int, 0, len(combined))
	for _, rate := range combined {
		if rate <= 0 {
			continue
		}
		if _, ok := seen[rate]; ok {
			continue
		}
		seen[rate] = struct{}{}
		result = append(result, rate)
	}
	return result
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvPrefix + "LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(EnvPrefix + "DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(EnvPrefix + "MEDIA_DIR"); v != "" {
		cfg.MediaDir = v
	}
	if v := os.Getenv(EnvPrefix + "JOURNAL_DIR"); v != "" {
		cfg.JournalDir = v
	}
	if v := os.Getenv(EnvPrefix + "DEFAULT_USER"); v != "" {
		cfg.DefaultUser = v
	}
	if v := os.Getenv(EnvPrefix + "QUESTION_SOURCE"); v != "" {
		cfg.QuestionSource = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv(EnvPrefix + "TIMER_DEFAULT"); v != "" {
		cfg.Timer.Default = v
	}
	for _, difficulty := range []string{"Easy", "Medium", "Hard"} {
		if v := os.Getenv(EnvPrefix + "TIMER_" + strings.ToUpper(difficulty)); v != "" {
			if cfg.Timer.ByDifficulty == nil {
				cfg.Timer.ByDifficulty = map[string]string{}
			}
			cfg.Timer.ByDifficulty[difficulty] = normalizeSeconds(v)
		}
	}
	if v := os.Getenv(EnvPrefix + "FEEDBACK_MODEL"); v != "" {
		cfg.FeedbackModel = v
	}
	if v := os.Getenv(EnvPrefix + "FEEDBACK_TIMEOUT"); v != "" {
		cfg.FeedbackTimeout = v
	}
	if v := os.Getenv(EnvPrefix + "FEEDBACK_RETRIES"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n >= 0 {
			cfg.FeedbackRetries = n
		}
	}
	if v := os.Getenv(EnvPrefix + "FEEDBACK_URL"); v != "" {
		cfg.FeedbackURL = v
	}
	if v := os.Getenv(EnvPrefix + "MIC_SAMPLE_RATE"); v != "" {
		if rate, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && rate > 0 {
			cfg.MicSampleRate = rate
		}
	}
	if v := os.Getenv(EnvPrefix + "MIC_SAMPLE_RATES"); v != "" {
		cfg.MicSampleRates = parseSampleRates(v)
	}
	if v := os.Getenv(EnvPrefix + "TRANSCRIPTION_LANGUAGE"); v != "" {
		cfg.TranscriptionLanguage = v
	}
	if v := os.Getenv(EnvPrefix + "INGEST_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			cfg.Ingest.Enabled = enabled
		}
	}
	if v := os.Getenv(EnvPrefix + "INGEST_INTERVAL"); v != "" {
		cfg.Ingest.Interval = v
	}
	if v := os.Getenv(EnvPrefix + "INGEST_LIMIT"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			cfg.Ingest.Limit = n
		}
	}
	if v := os.Getenv(EnvPrefix + "CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitList(v)
	}
	if v := os.Getenv(EnvPrefix + "GDRIVE_FOLDER_ID"); v != "" {
		cfg.GDriveFolderID = v
	}
	if v := os.Getenv(EnvPrefix + "GOOGLE_CREDENTIALS_FILE"); v != "" {
		cfg.GoogleCredentialsFile = v
	}
}

func loadSecrets(cfg *Config) {
	cfg.GeminiAPIKey = os.Getenv(EnvPrefix + "GEMINI_API_KEY")
	cfg.OpenAIAPIKey = os.Getenv(EnvPrefix + "OPENAI_API_KEY")
	cfg.AnthropicAPIKey = os.Getenv(EnvPrefix + "ANTHROPIC_API_KEY")
	cfg.DeepgramAPIKey = os.Getenv(EnvPrefix + "DEEPGRAM_API_KEY")
}

func validate(cfg *Config) []string {
	var warnings []string

	_, remote := cfg.FeedbackEndpoint()
	if !remote && strings.TrimSpace(cfg.FeedbackURL) != "" {
		warnings = append(warnings, fmt.Sprintf("Invalid feedback_url %q, expected an http(s) URL. Using feedback_model.", cfg.FeedbackURL))
	}
	if !remote {
		warnings = append(warnings, modelWarnings(cfg)...)
	}
	if cfg.DeepgramAPIKey == "" {
		warnings = append(warnings, "Deepgram API key not configured, live transcription is unsupported. Set "+EnvPrefix+"DEEPGRAM_API_KEY.")
	}
	if d, err := time.ParseDuration(cfg.Timer.Default); err != nil || d <= 0 {
		warnings = append(warnings, fmt.Sprintf("Invalid timer.default %q, using default 60s.", cfg.Timer.Default))
	}
	for difficulty, raw := range cfg.Timer.ByDifficulty {
		if d, err := time.ParseDuration(raw); err != nil || d <= 0 {
			warnings = append(warnings, fmt.Sprintf("Invalid timer.by_difficulty.%s %q, entry ignored.", difficulty, raw))
		}
	}
	if _, err := time.ParseDuration(cfg.FeedbackTimeout); err != nil {
		warnings = append(warnings, fmt.Sprintf("Invalid feedback_timeout %q, using default 45s.", cfg.FeedbackTimeout))
	}
	if cfg.QuestionSource != QuestionSourceStatic && cfg.QuestionSource != QuestionSourceStore {
		warnings = append(warnings, fmt.Sprintf("Unknown question_source %q, using %q.", cfg.QuestionSource, QuestionSourceStore))
		cfg.QuestionSource = QuestionSourceStore
	}
	if cfg.Ingest.Enabled {
		if _, err := time.ParseDuration(cfg.Ingest.Interval); err != nil {
			warnings = append(warnings, fmt.Sprintf("Invalid ingest.interval %q, using default 24h.", cfg.Ingest.Interval))
		}
	}

	return warnings
}

// normalizeSeconds accepts either a Go duration or a bare number of seconds.
func modelWarnings(cfg *Config) []string {
	parts := strings.SplitN(cfg.FeedbackModel, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return []string{fmt.Sprintf("Invalid feedback_model %q, expected provider/model. AI feedback is disabled.", cfg.FeedbackModel)}
	}
	if cfg.APIKeyFor(parts[0]) == "" {
		return []string{fmt.Sprintf("%s API key not configured, AI feedback is disabled. Set %s%s_API_KEY.", parts[0], EnvPrefix, strings.ToUpper(parts[0]))}
	}
	return nil
}

func normalizeSeconds(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if n, err := strconv.Atoi(trimmed); err == nil {
		return strconv.Itoa(n) + "s"
	}
	return trimmed
}

func parseDurationOr(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseSampleRates(raw string) []int {
	parts := strings.Split(raw, ",")
	seen := make(map[int]struct{}, len(parts))
	result := make([]int, 0, len(parts))

	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		rate, err := strconv.Atoi(trimmed)
		if err != nil || rate <= 0 {
			continue
		}
		if _, ok := seen[rate]; ok {
			continue
		}
		seen[rate] = struct{}{}
		result = append(result, rate)
	}

	return result
}
