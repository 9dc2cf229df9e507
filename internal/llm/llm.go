// Package llm is a provider-neutral text completion client used to generate
// interview feedback.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const defaultMaxTokens = 2048

var (
	// ErrEmptyResponse is returned when a provider answers without usable text.
	ErrEmptyResponse = errors.New("empty response")
	// ErrNoUserMessage is returned before any request when the conversation
	// carries nothing for the model to answer.
	ErrNoUserMessage = errors.New("no user message provided")
)

type Message struct {
	Role    string
	Content string
}

type Client interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// ProviderError attributes a completion failure to the provider that produced it.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return e.Provider + ": " + e.Err.Error()
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func providerErr(provider string, err error) error {
	return &ProviderError{Provider: provider, Err: err}
}

type Option func(*clientOptions)

type clientOptions struct {
	baseURL     string
	maxTokens   int64
	temperature *float64
}

func WithBaseURL(url string) Option {
	return func(o *clientOptions) {
		o.baseURL = url
	}
}

// WithMaxTokens caps the completion length where the provider supports it.
func WithMaxTokens(n int64) Option {
	return func(o *clientOptions) {
		if n > 0 {
			o.maxTokens = n
		}
	}
}

// WithTemperature sets the sampling temperature. Values outside [0, 2] are
// ignored and the provider default applies.
func WithTemperature(t float64) Option {
	return func(o *clientOptions) {
		if t >= 0 && t <= 2 {
			o.temperature = &t
		}
	}
}

// ParseModel splits a "provider/model" reference such as
// "gemini/gemini-1.5-flash".
func ParseModel(model string) (provider, modelName string, err error) {
	parts := strings.SplitN(model, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid model format %q: expected provider/model_name", model)
	}
	return parts[0], parts[1], nil
}

func NewClient(provider, apiKey, model string, opts ...Option) (Client, error) {
	o := &clientOptions{maxTokens: defaultMaxTokens}
	for _, opt := range opts {
		opt(o)
	}
	if apiKey == "" {
		return nil, providerErr(provider, errors.New("api key not configured"))
	}

	switch provider {
	case ProviderOpenAI:
		return newOpenAIClient(apiKey, model, o)
	case ProviderAnthropic:
		return newAnthropicClient(apiKey, model, o)
	case ProviderGemini:
		return newGeminiClient(apiKey, model, o)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q: supported providers are openai, anthropic, gemini", provider)
	}
}

// checkConversation rejects conversations without a user turn.
func checkConversation(provider string, messages []Message) error {
	for _, m := range messages {
		if m.Role == RoleUser && strings.TrimSpace(m.Content) != "" {
			return nil
		}
	}
	return providerErr(provider, ErrNoUserMessage)
}
