package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

type anthropicClient struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature *float64
}

func newAnthropicClient(apiKey, model string, opts *clientOptions) (*anthropicClient, error) {
	requestOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if opts.baseURL != "" {
		requestOpts = append(requestOpts, option.WithBaseURL(opts.baseURL))
	}

	c := &anthropicClient{
		client:      anthropic.NewClient(requestOpts...),
		model:       model,
		maxTokens:   opts.maxTokens,
		temperature: opts.temperature,
	}
	if c.maxTokens <= 0 {
		c.maxTokens = defaultMaxTokens
	}
	return c, nil
}

// anthropicParams builds a Messages request. System turns move to the
// top-level system field; the API rejects them inside the conversation.
func (c *anthropicClient) anthropicParams(messages []Message) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
	}
	if c.temperature != nil {
		params.Temperature = anthropic.Float(*c.temperature)
	}

	for _, m := range messages {
		block := anthropic.NewTextBlock(m.Content)
		switch m.Role {
		case RoleSystem:
			params.System = append(params.System, anthropic.TextBlockParam{Text: m.Content})
		case RoleUser:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(block))
		case RoleAssistant:
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(block))
		}
	}
	return params
}

func (c *anthropicClient) Complete(ctx context.Context, messages []Message) (string, error) {
	if err := checkConversation(ProviderAnthropic, messages); err != nil {
		return "", err
	}

	resp, err := c.client.Messages.New(ctx, c.anthropicParams(messages))
	if err != nil {
		return "", providerErr(ProviderAnthropic, fmt.Errorf("messages: %w", err))
	}

	parts := make([]string, 0, len(resp.Content))
	for _, block := range resp.Content {
		if block.Type == "text" && strings.TrimSpace(block.Text) != "" {
			parts = append(parts, strings.TrimSpace(block.Text))
		}
	}
	if len(parts) == 0 {
		return "", providerErr(ProviderAnthropic, fmt.Errorf("stop reason %q: %w", resp.StopReason, ErrEmptyResponse))
	}
	return strings.Join(parts, "\n"), nil
}
