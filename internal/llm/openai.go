package llm

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

type openaiClient struct {
	client *openai.Client
	// request carries the per-client settings; Complete fills in Messages.
	request openai.ChatCompletionRequest
}

func newOpenAIClient(apiKey, model string, opts *clientOptions) (*openaiClient, error) {
	cfg := openai.DefaultConfig(apiKey)
	if opts.baseURL != "" {
		cfg.BaseURL = opts.baseURL
	}

	req := openai.ChatCompletionRequest{Model: model, MaxTokens: int(opts.maxTokens)}
	if opts.temperature != nil {
		req.Temperature = float32(*opts.temperature)
	}
	return &openaiClient{client: openai.NewClientWithConfig(cfg), request: req}, nil
}

func (c *openaiClient) Complete(ctx context.Context, messages []Message) (string, error) {
	if err := checkConversation(ProviderOpenAI, messages); err != nil {
		return "", err
	}

	req := c.request
	req.Messages = make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", providerErr(ProviderOpenAI, fmt.Errorf("chat completion: %w", err))
	}
	for _, choice := range resp.Choices {
		if text := strings.TrimSpace(choice.Message.Content); text != "" {
			return text, nil
		}
	}
	return "", providerErr(ProviderOpenAI, fmt.Errorf("%d choices: %w", len(resp.Choices), ErrEmptyResponse))
}
