package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

type geminiClient struct {
	client *genai.Client
	model  string
	config genai.GenerateContentConfig
}

func newGeminiClient(apiKey, model string, opts *clientOptions) (*geminiClient, error) {
	cc := &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	if opts.baseURL != "" {
		cc.HTTPOptions.BaseURL = opts.baseURL
	}

	client, err := genai.NewClient(context.Background(), cc)
	if err != nil {
		return nil, providerErr(ProviderGemini, fmt.Errorf("create client: %w", err))
	}

	g := &geminiClient{client: client, model: model}
	if opts.maxTokens > 0 {
		g.config.MaxOutputTokens = int32(opts.maxTokens)
	}
	if opts.temperature != nil {
		g.config.Temperature = genai.Ptr(float32(*opts.temperature))
	}
	return g, nil
}

// geminiContents splits messages into the system instruction and the chat
// turns, renaming the assistant role to "model".
func geminiContents(messages []Message) (*genai.Content, []*genai.Content) {
	var system *genai.Content
	contents := make([]*genai.Content, 0, len(messages))

	for _, m := range messages {
		part := &genai.Part{Text: m.Content}
		switch m.Role {
		case RoleSystem:
			if system == nil {
				system = &genai.Content{}
			}
			system.Parts = append(system.Parts, part)
		case RoleUser:
			contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: []*genai.Part{part}})
		case RoleAssistant:
			contents = append(contents, &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{part}})
		}
	}
	return system, contents
}

func (c *geminiClient) Complete(ctx context.Context, messages []Message) (string, error) {
	if err := checkConversation(ProviderGemini, messages); err != nil {
		return "", err
	}

	system, contents := geminiContents(messages)
	config := c.config
	config.SystemInstruction = system

	result, err := c.client.Models.GenerateContent(ctx, c.model, contents, &config)
	if err != nil {
		return "", providerErr(ProviderGemini, fmt.Errorf("generate content: %w", err))
	}

	text := strings.TrimSpace(result.Text())
	if text == "" {
		return "", providerErr(ProviderGemini, ErrEmptyResponse)
	}
	return text, nil
}
