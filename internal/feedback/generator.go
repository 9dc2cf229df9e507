// Package feedback produces interview coaching feedback for a question and answer.
package feedback

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sjawhar/interview-coach/internal/apperr"
	"github.com/sjawhar/interview-coach/internal/llm"
)

// Client is the boundary the practice flow consumes. Any error means no
// feedback was produced; implementations report backend failures as
// apperr.ErrService.
type Client interface {
	RequestFeedback(ctx context.Context, question, answer string) (string, error)
}

type ClientFactory func(provider, model string) (llm.Client, error)

const systemPrompt = "You are a seasoned mock interview coach."

const promptTemplate = `Provide detailed feedback for this candidate's answer.

Question:
%s

Candidate Answer:
%s

Return as markdown:

## Strengths
- List 1-3 things done well.

## Areas to Improve
- List 1-3 things that could be better.

## Sample Answer
- (Give one brief model response, in 2-5 sentences, suitable for a human interviewer.)

If the answer is very incomplete, give gentle advice and show a full sample.`

// Prompt renders the coaching request for one question and answer.
func Prompt(question, answer string) []llm.Message {
	return []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: fmt.Sprintf(promptTemplate, strings.TrimSpace(question), strings.TrimSpace(answer))},
	}
}

// Generator asks an LLM for coaching feedback.
type Generator struct {
	model   string
	factory ClientFactory
	backoff []time.Duration
	sleep   func(context.Context, time.Duration) error
}

// NewGenerator builds a generator for a provider/model string. retries is the
// number of extra attempts after a failed completion.
func NewGenerator(model string, factory ClientFactory, retries int) *Generator {
	schedule := []time.Duration{1 * time.Second, 4 * time.Second, 16 * time.Second}
	if retries < 0 {
		retries = 0
	}
	if retries > len(schedule) {
		retries = len(schedule)
	}
	return &Generator{
		model:   model,
		factory: factory,
		backoff: schedule[:retries],
		sleep:   sleepContext,
	}
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (g *Generator) RequestFeedback(ctx context.Context, question, answer string) (string, error) {
	if err := checkRequest(Request{Question: question, Answer: answer}); err != nil {
		return "", err
	}

	provider, model, err := llm.ParseModel(g.model)
	if err != nil {
		return "", apperr.Service("parse feedback model", err)
	}
	client, err := g.factory(provider, model)
	if err != nil {
		return "", apperr.Service("create llm client", err)
	}

	messages := Prompt(question, answer)
	var lastErr error
	for attempt := 0; attempt <= len(g.backoff); attempt++ {
		if err := ctx.Err(); err != nil {
			return "", apperr.Service("request feedback", err)
		}
		text, err := client.Complete(ctx, messages)
		if err == nil {
			if text = strings.TrimSpace(text); text != "" {
				return text, nil
			}
			err = llm.ErrEmptyResponse
		}
		lastErr = err
		if attempt < len(g.backoff) {
			if err := g.sleep(ctx, g.backoff[attempt]); err != nil {
				return "", apperr.Service("request feedback", err)
			}
		}
	}
	return "", apperr.Service("request feedback", lastErr)
}
