package feedback

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sjawhar/interview-coach/internal/apperr"
)

// Request is the body of POST /api/feedback.
type Request struct {
	Question string `json:"question" validate:"notblank"`
	Answer   string `json:"answer" validate:"notblank"`
}

// MissingInputMessage is the caller-facing message for a blank question or answer.
const MissingInputMessage = "Question and answer required"

func checkRequest(req Request) error {
	if err := apperr.Check(req); err != nil {
		return apperr.Validation(MissingInputMessage)
	}
	return nil
}

// Response is the body of a successful POST /api/feedback.
type Response struct {
	Feedback string `json:"feedback"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// HTTPClient requests feedback from a remote coaching endpoint.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPClient(baseURL string, client *http.Client) *HTTPClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPClient{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (c *HTTPClient) RequestFeedback(ctx context.Context, question, answer string) (string, error) {
	in := Request{Question: question, Answer: answer}
	if err := checkRequest(in); err != nil {
		return "", err
	}

	body, err := json.Marshal(in)
	if err != nil {
		return "", fmt.Errorf("encode feedback request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/feedback", bytes.NewReader(body))
	if err != nil {
		return "", apperr.Service("build feedback request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", apperr.Service("send feedback request", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", apperr.Service("read feedback response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e errorResponse
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			return "", apperr.Service(fmt.Sprintf("feedback endpoint returned %d", resp.StatusCode), errors.New(e.Error))
		}
		return "", apperr.Service(fmt.Sprintf("feedback endpoint returned %d", resp.StatusCode), nil)
	}

	var out Response
	if err := json.Unmarshal(data, &out); err != nil {
		return "", apperr.Service("decode feedback response", err)
	}
	if strings.TrimSpace(out.Feedback) == "" {
		return "", apperr.Service("empty feedback", nil)
	}
	return out.Feedback, nil
}
