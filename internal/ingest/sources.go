package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/sjawhar/interview-coach/internal/question"
)

const (
	LeetCodeURL               = "https://leetcode.com/api/problems/all/"
	SystemDesignPrimer        = "https://raw.githubusercontent.com/donnemartin/system-design-primer/master/README.md"
	AwesomeInterviewQuestions = "https://raw.githubusercontent.com/DopplerHQ/awesome-interview-questions/master/README.md"

	defaultLimit = 50
	maxBody      = 16 << 20
)

// Source fetches one batch of questions from an external list.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]question.Question, error)
}

// LeetCode reads the public problem list and keeps the first Limit problems.
type LeetCode struct {
	URL    string
	Limit  int
	Client *http.Client
}

func (l *LeetCode) Name() string { return "leetcode" }

func (l *LeetCode) Fetch(ctx context.Context) ([]question.Question, error) {
	body, err := get(ctx, l.Client, l.URL)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("leetcode: malformed problem list")
	}

	limit := l.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	pairs := gjson.GetBytes(body, "stat_status_pairs").Array()
	out := make([]question.Question, 0, min(limit, len(pairs)))
	for _, p := range pairs {
		if len(out) == limit {
			break
		}
		title := strings.TrimSpace(p.Get("stat.question__title").String())
		if title == "" {
			continue
		}
		out = append(out, question.Question{
			Text:       title,
			Category:   question.Technical,
			Difficulty: leetCodeDifficulty(p.Get("difficulty.level").Int()),
			Source:     l.Name(),
			URL:        "https://leetcode.com/problems/" + p.Get("stat.question__title_slug").String() + "/",
		})
	}
	return out, nil
}

func leetCodeDifficulty(level int64) question.Difficulty {
	switch level {
	case 1:
		return question.Easy
	case 3:
		return question.Hard
	default:
		return question.Medium
	}
}

// Markdown harvests question lines from a README.
type Markdown struct {
	Label      string
	URL        string
	RepoURL    string
	Category   question.Category
	Difficulty question.Difficulty
	Client     *http.Client
}

func (m *Markdown) Name() string { return m.Label }

func (m *Markdown) Fetch(ctx context.Context) ([]question.Question, error) {
	body, err := get(ctx, m.Client, m.URL)
	if err != nil {
		return nil, err
	}

	lines := ExtractQuestions(string(body))
	out := make([]question.Question, 0, len(lines))
	for _, line := range lines {
		out = append(out, question.Question{
			Text:       line,
			Category:   m.Category,
			Difficulty: m.Difficulty,
			Source:     m.Label,
			URL:        m.RepoURL,
		})
	}
	return out, nil
}

// ExtractQuestions returns trimmed lines that end in "?" and are longer than
// ten characters.
func ExtractQuestions(markdown string) []string {
	var out []string
	for _, line := range strings.Split(markdown, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasSuffix(line, "?") && len(line) > 10 {
			out = append(out, line)
		}
	}
	return out
}

// DefaultSources returns the LeetCode list and the two GitHub READMEs.
func DefaultSources(client *http.Client, limit int) []Source {
	return []Source{
		&LeetCode{URL: LeetCodeURL, Limit: limit, Client: client},
		&Markdown{
			Label:      "system-design-primer",
			URL:        SystemDesignPrimer,
			RepoURL:    "https://github.com/donnemartin/system-design-primer",
			Category:   question.SystemDesign,
			Difficulty: question.Hard,
			Client:     client,
		},
		&Markdown{
			Label:      "awesome-interview-questions",
			URL:        AwesomeInterviewQuestions,
			RepoURL:    "https://github.com/DopplerHQ/awesome-interview-questions",
			Category:   question.Behavioral,
			Difficulty: question.Medium,
			Client:     client,
		},
	}
}

func get(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", url, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	return body, nil
}
