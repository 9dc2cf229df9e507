// Package question models interview questions and the sources they are drawn from.
package question

import (
	"sort"
	"strings"
	"time"
)

// Category groups questions by interview area. The set is open: ingestion and
// custom entry may introduce new categories.
type Category string

const (
	Behavioral   Category = "Behavioral"
	Technical    Category = "Technical"
	SystemDesign Category = "System Design"
)

type Difficulty string

const (
	Easy   Difficulty = "Easy"
	Medium Difficulty = "Medium"
	Hard   Difficulty = "Hard"
)

// ParseDifficulty matches a difficulty name case-insensitively.
func ParseDifficulty(raw string) (Difficulty, bool) {
	for _, d := range []Difficulty{Easy, Medium, Hard} {
		if strings.EqualFold(strings.TrimSpace(raw), string(d)) {
			return d, true
		}
	}
	return "", false
}

type Question struct {
	ID         string     `json:"id"`
	Text       string     `json:"text" validate:"notblank"`
	Category   Category   `json:"category" validate:"notblank"`
	Difficulty Difficulty `json:"difficulty" validate:"oneof=Easy Medium Hard"`
	Source     string     `json:"source,omitempty"`
	URL        string     `json:"url,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Any is the filter value that matches every category or difficulty.
const Any = "any"

type Filter struct {
	Category   string `json:"category"`
	Difficulty string `json:"difficulty"`
}

// Normalize trims both fields and folds "any" to the empty wildcard.
func (f Filter) Normalize() Filter {
	return Filter{Category: wildcard(f.Category), Difficulty: wildcard(f.Difficulty)}
}

func (f Filter) Matches(q Question) bool {
	n := f.Normalize()
	if n.Category != "" && !strings.EqualFold(n.Category, string(q.Category)) {
		return false
	}
	if n.Difficulty != "" && !strings.EqualFold(n.Difficulty, string(q.Difficulty)) {
		return false
	}
	return true
}

func wildcard(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if strings.EqualFold(trimmed, Any) {
		return ""
	}
	return trimmed
}

// Source provides questions filtered by category and difficulty, newest first.
// An empty result is not an error.
type Source interface {
	Questions(filter Filter) ([]Question, error)
}

// Apply returns the questions matching filter, newest first.
func Apply(questions []Question, filter Filter) []Question {
	out := make([]Question, 0, len(questions))
	for _, q := range questions {
		if filter.Matches(q) {
			out = append(out, q)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
