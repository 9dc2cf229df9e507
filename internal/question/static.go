package question

import (
	"fmt"
	"time"
)

// seedEpoch anchors starter question timestamps so their order is stable.
var seedEpoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// Starter returns the built-in question list, first entry newest.
func Starter() []Question {
	items := []struct {
		text       string
		category   Category
		difficulty Difficulty
	}{
		{"Tell me about yourself.", Behavioral, Easy},
		{"Describe a technical challenge you faced.", Technical, Medium},
		{"How do you handle tight deadlines?", Behavioral, Medium},
		{"Explain a complex system you designed.", SystemDesign, Hard},
		{"How would you debug a memory leak in production?", Technical, Hard},
	}

	out := make([]Question, 0, len(items))
	for i, item := range items {
		out = append(out, Question{
			ID:         fmt.Sprintf("seed-%d", i+1),
			Text:       item.text,
			Category:   item.category,
			Difficulty: item.difficulty,
			Source:     "seed",
			CreatedAt:  seedEpoch.Add(-time.Duration(i) * time.Minute),
		})
	}
	return out
}

// Static serves a fixed in-memory question list.
type Static struct {
	questions []Question
}

func NewStatic(questions []Question) *Static {
	cp := make([]Question, len(questions))
	copy(cp, questions)
	return &Static{questions: cp}
}

func (s *Static) Questions(filter Filter) ([]Question, error) {
	return Apply(s.questions, filter), nil
}
