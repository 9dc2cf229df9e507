package question

import (
	"fmt"
	"math/rand/v2"

	"github.com/sjawhar/interview-coach/internal/apperr"
)

// Lister returns a user's custom questions.
type Lister interface {
	List() ([]Question, error)
}

// Pool merges a base source with a user's custom questions at selection time.
type Pool struct {
	base   Source
	custom Lister
	intn   func(n int) int
}

// NewPool builds a pool. custom may be nil.
func NewPool(base Source, custom Lister) *Pool {
	return &Pool{base: base, custom: custom, intn: rand.IntN}
}

// WithIntn replaces the random index function, for deterministic selection.
func (p *Pool) WithIntn(intn func(n int) int) *Pool {
	p.intn = intn
	return p
}

// Candidates returns base and custom questions matching filter, newest first.
func (p *Pool) Candidates(filter Filter) ([]Question, error) {
	var all []Question
	if p.base != nil {
		base, err := p.base.Questions(filter)
		if err != nil {
			return nil, fmt.Errorf("load base questions: %w", err)
		}
		all = append(all, base...)
	}
	if p.custom != nil {
		custom, err := p.custom.List()
		if err != nil {
			return nil, err
		}
		all = append(all, custom...)
	}
	return Apply(all, filter), nil
}

// Pick selects one candidate uniformly at random, or fails with ErrNoMatch.
func (p *Pool) Pick(filter Filter) (Question, error) {
	candidates, err := p.Candidates(filter)
	if err != nil {
		return Question{}, err
	}
	if len(candidates) == 0 {
		n := filter.Normalize()
		return Question{}, fmt.Errorf("%w for category %q and difficulty %q", apperr.ErrNoMatch, orAny(n.Category), orAny(n.Difficulty))
	}
	return candidates[p.intn(len(candidates))], nil
}

func orAny(v string) string {
	if v == "" {
		return Any
	}
	return v
}
