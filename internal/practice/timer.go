package practice

import (
	"strings"
	"time"

	"github.com/sjawhar/interview-coach/internal/question"
)

const fallbackDuration = 60 * time.Second

// TimerPolicy decides the countdown for a question. ByDifficulty entries
// override Default.
type TimerPolicy struct {
	Default      time.Duration
	ByDifficulty map[string]time.Duration
}

// Seconds returns the countdown for difficulty in whole seconds, at least one.
func (p TimerPolicy) Seconds(difficulty question.Difficulty) int {
	d := p.Default
	for key, v := range p.ByDifficulty {
		if strings.EqualFold(key, string(difficulty)) && v > 0 {
			d = v
			break
		}
	}
	if d <= 0 {
		d = fallbackDuration
	}
	return max(int(d/time.Second), 1)
}

// Ticker delivers countdown ticks.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type realTicker struct {
	t *time.Ticker
}

func newRealTicker(d time.Duration) Ticker {
	return realTicker{t: time.NewTicker(d)}
}

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }
