package history

import (
	"regexp"
	"sort"
	"strings"
	"time"
)

var (
	strengthsBlock    = regexp.MustCompile(`(?i)## Strengths[ \t]*\r?\n((?:- .*(?:\r?\n)?)+)`)
	improvementsBlock = regexp.MustCompile(`(?i)## Areas to Improve[ \t]*\r?\n((?:- .*(?:\r?\n)?)+)`)
)

// Phrase is a feedback bullet and how many times it appeared across records.
type Phrase struct {
	Text  string `json:"text"`
	Count int    `json:"count"`
}

type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// Stats are the dashboard views derived from history at read time.
type Stats struct {
	Total        int             `json:"total"`
	ByCategory   []CategoryCount `json:"by_category"`
	PerDay       []DayCount      `json:"per_day"`
	Strengths    []Phrase        `json:"strengths"`
	Improvements []Phrase        `json:"improvements"`
	MostRecent   *Record         `json:"most_recent,omitempty"`
}

// Strengths returns the bullet lines under a "## Strengths" header.
func Strengths(feedback string) []string {
	return bullets(strengthsBlock, feedback)
}

// Improvements returns the bullet lines under a "## Areas to Improve" header.
func Improvements(feedback string) []string {
	return bullets(improvementsBlock, feedback)
}

func bullets(re *regexp.Regexp, feedback string) []string {
	m := re.FindStringSubmatch(feedback)
	if m == nil {
		return nil
	}
	var out []string
	for _, line := range strings.Split(m[1], "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "- "))
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// Summarize computes the derived views. Days are bucketed in loc; phrase
// ties keep first appearance order.
func Summarize(records []Record, loc *time.Location, topN int) Stats {
	if loc == nil {
		loc = time.Local
	}

	stats := Stats{
		Total:        len(records),
		ByCategory:   []CategoryCount{},
		PerDay:       []DayCount{},
		Strengths:    []Phrase{},
		Improvements: []Phrase{},
	}

	categories := map[string]int{}
	var categoryOrder []string
	days := map[string]int{}
	strengths := newTally()
	improvements := newTally()

	for i, r := range records {
		if _, ok := categories[r.Category]; !ok {
			categoryOrder = append(categoryOrder, r.Category)
		}
		categories[r.Category]++
		days[r.Timestamp.In(loc).Format("2006-01-02")]++

		for _, s := range Strengths(r.Feedback) {
			strengths.add(s)
		}
		for _, s := range Improvements(r.Feedback) {
			improvements.add(s)
		}

		if stats.MostRecent == nil || r.Timestamp.After(stats.MostRecent.Timestamp) {
			rec := records[i]
			stats.MostRecent = &rec
		}
	}

	for _, c := range categoryOrder {
		stats.ByCategory = append(stats.ByCategory, CategoryCount{Category: c, Count: categories[c]})
	}
	sort.SliceStable(stats.ByCategory, func(i, j int) bool {
		return stats.ByCategory[i].Count > stats.ByCategory[j].Count
	})

	for d, n := range days {
		stats.PerDay = append(stats.PerDay, DayCount{Date: d, Count: n})
	}
	sort.Slice(stats.PerDay, func(i, j int) bool {
		return stats.PerDay[i].Date < stats.PerDay[j].Date
	})

	stats.Strengths = strengths.top(topN)
	stats.Improvements = improvements.top(topN)
	return stats
}

type tally struct {
	counts map[string]int
	order  []string
}

func newTally() *tally {
	return &tally{counts: map[string]int{}}
}

func (t *tally) add(phrase string) {
	if _, ok := t.counts[phrase]; !ok {
		t.order = append(t.order, phrase)
	}
	t.counts[phrase]++
}

func (t *tally) top(n int) []Phrase {
	out := make([]Phrase, 0, len(t.order))
	for _, p := range t.order {
		out = append(out, Phrase{Text: p, Count: t.counts[p]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
