package question

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sjawhar/interview-coach/internal/apperr"
)

// KV is the namespaced local-state store custom questions persist in.
type KV interface {
	Get(key string) ([]byte, bool, error)
	Update(key string, fn func(current []byte) ([]byte, error)) error
}

// CustomKey returns the namespaced key for a user's custom questions.
func CustomKey(user string) string {
	return "custom-questions:" + user
}

// CustomList is a user's list of self-authored questions, kept in insertion order.
type CustomList struct {
	kv  KV
	key string
	now func() time.Time
}

func NewCustomList(kv KV, user string) *CustomList {
	return &CustomList{kv: kv, key: CustomKey(user), now: time.Now}
}

func (c *CustomList) List() ([]Question, error) {
	data, ok, err := c.kv.Get(c.key)
	if err != nil {
		return nil, fmt.Errorf("load custom questions: %w", err)
	}
	if !ok {
		return []Question{}, nil
	}
	return decodeCustom(data)
}

// Prepare trims a user-authored question, folds its difficulty to the
// canonical spelling, and validates it.
func Prepare(q Question) (Question, error) {
	q.Text = strings.TrimSpace(q.Text)
	q.Category = Category(strings.TrimSpace(string(q.Category)))
	if d, ok := ParseDifficulty(string(q.Difficulty)); ok {
		q.Difficulty = d
	}
	if err := apperr.Check(q); err != nil {
		return Question{}, err
	}
	return q, nil
}

// Add validates q, assigns its ID and timestamp, and appends it.
func (c *CustomList) Add(q Question) (Question, error) {
	q, err := Prepare(q)
	if err != nil {
		return Question{}, err
	}
	q.Source = "custom"

	err = c.kv.Update(c.key, func(current []byte) ([]byte, error) {
		list := []Question{}
		if current != nil {
			decoded, err := decodeCustom(current)
			if err != nil {
				return nil, err
			}
			list = decoded
		}
		q.ID = fmt.Sprintf("custom-%d", len(list)+1)
		q.CreatedAt = c.now().UTC()
		list = append(list, q)
		return json.Marshal(list)
	})
	if err != nil {
		return Question{}, fmt.Errorf("add custom question: %w", err)
	}
	return q, nil
}

func decodeCustom(data []byte) ([]Question, error) {
	var list []Question
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("%w: custom questions: %v", apperr.ErrCorrupt, err)
	}
	if list == nil {
		list = []Question{}
	}
	return list, nil
}
