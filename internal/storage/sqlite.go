package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sjawhar/interview-coach/internal/question"
)

// timeLayout is fixed-width so stored timestamps sort lexicographically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if strings.TrimSpace(dbPath) == "" {
		dbPath = filepath.Join("data", "interview-coach.db")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db, now: time.Now}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) init() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS questions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			text TEXT NOT NULL UNIQUE,
			category TEXT NOT NULL,
			difficulty TEXT NOT NULL,
			source TEXT NOT NULL DEFAULT '',
			url TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		);
	`); err != nil {
		return fmt.Errorf("create questions table: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value BLOB NOT NULL,
			updated_at TEXT NOT NULL
		);
	`); err != nil {
		return fmt.Errorf("create kv table: %w", err)
	}

	if _, err := s.db.Exec("CREATE INDEX IF NOT EXISTS idx_questions_created_at ON questions(created_at)"); err != nil {
		return fmt.Errorf("create questions index: %w", err)
	}
	if _, err := s.db.Exec("CREATE INDEX IF NOT EXISTS idx_questions_filter ON questions(category, difficulty)"); err != nil {
		return fmt.Errorf("create questions filter index: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Questions returns stored questions matching filter, newest first.
func (s *SQLiteStore) Questions(filter question.Filter) ([]question.Question, error) {
	f := filter.Normalize()
	rows, err := s.db.Query(
		`SELECT id, text, category, difficulty, source, url, created_at
		 FROM questions
		 WHERE (? = '' OR category = ? COLLATE NOCASE)
		   AND (? = '' OR difficulty = ? COLLATE NOCASE)
		 ORDER BY created_at DESC, id DESC`,
		f.Category, f.Category,
		f.Difficulty, f.Difficulty,
	)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	questions := make([]question.Question, 0, 32)
	for rows.Next() {
		var q question.Question
		var id int64
		var category, difficulty, createdAt string
		if err := rows.Scan(&id, &q.Text, &category, &difficulty, &q.Source, &q.URL, &createdAt); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		parsed, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse question %d created_at: %w", id, err)
		}
		q.ID = strconv.FormatInt(id, 10)
		q.Category = question.Category(category)
		q.Difficulty = question.Difficulty(difficulty)
		q.CreatedAt = parsed
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate question rows: %w", err)
	}

	return questions, nil
}

// InsertQuestions stores qs, skipping any whose text already exists, and
// reports how many rows were new.
func (s *SQLiteStore) InsertQuestions(qs []question.Question) (int, error) {
	if len(qs) == 0 {
		return 0, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin insert questions: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(
		`INSERT OR IGNORE INTO questions(text, category, difficulty, source, url, created_at) VALUES(?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return 0, fmt.Errorf("prepare insert question: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	now := s.now()
	inserted := 0
	for _, q := range qs {
		text := strings.TrimSpace(q.Text)
		if text == "" {
			continue
		}
		createdAt := q.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		res, err := stmt.Exec(text, string(q.Category), string(q.Difficulty), q.Source, q.URL, createdAt.UTC().Format(timeLayout))
		if err != nil {
			return 0, fmt.Errorf("insert question %q: %w", text, err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("insert question rows affected: %w", err)
		}
		inserted += int(rows)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit insert questions: %w", err)
	}
	return inserted, nil
}

// SeedQuestions inserts the starter list, tagging untagged entries as seed.
func (s *SQLiteStore) SeedQuestions(qs []question.Question) (int, error) {
	seeded := make([]question.Question, len(qs))
	for i, q := range qs {
		if q.Source == "" {
			q.Source = "seed"
		}
		seeded[i] = q
	}
	return s.InsertQuestions(seeded)
}

// Get returns the value stored under key and whether it exists.
func (s *SQLiteStore) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLiteStore) Put(key string, value []byte) error {
	if _, err := s.db.Exec(
		`INSERT INTO kv(key, value, updated_at) VALUES(?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, s.now().UTC().Format(timeLayout),
	); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(key string) error {
	if _, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Update runs a read-modify-write of key inside one transaction. fn receives
// nil when the key is absent; an error from fn aborts without writing.
func (s *SQLiteStore) Update(key string, fn func(current []byte) ([]byte, error)) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin update %s: %w", key, err)
	}
	defer func() { _ = tx.Rollback() }()

	var current []byte
	err = tx.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&current)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("read %s: %w", key, err)
	}

	next, err := fn(current)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(
		`INSERT INTO kv(key, value, updated_at) VALUES(?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, next, s.now().UTC().Format(timeLayout),
	); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update %s: %w", key, err)
	}
	return nil
}
