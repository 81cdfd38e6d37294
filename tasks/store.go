package tasks

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	title      TEXT NOT NULL,
	due_at     INTEGER,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_due ON tasks(due_at);
`

// Store is the SQLite-backed task sink.
type Store struct {
	db *sql.DB
}

// DefaultDBPath returns the task database location under the user's
// config directory.
func DefaultDBPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "taskvox", "tasks.sqlite")
}

// Open opens (creating if needed) the task database.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", "file:"+path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Add inserts a task unless an equivalent one already exists. Two tasks
// are equivalent when their titles match case-insensitively and they
// fall due on the same calendar day (or both have no due date). Returns
// the stored task and whether it was a duplicate.
func (s *Store) Add(title string, due *time.Time) (Task, bool, error) {
	t := Task{Title: strings.TrimSpace(title), Due: due, CreatedAt: time.Now()}
	if t.Title == "" {
		return Task{}, false, fmt.Errorf("empty task title")
	}

	dup, err := s.exists(t)
	if err != nil {
		return Task{}, false, err
	}
	if dup {
		return t, true, nil
	}

	var dueAt sql.NullInt64
	if due != nil {
		dueAt = sql.NullInt64{Int64: due.Unix(), Valid: true}
	}
	res, err := s.db.Exec(
		`INSERT INTO tasks (title, due_at, created_at) VALUES (?, ?, ?)`,
		t.Title, dueAt, t.CreatedAt.Unix(),
	)
	if err != nil {
		return Task{}, false, fmt.Errorf("insert task: %w", err)
	}
	t.ID, _ = res.LastInsertId()
	return t, false, nil
}

func (s *Store) exists(t Task) (bool, error) {
	var row *sql.Row
	if t.Due == nil {
		row = s.db.QueryRow(
			`SELECT COUNT(*) FROM tasks WHERE title = ? COLLATE NOCASE AND due_at IS NULL`,
			t.Title,
		)
	} else {
		dayStart := time.Date(t.Due.Year(), t.Due.Month(), t.Due.Day(), 0, 0, 0, 0, t.Due.Location())
		dayEnd := dayStart.AddDate(0, 0, 1)
		row = s.db.QueryRow(
			`SELECT COUNT(*) FROM tasks WHERE title = ? COLLATE NOCASE AND due_at >= ? AND due_at < ?`,
			t.Title, dayStart.Unix(), dayEnd.Unix(),
		)
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return false, fmt.Errorf("dedup query: %w", err)
	}
	return n > 0, nil
}

// List returns up to limit tasks, soonest due first, undated tasks last,
// newest first within each group. A limit of zero or less means all.
func (s *Store) List(limit int) ([]Task, error) {
	if limit <= 0 {
		limit = -1 // sqlite: no limit
	}
	rows, err := s.db.Query(`
		SELECT id, title, due_at, created_at
		FROM tasks
		ORDER BY due_at IS NULL, due_at ASC, created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		var t Task
		var dueAt sql.NullInt64
		var createdAt int64
		if err := rows.Scan(&t.ID, &t.Title, &dueAt, &createdAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		if dueAt.Valid {
			d := time.Unix(dueAt.Int64, 0)
			t.Due = &d
		}
		t.CreatedAt = time.Unix(createdAt, 0)
		out = append(out, t)
	}
	return out, rows.Err()
}
