package task

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// Journal persists task records to sqlite so results survive a service
// restart. The in-memory store stays authoritative while the process
// lives; the journal only backs reads for ids the store no longer has.
type Journal struct {
	db *sql.DB
}

func OpenJournal(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS tasks (
		task_id    TEXT PRIMARY KEY,
		status     TEXT NOT NULL,
		doc        TEXT NOT NULL,
		updated_at REAL NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init journal schema: %w", err)
	}
	return &Journal{db: db}, nil
}

// Record upserts the task's current state.
func (j *Journal) Record(t Task) error {
	doc, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode task %s: %w", t.ID, err)
	}
	_, err = j.db.Exec(`INSERT INTO tasks (task_id, status, doc, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(task_id) DO UPDATE SET
			status = excluded.status,
			doc = excluded.doc,
			updated_at = excluded.updated_at`,
		t.ID, string(t.Status), string(doc), nowEpoch())
	if err != nil {
		return fmt.Errorf("journal task %s: %w", t.ID, err)
	}
	return nil
}

// Get loads a journaled task by id.
func (j *Journal) Get(id string) (Task, bool, error) {
	var doc string
	err := j.db.QueryRow(`SELECT doc FROM tasks WHERE task_id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, false, nil
	}
	if err != nil {
		return Task{}, false, fmt.Errorf("read journal for %s: %w", id, err)
	}
	var t Task
	if err := json.Unmarshal([]byte(doc), &t); err != nil {
		return Task{}, false, fmt.Errorf("decode journal for %s: %w", id, err)
	}
	return t, true, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}
