// Package tasks persists captured tasks in SQLite and is the sink for
// finalized capture sessions: it deduplicates and orders what the speech
// core hands it.
package tasks

import "time"

// Task is one captured to-do item.
type Task struct {
	ID        int64
	Title     string
	Due       *time.Time
	CreatedAt time.Time
}

// DueLabel renders the due date for display, empty when there is none.
func (t Task) DueLabel() string {
	if t.Due == nil {
		return ""
	}
	return t.Due.Format("Mon Jan 2")
}
