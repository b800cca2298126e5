package models

import (
	"time"
)

// TaskStatus enumerates the lifecycle states of an analysis task.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Task tracks one asynchronous analysis run. The store owns the
// canonical copy; everything handed out is a value snapshot.
type Task struct {
	ID          string     `json:"task_id"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Result      any        `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Terminal reports whether the task reached a final state.
func (t Task) Terminal() bool {
	return t.Status == StatusCompleted || t.Status == StatusFailed
}
