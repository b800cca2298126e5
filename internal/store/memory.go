package store

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"mt5-analysis-service/internal/models"
	"mt5-analysis-service/internal/telemetry"
)

var (
	// ErrNotFound is returned when no task exists for an id.
	ErrNotFound = errors.New("task not found")
	// ErrTerminal is returned when a transition targets a task that
	// already reached a terminal state.
	ErrTerminal = errors.New("task already terminal")
)

// TaskStore is the single owner of task records for the process.
// Records live for the life of the process unless a TTL sweep is
// enabled; the unbounded growth is a deliberate tradeoff.
type TaskStore struct {
	mu    sync.RWMutex
	tasks map[string]*models.Task
}

// New creates an empty store.
func New() *TaskStore {
	return &TaskStore{tasks: make(map[string]*models.Task)}
}

// Create inserts a fresh running task and returns a snapshot of it.
// Safe for concurrent callers; ids never collide.
func (s *TaskStore) Create() (models.Task, error) {
	t := &models.Task{
		ID:        uuid.New().String(),
		Status:    models.StatusRunning,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.tasks[t.ID] = t
	telemetry.TasksTracked.Set(float64(len(s.tasks)))
	s.mu.Unlock()

	return *t, nil
}

// Get returns a value copy of the task so readers never observe a
// half-applied transition.
func (s *TaskStore) Get(id string) (models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return models.Task{}, ErrNotFound
	}
	return *t, nil
}

// Complete transitions a running task to completed and attaches the
// analysis result. Exactly one terminal transition is allowed per task.
func (s *TaskStore) Complete(id string, result any) error {
	return s.finish(id, func(t *models.Task) {
		t.Status = models.StatusCompleted
		t.Result = result
	})
}

// Fail transitions a running task to failed with a descriptive message.
func (s *TaskStore) Fail(id string, msg string) error {
	return s.finish(id, func(t *models.Task) {
		t.Status = models.StatusFailed
		t.Error = msg
	})
}

func (s *TaskStore) finish(id string, apply func(*models.Task)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return ErrNotFound
	}
	if t.Terminal() {
		return ErrTerminal
	}

	now := time.Now().UTC()
	apply(t)
	t.CompletedAt = &now
	return nil
}

// Len reports how many tasks the store currently tracks.
func (s *TaskStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}
