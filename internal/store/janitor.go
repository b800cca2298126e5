package store

import (
	"context"
	"time"

	"mt5-analysis-service/internal/telemetry"
)

// Sweep evicts terminal tasks whose completion is older than ttl and
// returns how many were removed. Running tasks are never evicted.
func (s *TaskStore) Sweep(ttl time.Duration) int {
	cutoff := time.Now().UTC().Add(-ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, t := range s.tasks {
		if t.Terminal() && t.CompletedAt != nil && t.CompletedAt.Before(cutoff) {
			delete(s.tasks, id)
			removed++
		}
	}
	if removed > 0 {
		telemetry.TasksTracked.Set(float64(len(s.tasks)))
	}
	return removed
}

// RunJanitor sweeps on the given interval until the context ends.
// Retention is opt-in; with ttl <= 0 the caller should not start it
// and records are kept for the life of the process.
func (s *TaskStore) RunJanitor(ctx context.Context, ttl, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(ttl); n > 0 {
				telemetry.TasksEvicted.Add(float64(n))
			}
		}
	}
}
