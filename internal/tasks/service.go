// Package tasks orchestrates the analysis task lifecycle: trigger a
// run, hand it to the runner, and project stored records into status
// responses.
package tasks

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"mt5-analysis-service/internal/models"
	"mt5-analysis-service/internal/runner"
	"mt5-analysis-service/internal/store"
	"mt5-analysis-service/internal/telemetry"
)

// AnalysisFunc is the bound collaborator call executed per task.
type AnalysisFunc func(ctx context.Context) (any, error)

// Service ties the store and runner together.
type Service struct {
	store   *store.TaskStore
	runner  *runner.Runner
	analyze AnalysisFunc
	log     *zap.Logger
}

// New constructs the service with the analysis call to run per task.
func New(st *store.TaskStore, rn *runner.Runner, analyze AnalysisFunc, log *zap.Logger) *Service {
	return &Service{store: st, runner: rn, analyze: analyze, log: log}
}

// StatusResponse is the wire shape for a task status lookup. Running
// tasks omit the terminal fields entirely.
type StatusResponse struct {
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Result      any        `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Trigger creates a task record and starts the analysis off the
// request path, returning the new id immediately.
func (s *Service) Trigger(ctx context.Context) (string, error) {
	task, err := s.store.Create()
	if err != nil {
		return "", fmt.Errorf("create task: %w", err)
	}

	// The run outlives the triggering request, so it gets a fresh
	// context rather than the request's.
	if err := s.runner.Spawn(context.WithoutCancel(ctx), task.ID, runner.WorkFunc(s.analyze)); err != nil {
		// Cannot happen for a freshly minted uuid; recorded for the
		// poller rather than surfaced to the trigger.
		s.log.Error("spawn analysis", zap.String("task_id", task.ID), zap.Error(err))
		_ = s.store.Fail(task.ID, err.Error())
	}

	telemetry.AnalysesTriggered.Inc()
	s.log.Info("analysis triggered", zap.String("task_id", task.ID))
	return task.ID, nil
}

// Status looks up a task and projects it to the response shape.
func (s *Service) Status(_ context.Context, id string) (StatusResponse, error) {
	task, err := s.store.Get(id)
	if err != nil {
		return StatusResponse{}, err
	}
	return project(task), nil
}

func project(t models.Task) StatusResponse {
	resp := StatusResponse{
		Status:    t.Status,
		CreatedAt: t.CreatedAt,
	}
	switch t.Status {
	case models.StatusCompleted:
		resp.CompletedAt = t.CompletedAt
		resp.Result = t.Result
	case models.StatusFailed:
		resp.CompletedAt = t.CompletedAt
		resp.Error = t.Error
	}
	return resp
}
