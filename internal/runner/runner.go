package runner

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"mt5-analysis-service/internal/store"
	"mt5-analysis-service/internal/telemetry"
)

// WorkFunc is the external analysis call executed for one task. It may
// block for seconds to minutes.
type WorkFunc func(ctx context.Context) (any, error)

// Runner executes one task's work on its own goroutine, detached from
// the triggering request, and writes the outcome back through the
// store. Failures never escape past the task boundary.
type Runner struct {
	store *store.TaskStore
	log   *zap.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// New constructs a runner bound to the store.
func New(st *store.TaskStore, log *zap.Logger) *Runner {
	return &Runner{
		store:    st,
		log:      log,
		inFlight: make(map[string]struct{}),
	}
}

// Spawn starts work for the given task id. At most one execution per id
// is ever started; duplicate spawns are rejected before any goroutine
// is created. The spawn itself cannot fail past the caller.
func (r *Runner) Spawn(ctx context.Context, id string, work WorkFunc) error {
	r.mu.Lock()
	if _, dup := r.inFlight[id]; dup {
		r.mu.Unlock()
		return fmt.Errorf("task %s already executing", id)
	}
	r.inFlight[id] = struct{}{}
	r.mu.Unlock()

	go r.run(ctx, id, work)
	return nil
}

func (r *Runner) run(ctx context.Context, id string, work WorkFunc) {
	defer func() {
		r.mu.Lock()
		delete(r.inFlight, id)
		r.mu.Unlock()
	}()

	telemetry.AnalysesInFlight.Inc()
	defer telemetry.AnalysesInFlight.Dec()

	result, err := r.execute(ctx, work)
	if err != nil {
		if ferr := r.store.Fail(id, err.Error()); ferr != nil {
			r.log.Error("record failure", zap.String("task_id", id), zap.Error(ferr))
			return
		}
		telemetry.AnalysesFailed.Inc()
		r.log.Warn("analysis failed", zap.String("task_id", id), zap.Error(err))
		return
	}

	if cerr := r.store.Complete(id, result); cerr != nil {
		r.log.Error("record completion", zap.String("task_id", id), zap.Error(cerr))
		return
	}
	telemetry.AnalysesCompleted.Inc()
	r.log.Info("analysis completed", zap.String("task_id", id))
}

// execute invokes the work function, converting a panic into an error
// so one misbehaving job cannot take down the process.
func (r *Runner) execute(ctx context.Context, work WorkFunc) (result any, err error) {
	defer func() {
		if p := recover(); p != nil {
			result = nil
			err = fmt.Errorf("analysis panicked: %v", p)
		}
	}()
	return work(ctx)
}
