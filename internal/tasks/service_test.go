package tasks

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mt5-analysis-service/internal/models"
	"mt5-analysis-service/internal/mt5"
	"mt5-analysis-service/internal/runner"
	"mt5-analysis-service/internal/store"
)

func newService(t *testing.T, analyze AnalysisFunc) (*Service, *store.TaskStore) {
	t.Helper()
	st := store.New()
	return New(st, runner.New(st, zap.NewNop()), analyze, zap.NewNop()), st
}

func waitStatus(t *testing.T, svc *Service, id, want string) StatusResponse {
	t.Helper()
	var resp StatusResponse
	require.Eventually(t, func() bool {
		got, err := svc.Status(context.Background(), id)
		if err != nil {
			return false
		}
		resp = got
		return got.Status == want
	}, 2*time.Second, 5*time.Millisecond)
	return resp
}

func TestTriggerReturnsImmediately(t *testing.T) {
	release := make(chan struct{})
	svc, _ := newService(t, func(context.Context) (any, error) {
		<-release
		return map[string]any{"profit": 100}, nil
	})
	defer close(release)

	start := time.Now()
	id, err := svc.Trigger(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, id)
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	resp, err := svc.Status(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRunning, resp.Status)
	assert.Nil(t, resp.CompletedAt)
	assert.Nil(t, resp.Result)
	assert.Empty(t, resp.Error)
	assert.False(t, resp.CreatedAt.IsZero())
}

func TestSlowAnalysisCompletesWithResult(t *testing.T) {
	svc, _ := newService(t, func(context.Context) (any, error) {
		time.Sleep(50 * time.Millisecond)
		return map[string]any{"profit": 100}, nil
	})

	id, err := svc.Trigger(context.Background())
	require.NoError(t, err)

	resp, err := svc.Status(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRunning, resp.Status)

	final := waitStatus(t, svc, id, models.StatusCompleted)
	assert.Equal(t, map[string]any{"profit": 100}, final.Result)
	require.NotNil(t, final.CompletedAt)
	assert.False(t, final.CompletedAt.Before(final.CreatedAt))
}

func TestFailedAnalysisSurfacesError(t *testing.T) {
	svc, _ := newService(t, func(context.Context) (any, error) {
		return nil, mt5.ErrNotConnected
	})

	id, err := svc.Trigger(context.Background())
	require.NoError(t, err)

	final := waitStatus(t, svc, id, models.StatusFailed)
	assert.Equal(t, "platform not connected", final.Error)
	assert.Nil(t, final.Result)
	require.NotNil(t, final.CompletedAt)
}

func TestStatusUnknownID(t *testing.T) {
	svc, _ := newService(t, func(context.Context) (any, error) { return nil, nil })
	_, err := svc.Status(context.Background(), "does-not-exist")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestConcurrentTriggersAreIndependent(t *testing.T) {
	const n = 50

	var counter int32
	var mu sync.Mutex
	svc, _ := newService(t, func(context.Context) (any, error) {
		mu.Lock()
		counter++
		fail := counter%2 == 0
		mu.Unlock()
		if fail {
			return nil, mt5.ErrNotConnected
		}
		return "ok", nil
	})

	ids := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := svc.Trigger(context.Background())
			assert.NoError(t, err)
			ids <- id
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool, n)
	for id := range ids {
		assert.False(t, seen[id], "duplicate task id %s", id)
		seen[id] = true

		require.Eventually(t, func() bool {
			resp, err := svc.Status(context.Background(), id)
			if err != nil {
				return false
			}
			switch resp.Status {
			case models.StatusCompleted:
				return resp.Result != nil && resp.Error == ""
			case models.StatusFailed:
				return resp.Error != "" && resp.Result == nil
			default:
				return false
			}
		}, 2*time.Second, 5*time.Millisecond)
	}
	assert.Len(t, seen, n)
}
