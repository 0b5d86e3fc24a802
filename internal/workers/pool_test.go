// Package workers_test provides tests for the worker pool.
package workers_test

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/helios-labs/strategy-validator/internal/workers"
	"go.uber.org/zap"
)

func TestPoolExecutesAllTasks(t *testing.T) {
	pool := workers.NewPool(zap.NewNop(), &workers.Config{
		Name:       "test",
		NumWorkers: 4,
		QueueSize:  16,
	})
	pool.Start()

	var counter atomic.Int64
	const n = 100
	for i := 0; i < n; i++ {
		if err := pool.SubmitFunc(func() error {
			counter.Add(1)
			return nil
		}); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}

	if err := pool.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}

	if counter.Load() != n {
		t.Errorf("executed %d tasks, want %d", counter.Load(), n)
	}
	stats := pool.Stats()
	if stats.TasksSubmitted != n || stats.TasksCompleted != n {
		t.Errorf("stats = %+v, want %d submitted and completed", stats, n)
	}
}

func TestPoolCountsFailures(t *testing.T) {
	pool := workers.NewPool(zap.NewNop(), &workers.Config{
		Name:       "test",
		NumWorkers: 2,
		QueueSize:  8,
	})
	pool.Start()

	boom := errors.New("boom")
	for i := 0; i < 3; i++ {
		pool.SubmitFunc(func() error { return boom })
	}
	pool.SubmitFunc(func() error { return nil })
	pool.Stop()

	stats := pool.Stats()
	if stats.TasksFailed != 3 {
		t.Errorf("failed = %d, want 3", stats.TasksFailed)
	}
	if stats.TasksCompleted != 1 {
		t.Errorf("completed = %d, want 1", stats.TasksCompleted)
	}
}

func TestPoolRecoversFromPanic(t *testing.T) {
	pool := workers.NewPool(zap.NewNop(), &workers.Config{
		Name:          "test",
		NumWorkers:    2,
		QueueSize:     8,
		PanicRecovery: true,
	})
	pool.Start()

	pool.SubmitFunc(func() error { panic("task exploded") })

	var ran atomic.Bool
	pool.SubmitFunc(func() error {
		ran.Store(true)
		return nil
	})
	pool.Stop()

	if !ran.Load() {
		t.Error("pool stopped processing after a panicking task")
	}
	if pool.Stats().PanicRecovered != 1 {
		t.Errorf("recovered = %d, want 1", pool.Stats().PanicRecovered)
	}
}

func TestSubmitAfterStopFails(t *testing.T) {
	pool := workers.NewPool(zap.NewNop(), nil)
	pool.Start()
	pool.Stop()

	if err := pool.SubmitFunc(func() error { return nil }); err == nil {
		t.Fatal("expected submit to a stopped pool to fail")
	}
	if pool.IsRunning() {
		t.Error("stopped pool reports running")
	}
}
