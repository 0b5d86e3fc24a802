// Package workers provides the bounded worker pool the sweep controller
// fans candidate evaluations onto.
package workers

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Task represents a unit of work to be processed.
type Task interface {
	Execute() error
}

// TaskFunc is a function that can be used as a Task.
type TaskFunc func() error

func (f TaskFunc) Execute() error { return f() }

// Config configures the worker pool.
type Config struct {
	Name            string        // pool name for logging
	NumWorkers      int           // number of worker goroutines
	QueueSize       int           // size of the task queue
	ShutdownTimeout time.Duration // timeout for graceful shutdown
	PanicRecovery   bool          // recover panics inside tasks
}

// DefaultConfig returns sensible defaults. One CPU is left free so the
// submitting goroutine stays responsive during a long sweep.
func DefaultConfig(name string) *Config {
	n := runtime.NumCPU() - 1
	if n < 1 {
		n = 1
	}
	return &Config{
		Name:            name,
		NumWorkers:      n,
		QueueSize:       1024,
		ShutdownTimeout: 30 * time.Second,
		PanicRecovery:   true,
	}
}

// Pool manages a fixed set of worker goroutines draining a shared queue.
type Pool struct {
	logger *zap.Logger
	config *Config

	taskQueue chan Task
	wg        sync.WaitGroup

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc

	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	recovered atomic.Int64
}

// Stats is a point-in-time snapshot of pool counters.
type Stats struct {
	TasksSubmitted int64 `json:"tasks_submitted"`
	TasksCompleted int64 `json:"tasks_completed"`
	TasksFailed    int64 `json:"tasks_failed"`
	PanicRecovered int64 `json:"panic_recovered"`
}

// NewPool creates a new worker pool.
func NewPool(logger *zap.Logger, config *Config) *Pool {
	if config == nil {
		config = DefaultConfig("default")
	}
	if config.NumWorkers < 1 {
		config.NumWorkers = 1
	}
	if config.QueueSize < 1 {
		config.QueueSize = 1
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = 30 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		logger:    logger,
		config:    config,
		taskQueue: make(chan Task, config.QueueSize),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start launches the workers.
func (p *Pool) Start() {
	if p.running.Swap(true) {
		return
	}

	if p.logger != nil {
		p.logger.Info("starting worker pool",
			zap.String("name", p.config.Name),
			zap.Int("workers", p.config.NumWorkers),
		)
	}

	for i := 0; i < p.config.NumWorkers; i++ {
		p.wg.Add(1)
		go p.run(i)
	}
}

func (p *Pool) run(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case task, ok := <-p.taskQueue:
			if !ok {
				return
			}
			p.execute(id, task)
		}
	}
}

func (p *Pool) execute(id int, task Task) {
	var err error
	func() {
		if p.config.PanicRecovery {
			defer func() {
				if r := recover(); r != nil {
					p.recovered.Add(1)
					if p.logger != nil {
						p.logger.Error("worker recovered from panic",
							zap.Int("worker_id", id),
							zap.Any("panic", r),
						)
					}
					err = &PanicError{Recovered: r}
				}
			}()
		}
		err = task.Execute()
	}()

	if err != nil {
		p.failed.Add(1)
		if p.logger != nil {
			p.logger.Debug("task failed", zap.Error(err))
		}
		return
	}
	p.completed.Add(1)
}

// Submit enqueues a task, blocking while the queue is full. It fails only
// when the pool has been stopped.
func (p *Pool) Submit(task Task) error {
	if !p.running.Load() {
		return ErrPoolStopped
	}

	select {
	case p.taskQueue <- task:
		p.submitted.Add(1)
		return nil
	case <-p.ctx.Done():
		return ErrPoolStopped
	}
}

// SubmitFunc submits a function as a task.
func (p *Pool) SubmitFunc(fn func() error) error {
	return p.Submit(TaskFunc(fn))
}

// Stop drains the queue and waits for in-flight tasks to finish, up to the
// shutdown timeout.
func (p *Pool) Stop() error {
	if !p.running.Swap(false) {
		return nil
	}

	close(p.taskQueue)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		if p.logger != nil {
			p.logger.Info("worker pool stopped",
				zap.String("name", p.config.Name),
				zap.Int64("completed", p.completed.Load()),
				zap.Int64("failed", p.failed.Load()),
			)
		}
		return nil
	case <-time.After(p.config.ShutdownTimeout):
		p.cancel()
		if p.logger != nil {
			p.logger.Warn("worker pool shutdown timed out",
				zap.String("name", p.config.Name),
				zap.Duration("timeout", p.config.ShutdownTimeout),
			)
		}
		return ErrShutdownTimeout
	}
}

// Abort cancels workers immediately, abandoning queued tasks.
func (p *Pool) Abort() {
	p.running.Store(false)
	p.cancel()
}

// IsRunning reports whether the pool accepts new tasks.
func (p *Pool) IsRunning() bool {
	return p.running.Load()
}

// Stats returns current pool counters.
func (p *Pool) Stats() Stats {
	return Stats{
		TasksSubmitted: p.submitted.Load(),
		TasksCompleted: p.completed.Load(),
		TasksFailed:    p.failed.Load(),
		PanicRecovered: p.recovered.Load(),
	}
}

var (
	ErrPoolStopped     = &PoolError{Message: "pool is stopped"}
	ErrShutdownTimeout = &PoolError{Message: "shutdown timed out"}
)

// PoolError represents a pool error.
type PoolError struct {
	Message string
}

func (e *PoolError) Error() string { return e.Message }

// PanicError represents a recovered panic.
type PanicError struct {
	Recovered interface{}
}

func (e *PanicError) Error() string { return "panic recovered" }
