// Package concurrency wraps alitto/pond worker pools with the defaults and
// panic handling the rest of the engine expects.
package concurrency

import (
	"fmt"
	"time"

	"github.com/alitto/pond"
)

// Logger is the minimal surface a pool needs to report a recovered panic,
// so this package doesn't depend on any particular logging implementation.
type Logger interface {
	Error(msg string, fields ...interface{})
}

// PoolConfig configures one WorkerPool.
type PoolConfig struct {
	Name        string
	MaxWorkers  int
	MaxCapacity int
	IdleTimeout time.Duration
	NonBlocking bool // true: Submit returns an error instead of blocking when full
}

// WorkerPool fans broadcast/persistence work out across a bounded pond pool.
type WorkerPool struct {
	pool   *pond.WorkerPool
	config PoolConfig
}

// NewWorkerPool builds a pool, filling in safe defaults for zero fields.
// logger may be nil, in which case a recovered panic is simply dropped.
func NewWorkerPool(cfg PoolConfig, logger Logger) *WorkerPool {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 10
	}
	if cfg.MaxCapacity <= 0 {
		cfg.MaxCapacity = 100
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}

	pool := pond.New(
		cfg.MaxWorkers,
		cfg.MaxCapacity,
		pond.MinWorkers(1),
		pond.IdleTimeout(cfg.IdleTimeout),
		pond.Strategy(pond.Balanced()),
		pond.PanicHandler(func(p interface{}) {
			if logger != nil {
				logger.Error("worker pool panic recovered", "pool", cfg.Name, "panic", p)
			}
		}),
	)

	return &WorkerPool{pool: pool, config: cfg}
}

// Submit queues task, returning an error instead of blocking when the pool
// is configured NonBlocking and already at capacity.
func (wp *WorkerPool) Submit(task func()) error {
	if wp.config.NonBlocking {
		if !wp.pool.TrySubmit(task) {
			return fmt.Errorf("worker pool '%s' is full (capacity: %d)", wp.config.Name, wp.config.MaxCapacity)
		}
		return nil
	}
	wp.pool.Submit(task)
	return nil
}

// Stop drains the pool, waiting for in-flight tasks to finish.
func (wp *WorkerPool) Stop() {
	wp.pool.StopAndWait()
}

// Stats reports pond's own running/idle/submitted/failed counters.
func (wp *WorkerPool) Stats() map[string]int {
	return map[string]int{
		"running_workers":  wp.pool.RunningWorkers(),
		"idle_workers":     wp.pool.IdleWorkers(),
		"submitted_tasks":  int(wp.pool.SubmittedTasks()),
		"waiting_tasks":    int(wp.pool.WaitingTasks()),
		"successful_tasks": int(wp.pool.SuccessfulTasks()),
		"failed_tasks":     int(wp.pool.FailedTasks()),
	}
}
