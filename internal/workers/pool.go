// Package workers provides a bounded pool for blocking work such as
// shelling out to ping, arp or netstat. Tasks are queued, executed by a
// fixed number of goroutines with optional retries and rate limiting, and
// their results are delivered on a channel.
package workers

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/anstrom/netrecon/internal/logging"
	"github.com/anstrom/netrecon/internal/metrics"
)

// Task is a unit of blocking work executed by a worker.
type Task interface {
	// Execute performs the task and returns an error if it fails.
	Execute(ctx context.Context) error
	// ID returns a unique identifier for the task.
	ID() string
	// Kind groups tasks for metrics and logging.
	Kind() string
}

// Result is the outcome of executing a task.
type Result struct {
	TaskID   string
	Kind     string
	Err      error
	Duration time.Duration
	Retries  int
}

// Config holds configuration for the worker pool.
type Config struct {
	// Size is the number of worker goroutines to create.
	Size int
	// QueueSize is the maximum number of tasks that can be queued.
	QueueSize int
	// MaxRetries is the maximum number of retries for failed tasks.
	MaxRetries int
	// RetryDelay is the delay between retries.
	RetryDelay time.Duration
	// ShutdownTimeout is how long Shutdown waits before cancelling running tasks.
	ShutdownTimeout time.Duration
	// RateLimit is the maximum number of tasks started per second (0 = no limit).
	RateLimit int
}

// DefaultConfig returns a default worker pool configuration.
func DefaultConfig() Config {
	return Config{
		Size:            10,
		QueueSize:       100,
		MaxRetries:      0,
		RetryDelay:      100 * time.Millisecond,
		ShutdownTimeout: 5 * time.Second,
	}
}

func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.Size <= 0 {
		c.Size = def.Size
	}
	if c.QueueSize <= 0 {
		c.QueueSize = def.QueueSize
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = def.ShutdownTimeout
	}
	return c
}

// Pool manages a fixed set of worker goroutines.
type Pool struct {
	config      Config
	tasks       chan Task
	results     chan Result
	ctx         context.Context
	cancel      context.CancelFunc
	closing     chan struct{}
	rateLimiter *time.Ticker
	wg          sync.WaitGroup
	mu          sync.RWMutex
	startOnce   sync.Once
	shutdown    atomic.Bool
}

// New creates a pool whose tasks run until Shutdown.
func New(config Config) *Pool {
	return NewWithContext(context.Background(), config)
}

// NewWithContext creates a pool whose tasks are cancelled when ctx is done.
func NewWithContext(ctx context.Context, config Config) *Pool {
	config = config.normalized()
	ctx, cancel := context.WithCancel(ctx)

	pool := &Pool{
		config:  config,
		tasks:   make(chan Task, config.QueueSize),
		results: make(chan Result, config.QueueSize),
		ctx:     ctx,
		cancel:  cancel,
		closing: make(chan struct{}),
	}

	if config.RateLimit > 0 {
		pool.rateLimiter = time.NewTicker(time.Second / time.Duration(config.RateLimit))
	}

	return pool
}

// Start launches the workers. Calling it more than once has no effect.
func (p *Pool) Start() {
	p.startOnce.Do(func() {
		logging.Debug("Starting worker pool",
			"worker_count", p.config.Size,
			"queue_size", p.config.QueueSize,
			"rate_limit", p.config.RateLimit)

		for i := 0; i < p.config.Size; i++ {
			p.wg.Add(1)
			go p.run(i)
		}
	})
}

// Submit queues a task without blocking. It fails when the queue is full or
// the pool is shutting down.
func (p *Pool) Submit(task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.shutdown.Load() {
		return fmt.Errorf("worker pool is shut down")
	}

	select {
	case p.tasks <- task:
		return nil
	case <-p.ctx.Done():
		return fmt.Errorf("worker pool is shutting down")
	default:
		return fmt.Errorf("task queue is full")
	}
}

// SubmitWait queues a task, waiting for queue space until ctx is done.
func (p *Pool) SubmitWait(ctx context.Context, task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.shutdown.Load() {
		return fmt.Errorf("worker pool is shut down")
	}

	select {
	case p.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ctx.Done():
		return fmt.Errorf("worker pool is shutting down")
	case <-p.closing:
		return fmt.Errorf("worker pool is shutting down")
	}
}

// Results returns the channel results are delivered on. It is closed by
// Shutdown once every worker has exited.
func (p *Pool) Results() <-chan Result {
	return p.results
}

// Shutdown stops accepting tasks, lets queued tasks drain and waits for the
// workers. Tasks still running after ShutdownTimeout are cancelled.
func (p *Pool) Shutdown() error {
	if !p.shutdown.CompareAndSwap(false, true) {
		return nil
	}

	close(p.closing)
	p.mu.Lock()
	close(p.tasks)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(p.config.ShutdownTimeout):
		logging.Warn("Worker pool shutdown timeout, cancelling running tasks")
		p.cancel()
		<-done
	}

	p.cancel()
	close(p.results)

	if p.rateLimiter != nil {
		p.rateLimiter.Stop()
	}

	logging.Debug("Worker pool shutdown completed")
	return nil
}

func (p *Pool) run(id int) {
	defer p.wg.Done()

	for {
		select {
		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			result := p.execute(id, task)
			select {
			case p.results <- result:
			case <-p.ctx.Done():
				return
			}

		case <-p.ctx.Done():
			return
		}
	}
}

func (p *Pool) execute(workerID int, task Task) Result {
	result := Result{TaskID: task.ID(), Kind: task.Kind()}
	start := time.Now()
	defer func() {
		result.Duration = time.Since(start)
		metrics.GetGlobalMetrics().RecordTask(task.Kind(), result.Duration, result.Err)
	}()

	if p.rateLimiter != nil {
		select {
		case <-p.rateLimiter.C:
		case <-p.ctx.Done():
			result.Err = p.ctx.Err()
			return result
		}
	}

	for attempt := 0; attempt <= p.config.MaxRetries; attempt++ {
		result.Retries = attempt
		err := task.Execute(p.ctx)
		if err == nil {
			result.Err = nil
			return result
		}
		result.Err = err

		if attempt < p.config.MaxRetries {
			logging.Debug("Task failed, retrying",
				"task_id", task.ID(),
				"kind", task.Kind(),
				"attempt", attempt+1,
				"worker_id", workerID,
				"error", err)

			select {
			case <-time.After(p.config.RetryDelay):
			case <-p.ctx.Done():
				return result
			}
		}
	}

	return result
}

// RunAll executes tasks on a temporary pool of at most cfg.Size workers and
// returns their results in completion order. If ctx is cancelled the results
// gathered so far are returned.
func RunAll(ctx context.Context, cfg Config, tasks []Task) []Result {
	if len(tasks) == 0 {
		return nil
	}

	cfg = cfg.normalized()
	if cfg.Size > len(tasks) {
		cfg.Size = len(tasks)
	}
	cfg.QueueSize = len(tasks)

	pool := NewWithContext(ctx, cfg)
	pool.Start()
	defer func() { _ = pool.Shutdown() }()

	submitted := 0
	for _, task := range tasks {
		if err := pool.SubmitWait(ctx, task); err != nil {
			break
		}
		submitted++
	}

	results := make([]Result, 0, submitted)
	for len(results) < submitted {
		select {
		case r := <-pool.results:
			results = append(results, r)
		case <-ctx.Done():
			return results
		}
	}
	return results
}

// FuncTask adapts a function into a Task.
type FuncTask struct {
	id   string
	kind string
	fn   func(ctx context.Context) error
}

// NewFuncTask creates a task that calls fn.
func NewFuncTask(id, kind string, fn func(ctx context.Context) error) *FuncTask {
	return &FuncTask{id: id, kind: kind, fn: fn}
}

// Execute implements the Task interface.
func (t *FuncTask) Execute(ctx context.Context) error {
	return t.fn(ctx)
}

// ID implements the Task interface.
func (t *FuncTask) ID() string {
	return t.id
}

// Kind implements the Task interface.
func (t *FuncTask) Kind() string {
	return t.kind
}
