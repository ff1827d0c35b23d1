package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/phrazzld/puris-api/internal/domain"
)

// DispatcherConfig holds configuration for the dispatcher
type DispatcherConfig struct {
	// WorkerCount determines how many concurrent workers process tasks
	WorkerCount int

	// QueueSize determines the buffer size for the in-memory task queue.
	// It also bounds how many requests one recovery or sweep enqueues.
	QueueSize int

	// StuckRequestAge defines how long a request can stay in PROCESSING
	// before it is failed
	StuckRequestAge time.Duration

	// StuckCheckInterval defines how often to sweep for stuck requests
	// If zero, defaults to 5 minutes
	StuckCheckInterval time.Duration
}

// DefaultDispatcherConfig returns a DispatcherConfig with reasonable defaults
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		WorkerCount:        2,
		QueueSize:          100,
		StuckRequestAge:    30 * time.Minute,
		StuckCheckInterval: 5 * time.Minute,
	}
}

// Dispatcher drives received requests into PROCESSING in the background
// and fails requests that stay in PROCESSING for too long.
type Dispatcher struct {
	requests RequestTransitioner
	queue    *TaskQueue
	pool     *WorkerPool
	config   DispatcherConfig
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDispatcher creates a Dispatcher. Call Start to begin processing.
func NewDispatcher(requests RequestTransitioner, config DispatcherConfig, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if config.StuckCheckInterval <= 0 {
		config.StuckCheckInterval = 5 * time.Minute
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultDispatcherConfig().QueueSize
	}

	logger = logger.With(slog.String("component", "dispatcher"))
	queue := NewTaskQueue(config.QueueSize, logger)
	pool := NewWorkerPool(queue, WorkerPoolConfig{WorkerCount: config.WorkerCount}, logger)
	pool.SetErrorHandler(func(task Task, err error) {
		logger.Error("request task failed",
			slog.String("task_id", task.ID().String()),
			slog.String("task_type", task.Type()),
			slog.String("error", err.Error()))
	})

	ctx, cancel := context.WithCancel(context.Background())

	return &Dispatcher{
		requests: requests,
		queue:    queue,
		pool:     pool,
		config:   config,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Submit queues a task without blocking.
func (d *Dispatcher) Submit(ctx context.Context, task Task) error {
	return d.queue.Enqueue(task)
}

// Start recovers received requests, then starts the workers and the
// stuck-request monitor.
func (d *Dispatcher) Start(ctx context.Context) error {
	if err := d.Recover(ctx); err != nil {
		return fmt.Errorf("failed to recover requests: %w", err)
	}

	d.pool.Start()

	d.wg.Add(1)
	go d.monitor()

	return nil
}

// Stop halts the monitor and the workers and closes the queue.
// Requests still queued stay RECEIVED and are recovered on the next start.
func (d *Dispatcher) Stop() {
	d.cancel()
	d.wg.Wait()
	d.pool.Stop()
	d.queue.Close()
}

// Recover queues every request left in RECEIVED by a previous run.
func (d *Dispatcher) Recover(ctx context.Context) error {
	received, err := d.requests.ListByState(ctx, domain.RequestStateReceived, 0, d.config.QueueSize)
	if err != nil {
		return fmt.Errorf("failed to list received requests: %w", err)
	}

	d.logger.Info("recovering unfinished requests", slog.Int("received_count", len(received)))

	for _, req := range received {
		d.enqueue(NewProcessRequestTask(d.requests, req.ID))
	}
	return nil
}

// Sweep fails requests stuck in PROCESSING and re-queues received requests
// the event path missed, for example because the queue was full.
func (d *Dispatcher) Sweep(ctx context.Context) {
	stuck, err := d.requests.ListByState(
		ctx, domain.RequestStateProcessing, d.config.StuckRequestAge, d.config.QueueSize)
	if err != nil {
		d.logger.Error("failed to check for stuck requests", slog.String("error", err.Error()))
	} else if len(stuck) > 0 {
		d.logger.Warn("found stuck requests", slog.Int("count", len(stuck)))
		for _, req := range stuck {
			d.enqueue(NewFailRequestTask(d.requests, req.ID))
		}
	}

	missed, err := d.requests.ListByState(
		ctx, domain.RequestStateReceived, d.config.StuckCheckInterval, d.config.QueueSize)
	if err != nil {
		d.logger.Error("failed to check for waiting requests", slog.String("error", err.Error()))
		return
	}
	for _, req := range missed {
		d.enqueue(NewProcessRequestTask(d.requests, req.ID))
	}
}

func (d *Dispatcher) enqueue(task *RequestTask) {
	if err := d.queue.Enqueue(task); err != nil {
		d.logger.Error("failed to queue request task",
			slog.String("request_id", task.RequestID().String()),
			slog.String("task_type", task.Type()),
			slog.String("error", err.Error()))
	}
}

// monitor runs Sweep every StuckCheckInterval until Stop.
func (d *Dispatcher) monitor() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.StuckCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			d.Sweep(d.ctx)
		}
	}
}
