// Package housekeeping runs periodic maintenance tasks on a single
// background goroutine.
package housekeeping

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task is one unit of periodic work. Failures are logged and never stop other tasks.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

type Runner struct {
	tasks    []Task
	interval time.Duration
	timeout  time.Duration
	logger   *zap.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewRunner defaults interval to one hour when it is not positive.
func NewRunner(interval time.Duration, logger *zap.Logger, tasks ...Task) *Runner {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		tasks:    tasks,
		interval: interval,
		timeout:  interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the worker; the first pass runs immediately.
func (r *Runner) Start() {
	go r.loop()
	r.logger.Info("Housekeeping started",
		zap.Duration("interval", r.interval),
		zap.Int("tasks", len(r.tasks)),
	)
}

// Stop signals the worker and waits for the in-flight pass to finish.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	<-r.doneCh
	r.logger.Info("Housekeeping stopped")
}

func (r *Runner) loop() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.RunOnce()
	for {
		select {
		case <-ticker.C:
			r.RunOnce()
		case <-r.stopCh:
			return
		}
	}
}

// RunOnce executes every task once, in order.
func (r *Runner) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	succeeded := 0
	for _, task := range r.tasks {
		start := time.Now()
		if err := task.Run(ctx); err != nil {
			r.logger.Error("Housekeeping task failed",
				zap.String("task", task.Name),
				zap.Duration("duration", time.Since(start)),
				zap.Error(err),
			)
			continue
		}
		succeeded++
		r.logger.Debug("Housekeeping task completed",
			zap.String("task", task.Name),
			zap.Duration("duration", time.Since(start)),
		)
	}

	r.logger.Info("Housekeeping pass completed",
		zap.Int("succeeded", succeeded),
		zap.Int("total", len(r.tasks)),
	)
}
