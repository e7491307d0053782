package evolution

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Analyzer is the unit of work the dispatcher schedules.
type Analyzer interface {
	EvolveSession(ctx context.Context, sessionID, userID string) error
}

type job struct {
	sessionID string
	userID    string
}

// Dispatcher runs insight evolution off the request path. Jobs are handed to
// a single worker through a bounded queue; when the queue is full the job is
// dropped rather than blocking the HTTP handler.
type Dispatcher struct {
	analyzer  Analyzer
	jobs      chan job
	logger    *zap.Logger
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewDispatcher builds a dispatcher with the given queue capacity.
func NewDispatcher(analyzer Analyzer, queueSize int, logger *zap.Logger) *Dispatcher {
	if queueSize < 1 {
		queueSize = 8
	}
	return &Dispatcher{
		analyzer: analyzer,
		jobs:     make(chan job, queueSize),
		logger:   logger,
	}
}

// Start launches the worker. The context bounds each evolution run; cancel
// it and Close to stop.
func (d *Dispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for j := range d.jobs {
			if err := d.analyzer.EvolveSession(ctx, j.sessionID, j.userID); err != nil {
				d.logger.Error("insight evolution failed",
					zap.String("session", j.sessionID), zap.Error(err))
			}
		}
	}()
}

// Enqueue schedules one session for evolution. It reports false when the
// queue is full and the job was dropped.
func (d *Dispatcher) Enqueue(sessionID, userID string) bool {
	select {
	case d.jobs <- job{sessionID: sessionID, userID: userID}:
		return true
	default:
		d.logger.Warn("evolution queue full, dropping job", zap.String("session", sessionID))
		return false
	}
}

// Close stops accepting jobs and waits for the worker to drain the queue.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() { close(d.jobs) })
	d.wg.Wait()
}
