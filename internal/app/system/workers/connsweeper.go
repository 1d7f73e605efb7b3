// internal/app/system/workers/connsweeper.go
package workers

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Sweeper closes connections that have been silent since cutoff and
// reports how many it closed. realtime.Server implements it.
type Sweeper interface {
	Sweep(cutoff time.Time) int
}

// ConnSweeper is a background worker that closes idle WebSocket connections
// the read deadline has not caught yet (for example a half-open TCP peer).
type ConnSweeper struct {
	target    Sweeper
	log       *zap.Logger
	interval  time.Duration
	idleAfter time.Duration
	now       func() time.Time
	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// NewConnSweeper creates a sweeper that runs every interval and closes
// connections idle for longer than idleAfter.
func NewConnSweeper(target Sweeper, logger *zap.Logger, interval, idleAfter time.Duration) *ConnSweeper {
	return &ConnSweeper{
		target:    target,
		log:       logger,
		interval:  interval,
		idleAfter: idleAfter,
		now:       time.Now,
		stopCh:    make(chan struct{}),
	}
}

// Start begins the background sweep loop.
func (w *ConnSweeper) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("connection sweeper started",
		zap.Duration("interval", w.interval),
		zap.Duration("idle_after", w.idleAfter))
}

// Stop signals the worker to stop and waits for it to finish. Safe to call twice.
func (w *ConnSweeper) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
	w.log.Info("connection sweeper stopped")
}

func (w *ConnSweeper) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.SweepOnce()
		}
	}
}

// SweepOnce runs a single pass and returns the number of connections closed.
func (w *ConnSweeper) SweepOnce() int {
	n := w.target.Sweep(w.now().Add(-w.idleAfter))
	if n > 0 {
		w.log.Info("closed idle connections", zap.Int("count", n))
	}
	return n
}
