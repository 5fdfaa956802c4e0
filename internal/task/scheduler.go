package task

import (
	"context"
	"sync"
	"time"

	"github.com/agilefinance/boletoflow/internal/logging"
)

// Scheduler drives the dispatcher on a fixed interval. Ticks never overlap:
// the next tick fires only after the current drain returns, so a slow batch
// stretches the cycle instead of stacking work. Stop waits for the in-flight
// batch rather than cancelling it, which is the drain-then-stop shutdown
// contract.
type Scheduler struct {
	dispatcher *Dispatcher
	interval   time.Duration
	batchSize  int
	log        *logging.Logger

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	running bool
}

func NewScheduler(d *Dispatcher, interval time.Duration, batchSize int) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	if batchSize <= 0 {
		batchSize = 10
	}
	return &Scheduler{
		dispatcher: d,
		interval:   interval,
		batchSize:  batchSize,
		log:        logging.New("boletoflow-scheduler"),
	}
}

// Start launches the polling loop. Calling Start on a running scheduler is
// a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.log.Plain().Warn("scheduler already running")
		return
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.running = true

	s.log.Plain().WithFields(map[string]any{
		"interval":   s.interval.String(),
		"batch_size": s.batchSize,
	}).Info("scheduler started")

	go s.loop(ctx)
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		// A tick failure means the store was unreachable; the next tick
		// simply tries again.
		if err := s.dispatcher.RunTick(ctx, s.batchSize); err != nil {
			s.log.WithContext(ctx).WithError(err).Error("tick aborted")
		}

		select {
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Stop signals the loop and blocks until the in-flight batch has drained.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	close(s.stop)
	<-s.done
	s.running = false
	s.log.Plain().Info("scheduler stopped")
}
