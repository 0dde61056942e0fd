package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Scheduler enqueues a job of a fixed type on every tick of an interval.
type Scheduler struct {
	queue    *Queue
	jobType  string
	interval time.Duration
	logger   *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	seq    int
}

// NewScheduler builds a scheduler feeding queue.
func NewScheduler(queue *Queue, jobType string, interval time.Duration, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{queue: queue, jobType: jobType, interval: interval, logger: logger}
}

// Start enqueues one job immediately and then one per interval until Stop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.loop(ctx)
	s.logger.Info("scheduler started", zap.String("type", s.jobType), zap.Duration("interval", s.interval))
}

// Stop halts the ticker and waits for the loop to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.fire()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.fire()
		}
	}
}

func (s *Scheduler) fire() {
	s.seq++
	job := Job{ID: fmt.Sprintf("%s-%d", s.jobType, s.seq), Type: s.jobType}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("failed to schedule job", zap.String("type", s.jobType), zap.Error(err))
	}
}
