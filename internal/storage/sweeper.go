package storage

import (
	"context"
	"sync"
	"time"

	"github.com/prn-tf/s3gate/internal/lock"
	"github.com/prn-tf/s3gate/internal/metrics"
)

// Sweeper periodically aborts expired multipart uploads across every
// bucket. One sweeper runs per process; the sweeper lock ensures only one
// process performs a sweep at a time when several share a storage root.
type Sweeper struct {
	backend Backend
	locker  lock.Locker
	metrics *metrics.Metrics
	expiry  time.Duration
	interval time.Duration

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewSweeper creates a Sweeper. expiry is how old an upload must be to be
// aborted; interval is how often the sweep runs (SPEC_FULL §4.4 defaults:
// 24h expiry, 1h interval).
func NewSweeper(backend Backend, locker lock.Locker, m *metrics.Metrics, expiry, interval time.Duration) *Sweeper {
	return &Sweeper{
		backend:  backend,
		locker:   locker,
		metrics:  m,
		expiry:   expiry,
		interval: interval,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start begins the sweep scheduler on its own goroutine.
func (s *Sweeper) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	go s.runLoop()
}

// Stop signals the scheduler to exit and waits for the current run to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopChan)
	<-s.doneChan
}

func (s *Sweeper) runLoop() {
	defer close(s.doneChan)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runOnce()
		case <-s.stopChan:
			return
		}
	}
}

// RunOnce executes a single sweep across all buckets. Exported so the
// admin CLI can trigger a sweep on demand without waiting for the ticker.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	return s.runWithContext(ctx)
}

func (s *Sweeper) runOnce() {
	s.runWithContext(context.Background())
}

func (s *Sweeper) runWithContext(ctx context.Context) (int, error) {
	start := time.Now()

	lockKey := lock.Keys.MultipartSweeper()
	lockTTL := s.interval / 2
	if lockTTL < 5*time.Minute {
		lockTTL = 5 * time.Minute
	}
	acquired, err := s.locker.Acquire(ctx, lockKey, lockTTL)
	if err != nil || !acquired {
		return 0, err
	}
	defer s.locker.Release(ctx, lockKey)

	buckets, err := s.backend.ListBuckets(ctx)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, b := range buckets {
		swept, err := s.backend.SweepExpiredUploads(ctx, b.Name, s.expiry)
		if err != nil {
			continue
		}
		total += swept
	}

	if s.metrics != nil {
		s.metrics.RecordSweeperRun(time.Since(start), total)
	}
	return total, nil
}
