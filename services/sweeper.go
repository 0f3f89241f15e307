package services

import (
	"context"
	"sync"
	"time"

	"github.com/RipinDensumite/thinwatcher/models"
	"github.com/RipinDensumite/thinwatcher/utils"
)

// Expirer flips clients last heard from before cutoff to offline and
// returns the ones that changed.
type Expirer interface {
	ExpireStale(cutoff time.Time) []models.ClientEntry
}

// Sweeper periodically flips clients that stopped sending heartbeats to
// offline. Detection latency is at most interval + timeout.
type Sweeper struct {
	target   Expirer
	logger   *utils.Logger
	interval time.Duration
	timeout  time.Duration
	now      func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSweeper(target Expirer, interval, timeout time.Duration, logger *utils.Logger) *Sweeper {
	return &Sweeper{
		target:   target,
		logger:   logger,
		interval: interval,
		timeout:  timeout,
		now:      time.Now,
	}
}

// Start launches the sweep loop. It runs until Stop or until ctx is done.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)

	s.logger.Info("Starting staleness sweeper", "interval", s.interval.String(), "timeout", s.timeout.String())

	s.wg.Add(1)
	go s.run(ctx)
}

// Stop cancels the loop and waits for it to exit.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
	s.logger.Info("Staleness sweeper stopped")
}

func (s *Sweeper) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(s.now())
		}
	}
}

// Sweep runs a single pass as of now and returns how many clients went offline.
func (s *Sweeper) Sweep(now time.Time) int {
	expired := s.target.ExpireStale(now.Add(-s.timeout))
	for _, entry := range expired {
		s.logger.Info("Client timed out", "client_id", entry.ClientID, "last_updated", entry.Status.LastUpdated)
	}
	return len(expired)
}
