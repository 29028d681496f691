package release

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Runner is the part of the Orchestrator the scheduler needs.
type Runner interface {
	Run(ctx context.Context, opts RunOptions) (*Report, error)
}

// Scheduler triggers execute-mode runs on a fixed interval inside the
// server process.  The authenticated HTTP trigger stays the primary entry
// point; the scheduler is for deployments without an external cron.
type Scheduler struct {
	Runner   Runner
	Interval time.Duration

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(r Runner, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Scheduler{Runner: r, Interval: interval}
}

// Start runs one batch immediately and then one per interval.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ticker != nil {
		return
	}
	s.ticker = time.NewTicker(s.Interval)
	s.stop = make(chan struct{})
	s.wg.Add(1)
	go s.loop(s.ticker, s.stop)
	log.Info().Str("component", "scheduler").Dur("interval", s.Interval).Msg("deposit release scheduler started")
}

// Stop halts the ticker and waits for an in-flight run to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	close(s.stop)
	s.wg.Wait()
	s.ticker = nil
	log.Info().Str("component", "scheduler").Msg("deposit release scheduler stopped")
}

func (s *Scheduler) loop(t *time.Ticker, stop <-chan struct{}) {
	defer s.wg.Done()
	s.tick()
	for {
		select {
		case <-t.C:
			s.tick()
		case <-stop:
			return
		}
	}
}

func (s *Scheduler) tick() {
	if _, err := s.Runner.Run(context.Background(), RunOptions{}); err != nil {
		log.Error().Err(err).Str("component", "scheduler").Msg("scheduled deposit release run failed")
	}
}
