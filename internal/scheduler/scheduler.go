// Package scheduler drives periodic re-checks of pending proving work,
// adapted from the teacher's x/period-runner (periodrunner.PeriodRunner /
// manager.LocalPeriodRunner). The teacher's runner fires on Ethereum-epoch
// boundaries anchored to a protocol genesis time; this domain has no
// epoch or genesis concept, so the generalization keeps the same
// SetHandler/Start/Stop lifecycle and context-cancellable background
// goroutine but drops the genesis-anchored period-boundary arithmetic in
// favor of a plain fixed interval — there is no equivalent of "period 0
// starts at genesis + K*periodDuration" for a service whose only job is
// "check again in N seconds whether the rollup has advanced."
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultInterval is used when Config.Interval is unset.
const DefaultInterval = 30 * time.Second

// Tick is passed to the Callback on every firing.
type Tick struct {
	Sequence uint64
	FiredAt  time.Time
}

// Callback is the hook invoked on every tick.
type Callback func(context.Context, Tick) error

// Scheduler drives periodic Callback invocations.
type Scheduler interface {
	SetHandler(Callback)
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Config configures a PollScheduler.
type Config struct {
	Handler  Callback
	Interval time.Duration
	Now      func() time.Time
	Logger   zerolog.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(logger zerolog.Logger) Config {
	return Config{
		Handler:  nil,
		Interval: DefaultInterval,
		Now:      time.Now,
		Logger:   logger.With().Str("component", "scheduler").Logger(),
	}
}

// PollScheduler implements Scheduler with a fixed-interval ticker.
type PollScheduler struct {
	mu       sync.Mutex
	handler  Callback
	interval time.Duration
	now      func() time.Time
	log      zerolog.Logger
	cancel   context.CancelFunc
	started  bool
}

// NewPollScheduler constructs a PollScheduler. If cfg.Handler is nil,
// SetHandler must be called before Start.
func NewPollScheduler(cfg Config) *PollScheduler {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	return &PollScheduler{
		handler:  cfg.Handler,
		interval: cfg.Interval,
		now:      cfg.Now,
		log:      cfg.Logger,
	}
}

// SetHandler sets or replaces the callback invoked on every tick.
func (s *PollScheduler) SetHandler(handler Callback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = handler
}

// Start begins firing ticks until the context is cancelled or Stop is
// called. Start panics if no handler has been set, matching the
// teacher's LocalPeriodRunner.Start precondition.
func (s *PollScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handler == nil {
		panic("scheduler: PollScheduler requires a handler to start")
	}
	if s.started {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.started = true

	go s.run(runCtx)
	return nil
}

// Stop halts the scheduler.
func (s *PollScheduler) Stop(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.started = false
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	return nil
}

func (s *PollScheduler) run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var sequence uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sequence++
			tick := Tick{Sequence: sequence, FiredAt: s.now()}
			if err := s.handler(ctx, tick); err != nil {
				s.log.Error().Err(err).Uint64("sequence", sequence).Msg("scheduler handler returned error")
			}
		}
	}
}
