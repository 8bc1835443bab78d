package jobs

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// ChallengeAdvancer persists time-driven challenge transitions
type ChallengeAdvancer interface {
	AdvanceChallenges(ctx context.Context, now time.Time) (int, error)
}

// ChallengeScheduler moves team challenges through upcoming, active and
// completed as their windows open and close
type ChallengeScheduler struct {
	advancer ChallengeAdvancer
	logger   zerolog.Logger
	stopCh   chan struct{}
	wg       sync.WaitGroup
	running  atomic.Bool

	// Metrics
	ticks       atomic.Int64
	transitions atomic.Int64
	errorCount  atomic.Int64
	startTime   time.Time

	tickInterval time.Duration
	tickTimeout  time.Duration
	now          func() time.Time
}

// SchedulerConfig holds configuration for the scheduler
type SchedulerConfig struct {
	TickInterval time.Duration // Default: 30s
	TickTimeout  time.Duration // Default: 10s
}

// SchedulerMetrics is a point-in-time view of the scheduler
type SchedulerMetrics struct {
	Running     bool   `json:"running"`
	Ticks       int64  `json:"ticks"`
	Transitions int64  `json:"transitions"`
	Errors      int64  `json:"errors"`
	Uptime      string `json:"uptime"`
}

// NewChallengeScheduler creates a new challenge scheduler
func NewChallengeScheduler(advancer ChallengeAdvancer, config SchedulerConfig, logger zerolog.Logger) *ChallengeScheduler {
	if config.TickInterval <= 0 {
		config.TickInterval = 30 * time.Second
	}
	if config.TickTimeout <= 0 {
		config.TickTimeout = 10 * time.Second
	}

	return &ChallengeScheduler{
		advancer:     advancer,
		logger:       logger.With().Str("component", "challenge_scheduler").Logger(),
		tickInterval: config.TickInterval,
		tickTimeout:  config.TickTimeout,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Start runs one pass immediately and then one per tick until Stop
func (cs *ChallengeScheduler) Start(ctx context.Context) error {
	if !cs.running.CompareAndSwap(false, true) {
		return fmt.Errorf("challenge scheduler already running")
	}

	cs.stopCh = make(chan struct{})
	cs.startTime = time.Now()

	cs.logger.Info().Dur("tick_interval", cs.tickInterval).Msg("challenge scheduler started")

	cs.wg.Add(1)
	go cs.loop(ctx)

	return nil
}

// Stop gracefully stops the scheduler
func (cs *ChallengeScheduler) Stop() {
	if !cs.running.CompareAndSwap(true, false) {
		return
	}

	close(cs.stopCh)
	cs.wg.Wait()

	cs.logger.Info().
		Int64("ticks", cs.ticks.Load()).
		Int64("transitions", cs.transitions.Load()).
		Int64("errors", cs.errorCount.Load()).
		Dur("uptime", time.Since(cs.startTime).Round(time.Second)).
		Msg("challenge scheduler stopped")
}

// IsRunning returns whether the scheduler is currently running
func (cs *ChallengeScheduler) IsRunning() bool {
	return cs.running.Load()
}

// GetMetrics returns current scheduler metrics
func (cs *ChallengeScheduler) GetMetrics() SchedulerMetrics {
	var uptime time.Duration
	if cs.running.Load() {
		uptime = time.Since(cs.startTime)
	}
	return SchedulerMetrics{
		Running:     cs.running.Load(),
		Ticks:       cs.ticks.Load(),
		Transitions: cs.transitions.Load(),
		Errors:      cs.errorCount.Load(),
		Uptime:      uptime.Round(time.Second).String(),
	}
}

func (cs *ChallengeScheduler) loop(ctx context.Context) {
	defer cs.wg.Done()

	ticker := time.NewTicker(cs.tickInterval)
	defer ticker.Stop()

	cs.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return

		case <-cs.stopCh:
			return

		case <-ticker.C:
			cs.tick(ctx)
		}
	}
}

func (cs *ChallengeScheduler) tick(ctx context.Context) {
	tickCtx, cancel := context.WithTimeout(ctx, cs.tickTimeout)
	defer cancel()

	cs.ticks.Add(1)
	n, err := cs.advancer.AdvanceChallenges(tickCtx, cs.now())
	cs.transitions.Add(int64(n))
	if err != nil {
		cs.errorCount.Add(1)
		cs.logger.Error().Err(err).Msg("failed to advance challenges")
		return
	}
	if n > 0 {
		cs.logger.Debug().Int("transitions", n).Msg("challenges advanced")
	}
}
