package jobs

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bmizerany/assert"
	"github.com/rs/zerolog"
)

type countingAdvancer struct {
	calls atomic.Int64
	fail  atomic.Bool
}

func (a *countingAdvancer) AdvanceChallenges(context.Context, time.Time) (int, error) {
	a.calls.Add(1)
	if a.fail.Load() {
		return 0, fmt.Errorf("store unavailable")
	}
	return 2, nil
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSchedulerTicks(t *testing.T) {
	adv := &countingAdvancer{}
	cs := NewChallengeScheduler(adv, SchedulerConfig{TickInterval: 10 * time.Millisecond}, zerolog.New(io.Discard))

	if err := cs.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, func() bool { return adv.calls.Load() >= 3 })
	cs.Stop()

	m := cs.GetMetrics()
	assert.Equal(t, false, m.Running)
	assert.Equal(t, adv.calls.Load(), m.Ticks)
	assert.Equal(t, 2*m.Ticks, m.Transitions)
	assert.Equal(t, int64(0), m.Errors)
}

func TestSchedulerStartTwice(t *testing.T) {
	cs := NewChallengeScheduler(&countingAdvancer{}, SchedulerConfig{TickInterval: time.Hour}, zerolog.New(io.Discard))

	if err := cs.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer cs.Stop()

	assert.NotEqual(t, nil, cs.Start(context.Background()))
	assert.Equal(t, true, cs.IsRunning())
}

func TestSchedulerCountsErrors(t *testing.T) {
	adv := &countingAdvancer{}
	adv.fail.Store(true)
	cs := NewChallengeScheduler(adv, SchedulerConfig{TickInterval: 10 * time.Millisecond}, zerolog.New(io.Discard))

	cs.Start(context.Background())
	waitFor(t, func() bool { return cs.GetMetrics().Errors >= 2 })
	cs.Stop()
	cs.Stop()

	assert.Equal(t, int64(0), cs.GetMetrics().Transitions)
}
