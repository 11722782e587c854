package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func discardLogger() zerolog.Logger { return zerolog.Nop() }

func TestPollSchedulerFiresRepeatedly(t *testing.T) {
	ticks := make(chan Tick, 10)
	s := NewPollScheduler(Config{
		Handler: func(_ context.Context, tick Tick) error {
			ticks <- tick
			return nil
		},
		Interval: 5 * time.Millisecond,
		Logger:   discardLogger(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Start(ctx))
	defer s.Stop(context.Background())

	var first, second Tick
	select {
	case first = <-ticks:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for first tick")
	}
	select {
	case second = <-ticks:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for second tick")
	}
	require.Equal(t, uint64(1), first.Sequence)
	require.Equal(t, uint64(2), second.Sequence)
}

func TestPollSchedulerStopHaltsFiring(t *testing.T) {
	ticks := make(chan Tick, 10)
	s := NewPollScheduler(Config{
		Handler: func(_ context.Context, tick Tick) error {
			ticks <- tick
			return nil
		},
		Interval: 5 * time.Millisecond,
		Logger:   discardLogger(),
	})

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	<-ticks
	require.NoError(t, s.Stop(context.Background()))

	select {
	case <-ticks:
	case <-time.After(20 * time.Millisecond):
	}
	drained := len(ticks)
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, drained, len(ticks))
}

func TestPollSchedulerStartTwiceIsNoop(t *testing.T) {
	s := NewPollScheduler(Config{
		Handler:  func(_ context.Context, _ Tick) error { return nil },
		Interval: 5 * time.Millisecond,
		Logger:   discardLogger(),
	})
	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	defer s.Stop(context.Background())
	require.NoError(t, s.Start(ctx))
}

func TestPollSchedulerStartWithoutHandlerPanics(t *testing.T) {
	s := NewPollScheduler(Config{Interval: 5 * time.Millisecond, Logger: discardLogger()})
	require.Panics(t, func() {
		_ = s.Start(context.Background())
	})
}
