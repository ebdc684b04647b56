package chrono

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFakeImplAdvances(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewFakeImpl(start)

	require.NoError(t, clock.Sleep(context.Background(), 500*time.Millisecond))
	require.NoError(t, clock.Sleep(context.Background(), time.Second))
	require.Equal(t, start.Add(1500*time.Millisecond), clock.Now())
	require.Equal(t, []time.Duration{500 * time.Millisecond, time.Second}, clock.Sleeps())
}

func TestFakeImplCancelled(t *testing.T) {
	clock := NewFakeImpl(time.Now())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, clock.Sleep(ctx, time.Second), context.Canceled)
	require.Empty(t, clock.Sleeps())
}

func TestStandardImplCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := StandardImpl{}.Sleep(ctx, time.Minute)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBackoffTimerFires(t *testing.T) {
	clock := NewFakeImpl(time.Now())
	timer := NewBackoffTimer(context.Background(), clock)
	timer.Start(2 * time.Second)
	defer timer.Stop()

	select {
	case <-timer.C():
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
	require.Equal(t, []time.Duration{2 * time.Second}, clock.Sleeps())
}
