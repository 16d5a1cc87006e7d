package harness

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestSchedulerRequiresCallback(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := NewDefaultTestScheduler(time.Second, true, nil)
	require.Error(t, s.Start(context.Background()))
}

func TestSchedulerRunOnce(t *testing.T) {
	defer goleak.VerifyNone(t)

	var calls atomic.Int32
	s := NewDefaultTestScheduler(0, true, nil)
	s.RegisterCallback(func() error {
		calls.Add(1)
		return nil
	})

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, int32(1), calls.Load())
}

func TestSchedulerRunOncePropagatesError(t *testing.T) {
	defer goleak.VerifyNone(t)

	wantErr := errors.New("tests failed")
	s := NewDefaultTestScheduler(0, true, nil)
	s.RegisterCallback(func() error { return wantErr })

	assert.ErrorIs(t, s.Start(context.Background()), wantErr)
}

func TestSchedulerPeriodic(t *testing.T) {
	defer goleak.VerifyNone(t)

	var calls atomic.Int32
	s := NewDefaultTestScheduler(10*time.Millisecond, false, nil)
	s.RegisterCallback(func() error {
		calls.Add(1)
		return nil
	})

	require.NoError(t, s.Start(context.Background()))
	assert.False(t, s.Stopped())

	require.Eventually(t, func() bool {
		return calls.Load() >= 3
	}, 5*time.Second, 5*time.Millisecond)

	require.NoError(t, s.Stop())
	assert.True(t, s.Stopped())
	require.NoError(t, s.WaitForShutdown(context.Background()))
}

func TestSchedulerContinuesAfterCallbackError(t *testing.T) {
	defer goleak.VerifyNone(t)

	var calls atomic.Int32
	s := NewDefaultTestScheduler(10*time.Millisecond, false, nil)
	s.RegisterCallback(func() error {
		if calls.Add(1) == 2 {
			return errors.New("transient failure")
		}
		return nil
	})

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool {
		return calls.Load() >= 3
	}, 5*time.Second, 5*time.Millisecond)

	require.NoError(t, s.Stop())
	require.NoError(t, s.WaitForShutdown(context.Background()))
}

func TestSchedulerStopsOnContextCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	s := NewDefaultTestScheduler(time.Hour, false, nil)
	s.RegisterCallback(func() error { return nil })

	require.NoError(t, s.Start(ctx))
	cancel()
	require.NoError(t, s.WaitForShutdown(context.Background()))
	assert.True(t, s.Stopped())
}

func TestSchedulerStopIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := NewDefaultTestScheduler(10*time.Millisecond, false, nil)
	s.RegisterCallback(func() error { return nil })
	require.NoError(t, s.Start(context.Background()))

	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())
	require.NoError(t, s.WaitForShutdown(context.Background()))
}
