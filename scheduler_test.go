package suitectl

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerRequiresCallback(t *testing.T) {
	s := NewIntervalScheduler(time.Second, true, slog.Default())
	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "callback")
}

func TestSchedulerRunOnce(t *testing.T) {
	s := NewIntervalScheduler(0, true, slog.Default())

	var calls atomic.Int32
	s.RegisterCallback(func() error {
		calls.Add(1)
		return nil
	})

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, int32(1), calls.Load())
	require.NoError(t, s.WaitForShutdown(context.Background()))
}

func TestSchedulerRunOncePropagatesError(t *testing.T) {
	s := NewIntervalScheduler(0, true, slog.Default())
	s.RegisterCallback(func() error {
		return errors.New("run went sideways")
	})

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run went sideways")
}

func TestSchedulerContinuousRunsPeriodically(t *testing.T) {
	s := NewIntervalScheduler(20*time.Millisecond, false, slog.Default())

	var calls atomic.Int32
	s.RegisterCallback(func() error {
		calls.Add(1)
		return nil
	})

	require.NoError(t, s.Start(context.Background()))

	require.Eventually(t, func() bool {
		return calls.Load() >= 3
	}, 2*time.Second, 10*time.Millisecond, "expected the immediate run plus periodic runs")

	require.NoError(t, s.Stop())
	assert.True(t, s.Stopped())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.WaitForShutdown(ctx))
}

func TestSchedulerStopIsIdempotent(t *testing.T) {
	s := NewIntervalScheduler(time.Hour, false, slog.Default())
	s.RegisterCallback(func() error { return nil })

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())
	assert.True(t, s.Stopped())
}

func TestSchedulerContextCancelStopsRuns(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewIntervalScheduler(10*time.Millisecond, false, slog.Default())

	var calls atomic.Int32
	s.RegisterCallback(func() error {
		calls.Add(1)
		return nil
	})

	require.NoError(t, s.Start(ctx))
	cancel()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), time.Second)
	defer waitCancel()
	require.NoError(t, s.WaitForShutdown(waitCtx))
	assert.True(t, s.Stopped())
}
