package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWaitUnlimitedNeverBlocks(t *testing.T) {
	t.Parallel()

	l := New(Config{})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	for i := 0; i < 100; i++ {
		require.NoError(t, l.Wait(ctx, "https://reviews.example.com/page"))
	}
}

func TestWaitRespectsContextCancellation(t *testing.T) {
	t.Parallel()

	l := New(Config{RequestsPerSecond: 0.001, Burst: 1})
	ctx := context.Background()

	// First call drains the single-token bucket.
	require.NoError(t, l.Wait(ctx, "https://slow.example.com/a"))

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	err := l.Wait(canceled, "https://slow.example.com/b")
	require.Error(t, err)
	require.ErrorIs(t, err, context.Canceled)
}

func TestWaitTracksHostsIndependently(t *testing.T) {
	t.Parallel()

	l := New(Config{RequestsPerSecond: 0.001, Burst: 1})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, l.Wait(ctx, "https://one.example.com/p"))
	// A different host has its own bucket, so this must not block.
	require.NoError(t, l.Wait(ctx, "https://two.example.com/p"))
}

func TestWaitHandlesUnparseableURL(t *testing.T) {
	t.Parallel()

	l := New(Config{})
	require.NoError(t, l.Wait(context.Background(), "::not a url::"))
}
