package debounce

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "ws-a:rule-1:tx-1", Key("ws-a", "rule-1", "tx-1"))
}

func TestMemoryGate_Allow(t *testing.T) {
	gate := NewMemoryGate()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	gate.now = func() time.Time { return now }
	ctx := context.Background()

	allowed, err := gate.Allow(ctx, "k", time.Second)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = gate.Allow(ctx, "k", time.Second)
	require.NoError(t, err)
	assert.False(t, allowed, "second call inside the window is suppressed")

	allowed, err = gate.Allow(ctx, "other", time.Second)
	require.NoError(t, err)
	assert.True(t, allowed, "keys are independent")

	now = now.Add(time.Second)

	allowed, err = gate.Allow(ctx, "k", time.Second)
	require.NoError(t, err)
	assert.True(t, allowed, "window elapsed")
}

func TestMemoryGate_ZeroWindow(t *testing.T) {
	gate := NewMemoryGate()

	for range 3 {
		allowed, err := gate.Allow(context.Background(), "k", 0)
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	assert.Equal(t, 0, gate.Len())
}

func TestMemoryGate_PrunesExpiredKeys(t *testing.T) {
	gate := NewMemoryGate()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	gate.now = func() time.Time { return now }

	for i := range 1000 {
		_, err := gate.Allow(context.Background(), fmt.Sprintf("k-%d", i), time.Millisecond)
		require.NoError(t, err)
	}

	now = now.Add(time.Second)

	for i := range 24 {
		_, err := gate.Allow(context.Background(), fmt.Sprintf("fresh-%d", i), time.Minute)
		require.NoError(t, err)
	}

	assert.Equal(t, 24, gate.Len())
}
