package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllow_WithinBurst(t *testing.T) {
	krl := New(1, 3)
	defer krl.Stop()

	assert.True(t, krl.Allow("a"))
	assert.True(t, krl.Allow("a"))
	assert.True(t, krl.Allow("a"))
	assert.False(t, krl.Allow("a"))
}

func TestAllow_KeysAreIndependent(t *testing.T) {
	krl := New(1, 1)
	defer krl.Stop()

	assert.True(t, krl.Allow("a"))
	assert.False(t, krl.Allow("a"))

	// A different key has its own bucket.
	assert.True(t, krl.Allow("b"))
}

func TestWait_RespectsContext(t *testing.T) {
	krl := New(0.01, 1)
	defer krl.Stop()

	require.True(t, krl.Allow("a"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := krl.Wait(ctx, "a")
	assert.Error(t, err)
}

func TestStop_Idempotent(t *testing.T) {
	krl := New(1, 1)
	krl.Stop()
	krl.Stop()
}
