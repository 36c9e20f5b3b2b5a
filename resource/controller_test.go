package resource

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_Memory(t *testing.T) {
	// Test with limit
	c := NewController(Config{MemoryLimitBytes: 100})

	// Acquire 50
	err := c.AcquireMemory(context.Background(), 50)
	require.NoError(t, err)
	assert.Equal(t, int64(50), c.MemoryUsage())

	// Acquire 40
	err = c.AcquireMemory(context.Background(), 40)
	require.NoError(t, err)
	assert.Equal(t, int64(90), c.MemoryUsage())

	// TryAcquire 20 (should fail)
	ok := c.TryAcquireMemory(20)
	assert.False(t, ok)
	assert.Equal(t, int64(90), c.MemoryUsage())

	// Acquire 20 (should block/timeout)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err = c.AcquireMemory(ctx, 20)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// Release 50
	c.ReleaseMemory(50)
	assert.Equal(t, int64(40), c.MemoryUsage())

	// Now Acquire 20 should succeed
	err = c.AcquireMemory(context.Background(), 20)
	require.NoError(t, err)
	assert.Equal(t, int64(60), c.MemoryUsage())
}

func TestController_UnlimitedMemory(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 0})

	err := c.AcquireMemory(context.Background(), 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), c.MemoryUsage())

	c.ReleaseMemory(500)
	assert.Equal(t, int64(500), c.MemoryUsage())
}

func TestController_Concurrency(t *testing.T) {
	c := NewController(Config{MaxBackgroundWorkers: 2})

	// Acquire 2
	require.NoError(t, c.AcquireBackground(context.Background()))
	require.NoError(t, c.AcquireBackground(context.Background()))

	// Try 3rd
	assert.False(t, c.TryAcquireBackground())

	// Release 1
	c.ReleaseBackground()

	// Try 3rd again
	assert.True(t, c.TryAcquireBackground())
}

func TestController_NilIsUnlimited(t *testing.T) {
	var c *Controller

	assert.NoError(t, c.AcquireMemory(context.Background(), 1<<30))
	assert.True(t, c.TryAcquireMemory(1<<30))
	c.ReleaseMemory(1 << 30)
	assert.Equal(t, int64(0), c.MemoryUsage())

	assert.NoError(t, c.AcquireBackground(context.Background()))
	assert.True(t, c.TryAcquireBackground())
	c.ReleaseBackground()

	assert.NoError(t, c.AcquireIO(context.Background(), 1<<30))
}

func TestController_AcquireIOChunksLargeRequests(t *testing.T) {
	// A request far above the per-second burst must still succeed.
	c := NewController(Config{IOLimitBytesPerSec: 1 << 20})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// Burst covers the first chunk immediately; the second chunk accrues.
	err := c.AcquireIO(ctx, (1<<20)+512)
	assert.NoError(t, err)
}

func TestRateLimitedWriter(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1 << 20})

	var buf bytes.Buffer
	w := NewRateLimitedWriter(&buf, c, context.Background())

	n, err := w.Write([]byte("edges"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "edges", buf.String())
}

func TestRateLimitedReader(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1 << 20})

	r := NewRateLimitedReader(bytes.NewReader([]byte("matrix")), c, context.Background())

	out := make([]byte, 6)
	n, err := r.Read(out)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, "matrix", string(out))
}
