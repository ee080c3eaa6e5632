package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetbridge-systems/fleetbridge/internal/models"
)

func newTestDeduper(t *testing.T, window time.Duration) (*RedisDeduper, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	d, err := NewRedisDeduper("redis://"+mr.Addr(), window)
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d, mr
}

func TestRedisDeduper_DetectsDuplicates(t *testing.T) {
	d, _ := newTestDeduper(t, time.Minute)
	ctx := context.Background()

	seen, err := d.SeenEvent(ctx, models.PlatformSamsara, "ev-1")
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = d.SeenEvent(ctx, models.PlatformSamsara, "ev-1")
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = d.SeenEvent(ctx, models.PlatformMotive, "ev-1")
	require.NoError(t, err)
	assert.False(t, seen, "platforms have independent dedupe spaces")
}

func TestRedisDeduper_WindowExpiry(t *testing.T) {
	d, mr := newTestDeduper(t, time.Minute)
	ctx := context.Background()

	_, err := d.SeenEvent(ctx, models.PlatformSamsara, "ev-2")
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	seen, err := d.SeenEvent(ctx, models.PlatformSamsara, "ev-2")
	require.NoError(t, err)
	assert.False(t, seen, "expired keys re-admit the event ID")
}

func TestRedisDeduper_ForgetReadmits(t *testing.T) {
	d, _ := newTestDeduper(t, time.Minute)
	ctx := context.Background()

	_, err := d.SeenEvent(ctx, models.PlatformGeotab, "ev-3")
	require.NoError(t, err)

	require.NoError(t, d.Forget(ctx, models.PlatformGeotab, "ev-3"))

	seen, err := d.SeenEvent(ctx, models.PlatformGeotab, "ev-3")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestNewRedisDeduper_BadURL(t *testing.T) {
	_, err := NewRedisDeduper("not-a-url", time.Minute)
	assert.Error(t, err)
}
