package cache

import (
	"context"
	"testing"
	"time"

	"github.com/Freeeeeet/clinic_scheduler/internal/model"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*SlotCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSlotCache(client, time.Minute), mr
}

func TestSlotCacheRoundTripAndInvalidate(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	date := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	_, version, ok, err := c.GetAvailable(ctx, 7, date)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, version)

	slots := []*model.TimeSlot{
		{ID: 1, DoctorID: 7, Date: date, StartTime: "09:00"},
		{ID: 2, DoctorID: 7, Date: date, StartTime: "09:30"},
	}
	require.NoError(t, c.SetAvailable(ctx, 7, date, version, slots))
	assert.True(t, mr.Exists("slots:available:7:2025-06-01:v0"))

	got, _, ok, err := c.GetAvailable(ctx, 7, date)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got, 2)
	assert.Equal(t, "09:00", got[0].StartTime)
	assert.Equal(t, "09:30", got[1].StartTime)

	require.NoError(t, c.Invalidate(ctx, 7, date))
	_, version, ok, err = c.GetAvailable(ctx, 7, date)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int64(1), version)
}

func TestSlotCacheDropsListReadBeforeInvalidation(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	date := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	// Читатель промахнулся и прочитал слот 09:00 ещё свободным
	_, staleVersion, ok, err := c.GetAvailable(ctx, 7, date)
	require.NoError(t, err)
	require.False(t, ok)
	stale := []*model.TimeSlot{{ID: 1, DoctorID: 7, Date: date, StartTime: "09:00"}}

	// Тем временем бронь закоммичена и день инвалидирован
	require.NoError(t, c.Invalidate(ctx, 7, date))

	// Запоздалая запись читателя не должна стать видимой
	require.NoError(t, c.SetAvailable(ctx, 7, date, staleVersion, stale))

	_, _, ok, err = c.GetAvailable(ctx, 7, date)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSlotCacheEntriesExpire(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	date := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	require.NoError(t, c.SetAvailable(ctx, 3, date, 0, nil))
	got, _, ok, err := c.GetAvailable(ctx, 3, date)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, got)

	mr.FastForward(2 * time.Minute)
	_, _, ok, err = c.GetAvailable(ctx, 3, date)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSlotCacheInvalidateKeepsVersionAlive(t *testing.T) {
	c, mr := newTestCache(t)
	date := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	require.NoError(t, c.Invalidate(context.Background(), 3, date))
	assert.Equal(t, versionTTL, mr.TTL("slots:version:3:2025-06-02"))
}

func TestSlotCacheReportsCorruptEntries(t *testing.T) {
	c, mr := newTestCache(t)
	date := time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)
	require.NoError(t, mr.Set("slots:available:5:2025-06-03:v0", "{not json"))

	_, _, ok, err := c.GetAvailable(context.Background(), 5, date)
	assert.Error(t, err)
	assert.False(t, ok)
}
