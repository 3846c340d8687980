package slotcache

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Innovatel-Q/malaikasante-main-backend-sub000/internal/scheduling"
)

func newCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, 5*time.Second, nil), mr
}

func testKey() scheduling.SlotKey {
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	return scheduling.SlotKey{
		ProviderID: uuid.New(),
		Channel:    scheduling.ChannelOnSite,
		Urgency:    scheduling.UrgencyRoutine,
		RangeStart: start,
		RangeEnd:   start.Add(24 * time.Hour),
	}
}

func listing() []scheduling.DaySlots {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	return []scheduling.DaySlots{{
		Date:    "2026-03-02",
		Windows: []scheduling.TimeWindow{{Start: start, End: start.Add(30 * time.Minute)}},
	}}
}

func TestFetchCachesUntilInvalidated(t *testing.T) {
	cache, _ := newCache(t)
	ctx := context.Background()
	key := testKey()
	calls := 0
	load := func(context.Context) ([]scheduling.DaySlots, error) {
		calls++
		return listing(), nil
	}

	first, err := cache.Fetch(ctx, key, load)
	require.NoError(t, err)
	second, err := cache.Fetch(ctx, key, load)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "2026-03-02", second[0].Date)
	assert.True(t, first[0].Windows[0].Start.Equal(second[0].Windows[0].Start))

	cache.Invalidate(ctx, key.ProviderID)
	_, err = cache.Fetch(ctx, key, load)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	other := testKey()
	cache.Invalidate(ctx, other.ProviderID)
	_, err = cache.Fetch(ctx, key, load)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestFetchExpires(t *testing.T) {
	cache, mr := newCache(t)
	ctx := context.Background()
	key := testKey()
	calls := 0
	load := func(context.Context) ([]scheduling.DaySlots, error) {
		calls++
		return listing(), nil
	}

	_, err := cache.Fetch(ctx, key, load)
	require.NoError(t, err)
	mr.FastForward(6 * time.Second)
	_, err = cache.Fetch(ctx, key, load)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestFetchDoesNotCacheErrors(t *testing.T) {
	cache, _ := newCache(t)
	ctx := context.Background()
	key := testKey()

	_, err := cache.Fetch(ctx, key, func(context.Context) ([]scheduling.DaySlots, error) {
		return nil, scheduling.ErrNotFound
	})
	assert.ErrorIs(t, err, scheduling.ErrNotFound)

	days, err := cache.Fetch(ctx, key, func(context.Context) ([]scheduling.DaySlots, error) {
		return listing(), nil
	})
	require.NoError(t, err)
	assert.Len(t, days, 1)
}

func TestFetchFallsBackWhenRedisIsDown(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	t.Cleanup(func() { _ = client.Close() })
	cache := New(client, time.Second, nil)

	days, err := cache.Fetch(context.Background(), testKey(), func(context.Context) ([]scheduling.DaySlots, error) {
		return listing(), nil
	})
	require.NoError(t, err)
	assert.Len(t, days, 1)

	_, err = cache.Fetch(context.Background(), testKey(), func(context.Context) ([]scheduling.DaySlots, error) {
		return nil, errors.New("db down")
	})
	assert.Error(t, err)
}
