package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"hotelbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySearchCache(t *testing.T) {
	cache := NewMemorySearchCache()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }
	ctx := context.Background()

	key := models.SearchKey{Location: "Altai", Stay: stay(t, "2024-06-10", "2024-06-12")}
	hotels := []models.HotelAvailability{{Hotel: models.Hotel{ID: 7}, RoomsLeft: 1}}

	t.Run("SetAndGet", func(t *testing.T) {
		require.NoError(t, cache.SetHotels(ctx, key, hotels, 30*time.Second))
		got, ok, err := cache.GetHotels(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, hotels, got)
	})

	t.Run("LocationIsCaseInsensitive", func(t *testing.T) {
		_, ok, _ := cache.GetHotels(ctx, models.SearchKey{Location: " ALTAI ", Stay: key.Stay})
		assert.True(t, ok)
	})

	t.Run("Expired", func(t *testing.T) {
		now = now.Add(31 * time.Second)
		_, ok, err := cache.GetHotels(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("InvalidateOverlapping", func(t *testing.T) {
		require.NoError(t, cache.SetHotels(ctx, key, hotels, time.Minute))

		require.NoError(t, cache.InvalidateOverlapping(ctx, stay(t, "2024-06-08", "2024-06-10")))
		_, ok, _ := cache.GetHotels(ctx, key)
		assert.True(t, ok)

		require.NoError(t, cache.InvalidateOverlapping(ctx, stay(t, "2024-06-11", "2024-06-20")))
		_, ok, _ = cache.GetHotels(ctx, key)
		assert.False(t, ok)
	})

	t.Run("RateLimit", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			allowed, err := cache.CheckRateLimit(ctx, 1, 3, time.Minute)
			require.NoError(t, err)
			assert.True(t, allowed)
		}
		allowed, _ := cache.CheckRateLimit(ctx, 1, 3, time.Minute)
		assert.False(t, allowed)

		now = now.Add(2 * time.Minute)
		allowed, _ = cache.CheckRateLimit(ctx, 1, 3, time.Minute)
		assert.True(t, allowed)
	})
}

func TestMemorySearchCache_ConcurrentRateLimit(t *testing.T) {
	cache := NewMemorySearchCache()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, _ := cache.CheckRateLimit(ctx, 42, 10, time.Hour)
			if ok {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 10, allowed)
}
