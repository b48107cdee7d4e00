package repository

import (
	"context"
	"sync"
	"time"

	"hotelbook/internal/availability"
	"hotelbook/internal/models"
)

type MemorySearchCache struct {
	searches   sync.Map
	rateLimits sync.Map
	now        func() time.Time
}

type searchEntry struct {
	key       models.SearchKey
	hotels    []models.HotelAvailability
	expiresAt time.Time
}

func NewMemorySearchCache() *MemorySearchCache {
	return &MemorySearchCache{now: time.Now}
}

func (r *MemorySearchCache) GetHotels(ctx context.Context, key models.SearchKey) ([]models.HotelAvailability, bool, error) {
	val, ok := r.searches.Load(key.String())
	if !ok {
		return nil, false, nil
	}
	entry := val.(*searchEntry)
	if r.now().After(entry.expiresAt) {
		r.searches.CompareAndDelete(key.String(), val)
		return nil, false, nil
	}
	return entry.hotels, true, nil
}

func (r *MemorySearchCache) SetHotels(ctx context.Context, key models.SearchKey, hotels []models.HotelAvailability, ttl time.Duration) error {
	r.searches.Store(key.String(), &searchEntry{
		key:       key,
		hotels:    append([]models.HotelAvailability(nil), hotels...),
		expiresAt: r.now().Add(ttl),
	})
	return nil
}

func (r *MemorySearchCache) InvalidateOverlapping(ctx context.Context, stay models.Stay) error {
	r.searches.Range(func(k, v any) bool {
		entry := v.(*searchEntry)
		if availability.Overlaps(entry.key.Stay.From, entry.key.Stay.To, stay.From, stay.To) {
			r.searches.Delete(k)
		}
		return true
	})
	return nil
}

type rateLimitEntry struct {
	mu        sync.Mutex
	count     int
	expiresAt time.Time
}

func (r *MemorySearchCache) CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error) {
	now := r.now()
	val, _ := r.rateLimits.LoadOrStore(userID, &rateLimitEntry{expiresAt: now.Add(window)})
	entry := val.(*rateLimitEntry)

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if now.After(entry.expiresAt) {
		entry.count = 0
		entry.expiresAt = now.Add(window)
	}
	entry.count++
	return entry.count <= limit, nil
}
