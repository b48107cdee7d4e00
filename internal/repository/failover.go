package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"hotelbook/internal/domain"
	"hotelbook/internal/models"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverSearchCache serves from primary until it errors, then from
// fallback. The primary is retried once per recoveryInterval.
type FailoverSearchCache struct {
	primary   domain.SearchCache
	fallback  domain.SearchCache
	logger    *zerolog.Logger
	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
}

func NewFailoverSearchCache(primary, fallback domain.SearchCache, logger *zerolog.Logger) *FailoverSearchCache {
	return &FailoverSearchCache{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

// usePrimary reports whether the next call should go to the primary.
func (r *FailoverSearchCache) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return time.Since(r.lastCheck) > recoveryInterval
}

func (r *FailoverSearchCache) markDown(err error) {
	if !r.isDown.Swap(true) {
		r.logger.Error().Err(err).Msg("Primary search cache failed, falling back to memory")
	}
	r.mu.Lock()
	r.lastCheck = time.Now()
	r.mu.Unlock()
}

func (r *FailoverSearchCache) markUp() {
	if r.isDown.Swap(false) {
		r.logger.Info().Msg("Primary search cache recovered")
	}
}

func (r *FailoverSearchCache) GetHotels(ctx context.Context, key models.SearchKey) ([]models.HotelAvailability, bool, error) {
	if r.usePrimary() {
		hotels, ok, err := r.primary.GetHotels(ctx, key)
		if err == nil {
			r.markUp()
			return hotels, ok, nil
		}
		r.markDown(err)
	}
	return r.fallback.GetHotels(ctx, key)
}

func (r *FailoverSearchCache) SetHotels(ctx context.Context, key models.SearchKey, hotels []models.HotelAvailability, ttl time.Duration) error {
	if r.usePrimary() {
		err := r.primary.SetHotels(ctx, key, hotels, ttl)
		if err == nil {
			r.markUp()
			return nil
		}
		r.markDown(err)
	}
	return r.fallback.SetHotels(ctx, key, hotels, ttl)
}

// InvalidateOverlapping clears the fallback even while the primary is up.
func (r *FailoverSearchCache) InvalidateOverlapping(ctx context.Context, stay models.Stay) error {
	if r.usePrimary() {
		if err := r.primary.InvalidateOverlapping(ctx, stay); err != nil {
			r.markDown(err)
		} else {
			r.markUp()
		}
	}
	return r.fallback.InvalidateOverlapping(ctx, stay)
}

func (r *FailoverSearchCache) CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error) {
	if r.usePrimary() {
		allowed, err := r.primary.CheckRateLimit(ctx, userID, limit, window)
		if err == nil {
			r.markUp()
			return allowed, nil
		}
		r.markDown(err)
	}
	return r.fallback.CheckRateLimit(ctx, userID, limit, window)
}
