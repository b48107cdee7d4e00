package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"hotelbook/internal/availability"
	"hotelbook/internal/config"
	"hotelbook/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	searchKeyPrefix    = "hotelbook:search:"
	rateLimitKeyPrefix = "hotelbook:rate_limit:"
	scanBatch          = 100
)

type RedisSearchCache struct {
	client *redis.Client
}

// NewRedisClient builds a Redis client from configuration.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	return redis.NewClient(options)
}

func NewRedisSearchCache(client *redis.Client) *RedisSearchCache {
	return &RedisSearchCache{client: client}
}

func (r *RedisSearchCache) GetHotels(ctx context.Context, key models.SearchKey) ([]models.HotelAvailability, bool, error) {
	if r.client == nil {
		return nil, false, fmt.Errorf("redis client is nil")
	}
	val, err := r.client.Get(ctx, searchKeyPrefix+key.String()).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get search from redis: %w", err)
	}

	var hotels []models.HotelAvailability
	if err := json.Unmarshal([]byte(val), &hotels); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal search: %w", err)
	}
	return hotels, true, nil
}

func (r *RedisSearchCache) SetHotels(ctx context.Context, key models.SearchKey, hotels []models.HotelAvailability, ttl time.Duration) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	data, err := json.Marshal(hotels)
	if err != nil {
		return fmt.Errorf("failed to marshal search: %w", err)
	}

	if err := r.client.Set(ctx, searchKeyPrefix+key.String(), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set search in redis: %w", err)
	}
	return nil
}

func (r *RedisSearchCache) InvalidateOverlapping(ctx context.Context, stay models.Stay) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}

	var stale []string
	iter := r.client.Scan(ctx, 0, searchKeyPrefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		full := iter.Val()
		key, err := models.ParseSearchKey(strings.TrimPrefix(full, searchKeyPrefix))
		if err != nil {
			stale = append(stale, full)
			continue
		}
		if availability.Overlaps(key.Stay.From, key.Stay.To, stay.From, stay.To) {
			stale = append(stale, full)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan search keys: %w", err)
	}

	if len(stale) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, stale...).Err(); err != nil {
		return fmt.Errorf("failed to delete search keys: %w", err)
	}
	return nil
}

func (r *RedisSearchCache) CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	key := fmt.Sprintf("%s%d", rateLimitKeyPrefix, userID)
	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit: %w", err)
	}

	if count == 1 {
		r.client.Expire(ctx, key, window)
	}

	return count <= int64(limit), nil
}

// Ping checks the Redis connection.
func Ping(ctx context.Context, client *redis.Client) error {
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
