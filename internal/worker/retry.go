package worker

import (
	"fmt"
	"math"
	"time"

	"hotelbook/internal/config"
)

// RetryPolicy defines exponential backoff parameters.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// RetryPolicyFromConfig parses the notification backoff settings.
func RetryPolicyFromConfig(cfg config.NotificationConfig) (RetryPolicy, error) {
	policy := RetryPolicy{MaxRetries: cfg.MaxRetries, BackoffFactor: 2}
	var err error
	if cfg.BaseDelay != "" {
		if policy.InitialDelay, err = time.ParseDuration(cfg.BaseDelay); err != nil {
			return RetryPolicy{}, fmt.Errorf("invalid notifications.base_delay: %w", err)
		}
	}
	if cfg.MaxDelay != "" {
		if policy.MaxDelay, err = time.ParseDuration(cfg.MaxDelay); err != nil {
			return RetryPolicy{}, fmt.Errorf("invalid notifications.max_delay: %w", err)
		}
	}
	return policy, nil
}

// NextDelay returns delay for a given attempt (1-based) with clamping.
func (r RetryPolicy) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if r.InitialDelay <= 0 {
		r.InitialDelay = time.Second
	}
	if r.BackoffFactor <= 0 {
		r.BackoffFactor = 2
	}

	delay := float64(r.InitialDelay) * math.Pow(r.BackoffFactor, float64(attempt-1))
	d := time.Duration(delay)
	if r.MaxDelay > 0 && d > r.MaxDelay {
		d = r.MaxDelay
	}
	if d <= 0 {
		d = time.Second
	}
	return d
}
