package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/inkwell/internal/config"
)

const keyPaymentVerify = "payment:verify:ip:%s"

// PaymentVerifyLimiter throttles client payment confirmations per IP.
type PaymentVerifyLimiter struct {
	bucket *TokenBucket
	limit  Limit
}

// NewPaymentVerifyLimiter returns nil when rate limiting is off or Redis is
// not configured.
func NewPaymentVerifyLimiter(cfg config.Config, client *redis.Client) (*PaymentVerifyLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled || client == nil {
		return nil, nil
	}
	limit := Limit{Rate: limitCfg.PaymentVerifyRate, Burst: limitCfg.PaymentVerifyBurst}
	if err := limit.validate(); err != nil {
		return nil, fmt.Errorf("payment verify: %w", err)
	}

	return &PaymentVerifyLimiter{
		bucket: NewTokenBucket(client),
		limit:  limit,
	}, nil
}

func (l *PaymentVerifyLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *PaymentVerifyLimiter) Allow(ctx context.Context, clientIP string) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyPaymentVerify, strings.TrimSpace(clientIP)), l.limit)
}

// RetryLockTTL is how long a webhook retry may hold its lock.
func RetryLockTTL(cfg config.Config) time.Duration {
	seconds := cfg.RateLimit.RetryLockTTLSeconds
	if seconds <= 0 {
		seconds = 30
	}
	return time.Duration(seconds) * time.Second
}
