package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds rate limiter tuning parameters.
type Config struct {
	EnableIPThrottle      bool
	EnableRefreshThrottle bool
	MaxLoginAttempts      int
	LoginCooldown         time.Duration
	MaxRefreshAttempts    int
	RefreshCooldown       time.Duration
	MaxCreationsPerIP     int
	CreationCooldown      time.Duration
}

// Limiter enforces the engine's fixed-window budgets using Redis counters.
// Check methods return the remaining window on a limited result so callers
// can surface a retry-after hint.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// CheckLogin checks whether the email+IP pair is within the login attempt
// budget.
func (l *Limiter) CheckLogin(ctx context.Context, email, ip string) (time.Duration, error) {
	if wait, err := l.checkCounter(ctx, loginEmailKey(email), l.config.MaxLoginAttempts); err != nil {
		return wait, err
	}

	if l.config.EnableIPThrottle && ip != "" {
		if wait, err := l.checkCounter(ctx, loginIPKey(ip), l.config.MaxLoginAttempts); err != nil {
			return wait, err
		}
	}

	return 0, nil
}

// IncrementLogin records a failed login attempt for the email+IP pair.
func (l *Limiter) IncrementLogin(ctx context.Context, email, ip string) error {
	if _, err := l.incrementWithTTL(ctx, loginEmailKey(email), l.config.LoginCooldown); err != nil {
		return err
	}

	if l.config.EnableIPThrottle && ip != "" {
		if _, err := l.incrementWithTTL(ctx, loginIPKey(ip), l.config.LoginCooldown); err != nil {
			return err
		}
	}

	return nil
}

// ResetLogin clears the failed-login counters for the email+IP pair.
// Called after a successful login or password change.
func (l *Limiter) ResetLogin(ctx context.Context, email, ip string) error {
	keys := []string{loginEmailKey(email)}
	if l.config.EnableIPThrottle && ip != "" {
		keys = append(keys, loginIPKey(ip))
	}

	if err := l.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// CheckRefresh increments the per-session refresh counter and enforces the
// budget in one step.
func (l *Limiter) CheckRefresh(ctx context.Context, sessionID string) (time.Duration, error) {
	if !l.config.EnableRefreshThrottle {
		return 0, nil
	}

	key := refreshKey(sessionID)
	count, err := l.incrementWithTTL(ctx, key, l.config.RefreshCooldown)
	if err != nil {
		return 0, err
	}
	if count > int64(l.config.MaxRefreshAttempts) {
		return l.remaining(ctx, key), ErrRateLimited
	}

	return 0, nil
}

// CheckCreation increments the per-IP account creation counter and enforces
// the budget in one step. A blank IP is never throttled.
func (l *Limiter) CheckCreation(ctx context.Context, ip string) (time.Duration, error) {
	if !l.config.EnableIPThrottle || ip == "" || l.config.MaxCreationsPerIP <= 0 {
		return 0, nil
	}

	key := creationIPKey(ip)
	count, err := l.incrementWithTTL(ctx, key, l.config.CreationCooldown)
	if err != nil {
		return 0, err
	}
	if count > int64(l.config.MaxCreationsPerIP) {
		return l.remaining(ctx, key), ErrRateLimited
	}

	return 0, nil
}

// CheckResend enforces a minimum spacing between OTP sends per email. The
// first call in a window succeeds; subsequent calls fail until the window
// expires.
func (l *Limiter) CheckResend(ctx context.Context, scope, email string, cooldown time.Duration) (time.Duration, error) {
	if cooldown <= 0 {
		return 0, nil
	}

	key := resendKey(scope, email)
	ok, err := l.redis.SetNX(ctx, key, "1", cooldown).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if !ok {
		return l.remaining(ctx, key), ErrRateLimited
	}

	return 0, nil
}

// GetLoginAttempts returns the current attempt counter for an email.
// Missing keys return zero and do not reveal account existence.
func (l *Limiter) GetLoginAttempts(ctx context.Context, email string) (int, error) {
	count, err := l.redis.Get(ctx, loginEmailKey(email)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

func (l *Limiter) checkCounter(ctx context.Context, key string, maxAttempts int) (time.Duration, error) {
	count, err := l.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if count >= int64(maxAttempts) {
		return l.remaining(ctx, key), ErrRateLimited
	}

	return 0, nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}

func (l *Limiter) remaining(ctx context.Context, key string) time.Duration {
	ttl, err := l.redis.TTL(ctx, key).Result()
	if err != nil || ttl < 0 {
		return 0
	}
	return ttl
}
