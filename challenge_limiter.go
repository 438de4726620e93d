package mfaflow

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// challengeLimiter persists per-target OTP cooldown timestamps and failed
// attempt counters in redis. Wall-clock timestamps survive process restarts,
// so a cooldown started by one process binds every other process too.
type challengeLimiter struct {
	redis  redis.UniversalClient
	prefix string
}

func newChallengeLimiter(redisClient redis.UniversalClient, prefix string) *challengeLimiter {
	return &challengeLimiter{redis: redisClient, prefix: prefix}
}

func (l *challengeLimiter) sentKey(target string) string {
	return l.prefix + ":cdl:" + target
}

func (l *challengeLimiter) attemptsKey(target string) string {
	return l.prefix + ":att:" + target
}

// MarkSent records the send instant for cooldown enforcement.
func (l *challengeLimiter) MarkSent(ctx context.Context, target string, now time.Time, ttl time.Duration) error {
	value := strconv.FormatInt(now.Unix(), 10)
	if err := l.redis.Set(ctx, l.sentKey(target), value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrChallengeUnavailable, err)
	}
	return nil
}

// LastSent returns the recorded send instant, if any.
func (l *challengeLimiter) LastSent(ctx context.Context, target string) (time.Time, bool, error) {
	raw, err := l.redis.Get(ctx, l.sentKey(target)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("%w: %v", ErrChallengeUnavailable, err)
	}
	unix, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, nil
	}
	return time.Unix(unix, 0), true, nil
}

// CheckResend returns ErrChallengeCooldown with the remaining wait when the
// cooldown window has not elapsed.
func (l *challengeLimiter) CheckResend(ctx context.Context, target string, now time.Time, cooldown time.Duration) error {
	sentAt, ok, err := l.LastSent(ctx, target)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	elapsed := now.Sub(sentAt)
	if elapsed < cooldown {
		remaining := cooldown - elapsed
		return fmt.Errorf("%w: retry in %ds", ErrChallengeCooldown, int64(remaining.Seconds())+1)
	}
	return nil
}

// RecordFailure increments the failed validation counter and returns the new
// total.
func (l *challengeLimiter) RecordFailure(ctx context.Context, target string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, l.attemptsKey(target)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrChallengeUnavailable, err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, l.attemptsKey(target), ttl).Err(); err != nil {
			return count, fmt.Errorf("%w: %v", ErrChallengeUnavailable, err)
		}
	}
	return count, nil
}

// Attempts returns the current failed validation count.
func (l *challengeLimiter) Attempts(ctx context.Context, target string) (int64, error) {
	count, err := l.redis.Get(ctx, l.attemptsKey(target)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrChallengeUnavailable, err)
	}
	return count, nil
}

// Reset clears both cooldown and attempt state for a target.
func (l *challengeLimiter) Reset(ctx context.Context, target string) error {
	if err := l.redis.Del(ctx, l.sentKey(target), l.attemptsKey(target)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrChallengeUnavailable, err)
	}
	return nil
}
