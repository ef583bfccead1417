// Package ratelimit enforces per-day usage quotas for demo deployments.
package ratelimit

import (
	"fmt"
	"log/slog"
	"time"
)

// Counter tracks a named per-day counter. The sqlite store implements
// this.
type Counter interface {
	IncrementUsage(key, date string) (int, error)
	DecrementUsage(key, date string) error
}

// DailyLimiter allows at most Limit uses of a key per calendar day.
// A non-positive limit disables the check entirely.
type DailyLimiter struct {
	counter Counter
	limit   int
	now     func() time.Time
}

func NewDailyLimiter(counter Counter, limit int) *DailyLimiter {
	return &DailyLimiter{
		counter: counter,
		limit:   limit,
		now:     time.Now,
	}
}

// Check consumes one unit of today's quota for key. It reports whether
// the use is allowed and how much quota remains afterwards. A denied
// check does not consume quota.
func (l *DailyLimiter) Check(key string) (bool, int, error) {
	if l.limit <= 0 {
		return true, -1, nil
	}

	date := l.now().UTC().Format("2006-01-02")
	count, err := l.counter.IncrementUsage(key, date)
	if err != nil {
		return false, 0, fmt.Errorf("increment usage counter: %w", err)
	}

	if count > l.limit {
		// Hand the unit back so denied attempts cannot pin the counter
		// above the limit.
		if err := l.counter.DecrementUsage(key, date); err != nil {
			slog.Warn("release usage counter", "key", key, "error", err)
		}
		return false, 0, nil
	}

	return true, l.limit - count, nil
}

// Refund returns one previously consumed unit for key, for callers whose
// work failed after an allowed Check.
func (l *DailyLimiter) Refund(key string) {
	if l.limit <= 0 {
		return
	}

	date := l.now().UTC().Format("2006-01-02")
	if err := l.counter.DecrementUsage(key, date); err != nil {
		slog.Warn("refund usage counter", "key", key, "error", err)
	}
}
