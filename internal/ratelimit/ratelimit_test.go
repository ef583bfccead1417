package ratelimit

import (
	"errors"
	"testing"
	"time"
)

type counterMock struct {
	counts map[string]int
	err    error
}

func (c *counterMock) IncrementUsage(key, date string) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	if c.counts == nil {
		c.counts = map[string]int{}
	}
	k := key + "|" + date
	c.counts[k]++
	return c.counts[k], nil
}

func (c *counterMock) DecrementUsage(key, date string) error {
	k := key + "|" + date
	if c.counts[k] > 0 {
		c.counts[k]--
	}
	return nil
}

func TestDailyLimiterAllowsUpToLimit(t *testing.T) {
	l := NewDailyLimiter(&counterMock{}, 3)

	for i := 0; i < 3; i++ {
		allowed, remaining, err := l.Check("sessions")
		if err != nil {
			t.Fatalf("Check failed: %v", err)
		}
		if !allowed {
			t.Fatalf("use %d should be allowed", i+1)
		}
		if remaining != 2-i {
			t.Fatalf("expected remaining %d, got %d", 2-i, remaining)
		}
	}

	allowed, remaining, err := l.Check("sessions")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if allowed {
		t.Fatal("fourth use must be denied")
	}
	if remaining != 0 {
		t.Fatalf("expected remaining 0, got %d", remaining)
	}
}

func TestDailyLimiterDeniedCheckKeepsCounter(t *testing.T) {
	counter := &counterMock{}
	l := NewDailyLimiter(counter, 2)
	day := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return day }

	l.Check("sessions")
	l.Check("sessions")
	for i := 0; i < 5; i++ {
		if allowed, _, _ := l.Check("sessions"); allowed {
			t.Fatal("over-limit use must be denied")
		}
	}

	if got := counter.counts["sessions|2026-08-20"]; got != 2 {
		t.Fatalf("denied checks must not consume quota, counter = %d", got)
	}
}

func TestDailyLimiterRefund(t *testing.T) {
	counter := &counterMock{}
	l := NewDailyLimiter(counter, 1)
	day := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return day }

	if allowed, _, _ := l.Check("sessions"); !allowed {
		t.Fatal("first use should be allowed")
	}
	if allowed, _, _ := l.Check("sessions"); allowed {
		t.Fatal("second use must be denied")
	}

	l.Refund("sessions")
	if allowed, _, _ := l.Check("sessions"); !allowed {
		t.Fatal("refunded quota must be usable again")
	}
}

func TestDailyLimiterRefundDisabled(t *testing.T) {
	counter := &counterMock{}
	l := NewDailyLimiter(counter, 0)

	l.Refund("sessions")
	if len(counter.counts) != 0 {
		t.Fatal("disabled limiter must not touch the counter")
	}
}

func TestDailyLimiterResetsAtMidnight(t *testing.T) {
	l := NewDailyLimiter(&counterMock{}, 1)
	day := time.Date(2026, 8, 20, 23, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return day }

	if allowed, _, _ := l.Check("sessions"); !allowed {
		t.Fatal("first use should be allowed")
	}
	if allowed, _, _ := l.Check("sessions"); allowed {
		t.Fatal("second use same day must be denied")
	}

	day = day.Add(2 * time.Hour)
	if allowed, _, _ := l.Check("sessions"); !allowed {
		t.Fatal("quota must reset on the next day")
	}
}

func TestDailyLimiterDisabled(t *testing.T) {
	counter := &counterMock{}
	l := NewDailyLimiter(counter, 0)

	allowed, remaining, err := l.Check("sessions")
	if err != nil || !allowed {
		t.Fatalf("disabled limiter must always allow, got %v/%v", allowed, err)
	}
	if remaining != -1 {
		t.Fatalf("disabled limiter reports -1 remaining, got %d", remaining)
	}
	if len(counter.counts) != 0 {
		t.Fatal("disabled limiter must not touch the counter")
	}
}

func TestDailyLimiterCounterError(t *testing.T) {
	l := NewDailyLimiter(&counterMock{err: errors.New("db locked")}, 5)

	allowed, _, err := l.Check("sessions")
	if err == nil {
		t.Fatal("expected error from counter")
	}
	if allowed {
		t.Fatal("errors must fail closed")
	}
}
