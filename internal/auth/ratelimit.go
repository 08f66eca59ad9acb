package auth

import (
	"time"

	"kotadb/internal/storage"
)

// RateLimiter enforces the tier-based hourly/daily request limits (§4.8.3)
// on top of storage.RateCounterRepo's durable, linearizable windowed
// counters. Unlike the teacher's in-memory token bucket, this survives
// process restarts and coordinates across concurrent request handlers,
// which is what satisfies I6 ("no counter ever regresses within a window").
type RateLimiter struct {
	counters *storage.RateCounterRepo
	limits   map[Tier]Limits
}

func NewRateLimiter(db *storage.DB, limits map[Tier]Limits) *RateLimiter {
	if limits == nil {
		limits = DefaultLimits()
	}
	return &RateLimiter{counters: storage.NewRateCounterRepo(db), limits: limits}
}

func topOfDay(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}

// Allow increments both the key's hourly and daily counters and reports
// whether the request is within both limits (§4.8.3 step 4). The
// increment always happens — even a request that is ultimately denied
// still consumes its slot (fail-closed, matching P7/P8) — since the
// counter only ever measures "requests attempted," not "requests served."
func (l *RateLimiter) Allow(keyID string, tier Tier, now time.Time) (RateLimitStatus, error) {
	limits, ok := l.limits[tier]
	if !ok {
		limits = l.limits[TierFree]
	}

	hourWindow := storage.TopOfHour(now)
	hourCount, err := l.counters.Increment(keyID, hourWindow)
	if err != nil {
		return RateLimitStatus{}, err
	}

	dayWindow := topOfDay(now)
	dayCount, err := l.counters.Increment(keyID+":day", dayWindow)
	if err != nil {
		return RateLimitStatus{}, err
	}

	status := RateLimitStatus{
		Allowed:   hourCount <= limits.Hourly && dayCount <= limits.Daily,
		Limit:     limits.Hourly,
		Remaining: limits.Hourly - hourCount,
		ResetAt:   hourWindow.Add(time.Hour),
	}
	if status.Remaining < 0 {
		status.Remaining = 0
	}
	if !status.Allowed {
		status.RetryAfter = status.ResetAt.Sub(now)
		if hourCount <= limits.Hourly && dayCount > limits.Daily {
			status.ResetAt = dayWindow.Add(24 * time.Hour)
			status.RetryAfter = status.ResetAt.Sub(now)
		}
	}
	return status, nil
}

// Peek reports the current status for a key without incrementing either
// counter. Nothing in this module calls it.
func (l *RateLimiter) Peek(keyID string, tier Tier, now time.Time) (RateLimitStatus, error) {
	limits, ok := l.limits[tier]
	if !ok {
		limits = l.limits[TierFree]
	}
	hourWindow := storage.TopOfHour(now)
	hourCount, err := l.counters.Current(keyID, hourWindow)
	if err != nil {
		return RateLimitStatus{}, err
	}
	remaining := limits.Hourly - hourCount
	if remaining < 0 {
		remaining = 0
	}
	return RateLimitStatus{
		Allowed:   hourCount <= limits.Hourly,
		Limit:     limits.Hourly,
		Remaining: remaining,
		ResetAt:   hourWindow.Add(time.Hour),
	}, nil
}
