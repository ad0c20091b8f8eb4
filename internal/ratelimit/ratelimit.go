package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Window names used in errors and metrics.
const (
	WindowMinute = "minute"
	WindowHour   = "hour"
)

type Limits struct {
	PerMinute int `json:"per_minute"`
	PerHour   int `json:"per_hour"`
}

// atLeastOne clamps each window to a quota of one request. A zero quota
// would leave no oldest entry to compute the wait from.
func (l Limits) atLeastOne() Limits {
	l.PerMinute = max(l.PerMinute, 1)
	l.PerHour = max(l.PerHour, 1)
	return l
}

// Remaining is the unused quota in each window.
type Remaining struct {
	PerMinute int `json:"per_minute"`
	PerHour   int `json:"per_hour"`
}

// Limiter enforces per-user sliding windows. Allow records the request
// only when both windows have room.
type Limiter interface {
	Allow(ctx context.Context, user string) error
	Remaining(ctx context.Context, user string) (Remaining, error)
	Limits() Limits
}

// ExceededError reports which window rejected a request and when the
// oldest counted request leaves it.
type ExceededError struct {
	Window     string
	RetryAfter time.Duration
}

func (e *ExceededError) Error() string {
	if e.Window == WindowHour {
		return fmt.Sprintf("Hourly rate limit exceeded. Try again in %d minutes.", int(e.RetryAfter/time.Minute))
	}
	return fmt.Sprintf("Rate limit exceeded. Try again in %d seconds.", int(e.RetryAfter/time.Second))
}

// RetryAfterSeconds rounds up for the Retry-After header.
func (e *ExceededError) RetryAfterSeconds() int {
	secs := int((e.RetryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
