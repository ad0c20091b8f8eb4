package ratelimit

import (
	"context"
	"sync"
	"time"
)

type userWindows struct {
	minute []time.Time
	hour   []time.Time
}

// Memory is a process-local limiter. One mutex serializes check-and-record
// across both windows.
type Memory struct {
	limits Limits
	now    func() time.Time

	mu    sync.Mutex
	users map[string]*userWindows
}

func NewMemory(limits Limits, now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{limits: limits.atLeastOne(), now: now, users: make(map[string]*userWindows)}
}

func (m *Memory) Limits() Limits { return m.limits }

func (m *Memory) Allow(ctx context.Context, user string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	w := m.windows(user)
	w.prune(now)

	if len(w.minute) >= m.limits.PerMinute {
		return &ExceededError{Window: WindowMinute, RetryAfter: time.Minute - now.Sub(w.minute[0])}
	}
	if len(w.hour) >= m.limits.PerHour {
		return &ExceededError{Window: WindowHour, RetryAfter: time.Hour - now.Sub(w.hour[0])}
	}
	w.minute = append(w.minute, now)
	w.hour = append(w.hour, now)
	return nil
}

func (m *Memory) Remaining(ctx context.Context, user string) (Remaining, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w := m.windows(user)
	w.prune(m.now())
	return Remaining{
		PerMinute: m.limits.PerMinute - len(w.minute),
		PerHour:   m.limits.PerHour - len(w.hour),
	}, nil
}

func (m *Memory) windows(user string) *userWindows {
	w, ok := m.users[user]
	if !ok {
		w = &userWindows{}
		m.users[user] = w
	}
	return w
}

// prune drops entries strictly older than each window.
func (w *userWindows) prune(now time.Time) {
	w.minute = dropBefore(w.minute, now.Add(-time.Minute))
	w.hour = dropBefore(w.hour, now.Add(-time.Hour))
}

func dropBefore(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && ts[i].Before(cutoff) {
		i++
	}
	if i == 0 {
		return ts
	}
	return append(ts[:0], ts[i:]...)
}
