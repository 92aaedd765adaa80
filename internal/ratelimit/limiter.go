package ratelimit

import (
	"strings"
	"sync"
	"time"

	appErr "github.com/askbase/askbase/internal/pkg/errors"
)

type Config struct {
	Window  time.Duration
	Actions map[string]int
}

// Limiter counts requests per (user, action) over a sliding window.
// State is process-local; a horizontally scaled deployment needs a shared
// store behind the same contract or sticky routing.
type Limiter struct {
	mu      sync.Mutex
	window  time.Duration
	limits  map[string]int
	entries map[string][]time.Time
	now     func() time.Time
}

func New(cfg Config) *Limiter {
	limits := make(map[string]int, len(cfg.Actions))
	for action, limit := range cfg.Actions {
		limits[action] = limit
	}
	return &Limiter{
		window:  cfg.Window,
		limits:  limits,
		entries: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Check admits or denies one request. Admission records the request
// timestamp; denial records nothing. Timestamps at or before the window
// start are pruned lazily on each call.
func (l *Limiter) Check(userID, action string) (bool, error) {
	limit, ok := l.limits[action]
	if !ok {
		return false, appErr.ErrUnknownAction
	}
	now := l.now()
	windowStart := now.Add(-l.window)
	key := strings.Join([]string{userID, action}, ":")

	l.mu.Lock()
	defer l.mu.Unlock()
	kept := l.entries[key][:0]
	for _, ts := range l.entries[key] {
		if ts.After(windowStart) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= limit {
		l.entries[key] = kept
		return false, nil
	}
	l.entries[key] = append(kept, now)
	return true, nil
}
