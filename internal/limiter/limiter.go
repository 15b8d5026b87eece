package limiter

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter decides whether another attempt keyed by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Window is an in-process sliding window: at most max attempts per key within window.
type Window struct {
	mu        sync.Mutex
	max       int
	window    time.Duration
	now       func() time.Time
	entries   map[string][]time.Time
	lastPrune time.Time
}

func NewWindow(max int, window time.Duration) *Window {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Window{max: max, window: window, now: time.Now, entries: make(map[string][]time.Time)}
}

func (l *Window) Allow(_ context.Context, key string) (bool, error) {
	if l == nil {
		return true, nil
	}
	now := l.now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastPrune) >= l.window {
		l.pruneLocked(cutoff)
		l.lastPrune = now
	}

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false, nil
	}
	kept = append(kept, now)
	l.entries[key] = kept
	return true, nil
}

// pruneLocked drops keys whose newest attempt is outside the window.
func (l *Window) pruneLocked(cutoff time.Time) {
	for key, history := range l.entries {
		if len(history) == 0 || !history[len(history)-1].After(cutoff) {
			delete(l.entries, key)
		}
	}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// PerClient keeps one token bucket per key. Buckets idle for longer than idleTTL are
// dropped on the next prune.
type PerClient struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	rate      rate.Limit
	burst     int
	idleTTL   time.Duration
	lastPrune time.Time
	now       func() time.Time
}

func NewPerClient(perSecond float64, burst int) *PerClient {
	if perSecond <= 0 {
		perSecond = 10
	}
	if burst < 1 {
		burst = 1
	}
	return &PerClient{
		visitors: make(map[string]*visitor),
		rate:     rate.Limit(perSecond),
		burst:    burst,
		idleTTL:  3 * time.Minute,
		now:      time.Now,
	}
}

func (l *PerClient) Allow(_ context.Context, key string) (bool, error) {
	if l == nil {
		return true, nil
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastPrune) >= time.Minute {
		l.pruneLocked(now)
	}

	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1), nil
}

func (l *PerClient) pruneLocked(now time.Time) {
	for key, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.idleTTL {
			delete(l.visitors, key)
		}
	}
	l.lastPrune = now
}
