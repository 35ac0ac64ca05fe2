package api

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

// windowLimiter admits at most max hits per key within window.
type windowLimiter struct {
	mu     sync.Mutex
	hits   map[string][]time.Time
	max    int
	window time.Duration
	sweep  time.Time
}

func newWindowLimiter(max int, window time.Duration) *windowLimiter {
	return &windowLimiter{hits: make(map[string][]time.Time), max: max, window: window}
}

// allow records a hit for key at now unless the key is throttled, in which
// case it returns the wait until the oldest hit leaves the window.
func (l *windowLimiter) allow(key string, now time.Time) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.sweep) >= l.window {
		l.sweepLocked(now)
	}

	recent := pruneWindow(l.hits[key], now, l.window)
	if blocked, retry := evaluateWindowThrottle(now, recent, l.max, l.window); blocked {
		l.hits[key] = recent
		return false, retry
	}
	l.hits[key] = append(recent, now)
	return true, 0
}

func (l *windowLimiter) sweepLocked(now time.Time) {
	for k, ts := range l.hits {
		if kept := pruneWindow(ts, now, l.window); len(kept) == 0 {
			delete(l.hits, k)
		} else {
			l.hits[k] = kept
		}
	}
	l.sweep = now
}

// pruneWindow drops hits older than window. ts is in ascending order.
func pruneWindow(ts []time.Time, now time.Time, window time.Duration) []time.Time {
	cut := now.Add(-window)
	i := 0
	for i < len(ts) && !ts[i].After(cut) {
		i++
	}
	return ts[i:]
}

// evaluateWindowThrottle reports whether hits (any order) reach max within
// window before now, and for how long the caller must wait.
func evaluateWindowThrottle(now time.Time, hits []time.Time, max int, window time.Duration) (bool, time.Duration) {
	if max <= 0 || window <= 0 {
		return false, 0
	}
	cut := now.Add(-window)
	var oldest time.Time
	n := 0
	for _, t := range hits {
		if t.Before(cut) {
			continue
		}
		if n == 0 || t.Before(oldest) {
			oldest = t
		}
		n++
	}
	if n < max {
		return false, 0
	}
	return true, oldest.Add(window).Sub(now)
}

func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	if retryAfter > 0 {
		secs := int64((retryAfter + time.Second - 1) / time.Second)
		w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
	}
	writeError(w, http.StatusTooManyRequests, "rate_limited", "too many attempts")
}
