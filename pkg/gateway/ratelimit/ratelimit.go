package ratelimit

import (
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type Config struct {
	RPS   float64
	Burst int

	// Operational bounds for the in-memory map (single-process only).
	MaxEntries int
	EntryTTL   time.Duration
}

// Limiter keeps one token bucket per client key.
type Limiter struct {
	cfg Config

	mu sync.Mutex
	m  map[string]*clientLimiter
}

type clientLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func New(cfg Config) *Limiter {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 10_000
	}
	if cfg.EntryTTL <= 0 {
		cfg.EntryTTL = 30 * time.Minute
	}
	return &Limiter{
		cfg: cfg,
		m:   make(map[string]*clientLimiter),
	}
}

// Enabled reports whether requests are limited at all.
func (l *Limiter) Enabled() bool {
	return l != nil && l.cfg.RPS > 0 && l.cfg.Burst > 0
}

type Decision struct {
	Allowed    bool
	RetryAfter int
}

// Allow consumes one token for key. RetryAfter is in whole seconds.
func (l *Limiter) Allow(key string, now time.Time) Decision {
	if !l.Enabled() {
		return Decision{Allowed: true}
	}
	if key == "" {
		key = "anonymous"
	}

	cl := l.getOrCreate(key, now)
	r := cl.lim.ReserveN(now, 1)
	if !r.OK() {
		return Decision{Allowed: false, RetryAfter: 1}
	}
	delay := r.DelayFrom(now)
	if delay <= 0 {
		return Decision{Allowed: true}
	}
	r.CancelAt(now)

	retryAfter := int(math.Ceil(delay.Seconds()))
	if retryAfter < 1 {
		retryAfter = 1
	}
	return Decision{Allowed: false, RetryAfter: retryAfter}
}

// Len reports the number of tracked clients.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}

func (l *Limiter) getOrCreate(key string, now time.Time) *clientLimiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if cl, ok := l.m[key]; ok {
		cl.lastSeen = now
		return cl
	}

	if len(l.m) >= l.cfg.MaxEntries {
		l.gcLocked(now)
		// If still too big, drop one arbitrary entry (bounded memory > perfect fairness).
		if len(l.m) >= l.cfg.MaxEntries {
			for k := range l.m {
				delete(l.m, k)
				break
			}
		}
	}

	cl := &clientLimiter{
		lim:      rate.NewLimiter(rate.Limit(l.cfg.RPS), l.cfg.Burst),
		lastSeen: now,
	}
	l.m[key] = cl
	return cl
}

func (l *Limiter) gcLocked(now time.Time) {
	ttl := l.cfg.EntryTTL
	for k, v := range l.m {
		if now.Sub(v.lastSeen) > ttl {
			delete(l.m, k)
		}
	}
}
