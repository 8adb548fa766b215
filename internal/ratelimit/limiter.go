package ratelimit

import (
	"sync"
	"time"
)

// Limiter admits at most maxRequests per client key within a trailing
// window. Every read-prune-check-append sequence for a key runs under one
// mutex so concurrent requests cannot both slip past the threshold.
type Limiter struct {
	mu     sync.Mutex
	window time.Duration
	max    int
	hits   map[string][]time.Time
	now    func() time.Time
}

func New(window time.Duration, maxRequests int) *Limiter {
	if window <= 0 {
		window = 60 * time.Second
	}
	if maxRequests <= 0 {
		maxRequests = 30
	}
	return &Limiter{
		window: window,
		max:    maxRequests,
		hits:   make(map[string][]time.Time),
		now:    time.Now,
	}
}

// Allow prunes the key's recorded timestamps, rejects if the pruned window
// is already full, and otherwise records this attempt and admits it. A
// rejected attempt is never recorded.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	kept := l.hits[key][:0]
	for _, t := range l.hits[key] {
		if now.Sub(t) < l.window {
			kept = append(kept, t)
		}
	}
	l.hits[key] = kept

	if len(kept) >= l.max {
		return false
	}
	l.hits[key] = append(kept, now)
	return true
}

// Sweep drops every key whose window has fully aged out, bounding the
// identity map over the process lifetime.
func (l *Limiter) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key, times := range l.hits {
		stale := true
		for _, t := range times {
			if now.Sub(t) < l.window {
				stale = false
				break
			}
		}
		if stale {
			delete(l.hits, key)
		}
	}
}

// StartSweeper runs Sweep on the given interval until the returned stop
// function is called.
func (l *Limiter) StartSweeper(interval time.Duration) (stop func()) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	done := make(chan struct{})
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				l.Sweep()
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

func (l *Limiter) trackedKeys() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.hits)
}
