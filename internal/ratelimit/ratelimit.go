// Package ratelimit provides per-identifier request admission control.
//
// The gate runs strictly before any model invocation so a rejected request
// never incurs provider cost. The backing store here is an in-process
// fixed-window counter bounded by an LRU; Limiter is the seam for swapping
// in a distributed store.
package ratelimit

import (
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Config defines one quota class.
type Config struct {
	Window time.Duration
	Max    int
}

// Result is the admission decision for one request.
type Result struct {
	Allowed    bool
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Limiter makes admission decisions for identifiers.
type Limiter interface {
	Check(identifier string, cfg Config) Result
}

// window is one identifier's counter for the current fixed window.
type window struct {
	start time.Time
	count int
}

// WindowLimiter is an in-memory fixed-window Limiter. The LRU bounds memory
// under hostile identifier churn.
type WindowLimiter struct {
	mu      sync.Mutex
	windows *lru.Cache[string, *window]
	now     func() time.Time
}

// NewWindowLimiter creates a limiter tracking at most size identifiers.
func NewWindowLimiter(size int) (*WindowLimiter, error) {
	if size <= 0 {
		size = 10000
	}
	cache, err := lru.New[string, *window](size)
	if err != nil {
		return nil, fmt.Errorf("ratelimit: %w", err)
	}
	return &WindowLimiter{windows: cache, now: time.Now}, nil
}

// Check records one request attempt and returns the admission decision.
func (l *WindowLimiter) Check(identifier string, cfg Config) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows.Get(identifier)
	if !ok || now.Sub(w.start) >= cfg.Window {
		w = &window{start: now}
		l.windows.Add(identifier, w)
	}

	resetAt := w.start.Add(cfg.Window)
	if w.count >= cfg.Max {
		retry := resetAt.Sub(now)
		if retry < time.Second {
			retry = time.Second
		}
		return Result{Allowed: false, Remaining: 0, ResetAt: resetAt, RetryAfter: retry}
	}

	w.count++
	return Result{Allowed: true, Remaining: cfg.Max - w.count, ResetAt: resetAt}
}

// Identifier derives a stable rate-limit key from a credential, namespaced
// per route class. Only the key's tail is kept so identifiers are safe to log.
func Identifier(class, key string) string {
	tail := key
	if len(tail) > 12 {
		tail = tail[len(tail)-12:]
	}
	return class + ":" + tail
}
