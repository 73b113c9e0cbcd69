package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// IdleTracker records request activity so the server can scale itself down
// after a quiet period.
type IdleTracker struct {
	mu       sync.Mutex
	inFlight int
	last     time.Time
	now      func() time.Time
}

// NewIdleTracker creates an IdleTracker whose idle clock starts now.
func NewIdleTracker() *IdleTracker {
	return newIdleTracker(time.Now)
}

func newIdleTracker(now func() time.Time) *IdleTracker {
	return &IdleTracker{last: now(), now: now}
}

// Middleware counts in-flight requests and stamps activity on entry and exit.
func (t *IdleTracker) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.begin()
		defer t.end()
		next.ServeHTTP(w, r)
	})
}

func (t *IdleTracker) begin() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inFlight++
	t.last = t.now()
}

func (t *IdleTracker) end() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inFlight--
	t.last = t.now()
}

// IdleFor returns how long the server has been without requests, or 0 while
// any request is in flight.
func (t *IdleTracker) IdleFor() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.inFlight > 0 {
		return 0
	}
	return t.now().Sub(t.last)
}

// Wait blocks until the server has been idle for window, checking every
// poll interval. It returns nil once idle, or ctx.Err() if ctx ends first.
// A non-positive window never expires.
func (t *IdleTracker) Wait(ctx context.Context, window, poll time.Duration) error {
	if window <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}
	if poll <= 0 || poll > window {
		poll = window
	}

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		if t.IdleFor() >= window {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
