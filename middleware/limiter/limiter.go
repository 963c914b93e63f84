package limiter

import (
	"errors"
	"sync"
	"time"

	"github.com/sweetpotato0/tutorgraph/middleware"
)

var (
	// ErrRateLimitExceeded indicates rate limit has been exceeded
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
)

// RateLimiter enforces a sliding-window request limit per session.
type RateLimiter struct {
	maxRequests int
	window      time.Duration
	now         func() time.Time

	mu       sync.Mutex
	sessions map[string][]time.Time
}

// NewRateLimiter creates a rate limiting middleware that allows up to
// maxRequests per session within the given window.
func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		maxRequests: maxRequests,
		window:      window,
		now:         time.Now,
		sessions:    make(map[string][]time.Time),
	}
}

// Name returns the middleware name
func (m *RateLimiter) Name() string {
	return "RateLimiter"
}

// Execute checks the session's rate limit
func (m *RateLimiter) Execute(ctx *middleware.Context, next middleware.Handler) error {
	if !m.allow(ctx.SessionID) {
		return ErrRateLimitExceeded
	}
	return next(ctx)
}

func (m *RateLimiter) allow(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	cutoff := now.Add(-m.window)

	recent := m.sessions[sessionID][:0]
	for _, t := range m.sessions[sessionID] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= m.maxRequests {
		m.sessions[sessionID] = recent
		return false
	}

	m.sessions[sessionID] = append(recent, now)
	return true
}

// Reset clears the recorded requests for a session
func (m *RateLimiter) Reset(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
}

// Count returns the number of requests currently inside the window
func (m *RateLimiter) Count(sessionID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-m.window)
	n := 0
	for _, t := range m.sessions[sessionID] {
		if t.After(cutoff) {
			n++
		}
	}
	return n
}
