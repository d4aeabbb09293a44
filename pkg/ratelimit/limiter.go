package ratelimit

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"
)

// MultiLimiter manages multiple rate limiters for different services
type MultiLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
}

// NewMultiLimiter creates a new multi-limiter
func NewMultiLimiter() *MultiLimiter {
	return &MultiLimiter{
		limiters: make(map[string]*rate.Limiter),
	}
}

// AddLimiter adds a new rate limiter for a service
// requestsPerSecond: the rate limit (e.g., 10 means 10 requests per second)
// burst: maximum burst size
func (m *MultiLimiter) AddLimiter(name string, requestsPerSecond float64, burst int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limiters[name] = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
}

// Wait blocks until the limiter allows an event
func (m *MultiLimiter) Wait(ctx context.Context, name string) error {
	m.mu.RLock()
	limiter, ok := m.limiters[name]
	m.mu.RUnlock()

	if !ok {
		return fmt.Errorf("limiter %s not found", name)
	}

	return limiter.Wait(ctx)
}

// Allow reports whether an event may happen now
func (m *MultiLimiter) Allow(name string) bool {
	m.mu.RLock()
	limiter, ok := m.limiters[name]
	m.mu.RUnlock()

	if !ok {
		return false
	}

	return limiter.Allow()
}

// Reserve returns a reservation for a future event
func (m *MultiLimiter) Reserve(name string) (*rate.Reservation, error) {
	m.mu.RLock()
	limiter, ok := m.limiters[name]
	m.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("limiter %s not found", name)
	}

	return limiter.Reserve(), nil
}

// Default rate limiter names
const (
	LimiterGemini     = "gemini"
	LimiterOpenAI     = "openai"
	LimiterClaude     = "claude"
	LimiterOpenRouter = "openrouter"
	LimiterWordPress  = "wordpress"
	LimiterFeeds      = "feeds"
)

// NewDefaultLimiter creates a limiter with default rate limits
func NewDefaultLimiter() *MultiLimiter {
	m := NewMultiLimiter()

	// Gemini free tier: 15 requests per minute, burst 4 covers an image batch
	m.AddLimiter(LimiterGemini, 15.0/60, 4)

	// OpenAI: 60 requests per minute, burst 4
	m.AddLimiter(LimiterOpenAI, 1, 4)

	// Claude: 10 requests per minute, burst 2
	m.AddLimiter(LimiterClaude, 10.0/60, 2)

	// OpenRouter: 20 requests per minute, burst 4
	m.AddLimiter(LimiterOpenRouter, 20.0/60, 4)

	// WordPress: be polite to self-hosted sites - 1 per second, burst 2
	m.AddLimiter(LimiterWordPress, 1, 2)

	// RSS/sitemap fetches: 1 per second, burst 5
	m.AddLimiter(LimiterFeeds, 1, 5)

	return m
}

// LimiterFor maps a provider name to its limiter key
func LimiterFor(provider string) string {
	switch provider {
	case "openai":
		return LimiterOpenAI
	case "claude":
		return LimiterClaude
	case "openrouter":
		return LimiterOpenRouter
	default:
		return LimiterGemini
	}
}
