// rate_limiter.go implements per-provider rate limiting so a deliberation
// turn (plan + N agents + synthesis) cannot trip upstream API throttling.
package llm

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// RateLimiter manages API rate limits across providers using a token
// bucket per provider.
type RateLimiter struct {
	mu      sync.RWMutex
	limits  map[string]*ProviderLimits
	buckets map[string]*tokenBucket
}

// ProviderLimits defines rate limits for a specific provider.
type ProviderLimits struct {
	// RequestsPerMinute limits API calls per minute
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`

	// ConcurrentRequests limits parallel API calls
	ConcurrentRequests int `yaml:"concurrent_requests" json:"concurrent_requests"`

	// BurstSize allows temporary bursts above rate limit
	BurstSize int `yaml:"burst_size" json:"burst_size"`
}

// tokenBucket implements the token bucket algorithm for rate limiting.
type tokenBucket struct {
	mu            sync.Mutex
	tokens        float64
	maxTokens     float64
	refillRate    float64 // tokens per second
	lastRefill    time.Time
	activeCount   int
	maxConcurrent int
	waiters       []chan struct{}
}

// DefaultProviderLimits returns default rate limits for known providers.
func DefaultProviderLimits(provider string) *ProviderLimits {
	switch provider {
	case "openai":
		return &ProviderLimits{
			RequestsPerMinute:  60,
			ConcurrentRequests: 5,
			BurstSize:          10,
		}
	case "anthropic":
		return &ProviderLimits{
			RequestsPerMinute:  60,
			ConcurrentRequests: 5,
			BurstSize:          10,
		}
	case "ollama":
		// Local inference, no external limits, but prevent overload
		return &ProviderLimits{
			RequestsPerMinute:  120,
			ConcurrentRequests: 2,
			BurstSize:          5,
		}
	default:
		return &ProviderLimits{
			RequestsPerMinute:  30,
			ConcurrentRequests: 3,
			BurstSize:          5,
		}
	}
}

// NewRateLimiter creates a new rate limiter with default provider limits.
func NewRateLimiter() *RateLimiter {
	rl := &RateLimiter{
		limits:  make(map[string]*ProviderLimits),
		buckets: make(map[string]*tokenBucket),
	}

	for _, provider := range []string{"openai", "anthropic", "ollama"} {
		rl.SetLimits(provider, DefaultProviderLimits(provider))
	}

	return rl
}

// SetLimits configures rate limits for a provider.
func (r *RateLimiter) SetLimits(provider string, limits *ProviderLimits) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.limits[provider] = limits

	refillRate := float64(limits.RequestsPerMinute) / 60.0
	maxTokens := float64(limits.BurstSize)
	if maxTokens < 1 {
		maxTokens = float64(limits.RequestsPerMinute) / 6.0 // 10 second burst
	}

	r.buckets[provider] = &tokenBucket{
		tokens:        maxTokens,
		maxTokens:     maxTokens,
		refillRate:    refillRate,
		lastRefill:    time.Now(),
		maxConcurrent: limits.ConcurrentRequests,
		waiters:       make([]chan struct{}, 0),
	}
}

// Acquire attempts to acquire a rate limit slot for the provider.
// It blocks until a slot is available or the context is cancelled.
func (r *RateLimiter) Acquire(ctx context.Context, provider string) error {
	r.mu.RLock()
	bucket, exists := r.buckets[provider]
	r.mu.RUnlock()

	if !exists {
		// No limits configured, allow request
		return nil
	}

	return bucket.acquire(ctx)
}

// Release releases a rate limit slot after request completion.
// Should be called in defer after successful Acquire.
func (r *RateLimiter) Release(provider string) {
	r.mu.RLock()
	bucket, exists := r.buckets[provider]
	r.mu.RUnlock()

	if exists {
		bucket.release()
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// TOKEN BUCKET IMPLEMENTATION
// ─────────────────────────────────────────────────────────────────────────────

// acquire blocks until a token is available or context is cancelled.
func (tb *tokenBucket) acquire(ctx context.Context) error {
	tb.mu.Lock()

	tb.refill()

	// Check concurrent limit
	if tb.maxConcurrent > 0 && tb.activeCount >= tb.maxConcurrent {
		waiter := make(chan struct{})
		tb.waiters = append(tb.waiters, waiter)
		tb.mu.Unlock()

		select {
		case <-waiter:
			tb.mu.Lock()
			tb.activeCount++
			tb.mu.Unlock()
			return nil
		case <-ctx.Done():
			tb.mu.Lock()
			for i, w := range tb.waiters {
				if w == waiter {
					tb.waiters = append(tb.waiters[:i], tb.waiters[i+1:]...)
					break
				}
			}
			tb.mu.Unlock()
			return ctx.Err()
		}
	}

	// Check token availability
	if tb.tokens < 1 {
		waitTime := time.Duration((1 - tb.tokens) / tb.refillRate * float64(time.Second))
		tb.mu.Unlock()

		select {
		case <-time.After(waitTime):
			tb.mu.Lock()
			tb.refill()
			if tb.tokens >= 1 {
				tb.tokens--
				tb.activeCount++
				tb.mu.Unlock()
				return nil
			}
			tb.mu.Unlock()
			return fmt.Errorf("rate limit exceeded after wait")
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	tb.tokens--
	tb.activeCount++
	tb.mu.Unlock()
	return nil
}

// release returns a slot to the bucket.
func (tb *tokenBucket) release() {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.activeCount--

	if len(tb.waiters) > 0 {
		waiter := tb.waiters[0]
		tb.waiters = tb.waiters[1:]
		close(waiter)
	}
}

// refill adds tokens based on elapsed time (must be called with lock held).
func (tb *tokenBucket) refill() {
	now := time.Now()
	elapsed := now.Sub(tb.lastRefill).Seconds()
	tb.tokens += elapsed * tb.refillRate
	if tb.tokens > tb.maxTokens {
		tb.tokens = tb.maxTokens
	}
	tb.lastRefill = now
}
