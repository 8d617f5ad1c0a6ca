// Package playground implements rate limiting, error, latency and
// concurrency simulation.
//
// This file provides the RateLimiter type that tracks requests per endpoint
// and per client credentials, random error injection, artificial latency that
// stops early when the client goes away, and a gate that rejects requests
// beyond a configured number in flight.
package playground

import (
	"context"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Constants for rate limiter cleanup
const (
	// RateLimiterCleanupInterval is the number of tracked keys between cleanup passes
	RateLimiterCleanupInterval = 50
	// RateLimiterCleanupMaxEntries is the maximum number of entries checked per pass
	RateLimiterCleanupMaxEntries = 50
)

// RateLimiter manages rate limiting simulation.
// Limits are tracked per endpoint and per client credentials.
type RateLimiter struct {
	configGetter func() *RateLimitConfig // Current config, read on every check
	requests     map[string][]time.Time  // "credentials:METHOD:path" -> request timestamps
	mu           sync.Mutex
}

// NewRateLimiter creates a rate limiter with a static config
func NewRateLimiter(config *RateLimitConfig) *RateLimiter {
	if config == nil {
		config = &RateLimitConfig{Enabled: false}
	}
	return NewRateLimiterWithGetter(func() *RateLimitConfig {
		return config
	})
}

// NewRateLimiterWithGetter creates a rate limiter that reads its config on
// every check, so runtime config updates apply immediately.
func NewRateLimiterWithGetter(configGetter func() *RateLimitConfig) *RateLimiter {
	if configGetter == nil {
		configGetter = func() *RateLimitConfig {
			return &RateLimitConfig{Enabled: false}
		}
	}
	return &RateLimiter{
		configGetter: configGetter,
		requests:     make(map[string][]time.Time),
	}
}

// RateLimitResult describes one rate limit decision.
type RateLimitResult struct {
	Allowed   bool
	Limit     int // 0 when rate limiting is disabled
	Remaining int
	Reset     time.Time
}

// CheckRateLimit records a request from credentials to method+path (the
// endpoint template) and reports whether it is within the limit.
func (rl *RateLimiter) CheckRateLimit(credentials, method, path string) RateLimitResult {
	config := rl.configGetter()
	if config == nil || !config.Enabled {
		return RateLimitResult{Allowed: true}
	}

	limit, windowSec := config.Limit, config.WindowSec
	if override := GetEndpointRateLimit(method, path, config); override != nil {
		limit, windowSec = override.Limit, override.WindowSec
	}
	if windowSec <= 0 {
		windowSec = defaultRateWindowSec
	}
	window := time.Duration(windowSec) * time.Second

	rl.mu.Lock()
	defer rl.mu.Unlock()

	key := credentials + ":" + strings.ToUpper(method) + ":" + path
	now := time.Now()
	windowStart := now.Add(-window)

	requests := rl.requests[key]
	validRequests := make([]time.Time, 0, len(requests)+1)
	for _, reqTime := range requests {
		if reqTime.After(windowStart) {
			validRequests = append(validRequests, reqTime)
		}
	}

	if len(validRequests) >= limit {
		rl.requests[key] = validRequests
		reset := now.Add(window)
		if len(validRequests) > 0 {
			reset = validRequests[0].Add(window)
		}
		return RateLimitResult{Allowed: false, Limit: limit, Remaining: 0, Reset: reset}
	}

	validRequests = append(validRequests, now)
	rl.requests[key] = validRequests

	if len(rl.requests)%RateLimiterCleanupInterval == 0 {
		rl.cleanupExpiredEntriesLimited(windowStart, RateLimiterCleanupMaxEntries)
	}

	return RateLimitResult{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - len(validRequests),
		Reset:     validRequests[0].Add(window),
	}
}

// cleanupExpiredEntriesLimited removes up to maxEntries keys whose requests
// have all left the window.
func (rl *RateLimiter) cleanupExpiredEntriesLimited(windowStart time.Time, maxEntries int) {
	checked := 0
	for key, requests := range rl.requests {
		if checked >= maxEntries {
			break
		}
		checked++
		if len(requests) == 0 || !requests[len(requests)-1].After(windowStart) {
			delete(rl.requests, key)
		}
	}
}

// Reset forgets all tracked requests.
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.requests = make(map[string][]time.Time)
}

// ShouldSimulateError determines if an error should be simulated based on config
func ShouldSimulateError(config *ErrorConfig) bool {
	if config == nil || !config.Enabled || config.ErrorRate <= 0 {
		return false
	}
	return rand.Float64() < config.ErrorRate
}

// GetAPICredentials extracts the client identity rate limits are tracked by:
// the bearer token, else the whole Authorization header, else the remote
// host.
func GetAPICredentials(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
		return authHeader
	}
	host := r.RemoteAddr
	if i := strings.LastIndex(host, ":"); i > 0 {
		host = host[:i]
	}
	if host == "" {
		return "anonymous"
	}
	return host
}

// writeRateLimitError writes a 429 with rate limit headers
func writeRateLimitError(w http.ResponseWriter, result RateLimitResult) {
	AddRateLimitHeaders(w, result.Limit, 0, result.Reset)
	retryAfter := int(time.Until(result.Reset).Seconds()) + 1
	if retryAfter < 1 {
		retryAfter = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	WriteError(w, http.StatusTooManyRequests, "Rate limit exceeded")
}

// writeSimulatedError writes the configured injected error
func writeSimulatedError(w http.ResponseWriter, config *ErrorConfig) {
	WriteError(w, config.StatusCode, "Simulated "+strings.ReplaceAll(config.ErrorType, "_", " ")+" error")
}

// latencyFor returns the configured delay plus uniform jitter, plus extraMs.
func latencyFor(config *LatencyConfig, extraMs int) time.Duration {
	delayMs := extraMs
	if config != nil {
		delayMs += config.DelayMs
		if config.JitterMs > 0 {
			delayMs += rand.Intn(config.JitterMs + 1)
		}
	}
	return time.Duration(delayMs) * time.Millisecond
}

// simulateLatency sleeps for d, returning early with the context's error if
// the request is cancelled.
func simulateLatency(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ConcurrencyGate rejects requests beyond a limit in flight. The limit is
// read on every acquire; zero or less means unbounded.
type ConcurrencyGate struct {
	inFlight    int64
	limitGetter func() int
}

// NewConcurrencyGate creates a gate reading its limit from limitGetter.
func NewConcurrencyGate(limitGetter func() int) *ConcurrencyGate {
	if limitGetter == nil {
		limitGetter = func() int { return 0 }
	}
	return &ConcurrencyGate{limitGetter: limitGetter}
}

// TryAcquire takes a slot, reporting false when the gate is full.
func (g *ConcurrencyGate) TryAcquire() bool {
	n := atomic.AddInt64(&g.inFlight, 1)
	if limit := g.limitGetter(); limit > 0 && n > int64(limit) {
		atomic.AddInt64(&g.inFlight, -1)
		return false
	}
	return true
}

// Release frees a slot taken by TryAcquire.
func (g *ConcurrencyGate) Release() {
	atomic.AddInt64(&g.inFlight, -1)
}

// InFlight returns the number of slots currently taken.
func (g *ConcurrencyGate) InFlight() int64 {
	return atomic.LoadInt64(&g.inFlight)
}
