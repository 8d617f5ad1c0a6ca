package playground

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		Enabled:   true,
		Limit:     100,
		WindowSec: 60,
		EndpointOverrides: map[string]EndpointRateLimitOverride{
			"GET:/pets/{petId}":      {Limit: 10, WindowSec: 60},
			"GET:/pets/mine":         {Limit: 3, WindowSec: 30},
			"POST:/pets":             {Limit: 5, WindowSec: 900},
			"/pets":                  {Limit: 50, WindowSec: 60},
			"/admin":                 {Limit: 2, WindowSec: 3600},
			"/stores/{id}/inventory": {Limit: 7, WindowSec: 120},
		},
	}
}

func TestGetEndpointRateLimit(t *testing.T) {
	tests := []struct {
		name             string
		method           string
		path             string
		expectedLimit    int
		expectedWindow   int
		shouldMatch      bool
		expectedEndpoint string
	}{
		{
			name:             "method and path",
			method:           "POST",
			path:             "/pets",
			expectedLimit:    5,
			expectedWindow:   900,
			shouldMatch:      true,
			expectedEndpoint: "POST:/pets",
		},
		{
			name:             "path for all methods",
			method:           "GET",
			path:             "/pets",
			expectedLimit:    50,
			expectedWindow:   60,
			shouldMatch:      true,
			expectedEndpoint: "/pets",
		},
		{
			name:             "path with query params",
			method:           "GET",
			path:             "/pets/?limit=3",
			expectedLimit:    50,
			expectedWindow:   60,
			shouldMatch:      true,
			expectedEndpoint: "/pets",
		},
		{
			name:             "template given verbatim",
			method:           "GET",
			path:             "/pets/{petId}",
			expectedLimit:    10,
			expectedWindow:   60,
			shouldMatch:      true,
			expectedEndpoint: "GET:/pets/{petId}",
		},
		{
			name:             "concrete path against template",
			method:           "GET",
			path:             "/pets/42",
			expectedLimit:    10,
			expectedWindow:   60,
			shouldMatch:      true,
			expectedEndpoint: "GET:/pets/{petId}",
		},
		{
			name:             "literal wins over template",
			method:           "GET",
			path:             "/pets/mine",
			expectedLimit:    3,
			expectedWindow:   30,
			shouldMatch:      true,
			expectedEndpoint: "GET:/pets/mine",
		},
		{
			name:             "template for all methods",
			method:           "PUT",
			path:             "/stores/9/inventory",
			expectedLimit:    7,
			expectedWindow:   120,
			shouldMatch:      true,
			expectedEndpoint: "/stores/{id}/inventory",
		},
		{
			name:             "prefix match",
			method:           "DELETE",
			path:             "/admin/users/1",
			expectedLimit:    2,
			expectedWindow:   3600,
			shouldMatch:      true,
			expectedEndpoint: "/admin",
		},
		{
			name:             "HEAD uses GET limits",
			method:           "HEAD",
			path:             "/pets/42",
			expectedLimit:    10,
			expectedWindow:   60,
			shouldMatch:      true,
			expectedEndpoint: "GET:/pets/{petId}",
		},
		{
			name:        "prefix must end on a segment boundary",
			method:      "GET",
			path:        "/administrators",
			shouldMatch: false,
		},
		{
			name:             "method specific template falls back to prefix",
			method:           "DELETE",
			path:             "/pets/42",
			expectedLimit:    50,
			expectedWindow:   60,
			shouldMatch:      true,
			expectedEndpoint: "/pets",
		},
	}

	config := testRateLimitConfig()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := GetEndpointRateLimit(tt.method, tt.path, config)

			if !tt.shouldMatch {
				assert.Nil(t, result, "Expected no match for %s %s", tt.method, tt.path)
				return
			}

			require.NotNil(t, result, "Expected match for %s %s", tt.method, tt.path)
			assert.Equal(t, tt.expectedLimit, result.Limit, "Limit mismatch")
			assert.Equal(t, tt.expectedWindow, result.WindowSec, "Window mismatch")
			expectedMethod := tt.method
			if tt.method == "HEAD" {
				expectedMethod = "GET"
			}
			assert.Equal(t, expectedMethod, result.Method, "Method mismatch")
			assert.Equal(t, tt.expectedEndpoint, result.Endpoint, "Endpoint mismatch")
		})
	}
}

func TestGetEndpointRateLimit_NoOverrides(t *testing.T) {
	assert.Nil(t, GetEndpointRateLimit("GET", "/pets", nil))
	assert.Nil(t, GetEndpointRateLimit("GET", "/pets", &RateLimitConfig{Enabled: true, Limit: 5}))
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "Path with query params", input: "/pets?limit=3", expected: "/pets"},
		{name: "Path with trailing slash", input: "/pets/", expected: "/pets"},
		{name: "Path with both", input: "/pets/?limit=0", expected: "/pets"},
		{name: "Root path", input: "/", expected: "/"},
		{name: "Simple path", input: "/pets", expected: "/pets"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, normalizePath(tt.input))
		})
	}
}

func TestRateLimiter_CheckRateLimit(t *testing.T) {
	t.Run("Rate limit enabled - within limit", func(t *testing.T) {
		limiter := NewRateLimiter(&RateLimitConfig{Limit: 5, WindowSec: 60, Enabled: true})

		for i := 0; i < 3; i++ {
			result := limiter.CheckRateLimit("test_key", "GET", "/pets")
			assert.True(t, result.Allowed, "Request %d should be allowed", i+1)
			assert.Equal(t, 5, result.Limit)
			assert.Equal(t, 5-(i+1), result.Remaining, "Remaining should decrease")
			assert.True(t, result.Reset.After(time.Now()), "Reset time should be in future")
		}
	})

	t.Run("Rate limit enabled - exceeds limit", func(t *testing.T) {
		limiter := NewRateLimiter(&RateLimitConfig{Limit: 3, WindowSec: 60, Enabled: true})

		for i := 0; i < 3; i++ {
			assert.True(t, limiter.CheckRateLimit("test_key", "GET", "/pets").Allowed, "Request %d should be allowed", i+1)
		}

		result := limiter.CheckRateLimit("test_key", "GET", "/pets")
		assert.False(t, result.Allowed, "4th request should be denied")
		assert.Equal(t, 0, result.Remaining)
		assert.True(t, result.Reset.After(time.Now()), "Reset time should be in future")
	})

	t.Run("Rate limit disabled", func(t *testing.T) {
		limiter := NewRateLimiter(&RateLimitConfig{Limit: 1, WindowSec: 60, Enabled: false})
		for i := 0; i < 10; i++ {
			result := limiter.CheckRateLimit("test_key", "GET", "/pets")
			assert.True(t, result.Allowed, "Request %d should be allowed when disabled", i+1)
			assert.Zero(t, result.Limit)
		}
	})

	t.Run("Different credentials have separate limits", func(t *testing.T) {
		limiter := NewRateLimiter(&RateLimitConfig{Limit: 2, WindowSec: 60, Enabled: true})

		limiter.CheckRateLimit("key1", "GET", "/pets")
		limiter.CheckRateLimit("key1", "GET", "/pets")
		assert.False(t, limiter.CheckRateLimit("key1", "GET", "/pets").Allowed, "key1 should be rate limited")

		result := limiter.CheckRateLimit("key2", "GET", "/pets")
		assert.True(t, result.Allowed, "key2 should be allowed")
		assert.Equal(t, 1, result.Remaining)
	})

	t.Run("Different endpoints have separate limits", func(t *testing.T) {
		limiter := NewRateLimiter(&RateLimitConfig{Limit: 2, WindowSec: 60, Enabled: true})

		limiter.CheckRateLimit("test_key", "GET", "/pets")
		limiter.CheckRateLimit("test_key", "GET", "/pets")
		assert.False(t, limiter.CheckRateLimit("test_key", "GET", "/pets").Allowed)

		result := limiter.CheckRateLimit("test_key", "POST", "/pets")
		assert.True(t, result.Allowed, "POST /pets should be allowed")
		assert.Equal(t, 1, result.Remaining)
	})

	t.Run("Endpoint override applies", func(t *testing.T) {
		limiter := NewRateLimiter(testRateLimitConfig())

		for i := 0; i < 3; i++ {
			assert.True(t, limiter.CheckRateLimit("test_key", "GET", "/pets/mine").Allowed)
		}
		result := limiter.CheckRateLimit("test_key", "GET", "/pets/mine")
		assert.False(t, result.Allowed)
		assert.Equal(t, 3, result.Limit)
	})

	t.Run("Old requests expire", func(t *testing.T) {
		limiter := NewRateLimiter(&RateLimitConfig{Limit: 2, WindowSec: 1, Enabled: true})

		limiter.CheckRateLimit("test_key", "GET", "/pets")
		limiter.CheckRateLimit("test_key", "GET", "/pets")
		assert.False(t, limiter.CheckRateLimit("test_key", "GET", "/pets").Allowed, "Should be rate limited")

		time.Sleep(1100 * time.Millisecond)

		result := limiter.CheckRateLimit("test_key", "GET", "/pets")
		assert.True(t, result.Allowed, "Should be allowed after window expires")
		assert.Equal(t, 1, result.Remaining)
	})

	t.Run("Config changes apply immediately", func(t *testing.T) {
		config := &RateLimitConfig{Limit: 1, WindowSec: 60, Enabled: false}
		limiter := NewRateLimiterWithGetter(func() *RateLimitConfig { return config })

		assert.True(t, limiter.CheckRateLimit("k", "GET", "/pets").Allowed)
		config = &RateLimitConfig{Limit: 1, WindowSec: 60, Enabled: true}
		assert.True(t, limiter.CheckRateLimit("k", "GET", "/pets").Allowed)
		assert.False(t, limiter.CheckRateLimit("k", "GET", "/pets").Allowed)
	})
}

func TestRateLimiter_NilConfig(t *testing.T) {
	limiter := NewRateLimiter(nil)
	require.NotNil(t, limiter)
	assert.True(t, limiter.CheckRateLimit("test_key", "GET", "/pets").Allowed, "Should allow requests when config is nil")
}

func TestGetAPICredentials(t *testing.T) {
	req := httptest.NewRequest("GET", "/pets", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1", GetAPICredentials(req))

	req.Header.Set("Authorization", "Bearer abc")
	assert.Equal(t, "abc", GetAPICredentials(req))

	req.Header.Set("Authorization", "Basic xyz")
	assert.Equal(t, "Basic xyz", GetAPICredentials(req))
}

func TestShouldSimulateError(t *testing.T) {
	assert.False(t, ShouldSimulateError(nil))
	assert.False(t, ShouldSimulateError(&ErrorConfig{Enabled: false, ErrorRate: 1}))
	assert.False(t, ShouldSimulateError(&ErrorConfig{Enabled: true, ErrorRate: 0}))
	assert.True(t, ShouldSimulateError(&ErrorConfig{Enabled: true, ErrorRate: 1}))
}

func TestConcurrencyGate(t *testing.T) {
	limit := 2
	gate := NewConcurrencyGate(func() int { return limit })

	assert.True(t, gate.TryAcquire())
	assert.True(t, gate.TryAcquire())
	assert.False(t, gate.TryAcquire())
	assert.Equal(t, int64(2), gate.InFlight())

	gate.Release()
	assert.True(t, gate.TryAcquire())

	limit = 0
	assert.True(t, gate.TryAcquire(), "zero limit is unbounded")
}
