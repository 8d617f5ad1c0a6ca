// Package playground provides health check and server statistics endpoints.
//
// This file implements the /_specmock/health and /_specmock/rate-limits
// endpoints for monitoring server status, tracking request statistics (total
// requests, success/error counts, average response times), and viewing the
// effective rate limits.
package playground

import (
	"net/http"
	"sort"
	"sync/atomic"
	"time"
)

// Version is reported by the health endpoint and the CLI.
var Version = "0.1.0"

// ServerStats tracks server statistics.
// All counters are atomic for thread-safe access.
type ServerStats struct {
	RequestsTotal     int64     `json:"requests_total"`
	RequestsSuccess   int64     `json:"requests_success"`
	RequestsError     int64     `json:"requests_error"`
	ResponseTimeTotal int64     `json:"response_time_total_ms"` // Total response time in milliseconds
	ResponseTimeCount int64     `json:"response_time_count"`    // Number of responses timed
	StartTime         time.Time `json:"start_time"`
}

// GetAverageResponseTime returns average response time in milliseconds
func (s *ServerStats) GetAverageResponseTime() float64 {
	if s.ResponseTimeCount == 0 {
		return 0
	}
	return float64(s.ResponseTimeTotal) / float64(s.ResponseTimeCount)
}

var serverStats = &ServerStats{
	StartTime: time.Now(),
}

// IncrementRequestsTotal increments the total request counter
func IncrementRequestsTotal() {
	atomic.AddInt64(&serverStats.RequestsTotal, 1)
}

// IncrementRequestsSuccess increments the success request counter.
func IncrementRequestsSuccess() {
	atomic.AddInt64(&serverStats.RequestsSuccess, 1)
}

// IncrementRequestsError increments the error request counter.
func IncrementRequestsError() {
	atomic.AddInt64(&serverStats.RequestsError, 1)
}

// RecordResponseTime records a response time measurement.
func RecordResponseTime(responseTimeMs int64) {
	atomic.AddInt64(&serverStats.ResponseTimeTotal, responseTimeMs)
	atomic.AddInt64(&serverStats.ResponseTimeCount, 1)
}

// GetServerStats returns a snapshot of the current server statistics.
func GetServerStats() *ServerStats {
	return &ServerStats{
		RequestsTotal:     atomic.LoadInt64(&serverStats.RequestsTotal),
		RequestsSuccess:   atomic.LoadInt64(&serverStats.RequestsSuccess),
		RequestsError:     atomic.LoadInt64(&serverStats.RequestsError),
		ResponseTimeTotal: atomic.LoadInt64(&serverStats.ResponseTimeTotal),
		ResponseTimeCount: atomic.LoadInt64(&serverStats.ResponseTimeCount),
		StartTime:         serverStats.StartTime,
	}
}

// HandleHealth returns a health check response.
// Includes server status, uptime, request statistics and, when a server is
// registered, what it has loaded.
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	stats := GetServerStats()
	uptime := time.Since(stats.StartTime)

	response := map[string]interface{}{
		"status":         "ok",
		"service":        "specmock",
		"version":        Version,
		"uptime_seconds": int64(uptime.Seconds()),
		"stats": map[string]interface{}{
			"requests_total":       stats.RequestsTotal,
			"requests_success":     stats.RequestsSuccess,
			"requests_error":       stats.RequestsError,
			"response_time_avg_ms": stats.GetAverageResponseTime(),
			"response_time_count":  stats.ResponseTimeCount,
		},
	}

	if server := GetGlobalServer(); server != nil {
		if doc := server.Document(); doc != nil {
			response["document"] = map[string]interface{}{
				"source":    doc.Source,
				"title":     doc.Title,
				"version":   doc.Version,
				"format":    doc.Format,
				"endpoints": len(doc.Endpoints),
			}
		}
		response["overrides"] = server.overrides.Count()
		response["in_flight"] = atomic.LoadInt64(&server.activeReqs)
		if server.monitor != nil {
			response["monitor_clients"] = server.monitor.ClientCount()
		}
	}

	WriteJSONSafe(w, http.StatusOK, response)
}

// HandleRateLimitStatus returns the effective rate limit configuration,
// including any per-endpoint overrides.
func HandleRateLimitStatus(w http.ResponseWriter, r *http.Request) {
	rateLimitConfig := GetGlobalConfig().GetRateLimitConfig()

	keys := make([]string, 0, len(rateLimitConfig.EndpointOverrides))
	for key := range rateLimitConfig.EndpointOverrides {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	overrides := make([]map[string]interface{}, 0, len(keys))
	for _, key := range keys {
		override := rateLimitConfig.EndpointOverrides[key]
		overrides = append(overrides, map[string]interface{}{
			"endpoint":   key,
			"limit":      override.Limit,
			"window_sec": override.WindowSec,
		})
	}

	WriteJSONSafe(w, http.StatusOK, map[string]interface{}{
		"enabled": rateLimitConfig.Enabled,
		"default_limit": map[string]interface{}{
			"limit":      rateLimitConfig.Limit,
			"window_sec": rateLimitConfig.WindowSec,
		},
		"endpoint_overrides": overrides,
	})
}
