// Package playground provides HTTP middleware for request processing.
//
// This file contains middleware functions for adding request IDs, CORS headers,
// and tracking response times. The responseTimeWriter wraps http.ResponseWriter
// to capture the status code and response duration for statistics and the
// request journal.
package playground

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"
)

// responseTimeWriter wraps http.ResponseWriter to track response time.
// It captures the time and status when WriteHeader is called.
type responseTimeWriter struct {
	http.ResponseWriter
	startTime      time.Time
	written        bool
	statusCode     int
	responseTimeMs int64
}

func newResponseTimeWriter(w http.ResponseWriter) *responseTimeWriter {
	return &responseTimeWriter{ResponseWriter: w, startTime: time.Now(), statusCode: http.StatusOK}
}

// WriteHeader captures response time and status before writing headers.
func (w *responseTimeWriter) WriteHeader(statusCode int) {
	if w.written {
		return
	}
	w.responseTimeMs = time.Since(w.startTime).Milliseconds()
	w.statusCode = statusCode
	w.Header().Set("x-response-time", strconv.FormatInt(w.responseTimeMs, 10))
	w.written = true
	w.ResponseWriter.WriteHeader(statusCode)
}

// GetResponseTime returns the captured response time in milliseconds.
// Calculates on-demand if WriteHeader hasn't been called yet.
func (w *responseTimeWriter) GetResponseTime() int64 {
	if !w.written {
		return time.Since(w.startTime).Milliseconds()
	}
	return w.responseTimeMs
}

// Status returns the status code written, 200 if none was written yet.
func (w *responseTimeWriter) Status() int {
	return w.statusCode
}

// Write ensures response time is set even if WriteHeader wasn't called.
func (w *responseTimeWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

// Flush implements http.Flusher if the underlying ResponseWriter supports it.
func (w *responseTimeWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Hijack implements http.Hijacker for websocket upgrades.
func (w *responseTimeWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	w.written = true
	w.statusCode = http.StatusSwitchingProtocols
	return hj.Hijack()
}

// Unwrap lets http.ResponseController reach the underlying writer, which the
// websocket upgrade needs.
func (w *responseTimeWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// AddRequestID adds a unique request ID to the response headers.
// If a request ID already exists in the request header, it is reused.
func AddRequestID(w http.ResponseWriter, r *http.Request) string {
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = generateRequestID()
	}
	w.Header().Set("X-Request-ID", requestID)
	return requestID
}

// AddCORSHeaders adds CORS headers to enable cross-origin requests.
// Only adds headers if an Origin header is present in the request.
func AddCORSHeaders(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if origin != "" {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, HEAD, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Requested-With, X-Request-ID")
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Max-Age", "3600")
	}
}

// HandleOptions handles OPTIONS requests for CORS preflight.
func HandleOptions(w http.ResponseWriter, r *http.Request) {
	AddCORSHeaders(w, r)
	w.WriteHeader(http.StatusNoContent)
}

// trackRequests wraps every request in a responseTimeWriter, assigns a
// request ID, counts it while in flight and records its outcome.
func (s *Server) trackRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&s.activeReqs, 1)
		defer atomic.AddInt64(&s.activeReqs, -1)

		rtw := newResponseTimeWriter(w)
		AddRequestID(rtw, r)
		AddCORSHeaders(rtw, r)
		if r.Method == http.MethodOptions {
			HandleOptions(rtw, r)
			return
		}

		IncrementRequestsTotal()
		next.ServeHTTP(rtw, r)

		RecordResponseTime(rtw.GetResponseTime())
		if rtw.Status() < 400 {
			IncrementRequestsSuccess()
		} else {
			IncrementRequestsError()
		}
	})
}
