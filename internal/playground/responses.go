// Package playground provides utility functions for writing HTTP responses.
//
// This file contains helpers for writing JSON responses, building the JSON
// error envelope, setting rate limit headers, and generating request IDs. It
// ensures a response is always sent even when encoding fails.
package playground

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const problemTypeBase = "https://specmock.dev/problems/"

// WriteJSON writes a JSON response.
// Returns an error if JSON encoding fails.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	body, err := json.Marshal(data)
	if err != nil {
		return err
	}
	setResponseTimeHeader(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, err = w.Write(append(body, '\n'))
	return err
}

// WriteJSONSafe writes a JSON response and handles errors.
// If encoding fails, a 500 error envelope is written instead, unless headers
// have already gone out.
func WriteJSONSafe(w http.ResponseWriter, statusCode int, data interface{}) {
	if err := WriteJSON(w, statusCode, data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
		if rtw, ok := w.(*responseTimeWriter); ok && rtw.written {
			log.Printf("Warning: Cannot send fallback error response - headers already written")
			return
		}
		if w.Header().Get("X-Request-ID") == "" {
			w.Header().Set("X-Request-ID", generateRequestID())
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write(marshalFallbackError())
	}
}

// marshalFallbackError returns the error envelope used when a response body
// cannot be encoded.
func marshalFallbackError() []byte {
	data, err := json.Marshal(CreateErrorResponse(http.StatusInternalServerError, "Internal Server Error", "response encoding failed"))
	if err != nil {
		return []byte(`{"errors":[{"title":"Internal Server Error","status":500}]}`)
	}
	return data
}

// CreateErrorResponse builds the error envelope:
// {"errors":[{title,detail,type,status}],"title","detail","type"}.
func CreateErrorResponse(statusCode int, title, detail string) map[string]interface{} {
	problemType := problemTypeBase + strconv.Itoa(statusCode)
	return map[string]interface{}{
		"errors": []map[string]interface{}{
			{
				"title":  title,
				"detail": detail,
				"type":   problemType,
				"status": statusCode,
			},
		},
		"title":  title,
		"detail": detail,
		"type":   problemType,
	}
}

// WriteError writes the JSON error envelope with the standard status text
// as its title.
func WriteError(w http.ResponseWriter, statusCode int, detail string) {
	title := http.StatusText(statusCode)
	if title == "" {
		title = "Error"
	}
	WriteJSONSafe(w, statusCode, CreateErrorResponse(statusCode, title, detail))
}

// setResponseTimeHeader sets x-response-time from the wrapping
// responseTimeWriter, when there is one.
func setResponseTimeHeader(w http.ResponseWriter) {
	if rtw, ok := w.(*responseTimeWriter); ok {
		w.Header().Set("x-response-time", strconv.FormatInt(rtw.GetResponseTime(), 10))
	}
}

// generateRequestID generates a unique request ID for tracking requests.
func generateRequestID() string {
	return uuid.NewString()
}

// AddRateLimitHeaders sets the x-rate-limit-* headers.
// Nothing is set when rate limiting is disabled.
func AddRateLimitHeaders(w http.ResponseWriter, limit int, remaining int, resetTime time.Time) {
	if limit <= 0 {
		return
	}
	if remaining < 0 {
		remaining = 0
	}
	w.Header().Set("x-rate-limit-limit", strconv.Itoa(limit))
	w.Header().Set("x-rate-limit-remaining", strconv.Itoa(remaining))
	if resetTime.IsZero() {
		resetTime = time.Now()
	}
	w.Header().Set("x-rate-limit-reset", fmt.Sprintf("%d", resetTime.Unix()))
}
