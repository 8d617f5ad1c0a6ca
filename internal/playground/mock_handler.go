// Package playground serves mock responses for the loaded API document.
//
// This file implements the catch-all handler behind every non-management
// route. A request passes the concurrency gate, the rate limiter, error
// injection, and simulated latency, and is then answered from (in order) a
// matching override, the endpoint's response schema, its media example, or
// an empty object. Every answered request is journaled and broadcast to the
// live monitor.
package playground

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/xdevplatform/specmock/internal/fakedata"
	"github.com/xdevplatform/specmock/internal/templating"
)

// requestTimeout bounds how long one mock request may take, simulated
// latency included
const requestTimeout = 90 * time.Second

// mockResponse is a fully built response ready to write.
type mockResponse struct {
	Status  int
	Headers map[string]string
	Body    interface{}
	Source  string
}

// handleMock answers one request to the mocked API.
func (s *Server) handleMock(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	config := GetGlobalConfig()
	method := r.Method
	path := r.URL.Path

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if !s.gate.TryAcquire() {
		WriteError(w, http.StatusServiceUnavailable, "Too many requests in flight")
		s.record(w, r, start, http.StatusServiceUnavailable, SourceSimulated)
		return
	}
	defer s.gate.Release()

	override := s.overrides.FindBestMatch(method, path)
	endpoint := s.Document().Match(method, path)
	if override == nil && endpoint == nil {
		WriteError(w, http.StatusNotFound, fmt.Sprintf("No endpoint matches %s %s", method, path))
		s.record(w, r, start, http.StatusNotFound, SourceUnmatched)
		return
	}

	// Rate limits are tracked per endpoint template, not per concrete path
	routePath := path
	if endpoint != nil {
		routePath = endpoint.Path
	} else if override != nil {
		routePath = override.Path
	}
	result := s.limiter.CheckRateLimit(GetAPICredentials(r), method, routePath)
	if !result.Allowed {
		writeRateLimitError(w, result)
		s.record(w, r, start, http.StatusTooManyRequests, SourceSimulated)
		return
	}
	if result.Limit > 0 {
		AddRateLimitHeaders(w, result.Limit, result.Remaining, result.Reset)
	}

	if errorConfig := config.GetErrorConfig(); ShouldSimulateError(errorConfig) {
		writeSimulatedError(w, errorConfig)
		s.record(w, r, start, errorConfig.StatusCode, SourceSimulated)
		return
	}

	extraDelayMs := 0
	if override != nil {
		extraDelayMs = override.DelayMs
	}
	if err := simulateLatency(ctx, latencyFor(config.GetLatencyConfig(), extraDelayMs)); err != nil {
		if r.Context().Err() != nil {
			// Client disconnected, no response needed
			if HandlerDebug {
				log.Printf("DEBUG: client went away during simulated latency: %s %s", method, path)
			}
			return
		}
		WriteError(w, http.StatusGatewayTimeout, "Request timed out during simulated latency")
		s.record(w, r, start, http.StatusGatewayTimeout, SourceSimulated)
		return
	}

	resp := s.buildResponse(override, endpoint, path, config.GetGenerationConfig())
	if HandlerDebug {
		log.Printf("DEBUG: %s %s -> %d (%s)", method, path, resp.Status, resp.Source)
	}
	writeMockResponse(w, r, resp)
	s.record(w, r, start, resp.Status, resp.Source)
}

// buildResponse picks the body source for a matched request. Override bodies
// and headers are always templated; generated bodies and examples only when
// generation.template_generated is set. {{param:name}} expands to the value
// of the {name} path segment of the request.
func (s *Server) buildResponse(override *Override, endpoint *Endpoint, path string, generation *GenerationConfig) mockResponse {
	interpreter := s.Interpreter()

	if override != nil {
		interpreter = interpreter.With(paramEntries(PathParams(override.Path, path)))
		resp := mockResponse{Status: override.Status, Source: SourceOverride}
		if len(override.Headers) > 0 {
			resp.Headers, _ = interpreter.Process(override.Headers).(map[string]string)
		}
		if override.Body != nil {
			resp.Body = interpreter.Process(override.Body)
		}
		return resp
	}

	resp := mockResponse{Status: endpoint.Status, Source: endpointSource(endpoint)}
	if !endpoint.IsJSON() {
		resp.Headers = map[string]string{"Content-Type": endpoint.ContentType}
	}
	resp.Body = endpointBody(endpoint, s.Generator())
	if generation.TemplateGenerated && resp.Source != SourceEmpty {
		interpreter = interpreter.With(paramEntries(s.Document().PathParams(endpoint, path)))
		resp.Body = interpreter.Process(resp.Body)
	}
	return resp
}

// paramEntries returns the {{param:name}} placeholder over params. A name the
// path does not carry is left as written.
func paramEntries(params map[string]string) map[string]templating.Func {
	if len(params) == 0 {
		return nil
	}
	return map[string]templating.Func{
		"param": func(_ *fakedata.Source, args []string) string {
			name := strings.TrimSpace(strings.Join(args, ":"))
			if value, ok := params[name]; ok {
				return value
			}
			return "{{param:" + name + "}}"
		},
	}
}

// writeMockResponse writes resp. HEAD, 204 and 304 responses have no body.
// A string body with a non-JSON Content-Type header is written verbatim.
func writeMockResponse(w http.ResponseWriter, r *http.Request, resp mockResponse) {
	for name, value := range resp.Headers {
		w.Header().Set(name, value)
	}

	noBody := r.Method == http.MethodHead ||
		resp.Status == http.StatusNoContent ||
		resp.Status == http.StatusNotModified ||
		resp.Body == nil
	if noBody {
		setResponseTimeHeader(w)
		w.WriteHeader(resp.Status)
		return
	}

	if text, ok := resp.Body.(string); ok {
		if contentType := w.Header().Get("Content-Type"); contentType != "" && !strings.Contains(contentType, "json") {
			setResponseTimeHeader(w)
			w.WriteHeader(resp.Status)
			if _, err := w.Write([]byte(text)); err != nil {
				log.Printf("Warning: failed to write response body: %v", err)
			}
			return
		}
	}

	WriteJSONSafe(w, resp.Status, resp.Body)
}

// record journals a served request and broadcasts it to monitor clients.
func (s *Server) record(w http.ResponseWriter, r *http.Request, start time.Time, status int, source string) {
	entry := RequestEntry{
		ID:         w.Header().Get("X-Request-ID"),
		Time:       start.UTC(),
		Method:     r.Method,
		Path:       r.URL.Path,
		Status:     status,
		DurationMs: time.Since(start).Milliseconds(),
		Source:     source,
	}
	if entry.ID == "" {
		entry.ID = generateRequestID()
	}

	if s.journal != nil {
		// The request context may already be cancelled; the entry is still wanted
		if err := s.journal.Record(context.Background(), entry); err != nil {
			log.Printf("Warning: failed to journal request: %v", err)
		}
	}
	if s.monitor != nil {
		s.monitor.Publish(entry)
	}
}
