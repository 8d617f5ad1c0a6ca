// Package playground provides endpoint discovery functionality.
//
// This file implements the /_specmock/endpoints endpoint that lists every
// endpoint discovered in the loaded document, with the status and body
// source the mock handler will use for it. This is useful for exploring a
// document before pointing a client at the mock.
package playground

import (
	"net/http"
	"strings"
)

// EndpointInfo represents information about a mocked endpoint
type EndpointInfo struct {
	Method      string   `json:"method"`
	Path        string   `json:"path"`
	OperationID string   `json:"operation_id,omitempty"`
	Summary     string   `json:"summary,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Status      int      `json:"status"`
	ContentType string   `json:"content_type,omitempty"`
	Source      string   `json:"source"`               // schema, example or empty
	Overridden  bool     `json:"overridden"`           // An override replaces the generated body
	RateLimit   int      `json:"rate_limit,omitempty"` // Per-endpoint limit, when one is configured
}

// ListEndpoints describes the document's endpoints, optionally filtered by
// method and tag (both case-insensitive, empty matches all).
func ListEndpoints(doc *Document, overrides *OverrideStore, config *PlaygroundConfig, method, tag string) []EndpointInfo {
	endpoints := []EndpointInfo{}
	if doc == nil {
		return endpoints
	}

	rateLimitConfig := config.GetRateLimitConfig()
	for _, endpoint := range doc.Endpoints {
		if method != "" && !strings.EqualFold(endpoint.Method, method) {
			continue
		}
		if tag != "" && !hasTag(endpoint.Tags, tag) {
			continue
		}

		info := EndpointInfo{
			Method:      endpoint.Method,
			Path:        endpoint.Path,
			OperationID: endpoint.OperationID,
			Summary:     endpoint.Summary,
			Tags:        endpoint.Tags,
			Status:      endpoint.Status,
			ContentType: endpoint.ContentType,
			Source:      endpointSource(endpoint),
		}
		if overrides != nil {
			if override := overrides.FindBestMatch(endpoint.Method, endpoint.Path); override != nil && override.Path == endpoint.Path {
				info.Overridden = true
			}
		}
		if limit := GetEndpointRateLimit(endpoint.Method, endpoint.Path, rateLimitConfig); limit != nil {
			info.RateLimit = limit.Limit
		}
		endpoints = append(endpoints, info)
	}
	return endpoints
}

func endpointSource(endpoint *Endpoint) string {
	switch {
	case endpoint.Schema != nil:
		return SourceSchema
	case endpoint.Example != nil:
		return SourceExample
	default:
		return SourceEmpty
	}
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// HandleEndpointsList returns a list of all available endpoints.
// Supports ?method= and ?tag= filters.
func HandleEndpointsList(server *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc := server.Document()
		if doc == nil {
			WriteJSONSafe(w, http.StatusOK, map[string]interface{}{
				"endpoints": []EndpointInfo{},
				"count":     0,
				"note":      "No API document loaded",
			})
			return
		}

		query := r.URL.Query()
		endpoints := ListEndpoints(doc, server.overrides, GetGlobalConfig(), query.Get("method"), query.Get("tag"))

		WriteJSONSafe(w, http.StatusOK, map[string]interface{}{
			"endpoints": endpoints,
			"count":     len(endpoints),
			"document": map[string]interface{}{
				"title":     doc.Title,
				"version":   doc.Version,
				"format":    doc.Format,
				"base_path": doc.BasePath,
			},
		})
	}
}
