// Package playground resolves per-endpoint rate limits.
//
// This file looks up the limit that applies to one endpoint from the
// endpoint_overrides of the rate limit config. Keys are "METHOD:PATH" or a
// bare "PATH" applying to all methods; PATH may be an endpoint template with
// {param} segments or a prefix.
package playground

import (
	"log"
	"strings"
)

// EndpointRateLimit defines the rate limit for one endpoint
type EndpointRateLimit struct {
	Limit     int    // Number of requests allowed
	WindowSec int    // Time window in seconds
	Endpoint  string // Override key that matched (e.g., "GET:/pets/{id}", "/admin")
	Method    string // Method the limit was resolved for
}

// GetEndpointRateLimit returns the override applying to method and path, or
// nil when the default limit applies. Lookup order:
//  1. "METHOD:PATH"
//  2. "PATH"
//  3. "METHOD:TEMPLATE" and "TEMPLATE" whose {param} segments match path
//  4. the longest "PATH" that is a prefix of path
func GetEndpointRateLimit(method, path string, config *RateLimitConfig) *EndpointRateLimit {
	if config == nil || len(config.EndpointOverrides) == 0 {
		return nil
	}

	// HEAD requests share GET limits
	methodToCheck := strings.ToUpper(method)
	if methodToCheck == "HEAD" {
		methodToCheck = "GET"
	}
	normalizedPath := normalizePath(path)

	if rateLimitDebug() {
		log.Printf("DEBUG: rate limit lookup method=%s path=%s normalized=%s", method, path, normalizedPath)
	}

	found := func(key string, override EndpointRateLimitOverride) *EndpointRateLimit {
		if rateLimitDebug() {
			log.Printf("DEBUG: rate limit override %s -> limit %d", key, override.Limit)
		}
		return &EndpointRateLimit{
			Endpoint:  key,
			Method:    methodToCheck,
			Limit:     override.Limit,
			WindowSec: override.WindowSec,
		}
	}

	methodKey := methodToCheck + ":" + normalizedPath
	if override, exists := config.EndpointOverrides[methodKey]; exists {
		return found(methodKey, override)
	}
	if override, exists := config.EndpointOverrides[normalizedPath]; exists {
		return found(normalizedPath, override)
	}

	segments := splitPath(normalizedPath)
	var bestKey string
	var bestPattern []string
	var prefixKey string
	for key := range config.EndpointOverrides {
		keyMethod, keyPath := splitOverrideKey(key)
		if keyMethod != "" && keyMethod != methodToCheck {
			continue
		}
		pattern := splitPath(keyPath)
		if matchesEndpointPattern(pattern, segments) {
			if bestKey == "" || moreSpecific(pattern, bestPattern) ||
				(!moreSpecific(bestPattern, pattern) && key < bestKey) {
				bestKey, bestPattern = key, pattern
			}
			continue
		}
		if keyMethod == "" && isPathPrefix(keyPath, normalizedPath) {
			if len(keyPath) > len(prefixKey) || (len(keyPath) == len(prefixKey) && keyPath < prefixKey) {
				prefixKey = keyPath
			}
		}
	}
	if bestKey != "" {
		return found(bestKey, config.EndpointOverrides[bestKey])
	}
	if prefixKey != "" {
		return found(prefixKey, config.EndpointOverrides[prefixKey])
	}

	if rateLimitDebug() {
		log.Printf("DEBUG: no rate limit override for %s %s, using default", method, normalizedPath)
	}
	return nil
}

// splitOverrideKey splits "METHOD:PATH" into method and path. Keys without a
// method return an empty method.
func splitOverrideKey(key string) (string, string) {
	if strings.HasPrefix(key, "/") {
		return "", key
	}
	method, path, ok := strings.Cut(key, ":")
	if !ok {
		return "", key
	}
	return strings.ToUpper(method), path
}

// isPathPrefix reports whether prefix covers path on a segment boundary.
func isPathPrefix(prefix, path string) bool {
	prefix = normalizePath(prefix)
	if prefix == "/" {
		return true
	}
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}

// normalizePath strips the query string and a trailing slash
func normalizePath(path string) string {
	if idx := strings.IndexByte(path, '?'); idx != -1 {
		path = path[:idx]
	}
	if len(path) > 1 && path[len(path)-1] == '/' {
		path = path[:len(path)-1]
	}
	return path
}

func rateLimitDebug() bool {
	return HandlerDebug
}
