// Package playground matches request paths against endpoint templates.
//
// This file resolves an incoming method and path to the Endpoint that mocks
// it. Exact paths win; otherwise {param} segments match any single segment and
// the template with literal segments earliest in the path is preferred.
package playground

import (
	"net/http"
	"strings"
)

// splitPath splits a path into its segments, ignoring leading and trailing
// slashes.
func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func isParamSegment(segment string) bool {
	return strings.HasPrefix(segment, "{") && strings.HasSuffix(segment, "}")
}

// matchesEndpointPattern checks if a path template matches concrete segments
func matchesEndpointPattern(pattern, segments []string) bool {
	if len(pattern) != len(segments) {
		return false
	}
	for i, part := range pattern {
		if isParamSegment(part) {
			if segments[i] == "" {
				return false
			}
			continue
		}
		if part != segments[i] {
			return false
		}
	}
	return true
}

// moreSpecific reports whether template a should win over template b: at the
// first segment where they differ in kind, the literal one wins.
func moreSpecific(a, b []string) bool {
	for i := range a {
		aParam, bParam := isParamSegment(a[i]), isParamSegment(b[i])
		if aParam != bParam {
			return !aParam
		}
	}
	return false
}

// Match returns the endpoint serving method and path, or nil. HEAD falls back
// to GET. When the document declares a base path, paths under it match too.
func (d *Document) Match(method, path string) *Endpoint {
	if d == nil {
		return nil
	}
	method = strings.ToUpper(method)

	candidates := []string{path}
	if d.BasePath != "" && strings.HasPrefix(path, d.BasePath) {
		rest := strings.TrimPrefix(path, d.BasePath)
		if rest == "" || strings.HasPrefix(rest, "/") {
			candidates = append(candidates, rest)
		}
	}

	for _, candidate := range candidates {
		if endpoint := d.match(method, candidate); endpoint != nil {
			return endpoint
		}
		if method == http.MethodHead {
			if endpoint := d.match(http.MethodGet, candidate); endpoint != nil {
				return endpoint
			}
		}
	}
	return nil
}

func (d *Document) match(method, path string) *Endpoint {
	segments := splitPath(path)
	normalized := "/" + strings.Join(segments, "/")

	var best *Endpoint
	for _, endpoint := range d.Endpoints {
		if endpoint.Method != method {
			continue
		}
		if endpoint.Path == normalized || endpoint.Path == path {
			return endpoint
		}
		if !matchesEndpointPattern(endpoint.segments, segments) {
			continue
		}
		if best == nil || moreSpecific(endpoint.segments, best.segments) {
			best = endpoint
		}
	}
	return best
}

// PathParams extracts the {param} values of endpoint from a request path,
// with or without the document's base path.
func (d *Document) PathParams(endpoint *Endpoint, path string) map[string]string {
	if endpoint == nil {
		return nil
	}
	if params := PathParams(endpoint.Path, path); params != nil {
		return params
	}
	if d != nil && d.BasePath != "" && strings.HasPrefix(path, d.BasePath) {
		return PathParams(endpoint.Path, strings.TrimPrefix(path, d.BasePath))
	}
	return nil
}

// PathParams extracts {param} values of template from path.
func PathParams(template, path string) map[string]string {
	pattern := splitPath(template)
	segments := splitPath(path)
	if !matchesEndpointPattern(pattern, segments) {
		return nil
	}
	params := make(map[string]string)
	for i, part := range pattern {
		if isParamSegment(part) {
			params[strings.Trim(part, "{}")] = segments[i]
		}
	}
	return params
}
