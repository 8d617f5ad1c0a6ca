// Package playground provides debug flags for controlling verbose logging.
//
// This file defines global debug flags (HandlerDebug, ResponseDebug, SchemaDebug)
// that turn on detailed logging of request routing, response body selection,
// and document loading.
package playground

var (
	// HandlerDebug logs routing and simulation decisions for mock requests
	HandlerDebug = false

	// ResponseDebug logs which source produced each response body
	ResponseDebug = false

	// SchemaDebug logs document loading, caching and endpoint discovery
	SchemaDebug = false
)

// SetDebugFlags sets all debug flags at once
func SetDebugFlags(enabled bool) {
	HandlerDebug = enabled
	ResponseDebug = enabled
	SchemaDebug = enabled
}
