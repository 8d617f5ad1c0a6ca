// Package playground generates instances and example files from API documents.
//
// This file resolves what a generate request targets (an inline schema, a
// document reference, or an endpoint) and produces one instance of it. It
// also writes one override file per endpoint path so generated examples can
// be reviewed, edited, and served back through persistence.overrides_dir.
package playground

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/xdevplatform/specmock/internal/datagen"
	"github.com/xdevplatform/specmock/internal/templating"
)

var (
	// ErrInvalidGenerateRequest is returned when a generate request names
	// zero or several targets.
	ErrInvalidGenerateRequest = errors.New("exactly one of schema, ref or endpoint is required")
	// ErrTargetNotFound is returned when the reference or endpoint does not
	// exist in the document.
	ErrTargetNotFound = errors.New("generate target not found")
)

// GenerateRequest selects what to generate. Exactly one of Schema, Ref and
// Endpoint must be set.
type GenerateRequest struct {
	Schema   map[string]interface{} `json:"schema,omitempty"`
	Ref      string                 `json:"ref,omitempty"`      // e.g. "#/components/schemas/Pet"
	Endpoint string                 `json:"endpoint,omitempty"` // "GET /pets/{petId}" or a concrete path
	Template bool                   `json:"template,omitempty"` // Expand placeholders in the result
}

// Generate produces one instance for req. interp may be nil when
// req.Template is false.
func Generate(doc *Document, gen *datagen.Generator, interp *templating.Interpreter, req GenerateRequest) (interface{}, error) {
	targets := 0
	for _, set := range []bool{req.Schema != nil, req.Ref != "", req.Endpoint != ""} {
		if set {
			targets++
		}
	}
	if targets != 1 {
		return nil, ErrInvalidGenerateRequest
	}

	var value interface{}
	switch {
	case req.Schema != nil:
		value = gen.Generate(req.Schema)
	case req.Ref != "":
		if doc.ResolveRef(req.Ref) == nil {
			return nil, fmt.Errorf("%w: %s", ErrTargetNotFound, req.Ref)
		}
		value = gen.GenerateRef(req.Ref)
	default:
		endpoint, err := lookupEndpoint(doc, req.Endpoint)
		if err != nil {
			return nil, err
		}
		value = endpointBody(endpoint, gen)
	}

	if req.Template && interp != nil {
		value = interp.Process(value)
	}
	return value, nil
}

// lookupEndpoint parses "METHOD /path" (method defaults to GET) and finds the
// endpoint by template first, then by matching a concrete path.
func lookupEndpoint(doc *Document, spec string) (*Endpoint, error) {
	method, path := http.MethodGet, strings.TrimSpace(spec)
	if fields := strings.Fields(spec); len(fields) == 2 {
		method, path = strings.ToUpper(fields[0]), fields[1]
	}
	if endpoint := doc.FindEndpoint(method, path); endpoint != nil {
		return endpoint, nil
	}
	if endpoint := doc.Match(method, path); endpoint != nil {
		return endpoint, nil
	}
	return nil, fmt.Errorf("%w: %s %s", ErrTargetNotFound, method, path)
}

// endpointBody generates from the endpoint's schema, else returns its
// example, else an empty object.
func endpointBody(endpoint *Endpoint, gen *datagen.Generator) interface{} {
	switch {
	case endpoint.Schema != nil:
		return gen.Generate(endpoint.Schema)
	case endpoint.Example != nil:
		return endpoint.Example
	default:
		return map[string]interface{}{}
	}
}

// GenerateAllExamples writes one override file per endpoint path to
// outputDir. Each file holds one override per method, with a generated body.
// Returns the number of files written.
func GenerateAllExamples(doc *Document, gen *datagen.Generator, outputDir string) (int, error) {
	if doc == nil {
		return 0, fmt.Errorf("document is nil")
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create output directory: %w", err)
	}

	// Endpoints are sorted by path, so one pass groups them
	var paths []string
	byPath := make(map[string][]Override)
	for _, endpoint := range doc.Endpoints {
		if _, seen := byPath[endpoint.Path]; !seen {
			paths = append(paths, endpoint.Path)
		}
		byPath[endpoint.Path] = append(byPath[endpoint.Path], Override{
			ID:     generateFilename(endpoint.Method + "_" + endpoint.Path),
			Method: endpoint.Method,
			Path:   endpoint.Path,
			Status: endpoint.Status,
			Body:   endpointBody(endpoint, gen),
		})
	}

	fileCount := 0
	totalExamples := 0
	for _, path := range paths {
		examples := byPath[path]
		filename := generateFilename(path) + ".json"
		filePath := filepath.Join(outputDir, filename)

		jsonData, err := json.MarshalIndent(examples, "", "  ")
		if err != nil {
			log.Printf("Warning: failed to marshal examples for %s: %v", path, err)
			continue
		}
		if err := os.WriteFile(filePath, jsonData, 0644); err != nil {
			log.Printf("Warning: failed to write %s: %v", filePath, err)
			continue
		}

		if SchemaDebug {
			log.Printf("DEBUG: generated %s with %d example(s) for %s", filename, len(examples), path)
		}
		fileCount++
		totalExamples += len(examples)
	}

	log.Printf("Generated %d files with %d total examples in %s", fileCount, totalExamples, outputDir)
	return fileCount, nil
}

// generateFilename turns an endpoint path into a file-safe name without
// extension: "/pets/{petId}/photos" -> "pets_petId_photos".
func generateFilename(endpoint string) string {
	replacer := strings.NewReplacer("{", "", "}", "", "/", "_", "-", "_", ".", "_", " ", "_")
	name := replacer.Replace(strings.Trim(endpoint, "/"))

	for strings.Contains(name, "__") {
		name = strings.ReplaceAll(name, "__", "_")
	}
	name = strings.Trim(name, "_")

	if len(name) < 2 {
		name = "root"
	}
	return name
}
