// Package playground handles loading and parsing API description documents.
//
// This file fetches an OpenAPI 3 or Swagger 2 document from a local path, an
// http(s) URL or S3, caches downloaded documents locally, normalizes YAML to
// JSON, and discovers the endpoints to mock. Endpoint discovery goes through
// kin-openapi; response schemas are taken from the raw document so that the
// generator resolves references against the same tree.
package playground

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi2conv"
	"github.com/getkin/kin-openapi/openapi3"
	"sigs.k8s.io/yaml"

	"github.com/xdevplatform/specmock/internal/datagen"
)

const (
	fetchTimeout   = 30 * time.Second
	cacheDirName   = "cache"
	jsonMediaType  = "application/json"
	formatOpenAPI3 = "openapi3"
	formatSwagger2 = "swagger2"
)

// Document is a loaded API description.
type Document struct {
	Source      string                 `json:"source"`
	Format      string                 `json:"format"`       // openapi3 or swagger2
	SpecVersion string                 `json:"spec_version"` // Value of the openapi/swagger field
	Title       string                 `json:"title"`
	Version     string                 `json:"version"` // info.version
	BasePath    string                 `json:"base_path,omitempty"`
	Raw         map[string]interface{} `json:"-"` // JSON-normalized document, the root for $ref resolution
	Endpoints   []*Endpoint            `json:"endpoints"`
}

// Endpoint is one method+path of a Document together with what is needed to
// mock its success response.
type Endpoint struct {
	Method      string                 `json:"method"`
	Path        string                 `json:"path"`
	OperationID string                 `json:"operation_id,omitempty"`
	Summary     string                 `json:"summary,omitempty"`
	Tags        []string               `json:"tags,omitempty"`
	Status      int                    `json:"status"`
	ContentType string                 `json:"content_type,omitempty"`
	Schema      map[string]interface{} `json:"schema,omitempty"`
	Example     interface{}            `json:"example,omitempty"`
	segments    []string
}

// LoadOptions controls how LoadDocument fetches remote documents.
type LoadOptions struct {
	Refresh    bool          // Ignore the cache and download again
	CacheTTL   time.Duration // Freshness of cached downloads (default: 24h)
	CacheDir   string        // default: ~/.specmock/cache
	S3Region   string
	S3Endpoint string
	HTTPClient *http.Client
}

// LoadOptionsFromConfig builds LoadOptions from the spec section of config.
func LoadOptionsFromConfig(config *PlaygroundConfig, refresh bool) LoadOptions {
	specConfig := config.GetSpecConfig()
	return LoadOptions{
		Refresh:    refresh,
		CacheTTL:   time.Duration(specConfig.CacheTTLHours) * time.Hour,
		S3Region:   specConfig.S3Region,
		S3Endpoint: specConfig.S3Endpoint,
	}
}

func (o LoadOptions) cacheDir() string {
	if o.CacheDir != "" {
		return o.CacheDir
	}
	return defaultUserPath(cacheDirName)
}

func (o LoadOptions) cacheTTL() time.Duration {
	if o.CacheTTL > 0 {
		return o.CacheTTL
	}
	return defaultCacheTTLHours * time.Hour
}

// LoadDocument loads and indexes the document at source.
func LoadDocument(ctx context.Context, source string, opts LoadOptions) (*Document, error) {
	if source == "" {
		return nil, fmt.Errorf("no document source given")
	}

	data, err := fetchSource(ctx, source, opts)
	if err != nil {
		return nil, err
	}

	doc, err := ParseDocument(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", source, err)
	}
	doc.Source = source
	return doc, nil
}

// ParseDocument indexes a JSON or YAML document.
func ParseDocument(ctx context.Context, data []byte) (*Document, error) {
	jsonData, raw, err := decodeDocument(data)
	if err != nil {
		return nil, err
	}

	format, specVersion, err := detectFormat(raw)
	if err != nil {
		return nil, err
	}

	doc := &Document{
		Format:      format,
		SpecVersion: specVersion,
		Raw:         raw,
		BasePath:    basePath(raw, format),
	}
	if info, ok := raw["info"].(map[string]interface{}); ok {
		doc.Title, _ = info["title"].(string)
		doc.Version, _ = info["version"].(string)
	}

	spec, err := loadSpec(jsonData, format)
	if err != nil {
		// kin-openapi rejects documents with dangling references; those
		// still mock fine, the dangling parts just generate {}.
		log.Printf("Warning: %v; discovering endpoints from the raw document", err)
		doc.Endpoints = discoverEndpoints(operationsFromRaw(raw), raw, format)
	} else {
		if err := spec.Validate(ctx); err != nil {
			log.Printf("Warning: document does not validate, continuing anyway: %v", err)
		}
		doc.Endpoints = discoverEndpoints(operationsFromSpec(spec), raw, format)
	}

	if SchemaDebug {
		log.Printf("DEBUG: %s document %q (%s) has %d endpoints", format, doc.Title, specVersion, len(doc.Endpoints))
	}
	return doc, nil
}

// decodeDocument converts YAML (or JSON) into JSON bytes and the generic map.
func decodeDocument(data []byte) ([]byte, map[string]interface{}, error) {
	jsonData, err := yaml.YAMLToJSON(data)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode document: %w", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(jsonData, &raw); err != nil {
		return nil, nil, fmt.Errorf("document is not an object: %w", err)
	}
	if raw == nil {
		return nil, nil, fmt.Errorf("document is empty")
	}
	return jsonData, raw, nil
}

// detectFormat reads the openapi/swagger field. Only OpenAPI 3.x and Swagger
// 2.x are supported.
func detectFormat(raw map[string]interface{}) (string, string, error) {
	if v, ok := raw["openapi"].(string); ok {
		version, err := semver.NewVersion(v)
		if err != nil {
			return "", "", fmt.Errorf("invalid openapi version %q: %w", v, err)
		}
		if version.Major() != 3 {
			return "", "", fmt.Errorf("unsupported openapi version %s", v)
		}
		return formatOpenAPI3, v, nil
	}
	if v, ok := raw["swagger"].(string); ok {
		version, err := semver.NewVersion(v)
		if err != nil {
			return "", "", fmt.Errorf("invalid swagger version %q: %w", v, err)
		}
		if version.Major() != 2 {
			return "", "", fmt.Errorf("unsupported swagger version %s", v)
		}
		return formatSwagger2, v, nil
	}
	return "", "", fmt.Errorf("missing openapi or swagger field")
}

// basePath is Swagger's basePath, or the path of the first OpenAPI server URL.
func basePath(raw map[string]interface{}, format string) string {
	var p string
	if format == formatSwagger2 {
		p, _ = raw["basePath"].(string)
	} else if servers, ok := raw["servers"].([]interface{}); ok && len(servers) > 0 {
		if server, ok := servers[0].(map[string]interface{}); ok {
			serverURL, _ := server["url"].(string)
			if i := strings.Index(serverURL, "://"); i >= 0 {
				serverURL = serverURL[i+3:]
				if j := strings.Index(serverURL, "/"); j >= 0 {
					p = serverURL[j:]
				}
			} else {
				p = serverURL
			}
		}
	}
	p = strings.TrimSuffix(p, "/")
	if !strings.HasPrefix(p, "/") {
		return ""
	}
	return p
}

// loadSpec parses the document with kin-openapi, converting Swagger 2 to
// OpenAPI 3.
func loadSpec(jsonData []byte, format string) (*openapi3.T, error) {
	if format == formatSwagger2 {
		var spec2 openapi2.T
		if err := json.Unmarshal(jsonData, &spec2); err != nil {
			return nil, fmt.Errorf("loading Swagger document: %w", err)
		}
		spec, err := openapi2conv.ToV3(&spec2)
		if err != nil {
			return nil, fmt.Errorf("converting Swagger document: %w", err)
		}
		return spec, nil
	}

	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = false
	spec, err := loader.LoadFromData(jsonData)
	if err != nil {
		return nil, fmt.Errorf("loading OpenAPI document: %w", err)
	}
	return spec, nil
}

// operationInfo is what endpoint discovery needs from one operation.
type operationInfo struct {
	path        string
	method      string
	operationID string
	summary     string
	tags        []string
	codes       []string
}

func operationsFromSpec(spec *openapi3.T) []operationInfo {
	if spec.Paths == nil {
		return nil
	}
	var ops []operationInfo
	for path, item := range spec.Paths.Map() {
		if item == nil {
			continue
		}
		for method, op := range item.Operations() {
			if op == nil {
				continue
			}
			info := operationInfo{
				path:        path,
				method:      strings.ToUpper(method),
				operationID: op.OperationID,
				summary:     op.Summary,
				tags:        op.Tags,
			}
			if op.Responses != nil {
				for code := range op.Responses.Map() {
					info.codes = append(info.codes, code)
				}
			}
			ops = append(ops, info)
		}
	}
	return ops
}

func operationsFromRaw(raw map[string]interface{}) []operationInfo {
	paths, _ := raw["paths"].(map[string]interface{})
	var ops []operationInfo
	for path, rawItem := range paths {
		item, ok := rawItem.(map[string]interface{})
		if !ok {
			continue
		}
		for _, method := range methodOrder {
			op, ok := item[strings.ToLower(method)].(map[string]interface{})
			if !ok {
				continue
			}
			info := operationInfo{path: path, method: method}
			info.operationID, _ = op["operationId"].(string)
			info.summary, _ = op["summary"].(string)
			if tags, ok := op["tags"].([]interface{}); ok {
				for _, tag := range tags {
					if s, ok := tag.(string); ok {
						info.tags = append(info.tags, s)
					}
				}
			}
			if responses, ok := op["responses"].(map[string]interface{}); ok {
				for code := range responses {
					info.codes = append(info.codes, code)
				}
			}
			ops = append(ops, info)
		}
	}
	return ops
}

// discoverEndpoints builds endpoints for ops, sorted by path and method.
// Schemas and examples come from the raw document.
func discoverEndpoints(ops []operationInfo, raw map[string]interface{}, format string) []*Endpoint {
	resolver := datagen.NewResolver(raw)
	rawPaths, _ := raw["paths"].(map[string]interface{})

	endpoints := make([]*Endpoint, 0, len(ops))
	for _, op := range ops {
		statusKey, status := chooseSuccessStatus(op.codes)
		endpoint := &Endpoint{
			Method:      op.method,
			Path:        op.path,
			OperationID: op.operationID,
			Summary:     op.summary,
			Tags:        op.tags,
			Status:      status,
			segments:    splitPath(op.path),
		}

		rawItem, _ := rawPaths[op.path].(map[string]interface{})
		rawOp, _ := rawItem[strings.ToLower(op.method)].(map[string]interface{})
		rawResponses, _ := rawOp["responses"].(map[string]interface{})
		if rawResponse, ok := rawResponses[statusKey].(map[string]interface{}); ok {
			fillResponse(endpoint, followResponseRef(resolver, rawResponse), format)
		}
		endpoints = append(endpoints, endpoint)
	}

	sort.Slice(endpoints, func(i, j int) bool {
		if endpoints[i].Path != endpoints[j].Path {
			return endpoints[i].Path < endpoints[j].Path
		}
		return methodRank(endpoints[i].Method) < methodRank(endpoints[j].Method)
	})
	return endpoints
}

var methodOrder = []string{"GET", "HEAD", "POST", "PUT", "PATCH", "DELETE", "OPTIONS", "TRACE"}

func methodRank(method string) int {
	for i, m := range methodOrder {
		if m == method {
			return i
		}
	}
	return len(methodOrder)
}

// chooseSuccessStatus picks the lowest 2xx response, then 2XX, then default.
// It returns the key in the responses object and the status code to send.
func chooseSuccessStatus(codes []string) (string, int) {
	best := ""
	bestCode := 0
	for _, code := range codes {
		n, err := strconv.Atoi(code)
		if err != nil || n < 200 || n > 299 {
			continue
		}
		if bestCode == 0 || n < bestCode {
			best, bestCode = code, n
		}
	}
	if bestCode != 0 {
		return best, bestCode
	}
	for _, code := range codes {
		if strings.EqualFold(code, "2XX") {
			return code, http.StatusOK
		}
	}
	return "default", http.StatusOK
}

// followResponseRef resolves a response-level $ref such as
// #/components/responses/Pet.
func followResponseRef(resolver *datagen.Resolver, response map[string]interface{}) map[string]interface{} {
	ref, ok := response["$ref"].(string)
	if !ok {
		return response
	}
	if resolved := resolver.Resolve(ref, datagen.NewRefSet()); resolved != nil {
		return resolved
	}
	log.Printf("Warning: unresolvable response reference %s", ref)
	return nil
}

// fillResponse copies schema and example from a raw response object.
func fillResponse(endpoint *Endpoint, response map[string]interface{}, format string) {
	if response == nil {
		return
	}

	if format == formatSwagger2 {
		endpoint.ContentType = jsonMediaType
		endpoint.Schema, _ = response["schema"].(map[string]interface{})
		if examples, ok := response["examples"].(map[string]interface{}); ok {
			endpoint.Example = examples[jsonMediaType]
		}
		return
	}

	content, _ := response["content"].(map[string]interface{})
	contentType := chooseMediaType(content)
	if contentType == "" {
		return
	}
	endpoint.ContentType = contentType
	media, _ := content[contentType].(map[string]interface{})
	endpoint.Schema, _ = media["schema"].(map[string]interface{})
	if example, ok := media["example"]; ok {
		endpoint.Example = example
	} else if examples, ok := media["examples"].(map[string]interface{}); ok {
		names := make([]string, 0, len(examples))
		for name := range examples {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if ex, ok := examples[name].(map[string]interface{}); ok {
				if value, ok := ex["value"]; ok {
					endpoint.Example = value
					break
				}
			}
		}
	}
}

// chooseMediaType prefers application/json, then any JSON media type, then
// the first media type in sorted order.
func chooseMediaType(content map[string]interface{}) string {
	if len(content) == 0 {
		return ""
	}
	if _, ok := content[jsonMediaType]; ok {
		return jsonMediaType
	}
	types := make([]string, 0, len(content))
	for t := range content {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		if strings.Contains(t, "json") {
			return t
		}
	}
	return types[0]
}

// IsJSON reports whether the endpoint's body should be JSON encoded.
func (e *Endpoint) IsJSON() bool {
	return e.ContentType == "" || strings.Contains(e.ContentType, "json")
}

// Key returns "METHOD /path".
func (e *Endpoint) Key() string {
	return e.Method + " " + e.Path
}

// FindEndpoint returns the endpoint declared with exactly this method and
// path template, or nil.
func (d *Document) FindEndpoint(method, path string) *Endpoint {
	if d == nil {
		return nil
	}
	method = strings.ToUpper(method)
	for _, endpoint := range d.Endpoints {
		if endpoint.Method == method && endpoint.Path == path {
			return endpoint
		}
	}
	return nil
}

// ResolveRef resolves a document-internal reference.
func (d *Document) ResolveRef(ref string) map[string]interface{} {
	if d == nil {
		return nil
	}
	return datagen.NewResolver(d.Raw).Resolve(ref, datagen.NewRefSet())
}

func fetchSource(ctx context.Context, source string, opts LoadOptions) ([]byte, error) {
	switch {
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		return fetchRemote(ctx, source, opts)
	case strings.HasPrefix(source, "s3://"):
		return fetchFromS3(ctx, source, opts)
	default:
		data, err := os.ReadFile(source)
		if err != nil {
			return nil, fmt.Errorf("failed to read document: %w", err)
		}
		return data, nil
	}
}

// fetchRemote serves a URL from the cache when fresh, otherwise downloads and
// caches it. A failed download falls back to a stale cache entry.
func fetchRemote(ctx context.Context, source string, opts LoadOptions) ([]byte, error) {
	cachePath := cacheFilePath(opts.cacheDir(), source)

	if !opts.Refresh {
		if data := loadFromCache(cachePath, opts.cacheTTL()); data != nil {
			if info := GetCacheInfo(opts.cacheDir(), source); info != nil {
				log.Printf("Using cached document (age: %s, location: %s)", formatDuration(info.Age), info.Path)
			}
			return data, nil
		}
	} else {
		log.Printf("Clearing cache and forcing refresh of %s", source)
		if err := ClearCache(opts.cacheDir(), source); err != nil {
			log.Printf("Warning: %v", err)
		}
	}

	log.Printf("Fetching document from %s (timeout: %s)", source, fetchTimeout)
	data, err := fetchFromURL(ctx, source, opts.HTTPClient)
	if err != nil {
		if stale, readErr := os.ReadFile(cachePath); readErr == nil {
			log.Printf("Warning: %v (using stale cache)", err)
			return stale, nil
		}
		return nil, err
	}

	if err := saveToCache(cachePath, data); err != nil {
		log.Printf("Warning: failed to cache document: %v", err)
	} else if SchemaDebug {
		log.Printf("DEBUG: cached document to %s", cachePath)
	}
	return data, nil
}

func fetchFromURL(ctx context.Context, source string, client *http.Client) ([]byte, error) {
	if client == nil {
		client = &http.Client{Timeout: fetchTimeout}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", source, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch document from %s: %w", source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code fetching %s: %d", source, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read document response body: %w", err)
	}
	return body, nil
}

// CacheInfo contains information about a cached document
type CacheInfo struct {
	Path    string
	ModTime time.Time
	Age     time.Duration
	Exists  bool
}

func cacheFilePath(dir, source string) string {
	sum := sha256.Sum256([]byte(source))
	return filepath.Join(dir, hex.EncodeToString(sum[:])[:16]+".json")
}

// GetCacheInfo returns information about the cache entry for source
func GetCacheInfo(dir, source string) *CacheInfo {
	if dir == "" {
		dir = defaultUserPath(cacheDirName)
	}
	cachePath := cacheFilePath(dir, source)
	info, err := os.Stat(cachePath)
	if err != nil {
		return &CacheInfo{Path: cachePath, Exists: false}
	}
	return &CacheInfo{
		Path:    cachePath,
		ModTime: info.ModTime(),
		Age:     time.Since(info.ModTime()),
		Exists:  true,
	}
}

// ClearCache removes the cache entry for source
func ClearCache(dir, source string) error {
	if dir == "" {
		dir = defaultUserPath(cacheDirName)
	}
	if err := os.Remove(cacheFilePath(dir, source)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return nil
}

func loadFromCache(cachePath string, maxAge time.Duration) []byte {
	info, err := os.Stat(cachePath)
	if err != nil {
		return nil
	}
	if time.Since(info.ModTime()) > maxAge {
		return nil
	}
	data, err := os.ReadFile(cachePath)
	if err != nil {
		return nil
	}
	return data
}

func saveToCache(cachePath string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(cachePath), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	tempFile := cachePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := os.Rename(tempFile, cachePath); err != nil {
		return fmt.Errorf("failed to rename cache file: %w", err)
	}
	return nil
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0f seconds", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%.1f minutes", d.Minutes())
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%.1f hours", d.Hours())
	}
	return fmt.Sprintf("%.1f days", d.Hours()/24)
}

// FormatDuration formats a cache age the way the loader logs it.
func FormatDuration(d time.Duration) string {
	return formatDuration(d)
}
