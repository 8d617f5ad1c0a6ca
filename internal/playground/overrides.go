// Package playground manages user-authored response overrides.
//
// This file loads overrides from JSON or YAML files and the management API,
// and looks them up by method and path. An override replaces generation for
// one method+path; its headers and body may contain template placeholders,
// which are expanded on every request.
package playground

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Override is a canned response for one method and path template.
type Override struct {
	ID      string            `json:"id" yaml:"id"`
	Method  string            `json:"method" yaml:"method"`
	Path    string            `json:"path" yaml:"path"` // May contain {param} segments
	Status  int               `json:"status,omitempty" yaml:"status,omitempty"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Body    interface{}       `json:"body,omitempty" yaml:"body,omitempty"`
	DelayMs int               `json:"delay_ms,omitempty" yaml:"delay_ms,omitempty"`
}

// normalize fills defaults and checks required fields.
func (o *Override) normalize() error {
	o.Method = strings.ToUpper(strings.TrimSpace(o.Method))
	if o.Method == "" {
		return fmt.Errorf("override method is required")
	}
	o.Path = strings.TrimSpace(o.Path)
	if !strings.HasPrefix(o.Path, "/") {
		return fmt.Errorf("override path must start with /: %q", o.Path)
	}
	if o.Status == 0 {
		o.Status = http.StatusOK
	}
	if o.Status < 100 || o.Status > 599 {
		return fmt.Errorf("override status must be between 100 and 599: %d", o.Status)
	}
	if o.DelayMs < 0 || o.DelayMs > maxLatencyMs {
		return fmt.Errorf("override delay_ms must be between 0 and %d", maxLatencyMs)
	}
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}

// key is "METHOD /path".
func (o *Override) key() string {
	return o.Method + " " + o.Path
}

// OverrideStore holds overrides keyed by method and path.
// It is safe for concurrent use.
type OverrideStore struct {
	mu        sync.RWMutex
	overrides map[string]*Override // Key: "METHOD /path"
}

// NewOverrideStore creates an empty override store.
func NewOverrideStore() *OverrideStore {
	return &OverrideStore{
		overrides: make(map[string]*Override),
	}
}

// Add validates and stores an override, replacing any override for the same
// method and path. Without an explicit ID the replacement keeps the ID of the
// override it replaces. The stored copy is returned.
func (s *OverrideStore) Add(override Override) (*Override, error) {
	inheritID := strings.TrimSpace(override.ID) == ""
	if err := override.normalize(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.overrides[override.key()]; ok && inheritID {
		override.ID = existing.ID
	}
	for key, existing := range s.overrides {
		if existing.ID == override.ID && key != override.key() {
			delete(s.overrides, key)
		}
	}
	s.overrides[override.key()] = &override
	return &override, nil
}

// Remove deletes the override with the given ID.
func (s *OverrideStore) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, override := range s.overrides {
		if override.ID == id {
			delete(s.overrides, key)
			return true
		}
	}
	return false
}

// Replace swaps the whole set. Invalid entries are skipped with a warning.
func (s *OverrideStore) Replace(overrides []Override) {
	fresh := make(map[string]*Override, len(overrides))
	for _, override := range overrides {
		override := override
		if err := override.normalize(); err != nil {
			log.Printf("Warning: skipping override: %v", err)
			continue
		}
		fresh[override.key()] = &override
	}

	s.mu.Lock()
	s.overrides = fresh
	s.mu.Unlock()
}

// List returns copies of all overrides sorted by path and method.
func (s *OverrideStore) List() []Override {
	s.mu.RLock()
	list := make([]Override, 0, len(s.overrides))
	for _, override := range s.overrides {
		list = append(list, *override)
	}
	s.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		if list[i].Path != list[j].Path {
			return list[i].Path < list[j].Path
		}
		return methodRank(list[i].Method) < methodRank(list[j].Method)
	})
	return list
}

// Count returns the number of overrides.
func (s *OverrideStore) Count() int {
	if s == nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.overrides)
}

// FindBestMatch finds the override serving method and path: an exact path
// first, then the most specific {param} template. HEAD falls back to GET.
func (s *OverrideStore) FindBestMatch(method, path string) *Override {
	method = strings.ToUpper(method)
	if override := s.findBestMatch(method, path); override != nil {
		return override
	}
	if method == http.MethodHead {
		return s.findBestMatch(http.MethodGet, path)
	}
	return nil
}

func (s *OverrideStore) findBestMatch(method, path string) *Override {
	s.mu.RLock()
	defer s.mu.RUnlock()

	segments := splitPath(path)
	if override, ok := s.overrides[method+" /"+strings.Join(segments, "/")]; ok {
		return override
	}

	var best *Override
	var bestSegments []string
	for _, override := range s.overrides {
		if override.Method != method {
			continue
		}
		pattern := splitPath(override.Path)
		if !matchesEndpointPattern(pattern, segments) {
			continue
		}
		if best == nil || moreSpecific(pattern, bestSegments) ||
			(!moreSpecific(bestSegments, pattern) && override.Path < best.Path) {
			best, bestSegments = override, pattern
		}
	}
	return best
}

// LoadFromFile loads overrides from a JSON or YAML file holding a list of
// overrides.
func (s *OverrideStore) LoadFromFile(filePath string) (int, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return 0, fmt.Errorf("failed to read overrides file %s: %w", filePath, err)
	}

	var overrides []Override
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &overrides)
	default:
		err = json.Unmarshal(data, &overrides)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to parse overrides file %s: %w", filePath, err)
	}

	loaded := 0
	for _, override := range overrides {
		if _, err := s.Add(override); err != nil {
			log.Printf("Warning: skipping override in %s: %v", filePath, err)
			continue
		}
		loaded++
	}
	return loaded, nil
}

// LoadFromDir loads every *.json, *.yaml and *.yml file in dirPath.
func (s *OverrideStore) LoadFromDir(dirPath string) (int, error) {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return 0, fmt.Errorf("failed to read overrides directory %s: %w", dirPath, err)
	}

	total := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".json", ".yaml", ".yml":
		default:
			continue
		}
		n, err := s.LoadFromFile(filepath.Join(dirPath, entry.Name()))
		if err != nil {
			log.Printf("Warning: %v", err)
			continue
		}
		total += n
	}
	return total, nil
}
