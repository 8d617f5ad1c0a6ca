// Package playground handles saving and loading overrides to/from disk.
//
// This file manages override persistence with automatic saving, retry logic
// for failed saves, and loading overrides on server startup. It supports both
// manual save operations and periodic saves based on configuration.
package playground

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Constants for persistence retry logic
const (
	// SaveMaxRetries is the maximum number of attempts for saving overrides
	SaveMaxRetries = 3
	// SaveInitialBackoff is the initial backoff delay between attempts
	SaveInitialBackoff = 100 * time.Millisecond
	// overridesFileVersion is written into every saved file
	overridesFileVersion = 1
)

// OverridesExport is the on-disk format of persisted overrides.
type OverridesExport struct {
	Version   int        `json:"version"`
	SavedAt   time.Time  `json:"saved_at"`
	Overrides []Override `json:"overrides"`
}

// OverridePersistence handles saving and loading overrides to/from disk
type OverridePersistence struct {
	config      *PersistenceConfig
	store       *OverrideStore
	mu          sync.Mutex
	lastSave    time.Time
	saveTicker  *time.Ticker
	stopChan    chan struct{}
	stopOnce    *sync.Once
	maxFailures int // Consecutive failures before auto-save gives up
}

// NewOverridePersistence creates a persistence manager for store.
// Returns nil if persistence is disabled in the configuration.
func NewOverridePersistence(store *OverrideStore, config *PersistenceConfig) *OverridePersistence {
	if config == nil || !config.Enabled {
		return nil
	}

	p := &OverridePersistence{
		config:      config,
		store:       store,
		maxFailures: 5,
	}
	if config.AutoSave && config.SaveInterval > 0 {
		p.startAutoSave()
	}
	return p
}

// LoadOverridesFromFile loads persisted overrides if the file exists.
// Returns nil, nil if the file doesn't exist.
func LoadOverridesFromFile(config *PersistenceConfig) (*OverridesExport, error) {
	if config == nil || !config.Enabled || config.FilePath == "" {
		return nil, nil
	}

	data, err := os.ReadFile(config.FilePath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read overrides file: %w", err)
	}

	var export OverridesExport
	if err := json.Unmarshal(data, &export); err != nil {
		return nil, fmt.Errorf("failed to parse overrides file: %w", err)
	}
	return &export, nil
}

// FilePath returns where overrides are saved.
func (p *OverridePersistence) FilePath() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.config.FilePath
}

// LastSave returns when overrides were last written, zero if never.
func (p *OverridePersistence) LastSave() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastSave
}

// SaveWithRetry saves the overrides, retrying with exponential backoff
func (p *OverridePersistence) SaveWithRetry() error {
	var lastErr error
	for attempt := 0; attempt < SaveMaxRetries; attempt++ {
		if attempt > 0 {
			// 100ms, 200ms, ...
			time.Sleep(SaveInitialBackoff * time.Duration(1<<uint(attempt-1)))
		}
		err := p.Save()
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return fmt.Errorf("failed after %d attempts: %w", SaveMaxRetries, lastErr)
}

// Save writes the overrides to the configured file
func (p *OverridePersistence) Save() error {
	if p == nil {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.config == nil || !p.config.Enabled {
		return nil
	}

	export := OverridesExport{
		Version:   overridesFileVersion,
		SavedAt:   time.Now().UTC(),
		Overrides: p.store.List(),
	}
	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal overrides: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(p.config.FilePath), 0755); err != nil {
		return fmt.Errorf("failed to create overrides directory: %w", err)
	}

	// Write to a temp file first so a crash never leaves a truncated file
	tempFile := p.config.FilePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write overrides file: %w", err)
	}
	if err := os.Rename(tempFile, p.config.FilePath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	p.lastSave = time.Now()
	return nil
}

// startAutoSave starts the auto-save ticker
func (p *OverridePersistence) startAutoSave() {
	if p.config.SaveInterval <= 0 {
		return
	}

	ticker := time.NewTicker(time.Duration(p.config.SaveInterval) * time.Second)
	stop := make(chan struct{})
	p.saveTicker = ticker
	p.stopChan = stop
	p.stopOnce = &sync.Once{}

	go func() {
		defer ticker.Stop()
		failures := 0
		for {
			select {
			case <-ticker.C:
				if err := p.SaveWithRetry(); err != nil {
					failures++
					if failures >= p.maxFailures {
						log.Printf("Error: Auto-save failed %d consecutive times. Disabling auto-save.", failures)
						return
					}
					log.Printf("Warning: Auto-save failed (attempt %d/%d): %v", failures, p.maxFailures, err)
				} else {
					failures = 0
				}
			case <-stop:
				return
			}
		}
	}()
}

// stopAutoSave stops a running auto-save loop.
func (p *OverridePersistence) stopAutoSave() {
	if p.saveTicker == nil {
		return
	}
	p.saveTicker.Stop()
	stop := p.stopChan
	p.stopOnce.Do(func() { close(stop) })
	p.saveTicker = nil
}

// Stop stops the auto-save ticker and performs a final save
func (p *OverridePersistence) Stop() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	p.stopAutoSave()
	p.mu.Unlock()
	return p.Save()
}

// UpdateConfig updates the persistence configuration and restarts auto-save
// if needed.
func (p *OverridePersistence) UpdateConfig(newConfig *PersistenceConfig) error {
	if p == nil {
		return fmt.Errorf("persistence is nil")
	}
	if newConfig == nil {
		return fmt.Errorf("config is nil")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopAutoSave()
	p.config = newConfig

	if newConfig.Enabled && newConfig.AutoSave && newConfig.SaveInterval > 0 {
		p.startAutoSave()
		log.Printf("Persistence config updated: %s (auto-save: %v, interval: %ds)",
			newConfig.FilePath, newConfig.AutoSave, newConfig.SaveInterval)
	} else if !newConfig.Enabled {
		log.Printf("Persistence disabled")
	}
	return nil
}
