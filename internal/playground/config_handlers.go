// Package playground provides HTTP handlers for configuration management.
//
// This file implements the /_specmock/config endpoints for reading, updating,
// and saving the configuration at runtime. Updates are applied immediately;
// saving also writes the configuration to ~/.specmock/config.json.
package playground

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sync"
)

// MaxRequestSize is the maximum size for management request bodies (10MB)
const MaxRequestSize = 10 << 20

var (
	globalConfig     *PlaygroundConfig
	globalConfigLock sync.RWMutex
	globalServer     *Server // Server instance for config reloading
	globalServerLock sync.RWMutex
)

// SetGlobalServer sets the global server instance (called at server startup)
func SetGlobalServer(server *Server) {
	globalServerLock.Lock()
	defer globalServerLock.Unlock()
	globalServer = server
}

// GetGlobalServer returns the current global server instance
func GetGlobalServer() *Server {
	globalServerLock.RLock()
	defer globalServerLock.RUnlock()
	return globalServer
}

// SetGlobalConfig sets the global configuration (called at server startup)
func SetGlobalConfig(config *PlaygroundConfig) {
	globalConfigLock.Lock()
	defer globalConfigLock.Unlock()
	globalConfig = config
}

// GetGlobalConfig returns the current global configuration
func GetGlobalConfig() *PlaygroundConfig {
	globalConfigLock.RLock()
	defer globalConfigLock.RUnlock()
	return globalConfig
}

// HandleConfigGet returns the current configuration
func HandleConfigGet(w http.ResponseWriter, r *http.Request) {
	config := GetGlobalConfig()
	if config == nil {
		WriteError(w, http.StatusServiceUnavailable, "Configuration not available")
		return
	}

	WriteJSONSafe(w, http.StatusOK, map[string]interface{}{
		"config": config,
		"note":   "Runtime configuration changes are not persisted. Use POST /_specmock/config/save to persist them.",
	})
}

// readConfigBody decodes and validates a configuration from the request body.
// It writes the error response itself and returns nil on failure.
func readConfigBody(w http.ResponseWriter, r *http.Request) *PlaygroundConfig {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestSize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		WriteError(w, http.StatusRequestEntityTooLarge, "Failed to read request body: "+err.Error())
		return nil
	}

	var newConfig PlaygroundConfig
	if err := json.Unmarshal(body, &newConfig); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return nil
	}

	if err := validateConfig(&newConfig); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid configuration: "+err.Error())
		return nil
	}
	return &newConfig
}

// applyConfig swaps in a new configuration and reloads the parts of the
// running server that cache settings.
func applyConfig(newConfig *PlaygroundConfig) {
	SetGlobalConfig(newConfig)

	server := GetGlobalServer()
	if server == nil {
		return
	}
	server.reloadGenerator(newConfig)
	if server.persistence != nil && newConfig.Persistence != nil {
		if err := server.persistence.UpdateConfig(newConfig.GetPersistenceConfig()); err != nil {
			log.Printf("Warning: Failed to update persistence config: %v", err)
		}
	}
}

// HandleConfigUpdate replaces the configuration at runtime
func HandleConfigUpdate(w http.ResponseWriter, r *http.Request) {
	newConfig := readConfigBody(w, r)
	if newConfig == nil {
		return
	}

	applyConfig(newConfig)

	WriteJSONSafe(w, http.StatusOK, map[string]interface{}{
		"status": "Configuration updated",
		"config": newConfig,
		"note":   "Changes take effect immediately. Use POST /_specmock/config/save to persist them.",
	})
}

// HandleConfigSave saves the configuration to ~/.specmock/config.json and
// applies it.
func HandleConfigSave(w http.ResponseWriter, r *http.Request) {
	newConfig := readConfigBody(w, r)
	if newConfig == nil {
		return
	}

	configPath := defaultUserPath("config.json")
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to create config directory: "+err.Error())
		return
	}

	configJSON, err := json.MarshalIndent(newConfig, "", "  ")
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to marshal config: "+err.Error())
		return
	}

	if err := os.WriteFile(configPath, configJSON, 0644); err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to write config file: "+err.Error())
		return
	}

	applyConfig(newConfig)

	WriteJSONSafe(w, http.StatusOK, map[string]interface{}{
		"status":    "Configuration saved successfully",
		"config":    newConfig,
		"file_path": configPath,
	})
}
