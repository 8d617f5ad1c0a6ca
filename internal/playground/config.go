// Package playground defines configuration structures and loading logic.
//
// This file contains all configuration types (PlaygroundConfig, GenerationConfig,
// RateLimitConfig, etc.) and functions to load configuration from files,
// environment variables, or embedded defaults. Configuration controls response
// generation, simulated latency and failures, override persistence, and the
// request monitor.
package playground

import (
	"embed"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

//go:embed configs/*.json
var embeddedConfigs embed.FS

const (
	// configDirName is the per-user directory holding config, cache and overrides.
	configDirName = ".specmock"

	defaultHost            = "localhost"
	defaultPort            = 8080
	defaultCacheTTLHours   = 24
	defaultRateLimit       = 100
	defaultRateWindowSec   = 60
	defaultSaveIntervalSec = 60
	defaultHistorySize     = 200
	maxLatencyMs           = 60000
	defaultOptionalRate    = 0.5
	defaultErrorType       = "server_error"
	defaultErrorStatusCode = 500
)

// PlaygroundConfig represents the mock server configuration
type PlaygroundConfig struct {
	Server      *ServerConfig      `json:"server,omitempty" yaml:"server,omitempty"`
	Spec        *SpecConfig        `json:"spec,omitempty" yaml:"spec,omitempty"`
	Generation  *GenerationConfig  `json:"generation,omitempty" yaml:"generation,omitempty"`
	RateLimit   *RateLimitConfig   `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`
	Errors      *ErrorConfig       `json:"errors,omitempty" yaml:"errors,omitempty"`
	Latency     *LatencyConfig     `json:"latency,omitempty" yaml:"latency,omitempty"`
	Concurrency *ConcurrencyConfig `json:"concurrency,omitempty" yaml:"concurrency,omitempty"`
	Persistence *PersistenceConfig `json:"persistence,omitempty" yaml:"persistence,omitempty"`
	Monitor     *MonitorConfig     `json:"monitor,omitempty" yaml:"monitor,omitempty"`
}

// ServerConfig contains the listen address
type ServerConfig struct {
	Host string `json:"host,omitempty" yaml:"host,omitempty"`
	Port int    `json:"port,omitempty" yaml:"port,omitempty"`
}

// SpecConfig says where the API document comes from
type SpecConfig struct {
	Source        string `json:"source,omitempty" yaml:"source,omitempty"`                   // Path, http(s):// URL or s3://bucket/key
	CacheTTLHours int    `json:"cache_ttl_hours,omitempty" yaml:"cache_ttl_hours,omitempty"` // How long a downloaded document stays fresh (default: 24)
	S3Region      string `json:"s3_region,omitempty" yaml:"s3_region,omitempty"`             // Region for s3:// sources (default: SDK resolution)
	S3Endpoint    string `json:"s3_endpoint,omitempty" yaml:"s3_endpoint,omitempty"`         // Custom endpoint for S3-compatible stores
}

// GenerationConfig controls schema-driven response generation
type GenerationConfig struct {
	Seed                 *int64   `json:"seed,omitempty" yaml:"seed,omitempty"`                                     // Fixed seed for repeatable output
	OptionalPropertyRate *float64 `json:"optional_property_rate,omitempty" yaml:"optional_property_rate,omitempty"` // Chance an optional property is emitted (default: 0.5)
	MaxItems             int      `json:"max_items,omitempty" yaml:"max_items,omitempty"`                           // Cap on generated array length
	MaxStringLength      int      `json:"max_string_length,omitempty" yaml:"max_string_length,omitempty"`           // Cap on generated string length
	TemplateGenerated    bool     `json:"template_generated,omitempty" yaml:"template_generated,omitempty"`         // Run generated bodies through the template interpreter
}

// RateLimitConfig contains configuration for rate limiting simulation
type RateLimitConfig struct {
	Enabled   bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`       // Enable rate limiting simulation
	Limit     int  `json:"limit,omitempty" yaml:"limit,omitempty"`           // Requests per window (default: 100)
	WindowSec int  `json:"window_sec,omitempty" yaml:"window_sec,omitempty"` // Window size in seconds (default: 60)
	// EndpointOverrides allows per-endpoint rate limit overrides
	// Key format: "METHOD:PATH" (e.g., "GET:/pets/{id}") or "PATH" for all methods
	EndpointOverrides map[string]EndpointRateLimitOverride `json:"endpoint_overrides,omitempty" yaml:"endpoint_overrides,omitempty"`
}

// EndpointRateLimitOverride represents a per-endpoint rate limit override
type EndpointRateLimitOverride struct {
	Limit     int `json:"limit" yaml:"limit"`           // Requests per window
	WindowSec int `json:"window_sec" yaml:"window_sec"` // Window size in seconds
}

// ErrorConfig contains configuration for error simulation.
// StatusCode wins when it is a 4xx or 5xx code; otherwise it is derived from
// ErrorType:
//   - "bad_request" -> 400
//   - "unauthorized" -> 401
//   - "not_found" -> 404
//   - "rate_limit" -> 429
//   - "server_error" -> 500
//   - "unavailable" -> 503
type ErrorConfig struct {
	Enabled    bool    `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	ErrorRate  float64 `json:"error_rate,omitempty" yaml:"error_rate,omitempty"`   // Probability of error (0.0-1.0)
	ErrorType  string  `json:"error_type,omitempty" yaml:"error_type,omitempty"`   // default: "server_error"
	StatusCode int     `json:"status_code,omitempty" yaml:"status_code,omitempty"` // Explicit status, overrides error_type
}

// LatencyConfig adds artificial delay to mock responses
type LatencyConfig struct {
	DelayMs  int `json:"delay_ms,omitempty" yaml:"delay_ms,omitempty"`
	JitterMs int `json:"jitter_ms,omitempty" yaml:"jitter_ms,omitempty"` // Uniform extra delay in [0, jitter_ms]
}

// ConcurrencyConfig bounds the number of mock requests served at once
type ConcurrencyConfig struct {
	MaxInFlight int `json:"max_in_flight,omitempty" yaml:"max_in_flight,omitempty"` // 0 means unbounded
}

// PersistenceConfig contains configuration for override persistence
type PersistenceConfig struct {
	Enabled      bool   `json:"enabled,omitempty" yaml:"enabled,omitempty"`             // Enable override persistence (default: false)
	FilePath     string `json:"file_path,omitempty" yaml:"file_path,omitempty"`         // default: ~/.specmock/overrides.json
	AutoSave     bool   `json:"auto_save,omitempty" yaml:"auto_save,omitempty"`         // Periodic save (default: true if enabled)
	SaveInterval int    `json:"save_interval,omitempty" yaml:"save_interval,omitempty"` // Auto-save interval in seconds (default: 60)
	OverridesDir string `json:"overrides_dir,omitempty" yaml:"overrides_dir,omitempty"` // Directory of *.json / *.yaml override files
}

// MonitorConfig controls the request journal
type MonitorConfig struct {
	HistorySize int    `json:"history_size,omitempty" yaml:"history_size,omitempty"` // Entries kept in memory (default: 200)
	JournalPath string `json:"journal_path,omitempty" yaml:"journal_path,omitempty"` // SQLite file; empty keeps the journal in memory
}

// LoadPlaygroundConfig loads the configuration.
// First tries ~/.specmock/config.json (user config); if that doesn't exist,
// loads the embedded default config. Environment overrides are applied last.
func LoadPlaygroundConfig() (*PlaygroundConfig, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	configPath := filepath.Join(homeDir, configDirName, "config.json")

	var config *PlaygroundConfig
	if _, err := os.Stat(configPath); err == nil {
		config, err = LoadPlaygroundConfigFile(configPath)
		if err != nil {
			return nil, err
		}
	} else {
		config, err = LoadDefaultPlaygroundConfig()
		if err != nil {
			return nil, err
		}
	}

	if err := ApplyEnvOverrides(config); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadPlaygroundConfigFile loads configuration from a JSON or YAML file.
// The format is picked by extension; anything other than .yaml/.yml is JSON.
func LoadPlaygroundConfigFile(path string) (*PlaygroundConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var config PlaygroundConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	log.Printf("Loaded configuration from %s", path)
	return &config, nil
}

// LoadDefaultPlaygroundConfig loads the embedded default configuration
func LoadDefaultPlaygroundConfig() (*PlaygroundConfig, error) {
	data, err := embeddedConfigs.ReadFile("configs/default.json")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded default config: %w", err)
	}

	var config PlaygroundConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse embedded default config: %w", err)
	}

	log.Printf("Using default configuration (embedded)")
	return &config, nil
}

// envOverrides lists the SPECMOCK_* variables. Unset pointer fields stay nil
// so only variables that are present touch the config.
type envOverrides struct {
	Host      string   `env:"SPECMOCK_HOST"`
	Port      *int     `env:"SPECMOCK_PORT"`
	Spec      string   `env:"SPECMOCK_SPEC"`
	Seed      *int64   `env:"SPECMOCK_SEED"`
	LatencyMs *int     `env:"SPECMOCK_LATENCY_MS"`
	ErrorRate *float64 `env:"SPECMOCK_ERROR_RATE"`
	Journal   string   `env:"SPECMOCK_JOURNAL"`
	Debug     bool     `env:"SPECMOCK_DEBUG"`
}

// ApplyEnvOverrides applies SPECMOCK_* environment variables on top of config.
func ApplyEnvOverrides(config *PlaygroundConfig) error {
	var envs envOverrides
	if err := env.Parse(&envs); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}
	return applyEnvOverrides(config, envs)
}

func applyEnvOverrides(config *PlaygroundConfig, envs envOverrides) error {
	if config == nil {
		return fmt.Errorf("config is nil")
	}

	if envs.Host != "" || envs.Port != nil {
		if config.Server == nil {
			config.Server = &ServerConfig{}
		}
		if envs.Host != "" {
			config.Server.Host = envs.Host
		}
		if envs.Port != nil {
			config.Server.Port = *envs.Port
		}
	}
	if envs.Spec != "" {
		if config.Spec == nil {
			config.Spec = &SpecConfig{}
		}
		config.Spec.Source = envs.Spec
	}
	if envs.Seed != nil {
		if config.Generation == nil {
			config.Generation = &GenerationConfig{}
		}
		seed := *envs.Seed
		config.Generation.Seed = &seed
	}
	if envs.LatencyMs != nil {
		if config.Latency == nil {
			config.Latency = &LatencyConfig{}
		}
		config.Latency.DelayMs = *envs.LatencyMs
	}
	if envs.ErrorRate != nil {
		if config.Errors == nil {
			config.Errors = &ErrorConfig{}
		}
		config.Errors.Enabled = *envs.ErrorRate > 0
		config.Errors.ErrorRate = *envs.ErrorRate
	}
	if envs.Journal != "" {
		if config.Monitor == nil {
			config.Monitor = &MonitorConfig{}
		}
		config.Monitor.JournalPath = envs.Journal
	}
	if envs.Debug {
		SetDebugFlags(true)
	}

	return validateConfig(config)
}

// validateConfig validates configuration values
func validateConfig(config *PlaygroundConfig) error {
	if config.Server != nil {
		if config.Server.Port < 0 || config.Server.Port > 65535 {
			return fmt.Errorf("server.port must be between 0 and 65535")
		}
	}
	if config.Spec != nil && config.Spec.CacheTTLHours < 0 {
		return fmt.Errorf("spec.cache_ttl_hours must be >= 0")
	}
	if config.Generation != nil {
		if rate := config.Generation.OptionalPropertyRate; rate != nil && (*rate < 0 || *rate > 1) {
			return fmt.Errorf("generation.optional_property_rate must be between 0 and 1")
		}
		if config.Generation.MaxItems < 0 {
			return fmt.Errorf("generation.max_items must be >= 0")
		}
		if config.Generation.MaxStringLength < 0 {
			return fmt.Errorf("generation.max_string_length must be >= 0")
		}
	}
	if config.RateLimit != nil {
		if config.RateLimit.Limit < 0 {
			return fmt.Errorf("rate_limit.limit must be >= 0")
		}
		if config.RateLimit.WindowSec < 0 {
			return fmt.Errorf("rate_limit.window_sec must be >= 0")
		}
		for key, override := range config.RateLimit.EndpointOverrides {
			if override.Limit < 0 {
				return fmt.Errorf("rate_limit.endpoint_overrides[%s].limit must be >= 0", key)
			}
			if override.WindowSec < 0 {
				return fmt.Errorf("rate_limit.endpoint_overrides[%s].window_sec must be >= 0", key)
			}
		}
	}
	if config.Errors != nil {
		if config.Errors.ErrorRate < 0 || config.Errors.ErrorRate > 1 {
			return fmt.Errorf("errors.error_rate must be between 0 and 1")
		}
		if code := config.Errors.StatusCode; code != 0 && (code < 400 || code > 599) {
			return fmt.Errorf("errors.status_code must be a 4xx or 5xx code")
		}
	}
	if config.Latency != nil {
		if config.Latency.DelayMs < 0 || config.Latency.JitterMs < 0 {
			return fmt.Errorf("latency.delay_ms and latency.jitter_ms must be >= 0")
		}
		if config.Latency.DelayMs+config.Latency.JitterMs > maxLatencyMs {
			return fmt.Errorf("latency.delay_ms + latency.jitter_ms must be <= %d", maxLatencyMs)
		}
	}
	if config.Concurrency != nil && config.Concurrency.MaxInFlight < 0 {
		return fmt.Errorf("concurrency.max_in_flight must be >= 0")
	}
	if config.Persistence != nil && config.Persistence.SaveInterval < 0 {
		return fmt.Errorf("persistence.save_interval must be >= 0")
	}
	if config.Monitor != nil && config.Monitor.HistorySize < 0 {
		return fmt.Errorf("monitor.history_size must be >= 0")
	}
	return nil
}

// GetServerConfig returns the listen address with defaults
func (c *PlaygroundConfig) GetServerConfig() *ServerConfig {
	config := ServerConfig{Host: defaultHost, Port: defaultPort}
	if c != nil && c.Server != nil {
		if c.Server.Host != "" {
			config.Host = c.Server.Host
		}
		if c.Server.Port > 0 {
			config.Port = c.Server.Port
		}
	}
	return &config
}

// GetSpecConfig returns the document source settings with defaults
func (c *PlaygroundConfig) GetSpecConfig() *SpecConfig {
	if c != nil && c.Spec != nil {
		config := *c.Spec
		if config.CacheTTLHours <= 0 {
			config.CacheTTLHours = defaultCacheTTLHours
		}
		return &config
	}
	return &SpecConfig{CacheTTLHours: defaultCacheTTLHours}
}

// GetGenerationConfig returns generation settings with defaults
func (c *PlaygroundConfig) GetGenerationConfig() *GenerationConfig {
	config := GenerationConfig{}
	if c != nil && c.Generation != nil {
		config = *c.Generation
	}
	if config.OptionalPropertyRate == nil {
		rate := defaultOptionalRate
		config.OptionalPropertyRate = &rate
	}
	return &config
}

// GetRateLimitConfig returns rate limit configuration with defaults
func (c *PlaygroundConfig) GetRateLimitConfig() *RateLimitConfig {
	if c != nil && c.RateLimit != nil {
		config := *c.RateLimit
		if config.Limit <= 0 {
			config.Limit = defaultRateLimit
		}
		if config.WindowSec <= 0 {
			config.WindowSec = defaultRateWindowSec
		}
		return &config
	}
	return &RateLimitConfig{
		Enabled:   false,
		Limit:     defaultRateLimit,
		WindowSec: defaultRateWindowSec,
	}
}

// GetErrorConfig returns error configuration with defaults.
// StatusCode is always filled in.
func (c *PlaygroundConfig) GetErrorConfig() *ErrorConfig {
	if c != nil && c.Errors != nil {
		config := *c.Errors
		if config.ErrorRate < 0 {
			config.ErrorRate = 0
		}
		if config.ErrorRate > 1 {
			config.ErrorRate = 1
		}
		if config.ErrorType == "" {
			config.ErrorType = defaultErrorType
		}
		if config.StatusCode < 400 || config.StatusCode > 599 {
			config.StatusCode = statusForErrorType(config.ErrorType)
		}
		return &config
	}
	return &ErrorConfig{
		Enabled:    false,
		ErrorType:  defaultErrorType,
		StatusCode: defaultErrorStatusCode,
	}
}

func statusForErrorType(errorType string) int {
	switch errorType {
	case "bad_request":
		return 400
	case "unauthorized":
		return 401
	case "not_found":
		return 404
	case "rate_limit":
		return 429
	case "unavailable":
		return 503
	default:
		return defaultErrorStatusCode
	}
}

// GetLatencyConfig returns latency configuration, zero when unset
func (c *PlaygroundConfig) GetLatencyConfig() *LatencyConfig {
	if c != nil && c.Latency != nil {
		config := *c.Latency
		return &config
	}
	return &LatencyConfig{}
}

// GetConcurrencyConfig returns concurrency configuration, unbounded when unset
func (c *PlaygroundConfig) GetConcurrencyConfig() *ConcurrencyConfig {
	if c != nil && c.Concurrency != nil {
		config := *c.Concurrency
		return &config
	}
	return &ConcurrencyConfig{}
}

// GetPersistenceConfig returns persistence configuration with defaults
func (c *PlaygroundConfig) GetPersistenceConfig() *PersistenceConfig {
	config := PersistenceConfig{}
	if c != nil && c.Persistence != nil {
		config = *c.Persistence
	}
	if config.FilePath == "" {
		config.FilePath = defaultUserPath("overrides.json")
	}
	if config.SaveInterval <= 0 {
		config.SaveInterval = defaultSaveIntervalSec
	}
	if config.Enabled && !config.AutoSave {
		// If enabled but auto_save not explicitly set, default to true
		config.AutoSave = true
	}
	return &config
}

// GetMonitorConfig returns monitor configuration with defaults
func (c *PlaygroundConfig) GetMonitorConfig() *MonitorConfig {
	config := MonitorConfig{}
	if c != nil && c.Monitor != nil {
		config = *c.Monitor
	}
	if config.HistorySize <= 0 {
		config.HistorySize = defaultHistorySize
	}
	return &config
}

// defaultUserPath returns ~/.specmock/<name>, or <name> in the working
// directory when the home directory is unknown.
func defaultUserPath(name string) string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "specmock-" + name
	}
	return filepath.Join(homeDir, configDirName, name)
}
