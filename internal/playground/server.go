// Package playground provides a local HTTP server that mocks any API described
// by an OpenAPI 3 or Swagger 2 document, for testing and development purposes.
// It runs entirely on the local machine and needs no network access once the
// document is loaded.
//
// Key Features:
//   - Endpoint discovery from OpenAPI 3.x and Swagger 2.0 documents (JSON or YAML)
//   - Documents from local files, http(s) URLs (cached), or s3://bucket/key
//   - Response bodies generated from response schemas, with $ref, allOf,
//     oneOf and anyOf support
//   - Overrides: canned responses with {{placeholder}} templating
//   - Optional file-based override persistence across server restarts
//   - Configurable rate limiting, error, latency and concurrency simulation
//   - Request journal (memory or SQLite) and a live WebSocket monitor
//   - CORS support for web applications
//
// Architecture:
//
//	Management routes live under /_specmock. Every other route is handled by
//	the mock handler, which matches the request against the document's
//	endpoints and the override store and builds a response. Settings are held
//	in a global configuration that can be replaced at runtime.
//
// Usage:
//
//	Start the server:
//	  server, err := playground.NewServer(config, playground.ServerOptions{Source: "petstore.yaml"})
//	  server.Start()
//
//	Make API requests:
//	  curl http://localhost:8080/pets/1
package playground

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/xdevplatform/specmock/internal/datagen"
	"github.com/xdevplatform/specmock/internal/templating"
)

// ManagementPrefix is where management routes are mounted
const ManagementPrefix = "/_specmock"

const (
	// shutdownWaitTimeout is how long Stop waits for in-flight requests
	shutdownWaitTimeout = 30 * time.Second
	// shutdownPollInterval is how often Stop checks in-flight requests
	shutdownPollInterval = 100 * time.Millisecond
)

// ServerOptions selects the API document a server mocks.
type ServerOptions struct {
	Source   string    // Path, URL or s3:// URI; empty uses spec.source from the config
	Refresh  bool      // Bypass the download cache
	Document *Document // Already-loaded document; Source is ignored when set
}

// Server represents the mock API server.
// It manages HTTP server lifecycle, the loaded document, overrides, and
// persistence.
type Server struct {
	httpServer  *http.Server
	docMu       sync.RWMutex
	doc         *Document
	genMu       sync.RWMutex
	generator   *datagen.Generator
	interpreter *templating.Interpreter
	overrides   *OverrideStore
	persistence *OverridePersistence
	journal     Journal
	monitor     *Monitor
	limiter     *RateLimiter
	gate        *ConcurrencyGate
	port        int
	host        string
	activeReqs  int64 // Track active requests (atomic)
}

// NewServer creates a new mock server. A nil config loads the user
// configuration, falling back to the embedded defaults. A document that fails
// to load is logged and the server starts with no endpoints, serving only
// overrides.
func NewServer(config *PlaygroundConfig, opts ServerOptions) (*Server, error) {
	if config == nil {
		var err error
		config, err = LoadPlaygroundConfig()
		if err != nil {
			log.Printf("Warning: Failed to load config: %v (using defaults)", err)
			if config, err = LoadDefaultPlaygroundConfig(); err != nil {
				return nil, err
			}
		}
	}
	SetGlobalConfig(config)

	doc := opts.Document
	if doc == nil {
		source := opts.Source
		if source == "" {
			source = config.GetSpecConfig().Source
		}
		if source != "" {
			ctx, cancel := context.WithTimeout(context.Background(), 2*fetchTimeout)
			loaded, err := LoadDocument(ctx, source, LoadOptionsFromConfig(config, opts.Refresh))
			cancel()
			if err != nil {
				log.Printf("Warning: Failed to load API document %s: %v (serving overrides only)", source, err)
			} else {
				doc = loaded
				log.Printf("Loaded %s (%s %s, %d endpoints)", doc.Title, doc.Format, doc.Version, len(doc.Endpoints))
			}
		} else {
			log.Printf("Warning: No API document configured (serving overrides only)")
		}
	}

	journal, err := NewJournal(context.Background(), config.GetMonitorConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open request journal: %w", err)
	}

	overrides := NewOverrideStore()
	persistenceConfig := config.GetPersistenceConfig()
	if persistenceConfig.OverridesDir != "" {
		if n, err := overrides.LoadFromDir(persistenceConfig.OverridesDir); err != nil {
			log.Printf("Warning: %v", err)
		} else {
			log.Printf("Loaded %d override(s) from %s", n, persistenceConfig.OverridesDir)
		}
	}
	if export, err := LoadOverridesFromFile(persistenceConfig); err != nil {
		log.Printf("Warning: Failed to load persisted overrides: %v", err)
	} else if export != nil {
		for _, override := range export.Overrides {
			if _, err := overrides.Add(override); err != nil {
				log.Printf("Warning: skipping persisted override: %v", err)
			}
		}
		log.Printf("Loaded %d persisted override(s) from %s", len(export.Overrides), persistenceConfig.FilePath)
	}
	persistence := NewOverridePersistence(overrides, persistenceConfig)

	// Limits are read from the global config on every request, so runtime
	// config updates apply immediately
	limiter := NewRateLimiterWithGetter(func() *RateLimitConfig {
		return GetGlobalConfig().GetRateLimitConfig()
	})
	gate := NewConcurrencyGate(func() int {
		return GetGlobalConfig().GetConcurrencyConfig().MaxInFlight
	})

	serverConfig := config.GetServerConfig()
	server := &Server{
		doc:         doc,
		overrides:   overrides,
		persistence: persistence,
		journal:     journal,
		monitor:     NewMonitor(journal),
		limiter:     limiter,
		gate:        gate,
		port:        serverConfig.Port,
		host:        serverConfig.Host,
	}
	server.reloadGenerator(config)

	server.httpServer = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", server.host, server.port),
		Handler:     server.Handler(),
		ReadTimeout: 15 * time.Second,
		// No write timeout: simulated latency and the monitor hold responses open
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	// Set global server instance for config handlers (after server is fully initialized)
	SetGlobalServer(server)

	return server, nil
}

// Handler returns the server's router: management routes under
// ManagementPrefix and the mock handler for everything else.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.trackRequests)

	r.Route(ManagementPrefix, func(r chi.Router) {
		r.Get("/health", HandleHealth)
		r.Get("/rate-limits", HandleRateLimitStatus)
		r.Get("/endpoints", HandleEndpointsList(s))

		r.Get("/config", HandleConfigGet)
		r.Put("/config", HandleConfigUpdate)
		r.Post("/config/save", HandleConfigSave)

		r.Get("/overrides", HandleOverridesList(s.overrides))
		r.Post("/overrides", HandleOverrideCreate(s.overrides))
		r.Put("/overrides", HandleOverridesReplace(s.overrides))
		r.Post("/overrides/save", HandleOverridesSave(s.persistence))
		r.Delete("/overrides/{id}", HandleOverrideDelete(s.overrides))

		r.Get("/requests", HandleRequestsList(s.journal))
		r.Get("/ws", s.monitor.ServeHTTP)

		r.Post("/generate", HandleGenerate(s))
		r.Post("/render", HandleRender(s))

		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			WriteError(w, http.StatusNotFound, "Unknown management endpoint "+r.URL.Path)
		})
	})

	// Everything outside the management prefix is the mocked API
	r.NotFound(s.handleMock)
	return r
}

// reloadGenerator rebuilds the generator and interpreter from the generation
// settings in config.
func (s *Server) reloadGenerator(config *PlaygroundConfig) {
	generator, interpreter := NewGenerators(s.Document(), config.GetGenerationConfig())

	s.genMu.Lock()
	s.generator = generator
	s.interpreter = interpreter
	s.genMu.Unlock()
}

// NewGenerators builds a generator resolving references against doc (which
// may be nil) and a template interpreter, both configured from generation.
// A seed applies to both.
func NewGenerators(doc *Document, generation *GenerationConfig) (*datagen.Generator, *templating.Interpreter) {
	var root map[string]interface{}
	if doc != nil {
		root = doc.Raw
	}

	genOpts := []datagen.Option{datagen.WithLimits(generation.MaxItems, generation.MaxStringLength)}
	if generation.OptionalPropertyRate != nil {
		genOpts = append(genOpts, datagen.WithOptionalPropertyRate(*generation.OptionalPropertyRate))
	}
	var interpOpts []templating.Option
	if generation.Seed != nil {
		genOpts = append(genOpts, datagen.WithSeed(*generation.Seed))
		interpOpts = append(interpOpts, templating.WithSeed(*generation.Seed))
	}
	return datagen.New(root, genOpts...), templating.New(interpOpts...)
}

// Document returns the loaded API document, or nil.
func (s *Server) Document() *Document {
	s.docMu.RLock()
	defer s.docMu.RUnlock()
	return s.doc
}

// SetDocument swaps the mocked document and rebuilds the generator for it.
func (s *Server) SetDocument(doc *Document) {
	s.docMu.Lock()
	s.doc = doc
	s.docMu.Unlock()
	s.reloadGenerator(GetGlobalConfig())
}

// Generator returns the current response generator.
func (s *Server) Generator() *datagen.Generator {
	s.genMu.RLock()
	defer s.genMu.RUnlock()
	return s.generator
}

// Interpreter returns the current template interpreter.
func (s *Server) Interpreter() *templating.Interpreter {
	s.genMu.RLock()
	defer s.genMu.RUnlock()
	return s.interpreter
}

// Overrides returns the override store.
func (s *Server) Overrides() *OverrideStore {
	return s.overrides
}

// Start starts the server.
// Blocks until the server is stopped. Returns an error if the server fails to start.
func (s *Server) Start() error {
	addr := s.GetURL()
	log.Printf("specmock server starting on %s", addr)
	if doc := s.Document(); doc != nil {
		log.Printf("Mocking %d endpoint(s) from %s", len(doc.Endpoints), doc.Source)
	}
	log.Printf("Management endpoints: %s/{health,endpoints,config,overrides,requests,generate,render}", ManagementPrefix)
	log.Printf("Live monitor: ws://%s:%d%s/ws", s.host, s.port, ManagementPrefix)

	if s.persistence != nil {
		log.Printf("Override persistence: ENABLED (file: %s)", s.persistence.FilePath())
	} else {
		log.Printf("Override persistence: DISABLED")
	}

	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop gracefully stops the server.
// Disconnects monitor clients, waits for active requests to complete (up to
// 30 seconds), saves overrides, and closes the journal.
func (s *Server) Stop(ctx context.Context) error {
	log.Println("Stopping specmock server...")

	// Monitor connections count as active requests until they are closed
	s.monitor.Close()

	ticker := time.NewTicker(shutdownPollInterval)
	defer ticker.Stop()
	deadline := time.Now().Add(shutdownWaitTimeout)

	forceShutdown := false
	for atomic.LoadInt64(&s.activeReqs) > 0 && time.Now().Before(deadline) && !forceShutdown {
		select {
		case <-ctx.Done():
			log.Printf("Shutdown context cancelled, forcing shutdown")
			forceShutdown = true
		case <-ticker.C:
			if active := atomic.LoadInt64(&s.activeReqs); active > 0 && HandlerDebug {
				log.Printf("DEBUG: waiting for %d active request(s) to complete", active)
			}
		}
	}

	if active := atomic.LoadInt64(&s.activeReqs); active > 0 {
		log.Printf("Warning: %d active request(s) still in progress, proceeding with shutdown", active)
	}

	if s.persistence != nil {
		if err := s.persistence.Stop(); err != nil {
			log.Printf("Warning: Failed to save overrides: %v", err)
		} else {
			log.Printf("Overrides saved to %s", s.persistence.FilePath())
		}
	}

	shutdownErr := s.httpServer.Shutdown(ctx)
	if err := s.journal.Close(); err != nil {
		log.Printf("Warning: Failed to close request journal: %v", err)
	}
	return shutdownErr
}

// GetURL returns the server URL.
// Returns the full URL including protocol, host, and port.
func (s *Server) GetURL() string {
	return fmt.Sprintf("http://%s:%d", s.host, s.port)
}
