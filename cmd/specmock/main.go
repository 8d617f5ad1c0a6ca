package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xdevplatform/specmock/internal/mcpserver"
	"github.com/xdevplatform/specmock/internal/playground"
	"github.com/xdevplatform/specmock/internal/templating"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "specmock",
		Short: "specmock - mock any OpenAPI or Swagger API locally",
		Long: `A standalone local HTTP server that mocks the API described by an
OpenAPI 3 or Swagger 2 document.

specmock provides:
  - Realistic responses generated from the document's response schemas
  - Overrides with {{placeholder}} templating for hand-written responses
  - Simulated rate limits, errors, latency and backpressure
  - A request journal and a live WebSocket monitor
  - An MCP server exposing the generator and template engine to agents`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(createStartCmd())
	rootCmd.AddCommand(createGenerateCmd())
	rootCmd.AddCommand(createRenderCmd())
	rootCmd.AddCommand(createEndpointsCmd())
	rootCmd.AddCommand(createStatusCmd())
	rootCmd.AddCommand(createRefreshCmd())
	rootCmd.AddCommand(createMCPCmd())
	rootCmd.AddCommand(createVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads --config when given, otherwise the user configuration.
func loadConfig(path string) (*playground.PlaygroundConfig, error) {
	if path == "" {
		return playground.LoadPlaygroundConfig()
	}
	config, err := playground.LoadPlaygroundConfigFile(path)
	if err != nil {
		return nil, err
	}
	if err := playground.ApplyEnvOverrides(config); err != nil {
		return nil, err
	}
	return config, nil
}

// loadDocument loads source, falling back to spec.source from config.
func loadDocument(config *playground.PlaygroundConfig, source string, refresh bool) (*playground.Document, error) {
	if source == "" {
		source = config.GetSpecConfig().Source
	}
	if source == "" {
		return nil, fmt.Errorf("no API document given: use --spec or set spec.source")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	return playground.LoadDocument(ctx, source, playground.LoadOptionsFromConfig(config, refresh))
}

// generationFor returns config's generation settings, with --seed applied
// when the flag was set.
func generationFor(cmd *cobra.Command, config *playground.PlaygroundConfig, seed int64) *playground.GenerationConfig {
	generation := config.GetGenerationConfig()
	if cmd.Flags().Changed("seed") {
		generation.Seed = &seed
	}
	return generation
}

func printJSON(value interface{}) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func createStartCmd() *cobra.Command {
	var port int
	var host string
	var spec string
	var configPath string
	var refreshCache bool
	var seed int64
	var debug bool

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the mock API server",
		Long: `Start a local HTTP server that mocks the endpoints of an API document.
The server runs until interrupted (Ctrl+C).

Management endpoints live under /_specmock; everything else is mocked.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if config.Server == nil {
				config.Server = &playground.ServerConfig{}
			}
			if cmd.Flags().Changed("port") {
				config.Server.Port = port
			}
			if cmd.Flags().Changed("host") {
				config.Server.Host = host
			}
			if cmd.Flags().Changed("seed") {
				if config.Generation == nil {
					config.Generation = &playground.GenerationConfig{}
				}
				config.Generation.Seed = &seed
			}
			if debug {
				playground.SetDebugFlags(true)
			}

			server, err := playground.NewServer(config, playground.ServerOptions{Source: spec, Refresh: refreshCache})
			if err != nil {
				return err
			}

			// Handle interrupt signals (Ctrl+C, Ctrl+Z, SIGTERM)
			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			notifyUNIXSignals(sigChan)

			// Start server in goroutine
			errChan := make(chan error, 1)
			go func() {
				if err := server.Start(); err != nil && err != http.ErrServerClosed {
					errChan <- err
				}
			}()

			color.Green("✅ specmock listening on %s", server.GetURL())

			// Wait for interrupt or error
			select {
			case sig := <-sigChan:
				color.Yellow("\n🛑 %s", getShutdownMessage(sig))
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()

				if err := server.Stop(shutdownCtx); err != nil {
					color.Red("Error shutting down server: %v", err)
					return err
				}

				color.Green("✅ specmock server stopped gracefully")
				return nil
			case err := <-errChan:
				color.Red("❌ Server error: %v", err)
				return err
			}
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "Port to run the mock server on")
	cmd.Flags().StringVar(&host, "host", "localhost", "Host to bind the mock server to")
	cmd.Flags().StringVarP(&spec, "spec", "s", "", "API document: file path, http(s) URL or s3://bucket/key")
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Configuration file (JSON or YAML)")
	cmd.Flags().BoolVar(&refreshCache, "refresh", false, "Force refresh of a cached remote document")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Seed for repeatable generated responses")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging")

	return cmd
}

func createGenerateCmd() *cobra.Command {
	var spec string
	var configPath string
	var ref string
	var schema string
	var endpoint string
	var template bool
	var seed int64
	var all bool
	var outDir string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate an instance from a schema, reference or endpoint",
		Long: `Generate one value and print it as JSON. Give exactly one of --ref,
--schema or --endpoint. With --all, write one override file per document path
to --out instead; the files can be loaded back with persistence.overrides_dir.`,
		Example: `  specmock generate -s petstore.yaml --ref '#/components/schemas/Pet'
  specmock generate -s petstore.yaml --endpoint 'GET /pets/{petId}'
  specmock generate --schema '{"type":"integer","minimum":1,"maximum":6}'
  specmock generate -s petstore.yaml --all --out ./overrides`,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			var doc *playground.Document
			if ref != "" || endpoint != "" || all || spec != "" {
				if doc, err = loadDocument(config, spec, false); err != nil {
					return err
				}
			}
			generator, interpreter := playground.NewGenerators(doc, generationFor(cmd, config, seed))

			if all {
				if outDir == "" {
					return fmt.Errorf("--all needs --out")
				}
				count, err := playground.GenerateAllExamples(doc, generator, outDir)
				if err != nil {
					return err
				}
				color.Green("✅ Wrote %d override file(s) to %s", count, outDir)
				return nil
			}

			req := playground.GenerateRequest{Ref: ref, Endpoint: endpoint, Template: template}
			if schema != "" {
				if err := json.Unmarshal([]byte(schema), &req.Schema); err != nil {
					return fmt.Errorf("--schema is not a JSON object: %w", err)
				}
			}
			value, err := playground.Generate(doc, generator, interpreter, req)
			if err != nil {
				return err
			}
			return printJSON(value)
		},
	}

	cmd.Flags().StringVarP(&spec, "spec", "s", "", "API document: file path, http(s) URL or s3://bucket/key")
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Configuration file (JSON or YAML)")
	cmd.Flags().StringVar(&ref, "ref", "", "Document reference, e.g. #/components/schemas/Pet")
	cmd.Flags().StringVar(&schema, "schema", "", "Inline JSON Schema")
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "Endpoint, e.g. 'GET /pets/{petId}' or '/pets/42'")
	cmd.Flags().BoolVar(&template, "template", false, "Expand {{placeholders}} in the generated value")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Seed for repeatable output")
	cmd.Flags().BoolVar(&all, "all", false, "Generate every endpoint into override files")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Output directory for --all")

	return cmd
}

func createRenderCmd() *cobra.Command {
	var seed int64
	var list bool

	cmd := &cobra.Command{
		Use:   "render [json]",
		Short: "Expand {{placeholders}} in a JSON value",
		Long: `Expand every {{name:arg:...}} placeholder in a JSON value and print the
result. The value is read from the argument, or from stdin when there is none.
A bare string that is not valid JSON is rendered as text.`,
		Example: `  specmock render '{"id":"{{uuid}}","age":"{{int:18:65}}"}'
  echo '"{{name}} <{{email}}>"' | specmock render
  specmock render --list`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts []templating.Option
			if cmd.Flags().Changed("seed") {
				opts = append(opts, templating.WithSeed(seed))
			}
			interpreter := templating.New(opts...)

			if list {
				for _, name := range interpreter.Catalog().Names() {
					fmt.Println(name)
				}
				return nil
			}

			var input []byte
			if len(args) == 1 {
				input = []byte(args[0])
			} else {
				data, err := io.ReadAll(os.Stdin)
				if err != nil {
					return fmt.Errorf("failed to read stdin: %w", err)
				}
				input = data
			}

			var value interface{}
			if err := json.Unmarshal(input, &value); err != nil {
				fmt.Println(interpreter.ProcessString(strings.TrimRight(string(input), "\n")))
				return nil
			}
			return printJSON(interpreter.Process(value))
		},
	}

	cmd.Flags().Int64Var(&seed, "seed", 0, "Seed for repeatable output")
	cmd.Flags().BoolVar(&list, "list", false, "List the available placeholder names")

	return cmd
}

func createEndpointsCmd() *cobra.Command {
	var spec string
	var configPath string
	var method string
	var tag string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "endpoints",
		Short: "List the endpoints of an API document",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			doc, err := loadDocument(config, spec, false)
			if err != nil {
				return err
			}

			endpoints := playground.ListEndpoints(doc, nil, config, method, tag)
			if asJSON {
				return printJSON(endpoints)
			}

			color.Cyan("%s %s (%s, %d endpoints)", doc.Title, doc.Version, doc.Format, len(doc.Endpoints))
			bold := color.New(color.Bold)
			for _, endpoint := range endpoints {
				bold.Printf("%-7s ", endpoint.Method)
				fmt.Printf("%-40s %d  %s", endpoint.Path, endpoint.Status, endpoint.Source)
				if endpoint.OperationID != "" {
					fmt.Printf("  (%s)", endpoint.OperationID)
				}
				fmt.Println()
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&spec, "spec", "s", "", "API document: file path, http(s) URL or s3://bucket/key")
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Configuration file (JSON or YAML)")
	cmd.Flags().StringVar(&method, "method", "", "Only endpoints with this HTTP method")
	cmd.Flags().StringVar(&tag, "tag", "", "Only endpoints with this tag")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")

	return cmd
}

func createStatusCmd() *cobra.Command {
	var url string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check mock server status",
		Long:  "Check if a specmock server is running and display its status",
		RunE: func(cmd *cobra.Command, args []string) error {
			candidates := []string{url}
			if !cmd.Flags().Changed("url") {
				candidates = []string{"http://localhost:8080", "http://localhost:3000", "http://localhost:8081"}
			}

			client := &http.Client{Timeout: 2 * time.Second}
			for _, base := range candidates {
				resp, err := client.Get(strings.TrimSuffix(base, "/") + playground.ManagementPrefix + "/health")
				if err != nil {
					continue
				}
				var health map[string]interface{}
				decodeErr := json.NewDecoder(resp.Body).Decode(&health)
				resp.Body.Close()
				if resp.StatusCode != http.StatusOK || decodeErr != nil {
					continue
				}

				color.Green("✅ specmock server is running at %s", base)
				if document, ok := health["document"].(map[string]interface{}); ok {
					fmt.Printf("   Document:  %v %v (%v endpoints)\n", document["title"], document["version"], document["endpoints"])
				}
				fmt.Printf("   Overrides: %v\n", health["overrides"])
				fmt.Printf("   Uptime:    %vs\n", health["uptime_seconds"])
				return nil
			}
			color.Red("❌ No specmock server found")
			return fmt.Errorf("no server found")
		},
	}

	cmd.Flags().StringVar(&url, "url", "http://localhost:8080", "Server base URL")
	return cmd
}

func createRefreshCmd() *cobra.Command {
	var spec string
	var configPath string

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Refresh the cached API document",
		Long:  "Force a fresh download of a remote API document and update the cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			doc, err := loadDocument(config, spec, true)
			if err != nil {
				color.Red("❌ Failed to refresh API document: %v", err)
				return err
			}
			color.Green("✅ Refreshed %s (%s %s, %d endpoints)", doc.Source, doc.Title, doc.Version, len(doc.Endpoints))
			if info := playground.GetCacheInfo(playground.LoadOptionsFromConfig(config, true).CacheDir, doc.Source); info.Exists {
				fmt.Printf("   Cached at %s (age: %s)\n", info.Path, playground.FormatDuration(info.Age))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&spec, "spec", "s", "", "API document URL or s3://bucket/key")
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Configuration file (JSON or YAML)")
	return cmd
}

func createMCPCmd() *cobra.Command {
	var spec string
	var configPath string
	var serveHTTP bool

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Run an MCP server over stdio",
		Long: `Run a Model Context Protocol server on stdin/stdout exposing the
generate_instance, render_template, list_endpoints and list_templates tools.
With --serve the mock HTTP server runs alongside it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			server, err := playground.NewServer(config, playground.ServerOptions{Source: spec})
			if err != nil {
				return err
			}
			if serveHTTP {
				go func() {
					if err := server.Start(); err != nil && err != http.ErrServerClosed {
						fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
					}
				}()
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			tools := mcpserver.New("specmock", playground.Version)
			mcpserver.RegisterTools(tools, server)
			runErr := tools.Run(ctx)

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Stop(shutdownCtx); err != nil {
				fmt.Fprintf(os.Stderr, "Error shutting down server: %v\n", err)
			}
			return runErr
		},
	}

	cmd.Flags().StringVarP(&spec, "spec", "s", "", "API document: file path, http(s) URL or s3://bucket/key")
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Configuration file (JSON or YAML)")
	cmd.Flags().BoolVar(&serveHTTP, "serve", false, "Also serve the mock HTTP API")
	return cmd
}

func createVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("specmock", playground.Version)
		},
	}
}
