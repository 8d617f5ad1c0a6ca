package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/xdevplatform/specmock/internal/datagen"
	"github.com/xdevplatform/specmock/internal/playground"
	"github.com/xdevplatform/specmock/internal/templating"
)

// Backend is what the tools read from. *playground.Server satisfies it, so
// tools always see the currently loaded document and generation settings.
type Backend interface {
	Document() *playground.Document
	Generator() *datagen.Generator
	Interpreter() *templating.Interpreter
}

// GenerateInput represents the input parameters for the generate_instance tool.
type GenerateInput struct {
	Ref      string                 `json:"ref,omitempty" jsonschema:"Document reference to generate, e.g. #/components/schemas/Pet"`
	Schema   map[string]interface{} `json:"schema,omitempty" jsonschema:"Inline JSON Schema to generate from"`
	Endpoint string                 `json:"endpoint,omitempty" jsonschema:"Endpoint whose success response to generate, e.g. 'GET /pets/{petId}' or '/pets/42'"`
	Template bool                   `json:"template,omitempty" jsonschema:"Expand {{placeholders}} in the generated value"`
}

// RenderInput represents the input parameters for the render_template tool.
type RenderInput struct {
	Value interface{} `json:"value" jsonschema:"Any JSON value; every string in it has its {{name:arg}} placeholders expanded"`
}

// ListEndpointsInput represents the input parameters for the list_endpoints tool.
type ListEndpointsInput struct {
	Method string `json:"method,omitempty" jsonschema:"Only endpoints with this HTTP method"`
	Tag    string `json:"tag,omitempty" jsonschema:"Only endpoints with this tag"`
}

// ListTemplatesInput represents the input parameters for the list_templates tool.
type ListTemplatesInput struct {
	Prefix string `json:"prefix,omitempty" jsonschema:"Only template names starting with this prefix"`
}

// RegisterTools registers the specmock tools backed by backend.
func RegisterTools(s *Server, backend Backend) {
	RegisterTool(s, &mcp.Tool{
		Name:        "generate_instance",
		Description: "Generate one realistic instance from a JSON Schema. Give exactly one of ref (a #/... reference into the loaded API document), schema (an inline schema) or endpoint (the success response of a document endpoint). Unresolvable or cyclic references generate {}.",
	}, handleGenerate(backend))

	RegisterTool(s, &mcp.Tool{
		Name:        "render_template",
		Description: "Expand {{name:arg:...}} placeholders in every string of a JSON value, keys included. Unknown placeholders are left as written. Use list_templates to see the available names.",
	}, handleRender(backend))

	RegisterTool(s, &mcp.Tool{
		Name:        "list_endpoints",
		Description: "List the endpoints of the loaded API document with their success status, content type and response source (schema, example or empty).",
	}, handleListEndpoints(backend))

	RegisterTool(s, &mcp.Tool{
		Name:        "list_templates",
		Description: "List the placeholder names render_template understands, aliases included.",
	}, handleListTemplates(backend))
}

func handleGenerate(backend Backend) func(context.Context, *mcp.CallToolRequest, GenerateInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input GenerateInput) (*mcp.CallToolResult, any, error) {
		value, err := playground.Generate(backend.Document(), backend.Generator(), backend.Interpreter(), playground.GenerateRequest{
			Schema:   input.Schema,
			Ref:      input.Ref,
			Endpoint: input.Endpoint,
			Template: input.Template,
		})
		if err != nil {
			return errorResult("Generation failed: %v", err), nil, nil
		}
		return jsonResult(value)
	}
}

func handleRender(backend Backend) func(context.Context, *mcp.CallToolRequest, RenderInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input RenderInput) (*mcp.CallToolResult, any, error) {
		return jsonResult(backend.Interpreter().Process(input.Value))
	}
}

func handleListEndpoints(backend Backend) func(context.Context, *mcp.CallToolRequest, ListEndpointsInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ListEndpointsInput) (*mcp.CallToolResult, any, error) {
		doc := backend.Document()
		if doc == nil {
			return errorResult("No API document loaded"), nil, nil
		}
		return jsonResult(playground.ListEndpoints(doc, nil, playground.GetGlobalConfig(), input.Method, input.Tag))
	}
}

func handleListTemplates(backend Backend) func(context.Context, *mcp.CallToolRequest, ListTemplatesInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ListTemplatesInput) (*mcp.CallToolResult, any, error) {
		names := []string{}
		for _, name := range backend.Interpreter().Catalog().Names() {
			if strings.HasPrefix(name, strings.ToLower(input.Prefix)) {
				names = append(names, name)
			}
		}
		return jsonResult(names)
	}
}

// jsonResult returns value as indented JSON text content.
func jsonResult(value interface{}) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult("Failed to encode result: %v", err), nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}

func errorResult(format string, args ...interface{}) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf(format, args...)},
		},
		IsError: true,
	}
}
