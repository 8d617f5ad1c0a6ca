package mcpserver

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xdevplatform/specmock/internal/datagen"
	"github.com/xdevplatform/specmock/internal/playground"
	"github.com/xdevplatform/specmock/internal/templating"
)

const testDocument = `
openapi: 3.0.3
info: {title: Tools, version: "1"}
paths:
  /widgets/{id}:
    get:
      tags: [widgets]
      responses:
        "200":
          description: ok
          content:
            application/json:
              schema:
                $ref: "#/components/schemas/Widget"
components:
  schemas:
    Widget:
      type: object
      required: [id, size]
      properties:
        id: {type: string, format: uuid}
        size: {type: integer, minimum: 3, maximum: 3}
`

type staticBackend struct {
	doc    *playground.Document
	gen    *datagen.Generator
	interp *templating.Interpreter
}

func (b *staticBackend) Document() *playground.Document       { return b.doc }
func (b *staticBackend) Generator() *datagen.Generator        { return b.gen }
func (b *staticBackend) Interpreter() *templating.Interpreter { return b.interp }

func newBackend(t *testing.T) *staticBackend {
	t.Helper()
	doc, err := playground.ParseDocument(context.Background(), []byte(testDocument))
	require.NoError(t, err)
	return &staticBackend{
		doc:    doc,
		gen:    datagen.New(doc.Raw, datagen.WithSeed(5)),
		interp: templating.New(templating.WithSeed(5)),
	}
}

// connect starts s on an in-memory transport and returns a client session.
func connect(t *testing.T, s *Server) *mcp.ClientSession {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	_, err := s.server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func callTool(t *testing.T, session *mcp.ClientSession, name string, args map[string]interface{}) (*mcp.CallToolResult, string) {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	return result, text.Text
}

func TestTools(t *testing.T) {
	s := New("specmock", "test")
	RegisterTools(s, newBackend(t))
	session := connect(t, s)

	t.Run("generate ref", func(t *testing.T) {
		result, text := callTool(t, session, "generate_instance", map[string]interface{}{"ref": "#/components/schemas/Widget"})
		require.False(t, result.IsError, text)
		var widget map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(text), &widget))
		assert.Equal(t, float64(3), widget["size"])
		assert.Len(t, widget["id"], 36)
	})

	t.Run("generate endpoint", func(t *testing.T) {
		result, text := callTool(t, session, "generate_instance", map[string]interface{}{"endpoint": "/widgets/abc"})
		require.False(t, result.IsError, text)
		assert.Contains(t, text, `"size": 3`)
	})

	t.Run("generate needs one target", func(t *testing.T) {
		result, _ := callTool(t, session, "generate_instance", map[string]interface{}{})
		assert.True(t, result.IsError)
	})

	t.Run("render", func(t *testing.T) {
		result, text := callTool(t, session, "render_template", map[string]interface{}{
			"value": map[string]interface{}{"n": "{{int:5:5}}", "keep": "{{unknown-template-xyz}}"},
		})
		require.False(t, result.IsError, text)
		var rendered map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(text), &rendered))
		assert.Equal(t, "5", rendered["n"])
		assert.Equal(t, "{{unknown-template-xyz}}", rendered["keep"])
	})

	t.Run("list endpoints", func(t *testing.T) {
		result, text := callTool(t, session, "list_endpoints", map[string]interface{}{"tag": "widgets"})
		require.False(t, result.IsError, text)
		var endpoints []playground.EndpointInfo
		require.NoError(t, json.Unmarshal([]byte(text), &endpoints))
		require.Len(t, endpoints, 1)
		assert.Equal(t, "/widgets/{id}", endpoints[0].Path)
		assert.Equal(t, playground.SourceSchema, endpoints[0].Source)
	})

	t.Run("list templates", func(t *testing.T) {
		result, text := callTool(t, session, "list_templates", map[string]interface{}{"prefix": "UU"})
		require.False(t, result.IsError, text)
		var names []string
		require.NoError(t, json.Unmarshal([]byte(text), &names))
		assert.Contains(t, names, "uuid")
		for _, name := range names {
			assert.Regexp(t, "^uu", name)
		}
	})
}

func TestListEndpointsWithoutDocument(t *testing.T) {
	backend := newBackend(t)
	backend.doc = nil

	result, _, err := handleListEndpoints(backend)(context.Background(), nil, ListEndpointsInput{})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}
