package playground

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadTestDocument(t *testing.T, name string) *Document {
	t.Helper()
	data, err := os.ReadFile("testdata/" + name)
	require.NoError(t, err)
	doc, err := ParseDocument(context.Background(), data)
	require.NoError(t, err)
	return doc
}

func TestParseDocumentOpenAPI3(t *testing.T) {
	doc := loadTestDocument(t, "petstore.yaml")

	assert.Equal(t, formatOpenAPI3, doc.Format)
	assert.Equal(t, "3.0.3", doc.SpecVersion)
	assert.Equal(t, "Petstore", doc.Title)
	assert.Equal(t, "1.2.0", doc.Version)
	assert.Equal(t, "/v1", doc.BasePath)

	var keys []string
	for _, endpoint := range doc.Endpoints {
		keys = append(keys, endpoint.Key())
	}
	assert.Equal(t, []string{
		"GET /pets",
		"POST /pets",
		"GET /pets/mine",
		"GET /pets/{petId}",
		"DELETE /pets/{petId}",
		"GET /store/status",
	}, keys)

	list := doc.FindEndpoint("GET", "/pets")
	require.NotNil(t, list)
	assert.Equal(t, "listPets", list.OperationID)
	assert.Equal(t, []string{"pets"}, list.Tags)
	assert.Equal(t, http.StatusOK, list.Status)
	assert.Equal(t, "application/json", list.ContentType)
	assert.Equal(t, "array", list.Schema["type"])

	create := doc.FindEndpoint("POST", "/pets")
	require.NotNil(t, create)
	assert.Equal(t, http.StatusCreated, create.Status, "lowest 2xx wins")
	assert.Equal(t, "#/components/schemas/Pet", create.Schema["$ref"], "response $ref is followed")

	remove := doc.FindEndpoint("DELETE", "/pets/{petId}")
	require.NotNil(t, remove)
	assert.Equal(t, http.StatusNoContent, remove.Status)
	assert.Nil(t, remove.Schema)

	mine := doc.FindEndpoint("GET", "/pets/mine")
	require.NotNil(t, mine)
	assert.Nil(t, mine.Schema)
	assert.Equal(t, map[string]interface{}{"owner": "me", "count": float64(3)}, mine.Example)

	status := doc.FindEndpoint("GET", "/store/status")
	require.NotNil(t, status)
	assert.Equal(t, http.StatusOK, status.Status, "default response is sent as 200")
}

func TestParseDocumentSwagger2(t *testing.T) {
	doc := loadTestDocument(t, "swagger.yaml")

	assert.Equal(t, formatSwagger2, doc.Format)
	assert.Equal(t, "Legacy Users", doc.Title)
	assert.Equal(t, "/api", doc.BasePath)
	require.Len(t, doc.Endpoints, 2)

	user := doc.FindEndpoint("GET", "/users/{id}")
	require.NotNil(t, user)
	assert.Equal(t, "getUser", user.OperationID)
	assert.Equal(t, "#/definitions/User", user.Schema["$ref"])

	users := doc.FindEndpoint("GET", "/users")
	require.NotNil(t, users)
	assert.NotNil(t, users.Example)

	require.NotNil(t, doc.ResolveRef("#/definitions/User"))
	assert.Nil(t, doc.ResolveRef("#/definitions/Missing"))
}

func TestParseDocumentJSON(t *testing.T) {
	doc, err := ParseDocument(context.Background(), []byte(`{
		"openapi": "3.1.0",
		"info": {"title": "Tiny", "version": "1"},
		"paths": {"/ping": {"get": {"responses": {"200": {"description": "ok",
			"content": {"application/problem+json": {"schema": {"type": "string"}}}}}}}}
	}`))
	require.NoError(t, err)
	require.Len(t, doc.Endpoints, 1)
	assert.Equal(t, "application/problem+json", doc.Endpoints[0].ContentType)
	assert.Equal(t, "string", doc.Endpoints[0].Schema["type"])
}

func TestParseDocumentDanglingRef(t *testing.T) {
	doc, err := ParseDocument(context.Background(), []byte(`
openapi: 3.0.0
info: {title: Broken, version: "1"}
paths:
  /things:
    get:
      responses:
        "200":
          description: ok
          content:
            application/json:
              schema:
                $ref: "#/components/schemas/Nope"
`))
	require.NoError(t, err)
	require.Len(t, doc.Endpoints, 1)
	assert.Equal(t, "GET /things", doc.Endpoints[0].Key())
}

func TestParseDocumentRejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "no version field", data: `info: {title: x}`},
		{name: "openapi 2", data: `openapi: 2.0.0`},
		{name: "swagger 3", data: `swagger: "3.0"`},
		{name: "bad version", data: `openapi: banana`},
		{name: "not an object", data: `- a`},
		{name: "empty", data: ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDocument(context.Background(), []byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestDocumentMatch(t *testing.T) {
	doc := loadTestDocument(t, "petstore.yaml")

	tests := []struct {
		method   string
		path     string
		expected string
	}{
		{method: "GET", path: "/pets", expected: "GET /pets"},
		{method: "GET", path: "/pets/", expected: "GET /pets"},
		{method: "GET", path: "/pets/42", expected: "GET /pets/{petId}"},
		{method: "GET", path: "/pets/mine", expected: "GET /pets/mine"},
		{method: "DELETE", path: "/pets/42", expected: "DELETE /pets/{petId}"},
		{method: "HEAD", path: "/pets/42", expected: "GET /pets/{petId}"},
		{method: "get", path: "/v1/pets/42", expected: "GET /pets/{petId}"},
		{method: "PUT", path: "/pets/42"},
		{method: "GET", path: "/pets/42/photos"},
		{method: "GET", path: "/v1x/pets"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			endpoint := doc.Match(tt.method, tt.path)
			if tt.expected == "" {
				assert.Nil(t, endpoint)
				return
			}
			require.NotNil(t, endpoint)
			assert.Equal(t, tt.expected, endpoint.Key())
		})
	}

	var nilDoc *Document
	assert.Nil(t, nilDoc.Match("GET", "/pets"))
}

func TestPathParams(t *testing.T) {
	assert.Equal(t, map[string]string{"petId": "42"}, PathParams("/pets/{petId}", "/pets/42"))
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, PathParams("/x/{a}/y/{b}", "/x/1/y/2"))
	assert.Empty(t, PathParams("/pets", "/pets"))
	assert.Nil(t, PathParams("/pets/{petId}", "/pets"))

	doc := loadTestDocument(t, "petstore.yaml")
	endpoint := doc.FindEndpoint("GET", "/pets/{petId}")
	require.NotNil(t, endpoint)
	assert.Equal(t, map[string]string{"petId": "9"}, doc.PathParams(endpoint, "/pets/9"))
	assert.Equal(t, map[string]string{"petId": "9"}, doc.PathParams(endpoint, "/v1/pets/9"), "base path is stripped")
	assert.Nil(t, doc.PathParams(endpoint, "/other/9/x"))
	assert.Nil(t, doc.PathParams(nil, "/pets/9"))
}

func TestMoreSpecific(t *testing.T) {
	assert.True(t, moreSpecific(splitPath("/pets/mine"), splitPath("/pets/{id}")))
	assert.False(t, moreSpecific(splitPath("/pets/{id}"), splitPath("/pets/mine")))
	assert.True(t, moreSpecific(splitPath("/a/{x}"), splitPath("/{y}/b")), "earliest literal wins")
	assert.False(t, moreSpecific(splitPath("/a/b"), splitPath("/a/b")))
}

func TestLoadDocumentFromFile(t *testing.T) {
	doc, err := LoadDocument(context.Background(), "testdata/petstore.yaml", LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, "testdata/petstore.yaml", doc.Source)

	_, err = LoadDocument(context.Background(), "testdata/missing.yaml", LoadOptions{})
	assert.Error(t, err)

	_, err = LoadDocument(context.Background(), "", LoadOptions{})
	assert.Error(t, err)
}

func TestLoadDocumentRemoteCache(t *testing.T) {
	data, err := os.ReadFile("testdata/petstore.yaml")
	require.NoError(t, err)

	var hits int64
	var fail atomic.Bool
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		if fail.Load() {
			http.Error(w, "down", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write(data)
	}))
	defer remote.Close()

	source := remote.URL + "/petstore.yaml"
	opts := LoadOptions{CacheDir: t.TempDir(), CacheTTL: time.Hour}

	doc, err := LoadDocument(context.Background(), source, opts)
	require.NoError(t, err)
	assert.Equal(t, "Petstore", doc.Title)
	assert.Equal(t, int64(1), atomic.LoadInt64(&hits))
	assert.True(t, GetCacheInfo(opts.CacheDir, source).Exists)

	_, err = LoadDocument(context.Background(), source, opts)
	require.NoError(t, err)
	assert.Equal(t, int64(1), atomic.LoadInt64(&hits), "second load is served from the cache")

	refresh := opts
	refresh.Refresh = true
	_, err = LoadDocument(context.Background(), source, refresh)
	require.NoError(t, err)
	assert.Equal(t, int64(2), atomic.LoadInt64(&hits), "refresh bypasses the cache")

	fail.Store(true)
	expired := opts
	expired.CacheTTL = time.Nanosecond
	time.Sleep(time.Millisecond)
	doc, err = LoadDocument(context.Background(), source, expired)
	require.NoError(t, err, "a failed download falls back to the stale cache")
	assert.Equal(t, "Petstore", doc.Title)

	require.NoError(t, ClearCache(opts.CacheDir, source))
	assert.False(t, GetCacheInfo(opts.CacheDir, source).Exists)
	_, err = LoadDocument(context.Background(), source, opts)
	assert.Error(t, err)
}

func TestParseS3URI(t *testing.T) {
	bucket, key, err := parseS3URI("s3://specs/team/petstore.yaml")
	require.NoError(t, err)
	assert.Equal(t, "specs", bucket)
	assert.Equal(t, "team/petstore.yaml", key)

	for _, bad := range []string{"s3://bucket", "s3:///key", "https://bucket/key", "s3://bucket/"} {
		_, _, err := parseS3URI(bad)
		assert.Error(t, err, bad)
	}
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "30 seconds", FormatDuration(30*time.Second))
	assert.Equal(t, "1.5 minutes", FormatDuration(90*time.Second))
	assert.Equal(t, "2.0 hours", FormatDuration(2*time.Hour))
	assert.Equal(t, "3.0 days", FormatDuration(72*time.Hour))
}
