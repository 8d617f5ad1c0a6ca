package playground

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOverrideNormalize(t *testing.T) {
	tests := []struct {
		name     string
		override Override
		wantErr  bool
	}{
		{name: "defaults", override: Override{Method: " get ", Path: "/pets"}},
		{name: "missing method", override: Override{Path: "/pets"}, wantErr: true},
		{name: "relative path", override: Override{Method: "GET", Path: "pets"}, wantErr: true},
		{name: "bad status", override: Override{Method: "GET", Path: "/pets", Status: 99}, wantErr: true},
		{name: "negative delay", override: Override{Method: "GET", Path: "/pets", DelayMs: -1}, wantErr: true},
		{name: "delay too long", override: Override{Method: "GET", Path: "/pets", DelayMs: maxLatencyMs + 1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.override.normalize()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "GET", tt.override.Method)
			assert.Equal(t, 200, tt.override.Status)
			assert.NotEmpty(t, tt.override.ID)
		})
	}
}

func TestOverrideStoreAddAndFind(t *testing.T) {
	store := NewOverrideStore()

	_, err := store.Add(Override{Method: "GET", Path: "/pets/{petId}", Body: "template"})
	require.NoError(t, err)
	_, err = store.Add(Override{Method: "GET", Path: "/pets/mine", Body: "literal"})
	require.NoError(t, err)
	_, err = store.Add(Override{Method: "GET", Path: "/{kind}/mine", Body: "late literal"})
	require.NoError(t, err)
	_, err = store.Add(Override{Method: "POST", Path: "/pets", Status: 201})
	require.NoError(t, err)

	tests := []struct {
		method string
		path   string
		body   interface{}
		status int
	}{
		{method: "GET", path: "/pets/42", body: "template"},
		{method: "GET", path: "/pets/mine", body: "literal"},
		{method: "GET", path: "/pets/mine/", body: "literal"},
		{method: "GET", path: "/cats/mine", body: "late literal"},
		{method: "HEAD", path: "/pets/42", body: "template"},
		{method: "post", path: "/pets", status: 201},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			override := store.FindBestMatch(tt.method, tt.path)
			require.NotNil(t, override)
			if tt.status != 0 {
				assert.Equal(t, tt.status, override.Status)
			} else {
				assert.Equal(t, tt.body, override.Body)
			}
		})
	}

	assert.Nil(t, store.FindBestMatch("DELETE", "/pets/42"))
	assert.Nil(t, store.FindBestMatch("GET", "/pets/42/photos"))
	assert.Equal(t, 4, store.Count())
}

func TestOverrideStoreReplacesSameKey(t *testing.T) {
	store := NewOverrideStore()

	first, err := store.Add(Override{Method: "GET", Path: "/pets", Body: 1})
	require.NoError(t, err)
	second, err := store.Add(Override{Method: "get", Path: "/pets", Body: 2})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "replacement keeps the existing ID")
	assert.Equal(t, 1, store.Count())
	assert.Equal(t, 2, store.FindBestMatch("GET", "/pets").Body)

	// An explicit ID wins over the replaced one
	third, err := store.Add(Override{ID: "pets-v3", Method: "GET", Path: "/pets", Body: 3})
	require.NoError(t, err)
	assert.Equal(t, "pets-v3", third.ID)
	assert.Equal(t, 1, store.Count())
	assert.False(t, store.Remove(first.ID))

	// Re-adding an ID under a new path moves it
	_, err = store.Add(Override{ID: "pets-v3", Method: "GET", Path: "/cats"})
	require.NoError(t, err)
	assert.Equal(t, 1, store.Count())
	assert.Nil(t, store.FindBestMatch("GET", "/pets"))
	require.NotNil(t, store.FindBestMatch("GET", "/cats"))

	assert.True(t, store.Remove("pets-v3"))
	assert.False(t, store.Remove("pets-v3"))
	assert.Zero(t, store.Count())
}

func TestOverrideStoreDeleteAfterReplace(t *testing.T) {
	store := NewOverrideStore()

	first, err := store.Add(Override{Method: "GET", Path: "/pets", Body: 1})
	require.NoError(t, err)
	_, err = store.Add(Override{Method: "GET", Path: "/pets", Body: 2})
	require.NoError(t, err)

	assert.True(t, store.Remove(first.ID))
	assert.Zero(t, store.Count())
}

func TestOverrideStoreReplaceAndList(t *testing.T) {
	store := NewOverrideStore()
	_, err := store.Add(Override{Method: "GET", Path: "/old"})
	require.NoError(t, err)

	store.Replace([]Override{
		{Method: "DELETE", Path: "/b"},
		{Method: "GET", Path: "/b"},
		{Method: "GET", Path: "/a"},
		{Method: "GET", Path: "no-slash"},
	})

	list := store.List()
	require.Len(t, list, 3)
	assert.Equal(t, "GET /a", list[0].key())
	assert.Equal(t, "GET /b", list[1].key())
	assert.Equal(t, "DELETE /b", list[2].key())
	assert.Nil(t, store.FindBestMatch("GET", "/old"))
}

func TestOverrideStoreLoadFromDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pets.json"), []byte(`[
		{"method": "GET", "path": "/pets/{petId}", "body": {"id": "{{path.petId}}"}},
		{"method": "GET", "path": "invalid"}
	]`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "users.yaml"), []byte(`
- method: GET
  path: /users
  status: 202
  headers:
    X-Mock: "yes"
`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte(`ignored`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte(`{`), 0644))

	store := NewOverrideStore()
	n, err := store.LoadFromDir(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	users := store.FindBestMatch("GET", "/users")
	require.NotNil(t, users)
	assert.Equal(t, 202, users.Status)
	assert.Equal(t, "yes", users.Headers["X-Mock"])

	_, err = store.LoadFromDir(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}
