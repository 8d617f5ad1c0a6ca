package playground

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xdevplatform/specmock/internal/datagen"
	"github.com/xdevplatform/specmock/internal/templating"
)

func TestGenerateFilename(t *testing.T) {
	tests := []struct {
		endpoint string
		expected string
	}{
		{endpoint: "/pets", expected: "pets"},
		{endpoint: "/pets/{petId}/photos", expected: "pets_petId_photos"},
		{endpoint: "/store/order-items.json", expected: "store_order_items_json"},
		{endpoint: "GET_/pets/{petId}", expected: "GET_pets_petId"},
		{endpoint: "/", expected: "root"},
		{endpoint: "/a", expected: "root"},
	}
	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			assert.Equal(t, tt.expected, generateFilename(tt.endpoint))
		})
	}
}

func TestGenerate(t *testing.T) {
	doc := loadTestDocument(t, "petstore.yaml")
	gen := datagen.New(doc.Raw, datagen.WithSeed(3))
	interp := templating.New(templating.WithSeed(3))

	t.Run("exactly one target", func(t *testing.T) {
		_, err := Generate(doc, gen, interp, GenerateRequest{})
		assert.True(t, errors.Is(err, ErrInvalidGenerateRequest))
		_, err = Generate(doc, gen, interp, GenerateRequest{Ref: "#/components/schemas/Pet", Endpoint: "/pets"})
		assert.True(t, errors.Is(err, ErrInvalidGenerateRequest))
	})

	t.Run("endpoint by template", func(t *testing.T) {
		value, err := Generate(doc, gen, interp, GenerateRequest{Endpoint: "GET /pets/{petId}"})
		require.NoError(t, err)
		assert.Contains(t, value, "status")
	})

	t.Run("endpoint by concrete path", func(t *testing.T) {
		value, err := Generate(doc, gen, interp, GenerateRequest{Endpoint: "/pets/12"})
		require.NoError(t, err)
		assert.Contains(t, value, "name")
	})

	t.Run("example endpoint", func(t *testing.T) {
		value, err := Generate(doc, gen, interp, GenerateRequest{Endpoint: "GET /pets/mine"})
		require.NoError(t, err)
		assert.Equal(t, map[string]interface{}{"owner": "me", "count": float64(3)}, value)
	})

	t.Run("templated schema", func(t *testing.T) {
		value, err := Generate(doc, gen, interp, GenerateRequest{
			Schema:   map[string]interface{}{"type": "string", "enum": []interface{}{"{{int:5:5}}"}},
			Template: true,
		})
		require.NoError(t, err)
		assert.Equal(t, "5", value)
	})

	t.Run("missing ref", func(t *testing.T) {
		_, err := Generate(doc, gen, interp, GenerateRequest{Ref: "#/components/schemas/Nope"})
		assert.True(t, errors.Is(err, ErrTargetNotFound))
	})
}

func TestGenerateAllExamples(t *testing.T) {
	doc := loadTestDocument(t, "petstore.yaml")
	gen := datagen.New(doc.Raw, datagen.WithSeed(1))
	dir := filepath.Join(t.TempDir(), "examples")

	count, err := GenerateAllExamples(doc, gen, dir)
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	for _, name := range []string{"pets.json", "pets_mine.json", "pets_petId.json", "store_status.json"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}

	// The files load back as overrides
	store := NewOverrideStore()
	loaded, err := store.LoadFromDir(dir)
	require.NoError(t, err)
	assert.Equal(t, 6, loaded)

	remove := store.FindBestMatch("DELETE", "/pets/1")
	require.NotNil(t, remove)
	assert.Equal(t, 204, remove.Status)
	assert.Equal(t, "DELETE_pets_petId", remove.ID)

	_, err = GenerateAllExamples(nil, gen, dir)
	assert.Error(t, err)
}
