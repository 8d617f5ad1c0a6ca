package datagen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	root := decode(t, `{
		"components": {
			"schemas": {
				"User": {"type":"object"},
				"Alias": {"$ref":"#/components/schemas/User"},
				"AliasOfAlias": {"$ref":"#/components/schemas/Alias"},
				"SelfLoop": {"$ref":"#/components/schemas/SelfLoop"},
				"Ping": {"$ref":"#/components/schemas/Pong"},
				"Pong": {"$ref":"#/components/schemas/Ping"},
				"a/b": {"type":"string"},
				"Scalar": 42
			}
		},
		"paths": {"/pets": {"get": {"parameters": [{"schema": {"type":"integer"}}]}}}
	}`)
	resolver := NewResolver(root)

	tests := []struct {
		name     string
		ref      string
		wantType string
		wantNil  bool
	}{
		{name: "Direct", ref: "#/components/schemas/User", wantType: "object"},
		{name: "Chain", ref: "#/components/schemas/AliasOfAlias", wantType: "object"},
		{name: "Escaped segment", ref: "#/components/schemas/a~1b", wantType: "string"},
		{name: "Empty segments dropped", ref: "#//components//schemas/User", wantType: "object"},
		{name: "List index", ref: "#/paths/~1pets/get/parameters/0/schema", wantType: "integer"},
		{name: "Missing", ref: "#/components/schemas/Nope", wantNil: true},
		{name: "Through scalar", ref: "#/components/schemas/Scalar/type", wantNil: true},
		{name: "Final node not an object", ref: "#/components/schemas/Scalar", wantNil: true},
		{name: "Index out of range", ref: "#/paths/~1pets/get/parameters/3", wantNil: true},
		{name: "Self loop", ref: "#/components/schemas/SelfLoop", wantNil: true},
		{name: "Two-step loop", ref: "#/components/schemas/Ping", wantNil: true},
		{name: "Without fragment marker", ref: "/components/schemas/User", wantType: "object"},
		{name: "Chain without fragment marker", ref: "/components/schemas/AliasOfAlias", wantType: "object"},
		{name: "External document", ref: "other.yaml#/components/schemas/User", wantNil: true},
		{name: "External URL", ref: "https://example.com/api.yaml#/components/schemas/User", wantNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			visiting := NewRefSet()
			node := resolver.Resolve(tt.ref, visiting)
			assert.Empty(t, visiting, "visiting set must be restored")
			if tt.wantNil {
				assert.Nil(t, node)
				return
			}
			require.NotNil(t, node)
			assert.Equal(t, tt.wantType, node["type"])
		})
	}
}

func TestResolveHonoursVisitingSet(t *testing.T) {
	root := decode(t, `{"components":{"schemas":{"User":{"type":"object"}}}}`)
	resolver := NewResolver(root)

	visiting := NewRefSet()
	visiting.Add("#/components/schemas/User")
	assert.Nil(t, resolver.Resolve("#/components/schemas/User", visiting))
	assert.True(t, visiting.Has("#/components/schemas/User"), "caller entries are left alone")
}

func TestResolveNilRoot(t *testing.T) {
	assert.Nil(t, NewResolver(nil).Resolve("#/components/schemas/User", NewRefSet()))

	var resolver *Resolver
	assert.Nil(t, resolver.Resolve("#/x", nil))
	assert.Nil(t, resolver.Root())
}

func TestMergeAllOf(t *testing.T) {
	root := decode(t, `{"components":{"schemas":{
		"Named": {"type":"object","description":"named","properties":{"name":{"type":"string"}},"required":["name"]}
	}}}`)
	resolver := NewResolver(root)

	members := []map[string]interface{}{
		decode(t, `{"$ref":"#/components/schemas/Named"}`),
		decode(t, `{"description":"override","properties":{"name":{"type":"integer"},"age":{"type":"integer"}},"required":["age","name"]}`),
		decode(t, `{"allOf":[{"title":"nested","required":["extra"]}]}`),
	}
	base := decode(t, `{"title":"base"}`)

	merged := MergeAllOf(resolver, base, members, NewRefSet())

	assert.Equal(t, "object", merged["type"])
	assert.Equal(t, "override", merged["description"], "later scalar keywords win")
	assert.Equal(t, "nested", merged["title"], "members override the base")
	assert.Equal(t, []interface{}{"name", "age", "extra"}, merged["required"])

	props := merged["properties"].(map[string]interface{})
	assert.Len(t, props, 2)
	assert.Equal(t, "integer", props["name"].(map[string]interface{})["type"], "later properties overwrite by key")
	assert.NotContains(t, merged, "allOf")
	assert.NotContains(t, merged, "$ref")

	// Inputs stay untouched.
	named := root["components"].(map[string]interface{})["schemas"].(map[string]interface{})["Named"].(map[string]interface{})
	assert.Equal(t, "named", named["description"])
	assert.Len(t, named["properties"], 1)
}

func TestMergeAllOfOrderMatters(t *testing.T) {
	first := decode(t, `{"type":"string","format":"email"}`)
	second := decode(t, `{"type":"integer"}`)

	assert.Equal(t, "integer", MergeAllOf(nil, nil, []map[string]interface{}{first, second}, nil)["type"])
	assert.Equal(t, "string", MergeAllOf(nil, nil, []map[string]interface{}{second, first}, nil)["type"])
}
