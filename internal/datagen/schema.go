// Package datagen turns JSON Schema nodes taken from OpenAPI documents into
// concrete, randomly generated instances.
//
// Schema nodes arrive as decoded JSON (map[string]interface{}). Parse gives
// each node a typed view, one variant per recognized shape, and Generator
// dispatches over those variants. Only a practical subset of JSON Schema is
// honored: type, format, enum, the numeric and length bounds, items,
// properties, required, additionalProperties, multipleOf and the
// oneOf/anyOf/allOf composition keywords.
package datagen

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
)

// Kind identifies the variant returned by Parse.
type Kind int

const (
	KindUnknown Kind = iota
	KindRef
	KindComposition
	KindString
	KindNumber
	KindBoolean
	KindArray
	KindObject
	KindNull
)

var kindNames = map[Kind]string{
	KindUnknown:     "unknown",
	KindRef:         "ref",
	KindComposition: "composition",
	KindString:      "string",
	KindNumber:      "number",
	KindBoolean:     "boolean",
	KindArray:       "array",
	KindObject:      "object",
	KindNull:        "null",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Schema is the typed view of a schema node. The concrete type is always one
// of the pointer types declared in this file.
type Schema interface {
	Kind() Kind
}

// RefSchema defers to another node in the root document. Sibling keywords
// are ignored.
type RefSchema struct {
	Ref string
}

// Composition keywords.
const (
	OneOf = "oneOf"
	AnyOf = "anyOf"
	AllOf = "allOf"
)

// CompositionSchema combines member nodes with oneOf, anyOf or allOf.
type CompositionSchema struct {
	Keyword string
	Members []map[string]interface{}
	// Base holds the keywords declared next to allOf. It is merged ahead of
	// the members.
	Base map[string]interface{}
}

// StringSchema describes a string value.
type StringSchema struct {
	Enum      []interface{}
	Format    string
	MinLength *int
	MaxLength *int
}

// NumberSchema describes a number or, when Integer is set, an integer.
type NumberSchema struct {
	Integer    bool
	Enum       []interface{}
	Minimum    *float64
	Maximum    *float64
	MultipleOf *float64
}

// BooleanSchema describes a boolean value.
type BooleanSchema struct{}

// ArraySchema describes a sequence whose elements all follow Items.
type ArraySchema struct {
	Items    map[string]interface{}
	MinItems *int
	MaxItems *int
}

// AdditionalProperties captures the two accepted forms of the keyword.
type AdditionalProperties struct {
	// Any is set when the keyword is literally true.
	Any bool
	// Schema is set when the keyword is a schema node.
	Schema map[string]interface{}
}

// ObjectSchema describes a mapping.
type ObjectSchema struct {
	Properties map[string]map[string]interface{}
	// Names lists the property names in sorted order so seeded generation
	// does not depend on map iteration.
	Names      []string
	Required   map[string]bool
	Additional AdditionalProperties
}

// NullSchema describes the null value.
type NullSchema struct{}

// UnknownSchema is returned for nil nodes and unrecognized types.
type UnknownSchema struct {
	Type string
}

func (*RefSchema) Kind() Kind         { return KindRef }
func (*CompositionSchema) Kind() Kind { return KindComposition }
func (*StringSchema) Kind() Kind      { return KindString }
func (*NumberSchema) Kind() Kind      { return KindNumber }
func (*BooleanSchema) Kind() Kind     { return KindBoolean }
func (*ArraySchema) Kind() Kind       { return KindArray }
func (*ObjectSchema) Kind() Kind      { return KindObject }
func (*NullSchema) Kind() Kind        { return KindNull }
func (*UnknownSchema) Kind() Kind     { return KindUnknown }

// Parse returns the typed view of node. It never fails: anything it cannot
// make sense of becomes *UnknownSchema.
func Parse(node map[string]interface{}) Schema {
	if node == nil {
		return &UnknownSchema{}
	}

	if ref, ok := node["$ref"].(string); ok {
		return &RefSchema{Ref: ref}
	}

	for _, keyword := range []string{OneOf, AnyOf} {
		if members := schemaList(node[keyword]); len(members) > 0 {
			return &CompositionSchema{Keyword: keyword, Members: members}
		}
	}
	if members := schemaList(node[AllOf]); len(members) > 0 {
		base := make(map[string]interface{}, len(node))
		for k, v := range node {
			if k != AllOf {
				base[k] = v
			}
		}
		return &CompositionSchema{Keyword: AllOf, Members: members, Base: base}
	}

	switch schemaType(node) {
	case "string":
		return &StringSchema{
			Enum:      enumValues(node),
			Format:    stringValue(node["format"]),
			MinLength: intValue(node["minLength"]),
			MaxLength: intValue(node["maxLength"]),
		}
	case "integer", "number":
		return &NumberSchema{
			Integer:    schemaType(node) == "integer",
			Enum:       enumValues(node),
			Minimum:    floatValue(node["minimum"]),
			Maximum:    floatValue(node["maximum"]),
			MultipleOf: positive(floatValue(node["multipleOf"])),
		}
	case "boolean":
		return &BooleanSchema{}
	case "array":
		items, _ := node["items"].(map[string]interface{})
		return &ArraySchema{
			Items:    items,
			MinItems: intValue(node["minItems"]),
			MaxItems: intValue(node["maxItems"]),
		}
	case "object":
		return parseObject(node)
	case "null":
		return &NullSchema{}
	default:
		return &UnknownSchema{Type: schemaType(node)}
	}
}

func parseObject(node map[string]interface{}) *ObjectSchema {
	obj := &ObjectSchema{
		Properties: make(map[string]map[string]interface{}),
		Required:   make(map[string]bool),
	}

	if props, ok := node["properties"].(map[string]interface{}); ok {
		for name, prop := range props {
			propNode, ok := prop.(map[string]interface{})
			if !ok {
				// Boolean schemas and other shorthands accept anything.
				propNode = map[string]interface{}{}
			}
			obj.Properties[name] = propNode
			obj.Names = append(obj.Names, name)
		}
		sort.Strings(obj.Names)
	}

	for _, name := range stringList(node["required"]) {
		obj.Required[name] = true
	}

	switch additional := node["additionalProperties"].(type) {
	case bool:
		obj.Additional.Any = additional
	case map[string]interface{}:
		obj.Additional.Schema = additional
	}

	return obj
}

// schemaType returns the declared type, or infers one from the keywords
// present. A list-valued type uses its first non-null entry.
func schemaType(node map[string]interface{}) string {
	switch t := node["type"].(type) {
	case string:
		return t
	case []interface{}:
		sawNull := false
		for _, entry := range t {
			name, _ := entry.(string)
			if name == "null" {
				sawNull = true
				continue
			}
			if name != "" {
				return name
			}
		}
		if sawNull {
			return "null"
		}
	}

	if _, ok := node["properties"]; ok {
		return "object"
	}
	if _, ok := node["additionalProperties"]; ok {
		return "object"
	}
	if _, ok := node["items"]; ok {
		return "array"
	}
	switch stringValue(node["format"]) {
	case "int32", "int64":
		return "integer"
	case "float", "double":
		return "number"
	}
	return "string"
}

func schemaList(v interface{}) []map[string]interface{} {
	list, ok := v.([]interface{})
	if !ok {
		if typed, ok := v.([]map[string]interface{}); ok {
			return typed
		}
		return nil
	}
	members := make([]map[string]interface{}, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]interface{}); ok {
			members = append(members, m)
		}
	}
	return members
}

func enumValues(node map[string]interface{}) []interface{} {
	switch enum := node["enum"].(type) {
	case []interface{}:
		if len(enum) > 0 {
			return enum
		}
	case []string:
		values := make([]interface{}, len(enum))
		for i, s := range enum {
			values[i] = s
		}
		if len(values) > 0 {
			return values
		}
	}
	return nil
}

func stringList(v interface{}) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []interface{}:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func stringValue(v interface{}) string {
	s, _ := v.(string)
	return s
}

// toFloat accepts every numeric shape a decoded document can carry.
func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

func floatValue(v interface{}) *float64 {
	f, ok := toFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func intValue(v interface{}) *int {
	f, ok := toFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	if f > math.MaxInt32 {
		f = math.MaxInt32
	}
	if f < 0 {
		f = 0
	}
	n := int(f)
	return &n
}

func positive(f *float64) *float64 {
	if f == nil || *f <= 0 {
		return nil
	}
	return f
}
