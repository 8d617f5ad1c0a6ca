package datagen

import (
	"strconv"
	"strings"
)

// RefSet holds the references currently being resolved or generated on the
// active call path. It is not a history: entries are removed again when the
// frame that added them returns, so a reference may appear on sibling
// branches while direct recursion is cut off.
type RefSet map[string]struct{}

// NewRefSet returns an empty set.
func NewRefSet() RefSet {
	return make(RefSet)
}

// Has reports whether ref is on the current path.
func (s RefSet) Has(ref string) bool {
	_, ok := s[ref]
	return ok
}

// Add marks ref as in progress.
func (s RefSet) Add(ref string) {
	s[ref] = struct{}{}
}

// Remove clears ref.
func (s RefSet) Remove(ref string) {
	delete(s, ref)
}

// Resolver looks up local references ("#/a/b/c", or "/a/b/c" without the
// fragment marker) in a root document.
// The root is only read, so one Resolver can serve concurrent callers as long
// as each passes its own RefSet.
type Resolver struct {
	root map[string]interface{}
}

// NewResolver returns a resolver over root. A nil root resolves nothing.
func NewResolver(root map[string]interface{}) *Resolver {
	return &Resolver{root: root}
}

// Root returns the document the resolver walks.
func (r *Resolver) Root() map[string]interface{} {
	if r == nil {
		return nil
	}
	return r.root
}

// Resolve returns the schema node ref points to, following chains of nodes
// that are themselves references. It returns nil when the reference cannot
// be found, walks through a non-container, or is already in visiting.
//
// ref is held in visiting for the duration of the call and removed on every
// return path.
func (r *Resolver) Resolve(ref string, visiting RefSet) map[string]interface{} {
	if r == nil || r.root == nil {
		return nil
	}
	if visiting == nil {
		visiting = NewRefSet()
	}
	if visiting.Has(ref) {
		return nil
	}
	visiting.Add(ref)
	defer visiting.Remove(ref)

	node := r.lookup(ref)
	if node == nil {
		return nil
	}
	if next, ok := node["$ref"].(string); ok {
		return r.Resolve(next, visiting)
	}
	return node
}

func (r *Resolver) lookup(ref string) map[string]interface{} {
	if strings.Index(ref, "#") > 0 {
		// Another document; external documents are not loaded.
		return nil
	}

	var current interface{} = r.root
	for _, segment := range strings.Split(strings.TrimPrefix(ref, "#"), "/") {
		if segment == "" {
			continue
		}
		segment = unescapePointer(segment)

		switch container := current.(type) {
		case map[string]interface{}:
			next, ok := container[segment]
			if !ok {
				return nil
			}
			current = next
		case []interface{}:
			index, err := strconv.Atoi(segment)
			if err != nil || index < 0 || index >= len(container) {
				return nil
			}
			current = container[index]
		default:
			return nil
		}
	}

	node, _ := current.(map[string]interface{})
	return node
}

// unescapePointer decodes the two JSON Pointer escapes. "~1" must be
// replaced before "~0".
func unescapePointer(segment string) string {
	if !strings.Contains(segment, "~") {
		return segment
	}
	segment = strings.ReplaceAll(segment, "~1", "/")
	return strings.ReplaceAll(segment, "~0", "~")
}
