package datagen

// MergeAllOf folds allOf members into one schema node, left to right:
//   - properties are merged by key, later members overwrite earlier ones
//   - required is the union of every member's list, first-seen order
//   - every other keyword is taken from the last member declaring it
//
// A member carrying $ref is replaced by its resolved node first, and a member
// that is itself an allOf composition is flattened in place. Members that
// cannot be resolved, including cyclic ones, contribute nothing. base, when
// non-nil, is merged ahead of the members.
func MergeAllOf(resolver *Resolver, base map[string]interface{}, members []map[string]interface{}, visiting RefSet) map[string]interface{} {
	if visiting == nil {
		visiting = NewRefSet()
	}
	m := &allOfMerger{
		resolver:   resolver,
		visiting:   visiting,
		merged:     make(map[string]interface{}),
		properties: make(map[string]interface{}),
		seen:       make(map[string]bool),
	}
	if base != nil {
		m.add(base)
	}
	for _, member := range members {
		m.add(member)
	}
	return m.result()
}

type allOfMerger struct {
	resolver   *Resolver
	visiting   RefSet
	merged     map[string]interface{}
	properties map[string]interface{}
	required   []interface{}
	seen       map[string]bool
}

func (m *allOfMerger) add(node map[string]interface{}) {
	if ref, ok := node["$ref"].(string); ok {
		resolved := m.resolver.Resolve(ref, m.visiting)
		if resolved == nil {
			return
		}
		// Hold the ref while its own allOf members are flattened so a member
		// pointing back at it is dropped instead of expanded again.
		m.visiting.Add(ref)
		defer m.visiting.Remove(ref)
		node = resolved
	}

	for key, value := range node {
		switch key {
		case "$ref", AllOf:
		case "properties":
			if props, ok := value.(map[string]interface{}); ok {
				for name, prop := range props {
					m.properties[name] = prop
				}
			}
		case "required":
			for _, name := range stringList(value) {
				if !m.seen[name] {
					m.seen[name] = true
					m.required = append(m.required, name)
				}
			}
		default:
			m.merged[key] = value
		}
	}

	// Like the top-level base, a node's own keywords sit ahead of its
	// nested members.
	for _, nested := range schemaList(node[AllOf]) {
		m.add(nested)
	}
}

func (m *allOfMerger) result() map[string]interface{} {
	if len(m.properties) > 0 {
		m.merged["properties"] = m.properties
	}
	if len(m.required) > 0 {
		m.merged["required"] = m.required
	}
	return m.merged
}
