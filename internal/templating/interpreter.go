package templating

import (
	"regexp"
	"sort"
	"strings"

	"github.com/xdevplatform/specmock/internal/fakedata"
)

// placeholderPattern matches {{...}} with no braces inside.
var placeholderPattern = regexp.MustCompile(`\{\{([^{}]+)\}\}`)

// Interpreter substitutes placeholders throughout a value tree. It is safe
// for concurrent use.
type Interpreter struct {
	catalog *Catalog
	seed    *int64
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithCatalog replaces the built-in catalog.
func WithCatalog(c *Catalog) Option {
	return func(in *Interpreter) {
		if c != nil {
			in.catalog = c
		}
	}
}

// WithSeed makes every Process call start from the same seed.
func WithSeed(seed int64) Option {
	return func(in *Interpreter) {
		in.seed = &seed
	}
}

// New returns an Interpreter over DefaultCatalog unless WithCatalog says
// otherwise.
func New(opts ...Option) *Interpreter {
	in := &Interpreter{catalog: DefaultCatalog()}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Catalog returns the catalog placeholders are looked up in.
func (in *Interpreter) Catalog() *Catalog {
	return in.catalog
}

// With returns an interpreter that also expands the placeholders in extra,
// sharing this one's seed. Entries in extra replace same-named ones.
func (in *Interpreter) With(extra map[string]Func) *Interpreter {
	if len(extra) == 0 {
		return in
	}
	return &Interpreter{catalog: in.catalog.Extend(extra), seed: in.seed}
}

// Process returns a copy of value with every placeholder in every string
// expanded. Map keys are expanded as well as map values. Values that are
// neither strings nor containers are returned unchanged.
func (in *Interpreter) Process(value interface{}) interface{} {
	return in.walk(value, in.newSource())
}

// ProcessString expands the placeholders in s.
func (in *Interpreter) ProcessString(s string) string {
	return in.expand(s, in.newSource())
}

func (in *Interpreter) newSource() *fakedata.Source {
	if in.seed != nil {
		return fakedata.NewWithSeed(*in.seed)
	}
	return fakedata.New()
}

func (in *Interpreter) walk(value interface{}, src *fakedata.Source) interface{} {
	switch v := value.(type) {
	case string:
		return in.expand(v, src)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for _, key := range sortedKeys(v) {
			out[in.expand(key, src)] = in.walk(v[key], src)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = in.walk(item, src)
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(v))
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			out[in.expand(key, src)] = in.expand(v[key], src)
		}
		return out
	case []map[string]interface{}:
		out := make([]map[string]interface{}, len(v))
		for i, item := range v {
			out[i], _ = in.walk(item, src).(map[string]interface{})
		}
		return out
	case []string:
		out := make([]string, len(v))
		for i, item := range v {
			out[i] = in.expand(item, src)
		}
		return out
	default:
		return value
	}
}

// sortedKeys fixes the order the source is drawn from, so seeded runs repeat.
func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// expand makes a single left-to-right pass over s. Replacement text is never
// scanned again.
func (in *Interpreter) expand(s string, src *fakedata.Source) string {
	if !strings.Contains(s, "{{") {
		return s
	}
	return placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := strings.Split(match[2:len(match)-2], ":")
		fn, ok := in.catalog.Lookup(parts[0])
		if !ok {
			return match
		}
		return fn(src, parts[1:])
	})
}

var defaultInterpreter = New()

// Process expands value with the built-in catalog.
func Process(value interface{}) interface{} {
	return defaultInterpreter.Process(value)
}
