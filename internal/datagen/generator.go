package datagen

import (
	"math"
	"time"

	"github.com/xdevplatform/specmock/internal/fakedata"
)

const (
	defaultMinLength = 1
	defaultMaxLength = 50
	defaultMinimum   = 0.0
	defaultMaximum   = 1000.0
	defaultMinItems  = 1
	defaultMaxItems  = 5

	// DefaultOptionalPropertyRate is the chance an optional property is
	// emitted.
	DefaultOptionalPropertyRate = 0.5

	// DefaultItemsCap and DefaultLengthCap bound what a single schema can
	// ask for.
	DefaultItemsCap  = 1000
	DefaultLengthCap = 10000

	maxAdditionalProperties = 3
	additionalKeyPrefix     = "additional_"
)

// Generator produces instances of schema nodes. It is safe for concurrent
// use: every call gets its own RefSet and its own random source.
type Generator struct {
	resolver     *Resolver
	seed         *int64
	optionalRate float64
	itemsCap     int
	lengthCap    int
}

// Option configures a Generator.
type Option func(*Generator)

// WithSeed makes every call start from the same seed, so identical schemas
// produce identical instances (apart from values derived from the clock).
func WithSeed(seed int64) Option {
	return func(g *Generator) {
		g.seed = &seed
	}
}

// WithOptionalPropertyRate sets the chance, clamped to [0,1], that a property
// not listed in required is emitted.
func WithOptionalPropertyRate(rate float64) Option {
	return func(g *Generator) {
		g.optionalRate = math.Max(0, math.Min(1, rate))
	}
}

// WithLimits caps array lengths and string lengths. Non-positive values keep
// the defaults.
func WithLimits(maxItems, maxLength int) Option {
	return func(g *Generator) {
		if maxItems > 0 {
			g.itemsCap = maxItems
		}
		if maxLength > 0 {
			g.lengthCap = maxLength
		}
	}
}

// New returns a Generator resolving references against root.
func New(root map[string]interface{}, opts ...Option) *Generator {
	g := &Generator{
		resolver:     NewResolver(root),
		optionalRate: DefaultOptionalPropertyRate,
		itemsCap:     DefaultItemsCap,
		lengthCap:    DefaultLengthCap,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Resolver returns the resolver the generator uses.
func (g *Generator) Resolver() *Resolver {
	return g.resolver
}

// Generate returns one instance of schema. A nil schema yields nil.
func (g *Generator) Generate(schema map[string]interface{}) interface{} {
	return g.GenerateWith(schema, NewRefSet())
}

// GenerateRef generates an instance of the node ref points to.
func (g *Generator) GenerateRef(ref string) interface{} {
	return g.Generate(map[string]interface{}{"$ref": ref})
}

// GenerateWith generates schema while threading a caller-owned visiting set.
func (g *Generator) GenerateWith(schema map[string]interface{}, visiting RefSet) interface{} {
	if schema == nil {
		return nil
	}
	if visiting == nil {
		visiting = NewRefSet()
	}
	r := &run{Generator: g, visiting: visiting, src: g.newSource()}
	return r.generate(schema)
}

func (g *Generator) newSource() *fakedata.Source {
	if g.seed != nil {
		return fakedata.NewWithSeed(*g.seed)
	}
	return fakedata.New()
}

// run carries the per-call state through the recursion.
type run struct {
	*Generator
	visiting RefSet
	src      *fakedata.Source
}

func (r *run) generate(node map[string]interface{}) interface{} {
	switch s := Parse(node).(type) {
	case *RefSchema:
		return r.generateRef(s)
	case *CompositionSchema:
		return r.generateComposition(s)
	case *StringSchema:
		return r.generateString(s)
	case *NumberSchema:
		return r.generateNumber(s)
	case *BooleanSchema:
		return r.src.Bool()
	case *ArraySchema:
		return r.generateArray(s)
	case *ObjectSchema:
		return r.generateObject(s)
	case *NullSchema, *UnknownSchema:
		return nil
	default:
		return nil
	}
}

// generateRef returns an empty object when the reference is unresolvable or
// already being generated higher up this path.
func (r *run) generateRef(s *RefSchema) interface{} {
	if r.visiting.Has(s.Ref) {
		return map[string]interface{}{}
	}
	resolved := r.resolver.Resolve(s.Ref, r.visiting)
	if resolved == nil {
		return map[string]interface{}{}
	}

	r.visiting.Add(s.Ref)
	defer r.visiting.Remove(s.Ref)
	return r.generate(resolved)
}

func (r *run) generateComposition(s *CompositionSchema) interface{} {
	switch s.Keyword {
	case OneOf, AnyOf:
		return r.generate(s.Members[r.src.Intn(len(s.Members))])
	default:
		return r.generate(MergeAllOf(r.resolver, s.Base, s.Members, r.visiting))
	}
}

func (r *run) generateString(s *StringSchema) interface{} {
	if len(s.Enum) > 0 {
		return s.Enum[r.src.Intn(len(s.Enum))]
	}

	switch s.Format {
	case "uuid":
		return r.src.UUID()
	case "email":
		return r.src.Email()
	case "date-time":
		return r.src.Instant().Format(time.RFC3339)
	case "date":
		return r.src.Instant().Format("2006-01-02")
	case "time":
		return r.src.Instant().Format("15:04:05")
	case "uri", "url":
		return r.src.URL()
	case "hostname":
		return r.src.Hostname()
	case "ipv4":
		return r.src.IPv4()
	case "ipv6":
		return r.src.IPv6()
	case "password":
		return r.src.Password(int(r.src.IntBetween(12, 20)))
	case "byte":
		return r.src.Base64(int(r.src.IntBetween(8, 32)))
	}

	minLength, maxLength := defaultMinLength, defaultMaxLength
	if s.MinLength != nil {
		minLength = *s.MinLength
	}
	if s.MaxLength != nil {
		maxLength = *s.MaxLength
	}
	minLength, maxLength = boundedRange(minLength, maxLength, r.lengthCap)
	return r.src.AlphaNumeric(int(r.src.IntBetween(int64(minLength), int64(maxLength))))
}

func (r *run) generateNumber(s *NumberSchema) interface{} {
	if len(s.Enum) > 0 {
		return s.Enum[r.src.Intn(len(s.Enum))]
	}

	minimum, maximum := defaultMinimum, defaultMaximum
	if s.Minimum != nil {
		minimum = *s.Minimum
	}
	if s.Maximum != nil {
		maximum = *s.Maximum
	}
	if maximum < minimum {
		if s.Maximum == nil {
			// Only the lower bound was given and it exceeds the default
			// ceiling; keep the default span above it.
			maximum = minimum + defaultMaximum
		} else {
			minimum, maximum = maximum, minimum
		}
	}

	if s.Integer {
		lo, hi := int64Range(math.Ceil(minimum)), int64Range(math.Floor(maximum))
		if hi < lo {
			// No integer lies inside the bounds; minimum rounded up is used.
			hi = lo
		}
		value := r.src.IntBetween(int64(lo), int64(hi))
		if s.MultipleOf != nil {
			return int64(snapDown(float64(value), *s.MultipleOf, lo, hi))
		}
		return value
	}

	value := r.src.FloatBetween(minimum, maximum)
	if s.MultipleOf != nil {
		return snapDown(value, *s.MultipleOf, minimum, maximum)
	}
	return value
}

// Largest and smallest float64 values that convert to int64 without
// overflowing. float64(math.MaxInt64) rounds up to 2^63, which does not.
var (
	maxInt64Float = math.Nextafter(math.MaxInt64, 0)
	minInt64Float = float64(math.MinInt64)
)

// int64Range clamps f to the range int64 can hold.
func int64Range(f float64) float64 {
	return math.Max(minInt64Float, math.Min(maxInt64Float, f))
}

// snapDown floors value to a multiple of step. When that lands below lo and
// the next multiple still fits under hi, the next multiple is used.
func snapDown(value, step, lo, hi float64) float64 {
	snapped := math.Floor(value/step) * step
	if snapped < lo && snapped+step <= hi {
		snapped += step
	}
	return snapped
}

func (r *run) generateArray(s *ArraySchema) interface{} {
	minItems, maxItems := defaultMinItems, defaultMaxItems
	if s.MinItems != nil {
		minItems = *s.MinItems
	}
	if s.MaxItems != nil {
		maxItems = *s.MaxItems
	}
	minItems, maxItems = boundedRange(minItems, maxItems, r.itemsCap)

	items := s.Items
	if items == nil {
		items = map[string]interface{}{"type": "string"}
	}

	count := int(r.src.IntBetween(int64(minItems), int64(maxItems)))
	result := make([]interface{}, count)
	for i := range result {
		result[i] = r.generate(items)
	}
	return result
}

func (r *run) generateObject(s *ObjectSchema) interface{} {
	result := make(map[string]interface{}, len(s.Names))

	for _, name := range s.Names {
		if !s.Required[name] && !r.src.Chance(r.optionalRate) {
			continue
		}
		result[name] = r.generate(s.Properties[name])
	}

	switch {
	case s.Additional.Schema != nil:
		for i, n := 0, r.src.Intn(maxAdditionalProperties+1); i < n; i++ {
			result[additionalKeyPrefix+r.src.AlphaNumeric(8)] = r.generate(s.Additional.Schema)
		}
	case s.Additional.Any:
		for i, n := 0, r.src.Intn(maxAdditionalProperties+1); i < n; i++ {
			result[additionalKeyPrefix+r.src.AlphaNumeric(8)] = r.randomScalar()
		}
	}

	return result
}

func (r *run) randomScalar() interface{} {
	switch r.src.Intn(3) {
	case 0:
		return r.src.AlphaNumeric(int(r.src.IntBetween(defaultMinLength, 12)))
	case 1:
		return r.src.FloatBetween(defaultMinimum, defaultMaximum)
	default:
		return r.src.Bool()
	}
}

// boundedRange orders [lo, hi] and clamps both ends to [0, limit].
func boundedRange(lo, hi, limit int) (int, int) {
	if lo < 0 {
		lo = 0
	}
	if hi < lo {
		hi = lo
	}
	if lo > limit {
		lo = limit
	}
	if hi > limit {
		hi = limit
	}
	return lo, hi
}
