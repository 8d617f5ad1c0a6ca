// Package templating expands {{name:arg:...}} placeholders inside value
// trees.
//
// A Catalog maps placeholder names to generator functions and an Interpreter
// walks strings, maps and slices substituting every recognized placeholder.
// Unknown placeholders are left exactly as written.
package templating

import (
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/xdevplatform/specmock/internal/fakedata"
)

// Func generates the replacement text for one placeholder. args are the raw
// colon-separated arguments after the name; src is the randomness for the
// current Process call.
type Func func(src *fakedata.Source, args []string) string

// Catalog is a read-only, case-insensitive table of placeholder generators.
type Catalog struct {
	entries map[string]Func
}

// NewCatalog builds a catalog from entries. Names are lowercased and trimmed;
// nil functions are skipped.
func NewCatalog(entries map[string]Func) *Catalog {
	c := &Catalog{entries: make(map[string]Func, len(entries))}
	for name, fn := range entries {
		if fn == nil {
			continue
		}
		c.entries[strings.ToLower(strings.TrimSpace(name))] = fn
	}
	return c
}

// Lookup returns the generator registered under name.
func (c *Catalog) Lookup(name string) (Func, bool) {
	if c == nil {
		return nil, false
	}
	fn, ok := c.entries[strings.ToLower(strings.TrimSpace(name))]
	return fn, ok
}

// Names returns every registered name, aliases included, sorted.
func (c *Catalog) Names() []string {
	if c == nil {
		return nil
	}
	names := make([]string, 0, len(c.entries))
	for name := range c.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Extend returns a new catalog holding c's entries plus extra. Entries in
// extra replace same-named ones.
func (c *Catalog) Extend(extra map[string]Func) *Catalog {
	merged := make(map[string]Func, len(c.entries)+len(extra))
	for name, fn := range c.entries {
		merged[name] = fn
	}
	for name, fn := range extra {
		merged[name] = fn
	}
	return NewCatalog(merged)
}

var (
	defaultCatalog     *Catalog
	defaultCatalogOnce sync.Once
)

// DefaultCatalog returns the built-in catalog. It is built on first use and
// shared afterwards.
func DefaultCatalog() *Catalog {
	defaultCatalogOnce.Do(func() {
		defaultCatalog = NewCatalog(builtinEntries())
	})
	return defaultCatalog
}

const (
	maxStringLength = 10000
	maxAge          = 120
	maxWords        = 100
	maxDecimals     = 10
	maxDays         = 36500
	intLimit        = int64(1e15)
	floatLimit      = 1e15
)

var (
	httpMethods  = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"}
	httpStatuses = []string{"200", "201", "202", "204", "301", "302", "304", "400", "401", "403", "404", "409", "422", "429", "500", "502", "503"}
)

func builtinEntries() map[string]Func {
	entries := map[string]Func{
		// Identifiers and numbers
		"uuid": func(src *fakedata.Source, _ []string) string {
			return src.UUID()
		},
		"int": func(src *fakedata.Source, args []string) string {
			lo := intArg(args, 0, 0, -intLimit, intLimit)
			hi := intArg(args, 1, 1000, -intLimit, intLimit)
			return strconv.FormatInt(src.IntBetween(lo, hi), 10)
		},
		"float": func(src *fakedata.Source, args []string) string {
			lo := floatArg(args, 0, 0, -floatLimit, floatLimit)
			hi := floatArg(args, 1, 1000, -floatLimit, floatLimit)
			decimals := int(intArg(args, 2, 2, 0, maxDecimals))
			return strconv.FormatFloat(src.FloatBetween(lo, hi), 'f', decimals, 64)
		},
		"price": func(src *fakedata.Source, args []string) string {
			lo := floatArg(args, 0, 1, 0, floatLimit)
			hi := floatArg(args, 1, 1000, 0, floatLimit)
			return strconv.FormatFloat(src.FloatBetween(lo, hi), 'f', 2, 64)
		},
		"bool": func(src *fakedata.Source, _ []string) string {
			return strconv.FormatBool(src.Bool())
		},

		// Character strings
		"string": func(src *fakedata.Source, args []string) string {
			return src.AlphaNumeric(int(intArg(args, 0, 10, 1, maxStringLength)))
		},
		"alpha": func(src *fakedata.Source, args []string) string {
			return src.Letters(int(intArg(args, 0, 10, 1, maxStringLength)))
		},
		"hex": func(src *fakedata.Source, args []string) string {
			return src.Hex(int(intArg(args, 0, 16, 1, maxStringLength)))
		},
		"digits": func(src *fakedata.Source, args []string) string {
			return src.Digits(int(intArg(args, 0, 6, 1, maxStringLength)))
		},
		"password": func(src *fakedata.Source, args []string) string {
			return src.Password(int(intArg(args, 0, 16, 1, maxStringLength)))
		},

		// People
		"name": func(src *fakedata.Source, _ []string) string {
			return src.Faker().Person().Name()
		},
		"first-name": func(src *fakedata.Source, _ []string) string {
			return src.Faker().Person().FirstName()
		},
		"last-name": func(src *fakedata.Source, _ []string) string {
			return src.Faker().Person().LastName()
		},
		"username": func(src *fakedata.Source, _ []string) string {
			return src.Faker().Internet().User()
		},
		"email": func(src *fakedata.Source, _ []string) string {
			return src.Email()
		},
		"phone": func(src *fakedata.Source, _ []string) string {
			return src.Faker().Phone().Number()
		},
		"age": func(src *fakedata.Source, args []string) string {
			lo := intArg(args, 0, 18, 0, maxAge)
			hi := intArg(args, 1, 80, 0, maxAge)
			if len(args) == 1 {
				// A single argument is an exact age.
				hi = lo
			}
			return strconv.FormatInt(src.IntBetween(lo, hi), 10)
		},

		// Dates and times
		"date": func(src *fakedata.Source, _ []string) string {
			return src.Instant().Format("2006-01-02")
		},
		"past-date": func(src *fakedata.Source, args []string) string {
			days := time.Duration(intArg(args, 0, 365, 1, maxDays))
			return src.InstantBetween(-days*24*time.Hour, -24*time.Hour).Format("2006-01-02")
		},
		"future-date": func(src *fakedata.Source, args []string) string {
			days := time.Duration(intArg(args, 0, 365, 1, maxDays))
			return src.InstantBetween(24*time.Hour, days*24*time.Hour).Format("2006-01-02")
		},
		"datetime": func(src *fakedata.Source, _ []string) string {
			return src.Instant().Format(time.RFC3339)
		},
		"now": func(_ *fakedata.Source, _ []string) string {
			return time.Now().UTC().Format(time.RFC3339)
		},
		"today": func(_ *fakedata.Source, _ []string) string {
			return time.Now().UTC().Format("2006-01-02")
		},
		"unix": func(_ *fakedata.Source, _ []string) string {
			return strconv.FormatInt(time.Now().Unix(), 10)
		},
		"unix-ms": func(_ *fakedata.Source, _ []string) string {
			return strconv.FormatInt(time.Now().UnixMilli(), 10)
		},
		"time": func(src *fakedata.Source, _ []string) string {
			return src.Instant().Format("15:04:05")
		},

		// Network
		"ipv4": func(src *fakedata.Source, _ []string) string {
			return src.IPv4()
		},
		"ipv6": func(src *fakedata.Source, _ []string) string {
			return src.IPv6()
		},
		"mac": func(src *fakedata.Source, _ []string) string {
			return src.Faker().Internet().MacAddress()
		},
		"url": func(src *fakedata.Source, _ []string) string {
			return src.URL()
		},
		"domain": func(src *fakedata.Source, _ []string) string {
			return src.Hostname()
		},
		"slug": func(src *fakedata.Source, args []string) string {
			words := src.Faker().Lorem().Words(int(intArg(args, 0, 3, 1, maxWords)))
			return strings.ToLower(strings.Join(words, "-"))
		},
		"user-agent": func(src *fakedata.Source, _ []string) string {
			return src.Faker().UserAgent().UserAgent()
		},

		// Places
		"city": func(src *fakedata.Source, _ []string) string {
			return src.Faker().Address().City()
		},
		"country": func(src *fakedata.Source, _ []string) string {
			return src.Faker().Address().Country()
		},
		"street": func(src *fakedata.Source, _ []string) string {
			return src.Faker().Address().StreetAddress()
		},
		"zip": func(src *fakedata.Source, _ []string) string {
			return src.Faker().Address().PostCode()
		},
		"latitude": func(src *fakedata.Source, _ []string) string {
			return strconv.FormatFloat(src.FloatBetween(-90, 90), 'f', 6, 64)
		},
		"longitude": func(src *fakedata.Source, _ []string) string {
			return strconv.FormatFloat(src.FloatBetween(-180, 180), 'f', 6, 64)
		},

		// Business
		"company": func(src *fakedata.Source, _ []string) string {
			return src.Faker().Company().Name()
		},
		"job-title": func(src *fakedata.Source, _ []string) string {
			return src.Faker().Company().JobTitle()
		},
		"catch-phrase": func(src *fakedata.Source, _ []string) string {
			return src.Faker().Company().CatchPhrase()
		},
		"currency": func(src *fakedata.Source, _ []string) string {
			return src.Faker().Currency().Code()
		},
		"credit-card": func(src *fakedata.Source, _ []string) string {
			return src.Faker().Payment().CreditCardNumber()
		},

		// Text
		"word": func(src *fakedata.Source, _ []string) string {
			return src.Faker().Lorem().Word()
		},
		"words": func(src *fakedata.Source, args []string) string {
			return strings.Join(src.Faker().Lorem().Words(int(intArg(args, 0, 3, 1, maxWords))), " ")
		},
		"sentence": func(src *fakedata.Source, args []string) string {
			return src.Faker().Lorem().Sentence(int(intArg(args, 0, 8, 1, maxWords)))
		},
		"paragraph": func(src *fakedata.Source, args []string) string {
			return src.Faker().Lorem().Paragraph(int(intArg(args, 0, 3, 1, maxWords)))
		},
		"color": func(src *fakedata.Source, _ []string) string {
			return src.Faker().Color().ColorName()
		},

		// Protocol
		"http-method": func(src *fakedata.Source, _ []string) string {
			return src.Pick(httpMethods...)
		},
		"http-status": func(src *fakedata.Source, _ []string) string {
			return src.Pick(httpStatuses...)
		},
		"semver": semverFunc,

		// Helpers over the arguments themselves
		"pick": func(src *fakedata.Source, args []string) string {
			choices := make([]string, 0, len(args))
			for _, arg := range args {
				choices = append(choices, strings.TrimSpace(arg))
			}
			return src.Pick(choices...)
		},
		"upper": func(_ *fakedata.Source, args []string) string {
			return strings.ToUpper(restArg(args, 0))
		},
		"lower": func(_ *fakedata.Source, args []string) string {
			return strings.ToLower(restArg(args, 0))
		},
	}

	aliases := map[string]string{
		"guid":         "uuid",
		"order-id":     "uuid",
		"order_id":     "uuid",
		"integer":      "int",
		"number":       "int",
		"decimal":      "float",
		"boolean":      "bool",
		"full-name":    "name",
		"first_name":   "first-name",
		"firstname":    "first-name",
		"last_name":    "last-name",
		"lastname":     "last-name",
		"user":         "username",
		"timestamp":    "datetime",
		"date-time":    "datetime",
		"unix_ms":      "unix-ms",
		"ip":           "ipv4",
		"uri":          "url",
		"hostname":     "domain",
		"user_agent":   "user-agent",
		"postcode":     "zip",
		"zipcode":      "zip",
		"lat":          "latitude",
		"lng":          "longitude",
		"job_title":    "job-title",
		"catch_phrase": "catch-phrase",
		"credit_card":  "credit-card",
		"http_method":  "http-method",
		"http_status":  "http-status",
		"version":      "semver",
		"past_date":    "past-date",
		"future_date":  "future-date",
	}
	for alias, target := range aliases {
		entries[alias] = entries[target]
	}
	return entries
}

// semverFunc renders a random semantic version. An optional argument becomes
// the prerelease tag, e.g. {{semver:beta}} gives 2.4.1-beta.3; an invalid tag
// is dropped.
func semverFunc(src *fakedata.Source, args []string) string {
	major := uint64(src.IntBetween(0, 9))
	minor := uint64(src.IntBetween(0, 20))
	patch := uint64(src.IntBetween(0, 50))

	pre := ""
	if tag := strArg(args, 0, ""); tag != "" {
		pre = tag + "." + strconv.FormatInt(src.IntBetween(1, 9), 10)
	}

	v := semver.New(major, minor, patch, pre, "")
	if _, err := semver.StrictNewVersion(v.String()); err != nil {
		return semver.New(major, minor, patch, "", "").String()
	}
	return v.String()
}
