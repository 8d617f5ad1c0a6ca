// Package fakedata supplies the random primitive values used by the schema
// generator and the template catalog.
//
// A Source wraps its own *rand.Rand and faker instance. It is not safe for
// concurrent use; callers create one per top-level generation call, which is
// what keeps the generator and the interpreter free of shared mutable state.
package fakedata

import (
	"encoding/base64"
	"math"
	"math/rand"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jaswdr/faker/v2"
)

const (
	alphaNumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	letters      = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	hexDigits    = "0123456789abcdef"
	digits       = "0123456789"
	passwordSet  = alphaNumeric + "!@#$%^&*-_=+?"
)

// seedCounter keeps seeds distinct when many sources are created within the
// same clock tick.
var seedCounter int64

// Source produces random primitive and semantic values.
type Source struct {
	rnd  *rand.Rand
	fake faker.Faker
}

// New returns a Source seeded from the clock.
func New() *Source {
	seed := time.Now().UnixNano() + atomic.AddInt64(&seedCounter, 1)*7919
	return NewWithSeed(seed)
}

// NewWithSeed returns a Source whose sequence is fully determined by seed.
func NewWithSeed(seed int64) *Source {
	return &Source{
		rnd:  rand.New(rand.NewSource(seed)),
		fake: faker.NewWithSeed(rand.NewSource(seed)),
	}
}

// Faker exposes the underlying faker for semantic values that have no
// dedicated method here.
func (s *Source) Faker() faker.Faker {
	return s.fake
}

// Intn returns a value in [0, n). It returns 0 when n <= 0.
func (s *Source) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return s.rnd.Intn(n)
}

// IntBetween returns a value in [min, max]. The bounds are swapped when
// given in the wrong order.
func (s *Source) IntBetween(min, max int64) int64 {
	if max < min {
		min, max = max, min
	}
	span := uint64(max - min)
	if span >= math.MaxInt64 {
		return min + s.rnd.Int63()
	}
	return min + s.rnd.Int63n(int64(span)+1)
}

// FloatBetween returns a value in [min, max].
func (s *Source) FloatBetween(min, max float64) float64 {
	if max < min {
		min, max = max, min
	}
	if min == max {
		return min
	}
	return min + s.rnd.Float64()*(max-min)
}

// Bool returns a fair coin flip.
func (s *Source) Bool() bool {
	return s.rnd.Intn(2) == 1
}

// Chance reports true with probability p.
func (s *Source) Chance(p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return s.rnd.Float64() < p
}

// AlphaNumeric returns n characters drawn from [a-zA-Z0-9].
func (s *Source) AlphaNumeric(n int) string {
	return s.fromSet(alphaNumeric, n)
}

// Letters returns n characters drawn from [a-zA-Z].
func (s *Source) Letters(n int) string {
	return s.fromSet(letters, n)
}

// Hex returns n lowercase hexadecimal characters.
func (s *Source) Hex(n int) string {
	return s.fromSet(hexDigits, n)
}

// Digits returns n decimal digits.
func (s *Source) Digits(n int) string {
	return s.fromSet(digits, n)
}

// Password returns n characters mixing letters, digits and symbols.
func (s *Source) Password(n int) string {
	return s.fromSet(passwordSet, n)
}

func (s *Source) fromSet(set string, n int) string {
	if n <= 0 {
		return ""
	}
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		b.WriteByte(set[s.rnd.Intn(len(set))])
	}
	return b.String()
}

// UUID returns a random version 4 UUID drawn from this source.
func (s *Source) UUID() string {
	id, err := uuid.NewRandomFromReader(s.rnd)
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Email returns a realistic email address.
func (s *Source) Email() string {
	return s.fake.Internet().Email()
}

// URL returns a realistic absolute URL.
func (s *Source) URL() string {
	return s.fake.Internet().URL()
}

// Hostname returns a realistic domain name.
func (s *Source) Hostname() string {
	return s.fake.Internet().Domain()
}

// IPv4 returns a dotted-quad address.
func (s *Source) IPv4() string {
	return s.fake.Internet().Ipv4()
}

// IPv6 returns a colon-separated address.
func (s *Source) IPv6() string {
	return s.fake.Internet().Ipv6()
}

// Base64 returns the standard encoding of n random bytes.
func (s *Source) Base64(n int) string {
	if n <= 0 {
		return ""
	}
	buf := make([]byte, n)
	s.rnd.Read(buf)
	return base64.StdEncoding.EncodeToString(buf)
}

// Instant returns a UTC time within the year before now.
func (s *Source) Instant() time.Time {
	return s.InstantBetween(-365*24*time.Hour, 0)
}

// InstantBetween returns a UTC time in [now+from, now+to], truncated to
// whole seconds.
func (s *Source) InstantBetween(from, to time.Duration) time.Time {
	if to < from {
		from, to = to, from
	}
	offset := s.IntBetween(int64(from/time.Second), int64(to/time.Second))
	return time.Now().UTC().Add(time.Duration(offset) * time.Second).Truncate(time.Second)
}

// Pick returns one element of values, or "" when values is empty.
func (s *Source) Pick(values ...string) string {
	if len(values) == 0 {
		return ""
	}
	return values[s.rnd.Intn(len(values))]
}
