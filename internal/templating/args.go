package templating

import (
	"math"
	"strconv"
	"strings"
)

// intArg parses args[i] as an integer. A missing or malformed argument yields
// def; the result is clamped to [lo, hi].
func intArg(args []string, i int, def, lo, hi int64) int64 {
	v := def
	if i < len(args) {
		if parsed, err := strconv.ParseInt(strings.TrimSpace(args[i]), 10, 64); err == nil {
			v = parsed
		} else if f, err := strconv.ParseFloat(strings.TrimSpace(args[i]), 64); err == nil && !math.IsNaN(f) {
			v = int64(math.Max(float64(lo), math.Min(float64(hi), f)))
		}
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// floatArg is intArg for decimals. NaN and infinities count as malformed.
func floatArg(args []string, i int, def, lo, hi float64) float64 {
	v := def
	if i < len(args) {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(args[i]), 64); err == nil && !math.IsNaN(parsed) && !math.IsInf(parsed, 0) {
			v = parsed
		}
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// strArg returns the trimmed args[i], or def when it is missing or blank.
func strArg(args []string, i int, def string) string {
	if i < len(args) {
		if s := strings.TrimSpace(args[i]); s != "" {
			return s
		}
	}
	return def
}

// restArg joins args[i:] back together with colons, which lets text
// arguments contain a colon.
func restArg(args []string, i int) string {
	if i >= len(args) {
		return ""
	}
	return strings.Join(args[i:], ":")
}
