package fingerprint

import (
	"encoding/json"
	"errors"
	"math"
	"sort"
	"strconv"
	"strings"
)

// DefaultPrecision is the number of decimal places numbers are rounded to.
const DefaultPrecision = 6

// MaxExactInteger is the largest integer magnitude a float64 holds exactly.
// Larger integers are rejected rather than merged with their neighbours.
const MaxExactInteger = 1 << 53

// Input is a set of named scalar values describing one prediction request.
type Input map[string]any

// Keys returns the input field names in sorted order.
func (in Input) Keys() []string {
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a shallow copy. Values are scalars so this is a full copy.
func (in Input) Clone() Input {
	out := make(Input, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Normalizer rewrites input values into their canonical form.
type Normalizer struct {
	// Precision is the number of decimals numbers are rounded to.
	// Default: 6
	Precision int
}

// NewNormalizer creates a normalizer with the given precision.
// A negative precision selects DefaultPrecision.
func NewNormalizer(precision int) *Normalizer {
	if precision < 0 {
		precision = DefaultPrecision
	}
	return &Normalizer{Precision: precision}
}

// Normalize returns a canonical copy of in using DefaultPrecision.
func Normalize(in Input) (Input, error) {
	return NewNormalizer(DefaultPrecision).Normalize(in)
}

// Normalize returns a canonical copy of in:
//   - field names are trimmed and lower-cased
//   - strings are trimmed, lower-cased and have inner whitespace collapsed
//   - every numeric kind becomes a float64 rounded to Precision decimals;
//     integers beyond ±MaxExactInteger are rejected
//   - booleans are kept as is
//
// Null, nested, NaN and infinite values are rejected with an *InputError.
// The argument is never modified.
func (n *Normalizer) Normalize(in Input) (Input, error) {
	out := make(Input, len(in))
	for rawKey, rawVal := range in {
		key := strings.ToLower(strings.TrimSpace(rawKey))
		if key == "" {
			return nil, &InputError{Field: rawKey, Reason: "empty field name"}
		}
		if _, dup := out[key]; dup {
			return nil, &InputError{Field: key, Reason: "duplicate field after normalization"}
		}

		val, err := n.value(key, rawVal)
		if err != nil {
			return nil, err
		}
		out[key] = val
	}
	return out, nil
}

func (n *Normalizer) value(key string, v any) (any, error) {
	switch val := v.(type) {
	case nil:
		return nil, &InputError{Field: key, Reason: "null value"}
	case string:
		return normalizeString(val), nil
	case bool:
		return val, nil
	case json.Number:
		if !strings.ContainsAny(string(val), ".eE") {
			i, err := strconv.ParseInt(string(val), 10, 64)
			switch {
			case errors.Is(err, strconv.ErrRange):
				return nil, errTooLarge(key)
			case err != nil:
				return nil, &InputError{Field: key, Reason: "malformed number"}
			case !exactInteger(i):
				return nil, errTooLarge(key)
			}
			return n.number(key, float64(i))
		}
		f, err := val.Float64()
		if err != nil {
			return nil, &InputError{Field: key, Reason: "malformed number"}
		}
		return n.number(key, f)
	}

	if !fitsFloat(v) {
		return nil, errTooLarge(key)
	}
	if f, ok := toFloat(v); ok {
		return n.number(key, f)
	}
	return nil, &InputError{Field: key, Reason: "unsupported value type"}
}

func errTooLarge(key string) error {
	return &InputError{Field: key, Reason: "integer too large to represent exactly"}
}

func exactInteger(i int64) bool {
	return i >= -MaxExactInteger && i <= MaxExactInteger
}

// fitsFloat reports whether an integer value converts to float64 without
// loss. Narrower kinds always do.
func fitsFloat(v any) bool {
	switch n := v.(type) {
	case int:
		return exactInteger(int64(n))
	case int64:
		return exactInteger(n)
	case uint:
		return uint64(n) <= MaxExactInteger
	case uint64:
		return n <= MaxExactInteger
	default:
		return true
	}
}

func (n *Normalizer) number(key string, f float64) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, &InputError{Field: key, Reason: "number is not finite"}
	}
	rounded, err := strconv.ParseFloat(n.FormatNumber(f), 64)
	if err != nil {
		return nil, &InputError{Field: key, Reason: "malformed number"}
	}
	return rounded, nil
}

// FormatNumber renders f with fixed precision and trailing zeros removed,
// so 30, 30.0 and 30.000 all render as "30".
func (n *Normalizer) FormatNumber(f float64) string {
	s := strconv.FormatFloat(f, 'f', n.Precision, 64)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	if s == "-0" {
		s = "0"
	}
	return s
}

func normalizeString(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func toFloat(v any) (float64, bool) {
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
	default:
		return 0, false
	}
}
