package beamdump

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Parameter is a simulation parameter captured with a dump. Both variants
// reduce to the scalar stored in the record.
type Parameter interface {
	Scalar() any
}

// RawScalar is a parameter given directly as a number, string or bool.
type RawScalar struct {
	Value any
}

// Scalar returns the wrapped value.
func (p RawScalar) Scalar() any {
	return p.Value
}

// BoxedParameter is a full parameter object from the instrument definition
// that carries its current value alongside its name.
type BoxedParameter struct {
	Name  string
	Value any
}

// Scalar returns the parameter's current value.
func (p BoxedParameter) Scalar() any {
	return p.Value
}

// Parameters maps parameter names to their values.
type Parameters map[string]Parameter

// Raw wraps plain values as RawScalar parameters.
func Raw(values map[string]any) Parameters {
	params := make(Parameters, len(values))
	for name, v := range values {
		params[name] = RawScalar{Value: v}
	}

	return params
}

// flatten reduces every parameter to its normalised scalar.
func (p Parameters) flatten() map[string]any {
	out := make(map[string]any, len(p))
	for name, param := range p {
		if param == nil {
			out[name] = nil

			continue
		}

		out[name] = normalizeScalar(param.Scalar())
	}

	return out
}

// normalizeScalar maps numbers onto the types a record decodes to: integers
// become int64 and everything else float64. Integers beyond the int64 range
// stay exact as uint64 or json.Number. Nested objects and arrays are
// normalised element by element.
func normalizeScalar(v any) any {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int8:
		return int64(n)
	case int16:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	case uint:
		return normalizeUint(uint64(n))
	case uint8:
		return int64(n)
	case uint16:
		return int64(n)
	case uint32:
		return int64(n)
	case uint64:
		return normalizeUint(n)
	case float32:
		return float64(n)
	case json.Number:
		return normalizeNumber(n)
	case map[string]any:
		out := make(map[string]any, len(n))
		for k, e := range n {
			out[k] = normalizeScalar(e)
		}

		return out
	case []any:
		out := make([]any, len(n))
		for i, e := range n {
			out[i] = normalizeScalar(e)
		}

		return out
	default:
		return v
	}
}

func normalizeUint(n uint64) any {
	if n <= math.MaxInt64 {
		return int64(n)
	}

	return n
}

// normalizeNumber keeps integer literals integral. Literals with a fraction
// or exponent are floats.
func normalizeNumber(n json.Number) any {
	if i, err := n.Int64(); err == nil {
		return i
	}

	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if u, err := strconv.ParseUint(s, 10, 64); err == nil {
			return u
		}

		return n
	}

	if f, err := n.Float64(); err == nil {
		return f
	}

	return n
}

// DecodeParameters decodes a JSON object of parameters, keeping integers
// distinct from floats.
func DecodeParameters(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}

	return Raw(raw).flatten(), nil
}
