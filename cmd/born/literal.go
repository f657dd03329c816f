package main

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/pkg/errors"
)

// parseLiteral decodes a JSON array or number and converts every leaf to the
// Go type of dtype, so the engine infers the requested data type.
func parseLiteral(src, dtype string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(src))
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, errors.Wrap(err, "parsing literal")
	}
	var cast func(float64) (any, error)
	switch dtype {
	case "float32":
		cast = func(f float64) (any, error) { return float32(f), nil }
	case "float64":
		cast = func(f float64) (any, error) { return f, nil }
	case "int32":
		cast = integral(math.MinInt32, math.MaxInt32, func(f float64) any { return int32(f) })
	case "int64":
		// MaxInt64 rounds to 2^63 as a float64; hi+1 is still 2^63.
		cast = integral(math.MinInt64, math.MaxInt64, func(f float64) any { return int64(f) })
	case "uint8":
		cast = integral(0, math.MaxUint8, func(f float64) any { return uint8(f) })
	default:
		return nil, errors.Errorf("unsupported dtype %q", dtype)
	}
	return castLeaves(v, cast)
}

// integral builds a cast that rejects fractional or out-of-range numbers
// instead of truncating or wrapping them.
func integral(lo, hi float64, conv func(float64) any) func(float64) (any, error) {
	return func(f float64) (any, error) {
		if f != math.Trunc(f) {
			return nil, errors.Errorf("%v is not an integer", f)
		}
		if f < lo || f >= hi+1 {
			return nil, errors.Errorf("%v is out of range [%v, %v]", f, lo, hi)
		}
		return conv(f), nil
	}
}

func castLeaves(v any, cast func(float64) (any, error)) (any, error) {
	switch v := v.(type) {
	case float64:
		return cast(v)
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			c, err := castLeaves(e, cast)
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil
	default:
		return nil, errors.Errorf("unsupported JSON value %v (%T)", v, v)
	}
}
