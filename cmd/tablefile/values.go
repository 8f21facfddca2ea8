package tablefile

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"
)

// parseNumber parses a textual cell. Booleans map to 0 and 1.
func parseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if x, err := strconv.ParseFloat(s, 64); err == nil {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, fmt.Errorf("%w: %q is not finite", ErrNotNumeric, s)
		}
		return x, nil
	}
	if b, err := strconv.ParseBool(s); err == nil {
		if b {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrNotNumeric, s)
}

// appendValue converts a scanned or decoded value and appends it to dst.
// Nil values are skipped and slices are flattened.
func appendValue(dst []float64, v any) ([]float64, error) {
	switch val := v.(type) {
	case nil:
		return dst, nil
	case []any:
		var err error
		for _, elem := range val {
			if dst, err = appendValue(dst, elem); err != nil {
				return nil, err
			}
		}
		return dst, nil
	case bool:
		if val {
			return append(dst, 1), nil
		}
		return append(dst, 0), nil
	case int:
		return append(dst, float64(val)), nil
	case int8:
		return append(dst, float64(val)), nil
	case int16:
		return append(dst, float64(val)), nil
	case int32:
		return append(dst, float64(val)), nil
	case int64:
		return append(dst, float64(val)), nil
	case uint:
		return append(dst, float64(val)), nil
	case uint8:
		return append(dst, float64(val)), nil
	case uint16:
		return append(dst, float64(val)), nil
	case uint32:
		return append(dst, float64(val)), nil
	case uint64:
		return append(dst, float64(val)), nil
	case float32:
		return append(dst, float64(val)), nil
	case float64:
		return append(dst, val), nil
	case string:
		x, err := parseNumber(val)
		if err != nil {
			return nil, err
		}
		return append(dst, x), nil
	case []byte:
		x, err := parseNumber(string(val))
		if err != nil {
			return nil, err
		}
		return append(dst, x), nil
	case *big.Int:
		x, _ := new(big.Float).SetInt(val).Float64()
		return append(dst, x), nil
	case time.Time:
		return nil, fmt.Errorf("%w: timestamp %s", ErrNotNumeric, val.Format(time.RFC3339))
	case interface{ Float64() float64 }:
		// DECIMAL values from duckdb
		return append(dst, val.Float64()), nil
	default:
		return nil, fmt.Errorf("%w: unsupported value type %T", ErrNotNumeric, v)
	}
}
