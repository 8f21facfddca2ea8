package histogram

import (
	"math"

	"github.com/montanaflynn/stats"
)

// padFraction is the share of the data width added on each side of the range.
const padFraction = 0.05

// DefaultRange is used when no data is available to infer a range.
var DefaultRange = Range{Min: 0, Max: 1}

// Range is a closed numeric interval [Min, Max].
type Range struct {
	Min float64
	Max float64
}

// Width returns Max - Min. It is +Inf when the range spans more than
// math.MaxFloat64.
func (r Range) Width() float64 {
	return r.Max - r.Min
}

// halfWidth returns (Max - Min) / 2 without overflowing.
func (r Range) halfWidth() float64 {
	return r.Max/2 - r.Min/2
}

// Contains reports whether x lies in [Min, Max].
func (r Range) Contains(x float64) bool {
	return x >= r.Min && x <= r.Max
}

// AutoRange infers a display range for values. Every value lies inside the
// returned range, strictly unless it sits at ±math.MaxFloat64. The second
// return value is false when values is empty, in which case the range
// carries no information.
//
// The data width is padded by 5% on each side. When all values are equal the
// padding is max(1, 5% of |x|). If the padding vanishes in float precision the
// bound is moved outward by one ULP instead. Bounds never leave the finite
// float64 range.
func AutoRange(values []float64) (Range, bool) {
	if len(values) == 0 {
		return Range{}, false
	}

	lo, err := stats.Min(values)
	if err != nil {
		return Range{}, false
	}
	hi, err := stats.Max(values)
	if err != nil {
		return Range{}, false
	}

	// 5% of hi-lo, taken from the half width so extreme data cannot overflow.
	pad := 2 * padFraction * (hi/2 - lo/2)
	if pad == 0 {
		pad = math.Max(1, padFraction*math.Abs(lo))
	}

	r := Range{Min: lo - pad, Max: hi + pad}
	if !(r.Min < lo) || math.IsInf(r.Min, -1) {
		r.Min = math.Max(math.Nextafter(lo, math.Inf(-1)), -math.MaxFloat64)
	}
	if !(r.Max > hi) || math.IsInf(r.Max, 1) {
		r.Max = math.Min(math.Nextafter(hi, math.Inf(1)), math.MaxFloat64)
	}
	return r, true
}

// Unify returns the smallest range covering every given range. With no
// ranges it returns DefaultRange.
func Unify(ranges ...Range) Range {
	if len(ranges) == 0 {
		return DefaultRange
	}

	u := ranges[0]
	for _, r := range ranges[1:] {
		u.Min = math.Min(u.Min, r.Min)
		u.Max = math.Max(u.Max, r.Max)
	}
	return u
}
