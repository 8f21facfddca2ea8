// Package histogram builds the fixed-bin frequency distributions that the
// comparator puts side by side. Both histograms of a comparison always share
// the same bin count and the same edges.
package histogram

import (
	"errors"
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/floats"
)

// DefaultBins is the bin count used for comparison histograms.
const DefaultBins = 50

// Static errors for histogram construction
var (
	ErrInvalidBins  = errors.New("histogram needs at least one bin")
	ErrInvalidRange = errors.New("histogram range must satisfy min < max")
	ErrNonFinite    = errors.New("value is not finite")
)

// Histogram is a 1D frequency distribution over equal-width bins.
type Histogram struct {
	Range     Range
	Counts    []float64
	Underflow float64
	Overflow  float64

	// Entries, Mean and StdDev are computed from the filled values, not from
	// the binned contents.
	Entries int
	Mean    float64
	StdDev  float64
}

// New creates an empty histogram with the given number of bins over r.
func New(r Range, bins int) (*Histogram, error) {
	if bins < 1 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidBins, bins)
	}
	if !(r.Min < r.Max) || math.IsInf(r.Min, 0) || math.IsInf(r.Max, 0) {
		return nil, fmt.Errorf("%w: [%g, %g]", ErrInvalidRange, r.Min, r.Max)
	}
	return &Histogram{
		Range:  r,
		Counts: make([]float64, bins),
	}, nil
}

// Build creates a histogram over r and fills it with values.
func Build(values []float64, r Range, bins int) (*Histogram, error) {
	if err := checkFinite(values); err != nil {
		return nil, err
	}

	h, err := New(r, bins)
	if err != nil {
		return nil, err
	}
	for _, x := range values {
		h.fill(x)
	}

	h.Entries = len(values)
	if len(values) == 0 {
		return h, nil
	}

	mean, err := stats.Mean(values)
	if err != nil {
		return nil, fmt.Errorf("failed to compute mean: %w", err)
	}
	stdDev, err := stats.StandardDeviationPopulation(values)
	if err != nil {
		return nil, fmt.Errorf("failed to compute standard deviation: %w", err)
	}
	h.Mean = mean
	h.StdDev = stdDev

	return h, nil
}

// Bins returns the number of bins.
func (h *Histogram) Bins() int {
	return len(h.Counts)
}

// BinWidth returns the width shared by every bin.
func (h *Histogram) BinWidth() float64 {
	return 2 * (h.Range.halfWidth() / float64(len(h.Counts)))
}

// Edges returns the bins+1 bin edges, from Range.Min to Range.Max.
func (h *Histogram) Edges() []float64 {
	n := len(h.Counts)
	edges := make([]float64, n+1)
	for i := range edges {
		edges[i] = h.at(float64(i))
	}
	edges[n] = h.Range.Max
	return edges
}

// BinCenter returns the center of bin i.
func (h *Histogram) BinCenter(i int) float64 {
	return h.at(float64(i) + 0.5)
}

// at returns the position of fractional bin index k. Halves keep ranges
// wider than math.MaxFloat64 finite.
func (h *Histogram) at(k float64) float64 {
	return 2 * (h.Range.Min/2 + k*(h.Range.halfWidth()/float64(len(h.Counts))))
}

// BinError returns the Poisson uncertainty of bin i.
func (h *Histogram) BinError(i int) float64 {
	return math.Sqrt(h.Counts[i])
}

// FindBin returns the bin index for x. Values below the range map to -1 and
// values above it to Bins(). A value equal to Range.Max belongs to the last bin.
func (h *Histogram) FindBin(x float64) int {
	n := len(h.Counts)
	switch {
	case x < h.Range.Min:
		return -1
	case x > h.Range.Max:
		return n
	case x == h.Range.Max:
		return n - 1
	}

	i := int((x/2 - h.Range.Min/2) / h.Range.halfWidth() * float64(n))
	if i >= n {
		i = n - 1
	}
	return i
}

// Integral returns the sum of in-range bin contents.
func (h *Histogram) Integral() float64 {
	return floats.Sum(h.Counts)
}

// MaxCount returns the largest bin content.
func (h *Histogram) MaxCount() float64 {
	if len(h.Counts) == 0 {
		return 0
	}
	return floats.Max(h.Counts)
}

func (h *Histogram) fill(x float64) {
	switch i := h.FindBin(x); {
	case i < 0:
		h.Underflow++
	case i >= len(h.Counts):
		h.Overflow++
	default:
		h.Counts[i]++
	}
}

func checkFinite(values []float64) error {
	for i, x := range values {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Errorf("%w: entry %d is %v", ErrNonFinite, i, x)
		}
	}
	return nil
}
