package histogram

import "math"

// Pair holds two histograms built over the same bins.
type Pair struct {
	H1 *Histogram
	H2 *Histogram
}

// NewPair auto-ranges both sequences, unifies the two ranges and fills one
// histogram per sequence over the shared range. An empty sequence does not
// contribute to the shared range.
func NewPair(values1, values2 []float64, bins int) (*Pair, error) {
	if err := checkFinite(values1); err != nil {
		return nil, err
	}
	if err := checkFinite(values2); err != nil {
		return nil, err
	}

	var ranges []Range
	if r, ok := AutoRange(values1); ok {
		ranges = append(ranges, r)
	}
	if r, ok := AutoRange(values2); ok {
		ranges = append(ranges, r)
	}
	shared := Unify(ranges...)

	h1, err := Build(values1, shared, bins)
	if err != nil {
		return nil, err
	}
	h2, err := Build(values2, shared, bins)
	if err != nil {
		return nil, err
	}

	return &Pair{H1: h1, H2: h2}, nil
}

// Empty reports whether neither histogram received any entry.
func (p *Pair) Empty() bool {
	return p.H1.Entries == 0 && p.H2.Entries == 0
}

// Ratio returns per-bin h1/h2 with its propagated uncertainty. Bins where h2
// is empty are reported as not ok.
func (p *Pair) Ratio(i int) (ratio, err float64, ok bool) {
	n1, n2 := p.H1.Counts[i], p.H2.Counts[i]
	if n2 == 0 {
		return 0, 0, false
	}
	ratio = n1 / n2
	// Uncorrelated Poisson errors on both bins.
	relSq := 1 / n2
	if n1 > 0 {
		relSq += 1 / n1
	}
	return ratio, ratio * math.Sqrt(relSq), true
}
