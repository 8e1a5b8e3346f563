package model

import (
	"fmt"
	"math"
	"sort"

	"github.com/rustyeddy/crowding/dataset"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Decile is one bucket of the conditional forward-return analysis.
type Decile struct {
	// Bucket is 1-based, 1 holding the least crowded rows.
	Bucket int
	Count  int

	CrowdingMin  float64
	CrowdingMean float64
	CrowdingMax  float64

	ForwardMean float64
	// ForwardStd is the sample standard deviation; NaN below two rows.
	ForwardStd float64
}

// Deciles ranks rows by crowdingCol, ties kept in date order, cuts them into
// buckets of equal size give or take one row and reports the forward
// return distribution of each bucket. Rows with a NaN forward value are
// left out before ranking.
func Deciles(ds *dataset.Dataset, crowdingCol, forwardCol string, buckets int) ([]Decile, error) {
	if buckets < 1 {
		return nil, fmt.Errorf("bucket count must be >= 1, got %d", buckets)
	}
	crowd, ok := ds.Column(crowdingCol)
	if !ok {
		return nil, fmt.Errorf("%w: %q", dataset.ErrMissingColumn, crowdingCol)
	}
	fwd, ok := ds.Column(forwardCol)
	if !ok {
		return nil, fmt.Errorf("%w: %q", dataset.ErrMissingColumn, forwardCol)
	}
	order := make([]int, 0, len(crowd))
	for i, f := range fwd {
		if !math.IsNaN(f) {
			order = append(order, i)
		}
	}
	n := len(order)
	if n < buckets {
		return nil, fmt.Errorf("%w: %d rows for %d buckets", ErrInsufficientBuckets, n, buckets)
	}
	sort.SliceStable(order, func(a, b int) bool { return crowd[order[a]] < crowd[order[b]] })

	out := make([]Decile, buckets)
	for b := range out {
		lo, hi := b*n/buckets, (b+1)*n/buckets
		cs := make([]float64, 0, hi-lo)
		fs := make([]float64, 0, hi-lo)
		for _, r := range order[lo:hi] {
			cs = append(cs, crowd[r])
			fs = append(fs, fwd[r])
		}
		d := Decile{
			Bucket:       b + 1,
			Count:        hi - lo,
			CrowdingMin:  floats.Min(cs),
			CrowdingMean: stat.Mean(cs, nil),
			CrowdingMax:  floats.Max(cs),
			ForwardMean:  stat.Mean(fs, nil),
			ForwardStd:   math.NaN(),
		}
		if len(fs) > 1 {
			d.ForwardStd = stat.StdDev(fs, nil)
		}
		out[b] = d
	}
	return out, nil
}
