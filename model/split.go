package model

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// SplitMode selects how rows are divided into fit and holdout sets.
type SplitMode string

const (
	// Chronological holds out the last fraction of rows in date order.
	Chronological SplitMode = "chronological"
	// Shuffled holds out a seeded random subset of rows.
	Shuffled SplitMode = "shuffled"
)

// Split is a deterministic partition of row positions. Both slices are
// ascending.
type Split struct {
	Mode    SplitMode
	Seed    int64
	Embargo int
	Fit     []int
	Holdout []int
}

func (s Split) String() string {
	switch s.Mode {
	case Shuffled:
		return fmt.Sprintf("shuffled seed=%d fit=%d holdout=%d", s.Seed, len(s.Fit), len(s.Holdout))
	default:
		return fmt.Sprintf("chronological embargo=%d fit=%d holdout=%d", s.Embargo, len(s.Fit), len(s.Holdout))
	}
}

// MakeSplit partitions n rows. The holdout size is round(n*fraction), at
// least one row.
func MakeSplit(n int, o Options) (Split, error) {
	hold := int(math.Round(float64(n) * o.HoldoutFraction))
	if hold < 1 {
		hold = 1
	}
	sp := Split{Mode: o.Split, Seed: o.Seed}

	switch o.Split {
	case Shuffled:
		perm := rand.New(rand.NewSource(o.Seed)).Perm(n)
		if n-hold < 1 {
			return Split{}, fmt.Errorf("%w: %d rows, %d held out", ErrTooFewRows, n, hold)
		}
		sp.Holdout = append(sp.Holdout, perm[:hold]...)
		sp.Fit = append(sp.Fit, perm[hold:]...)
		sort.Ints(sp.Holdout)
		sort.Ints(sp.Fit)
	default:
		sp.Embargo = o.Embargo
		fitEnd := n - hold - o.Embargo
		if fitEnd < 1 {
			return Split{}, fmt.Errorf("%w: %d rows, %d held out, embargo %d", ErrTooFewRows, n, hold, o.Embargo)
		}
		sp.Fit = seq(0, fitEnd)
		sp.Holdout = seq(n-hold, n)
	}
	return sp, nil
}

func seq(lo, hi int) []int {
	out := make([]int, 0, hi-lo)
	for i := lo; i < hi; i++ {
		out = append(out, i)
	}
	return out
}
