package model

import (
	"math"
	"sort"
)

// AUC is the area under the ROC curve computed as the Mann-Whitney
// statistic with average ranks for tied scores. It is NaN when labels hold
// a single class.
func AUC(scores []float64, labels []bool) float64 {
	n := len(scores)
	pos := 0
	for _, l := range labels {
		if l {
			pos++
		}
	}
	neg := n - pos
	if pos == 0 || neg == 0 {
		return math.NaN()
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return scores[idx[a]] < scores[idx[b]] })

	var rankSum float64
	for i := 0; i < n; {
		j := i
		for j+1 < n && scores[idx[j+1]] == scores[idx[i]] {
			j++
		}
		// positions i..j share the average of ranks i+1..j+1
		avg := float64(i+j+2) / 2
		for k := i; k <= j; k++ {
			if labels[idx[k]] {
				rankSum += avg
			}
		}
		i = j + 1
	}
	u := rankSum - float64(pos)*float64(pos+1)/2
	return u / (float64(pos) * float64(neg))
}

// ConfusionAt classifies probabilities strictly above cutoff as positive.
func ConfusionAt(probs []float64, labels []bool, cutoff float64) Confusion {
	var c Confusion
	for i, p := range probs {
		pred := p > cutoff
		switch {
		case pred && labels[i]:
			c.TP++
		case pred:
			c.FP++
		case labels[i]:
			c.FN++
		default:
			c.TN++
		}
	}
	return c
}
