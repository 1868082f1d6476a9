package core

import "sort"

// CalculateQValues recomputes q-values for the whole collection with
// target-decoy competition. PSMs are ordered best-first by score; the FDR at
// each position is decoys/targets seen so far (capped at 1), tied scores share
// the FDR of the end of their block, and q-values are the running minimum
// from the tail.
func (l *PSMList) CalculateQValues(higherIsBetter bool) {
	n := len(l.psms)
	if n == 0 {
		return
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	better := func(a, b float64) bool {
		if higherIsBetter {
			return a > b
		}
		return a < b
	}
	sort.SliceStable(order, func(i, j int) bool {
		return better(l.psms[order[i]].Score, l.psms[order[j]].Score)
	})

	fdr := make([]float64, n)
	decoys, targets := 0, 0
	for k, idx := range order {
		if l.psms[idx].IsDecoy {
			decoys++
		} else {
			targets++
		}
		t := targets
		if t == 0 {
			t = 1
		}
		f := float64(decoys) / float64(t)
		if f > 1 {
			f = 1
		}
		fdr[k] = f
	}

	// A score threshold cannot split tied PSMs
	for k := n - 2; k >= 0; k-- {
		if l.psms[order[k]].Score == l.psms[order[k+1]].Score {
			fdr[k] = fdr[k+1]
		}
	}

	q := fdr[n-1]
	for k := n - 1; k >= 0; k-- {
		if fdr[k] < q {
			q = fdr[k]
		}
		l.psms[order[k]].QValue = Float64(q)
	}
}
