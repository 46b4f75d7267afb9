// Package vials removes stray detections near the frame edges and bins
// spots into vertical lanes, one per vial.
package vials

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"climbrate/pkg/spots"
)

// quantile points sampled near each edge
var (
	lowEdge  = []float64{0, 0.01, 0.02, 0.03, 0.04}
	highEdge = []float64{0.96, 0.97, 0.98, 0.99, 1}
)

// Bounds is the rectangle of spots kept by TrimOutliers, inclusive
type Bounds struct {
	XMin, XMax float64
	YMin, YMax float64
}

// Trim is the outcome of TrimOutliers
type Trim struct {
	// Kept are the spots inside Bounds, in table order
	Kept spots.Table

	// Dropped are the spots outside Bounds, with vial 0
	Dropped spots.Table

	Bounds Bounds
}

// All returns kept and dropped spots together in frame order. Kept spots
// share storage with Kept, so vials assigned after trimming show here.
func (t Trim) All() spots.Table {
	out := make(spots.Table, 0, len(t.Kept)+len(t.Dropped))
	out = append(append(out, t.Kept...), t.Dropped...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Frame < out[j].Frame })
	return out
}

// Contains reports whether a point lies inside the bounds
func (b Bounds) Contains(x, y float64) bool {
	return x >= b.XMin && x <= b.XMax && y >= b.YMin && y <= b.YMax
}

// TrimOutliers drops spots sitting apart from the main mass near any of
// the four edges. Bounds are derived from the true spots: each edge moves
// inward by sensitivity times the median gap between its five edge
// quantiles. The minimum edge only moves when that narrows the range; the
// maximum edge always moves. sensLR applies to x and sensTB to y.
// Dropped spots take no further part in binning or regression.
func TrimOutliers(table spots.Table, sensTB, sensLR float64) Trim {
	truth := table.True()
	if len(truth) == 0 {
		return Trim{Kept: table}
	}

	xs := make([]float64, len(truth))
	ys := make([]float64, len(truth))
	for i, s := range truth {
		xs[i] = s.X
		ys[i] = s.Y
	}

	var b Bounds
	b.XMin, b.XMax = axisBounds(xs, sensLR)
	b.YMin, b.YMax = axisBounds(ys, sensTB)

	t := Trim{Kept: make(spots.Table, 0, len(table)), Bounds: b}
	for _, s := range table {
		if b.Contains(s.X, s.Y) {
			t.Kept = append(t.Kept, s)
			continue
		}
		s.Vial = 0
		t.Dropped = append(t.Dropped, s)
	}
	return t
}

func axisBounds(values []float64, sensitivity float64) (float64, float64) {
	sort.Float64s(values)

	low := quantiles(values, lowEdge)
	lo := low[0]
	if adj := low[0] + sensitivity*medianGap(low); adj > lo {
		lo = adj
	}

	high := quantiles(values, highEdge)
	hi := high[len(high)-1] - sensitivity*medianGap(high)

	return lo, hi
}

func quantiles(sorted, ps []float64) []float64 {
	out := make([]float64, len(ps))
	for i, p := range ps {
		out[i] = stat.Quantile(p, stat.LinInterp, sorted, nil)
	}
	return out
}

// medianGap returns the median of consecutive differences
func medianGap(q []float64) float64 {
	gaps := make([]float64, len(q)-1)
	for i := 1; i < len(q); i++ {
		gaps[i-1] = q[i] - q[i-1]
	}
	sort.Float64s(gaps)
	n := len(gaps)
	if n%2 == 1 {
		return gaps[n/2]
	}
	return (gaps[n/2-1] + gaps[n/2]) / 2
}
