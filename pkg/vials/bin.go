package vials

import (
	"sort"

	"gonum.org/v1/gonum/floats"

	"climbrate/pkg/spots"
)

// Binning is the outcome of Bin
type Binning struct {
	// Edges has vials+1 ascending x positions; nil when no spot is true
	Edges []float64

	// Empty lists the vials that received no true spot
	Empty []int
}

// Bin splits [min x, max x] of the true spots into count equal-width lanes
// and writes each spot's vial in place. Lanes are closed on the right and
// the first lane also holds its left edge. False spots always get vial 0.
func Bin(table spots.Table, count int) Binning {
	if count < 1 {
		count = 1
	}

	var xs []float64
	for _, s := range table {
		if s.TrueParticle {
			xs = append(xs, s.X)
		}
	}
	if len(xs) == 0 {
		for i := range table {
			table[i].Vial = 0
		}
		return Binning{}
	}

	edges := make([]float64, count+1)
	floats.Span(edges, floats.Min(xs), floats.Max(xs))

	counts := make([]int, count+1)
	for i := range table {
		s := &table[i]
		s.Vial = 0
		if s.TrueParticle {
			s.Vial = Assign(edges, s.X)
		}
		counts[s.Vial]++
	}

	var empty []int
	for v := 1; v <= count; v++ {
		if counts[v] == 0 {
			empty = append(empty, v)
		}
	}
	return Binning{Edges: edges, Empty: empty}
}

// Assign returns the 1-based lane of x, or 0 when x is outside the edges
func Assign(edges []float64, x float64) int {
	if len(edges) < 2 || x < edges[0] || x > edges[len(edges)-1] {
		return 0
	}
	if x == edges[0] {
		return 1
	}
	return sort.SearchFloat64s(edges, x)
}
