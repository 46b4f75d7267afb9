package vials

import (
	"image/color"
	"math"
	"sort"
	"testing"

	"climbrate/internal/models"
	"climbrate/pkg/spots"
)

// uniformTable spreads true spots over x in [0, 300] and adds false spots
func uniformTable() spots.Table {
	var table spots.Table
	for x := 0; x <= 300; x++ {
		table = append(table, models.Spot{Frame: x % 10, X: float64(x), Y: 50, TrueParticle: true})
	}
	table = append(table,
		models.Spot{X: 150, Y: 50, TrueParticle: false},
		models.Spot{X: 900, Y: 50, TrueParticle: false},
	)
	return table
}

// TestBinThreeVials splits [0, 300] into equal lanes
func TestBinThreeVials(t *testing.T) {
	table := uniformTable()
	b := Bin(table, 3)

	want := []float64{0, 100, 200, 300}
	if len(b.Edges) != len(want) {
		t.Fatalf("Expected %d edges, got %v", len(want), b.Edges)
	}
	for i := range want {
		if math.Abs(b.Edges[i]-want[i]) > 1e-9 {
			t.Errorf("Edge %d: expected %g, got %g", i, want[i], b.Edges[i])
		}
	}
	if len(b.Empty) != 0 {
		t.Errorf("Expected no empty vials, got %v", b.Empty)
	}

	counts := make(map[int]int)
	for _, s := range table {
		counts[s.Vial]++
		if s.Vial < 0 || s.Vial > 3 {
			t.Errorf("Vial %d out of range", s.Vial)
		}
		if !s.TrueParticle && s.Vial != 0 {
			t.Errorf("False spot at x=%g assigned to vial %d", s.X, s.Vial)
		}
	}
	if counts[1] != 101 || counts[2] != 100 || counts[3] != 100 || counts[0] != 2 {
		t.Errorf("Unexpected vial counts %v", counts)
	}
}

// TestBinOrderIndependent re-bins a reversed table
func TestBinOrderIndependent(t *testing.T) {
	table := uniformTable()
	reversed := make(spots.Table, len(table))
	for i, s := range table {
		reversed[len(table)-1-i] = s
	}

	a := Bin(table, 4)
	b := Bin(reversed, 4)
	for i := range a.Edges {
		if a.Edges[i] != b.Edges[i] {
			t.Fatalf("Edges differ: %v vs %v", a.Edges, b.Edges)
		}
	}
	for i := range table {
		if table[i].Vial != reversed[len(table)-1-i].Vial {
			t.Errorf("Spot %d assigned differently", i)
		}
	}
}

// TestBinSingleVial keeps every true spot in vial 1
func TestBinSingleVial(t *testing.T) {
	table := uniformTable()
	b := Bin(table, 1)
	if len(b.Edges) != 2 || b.Edges[0] != 0 || b.Edges[1] != 300 {
		t.Errorf("Expected edges [0 300], got %v", b.Edges)
	}
	for _, s := range table {
		if s.TrueParticle && s.Vial != 1 {
			t.Errorf("True spot at x=%g in vial %d", s.X, s.Vial)
		}
	}
}

// TestBinEmptyVial reports lanes without true spots
func TestBinEmptyVial(t *testing.T) {
	table := spots.Table{
		{X: 0, TrueParticle: true},
		{X: 300, TrueParticle: true},
	}
	b := Bin(table, 3)
	if len(b.Empty) != 1 || b.Empty[0] != 2 {
		t.Errorf("Expected vial 2 to be empty, got %v", b.Empty)
	}
	if table[0].Vial != 1 || table[1].Vial != 3 {
		t.Errorf("Unexpected assignment %d, %d", table[0].Vial, table[1].Vial)
	}
}

// TestBinNoTrueSpots leaves everything in vial 0
func TestBinNoTrueSpots(t *testing.T) {
	table := spots.Table{{X: 5, Vial: 2}}
	b := Bin(table, 3)
	if b.Edges != nil || table[0].Vial != 0 {
		t.Errorf("Expected no edges and vial 0, got %v and %d", b.Edges, table[0].Vial)
	}
}

// TestAssign checks the closed-right lanes and the lowest edge
func TestAssign(t *testing.T) {
	edges := []float64{0, 10, 20}
	tests := []struct {
		x    float64
		want int
	}{
		{-1, 0}, {0, 1}, {5, 1}, {10, 1}, {10.01, 2}, {20, 2}, {20.5, 0},
	}
	for _, tt := range tests {
		if got := Assign(edges, tt.x); got != tt.want {
			t.Errorf("Assign(%g) = %d, want %d", tt.x, got, tt.want)
		}
	}
}

// TestTrimOutliers checks the bounds on both axes and that dropped spots leave the table
func TestTrimOutliers(t *testing.T) {
	var table spots.Table
	for x := 0; x < 100; x++ {
		table = append(table, models.Spot{X: float64(x), Y: 10, TrueParticle: true})
	}
	table = append(table, models.Spot{X: 500, Y: 10, TrueParticle: true})
	table = append(table, models.Spot{X: 50, Y: 10, TrueParticle: false})

	trim := TrimOutliers(table, 0, 1)
	kept, b := trim.Kept, trim.Bounds

	if math.Abs(b.XMin-1.01) > 1e-9 {
		t.Errorf("Expected x min 1.01, got %g", b.XMin)
	}
	if math.Abs(b.XMax-498.99) > 1e-9 {
		t.Errorf("Expected x max 498.99, got %g", b.XMax)
	}
	if b.YMin != 10 || b.YMax != 10 {
		t.Errorf("Expected y bounds [10, 10], got [%g, %g]", b.YMin, b.YMax)
	}

	if len(kept) != len(table)-3 {
		t.Errorf("Expected 3 spots dropped, kept %d of %d", len(kept), len(table))
	}
	for _, s := range kept {
		if s.X == 0 || s.X == 1 || s.X == 500 {
			t.Errorf("Spot at x=%g should have been trimmed", s.X)
		}
	}
	if len(trim.Dropped) != 3 {
		t.Errorf("Expected 3 dropped spots, got %d", len(trim.Dropped))
	}
}

// TestTrimAll keeps dropped spots in the full table with vial 0
func TestTrimAll(t *testing.T) {
	var table spots.Table
	for f := 0; f < 3; f++ {
		for x := 0; x < 50; x++ {
			table = append(table, models.Spot{Frame: f, X: float64(x), Y: 10, TrueParticle: true})
		}
	}
	table = append(table, models.Spot{Frame: 1, X: 400, Y: 10, TrueParticle: true, Vial: 2})
	sort.SliceStable(table, func(i, j int) bool { return table[i].Frame < table[j].Frame })

	trim := TrimOutliers(table, 0, 100)
	if len(trim.Dropped) == 0 {
		t.Fatal("Expected the far spot to be dropped")
	}
	Bin(trim.Kept, 2)

	all := trim.All()
	if len(all) != len(table) {
		t.Fatalf("Expected %d spots, got %d", len(table), len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].Frame < all[i-1].Frame {
			t.Fatalf("Spots out of frame order at %d", i)
		}
	}
	for _, s := range all {
		switch {
		case s.X == 400 && s.Vial != 0:
			t.Errorf("Expected the dropped spot in vial 0, got %d", s.Vial)
		case trim.Bounds.Contains(s.X, s.Y) && s.Vial == 0:
			t.Errorf("Expected kept spot at x=%g to be binned", s.X)
		}
	}
}

// TestTrimOutliersNegativeSensitivity never widens the minimum edge
func TestTrimOutliersNegativeSensitivity(t *testing.T) {
	var table spots.Table
	for x := 0; x < 100; x++ {
		table = append(table, models.Spot{X: float64(x), Y: float64(x), TrueParticle: true})
	}
	trim := TrimOutliers(table, -1, -1)
	kept, b := trim.Kept, trim.Bounds
	if b.XMin != 0 || b.YMin != 0 {
		t.Errorf("Expected minimum edges at 0, got %g, %g", b.XMin, b.YMin)
	}
	if len(kept) != len(table) {
		t.Errorf("Expected nothing trimmed, kept %d", len(kept))
	}
}

// TestPalette checks the colour count and the odd-count middle drop
func TestPalette(t *testing.T) {
	for _, n := range []int{1, 2, 3, 5, 10, 12, 25} {
		if got := len(Palette(n)); got != n {
			t.Errorf("Palette(%d) returned %d colours", n, got)
		}
	}

	three := Palette(3)
	four := Palette(4)
	if three[0] != four[0] || three[1] != four[1] || three[2] != four[3] {
		t.Errorf("Expected 3 colours to be 4 samples without the pale middle, got %v vs %v", three, four)
	}
	if jet(0) != (color.RGBA{0, 0, 128, 255}) {
		t.Errorf("Unexpected jet start %v", jet(0))
	}
}
