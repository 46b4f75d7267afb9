package spots

import (
	"errors"
	"math"
	"testing"

	"climbrate/internal/models"
	"climbrate/pkg/config"
	"climbrate/pkg/frames"
	"climbrate/pkg/locate"
)

// fakeFinder returns canned features and records the parameters it saw
type fakeFinder struct {
	feats []models.Feature
	err   error
	got   locate.Params
}

func (f *fakeFinder) Find(stack *frames.Stack, p locate.Params) ([]models.Feature, error) {
	f.got = p
	return f.feats, f.err
}

// TestDetectRounds checks rounding, t, ordering and the raw mass filter
func TestDetectRounds(t *testing.T) {
	finder := &fakeFinder{feats: []models.Feature{
		{Frame: 7, X: 12.3456, Y: 3.14159, Mass: 150.9, Size: 1.23456, Eccentricity: 0.1234, Signal: 33.337, RawMass: 99.7},
		{Frame: 2, X: 1, Y: 1, Mass: 120, Size: 1, Eccentricity: 0, Signal: 10, RawMass: 5},
		{Frame: 3, X: 1, Y: 1, Mass: 120, Size: 1, Eccentricity: 0, Signal: 10, RawMass: -5},
	}}

	table, err := Detect(frames.NewStack(1, 1, 1, 1), finder, Params{Diameter: 7, MinMass: 100, MaxSize: 11}, 3)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if !finder.got.Invert || finder.got.Diameter != 7 || finder.got.MinMass != 100 || finder.got.MaxSize != 11 {
		t.Errorf("Unexpected finder parameters %+v", finder.got)
	}
	if len(table) != 2 {
		t.Fatalf("Expected 2 spots, got %d", len(table))
	}
	if table[0].Frame != 2 || table[1].Frame != 7 {
		t.Errorf("Expected spots sorted by frame, got %d then %d", table[0].Frame, table[1].Frame)
	}

	s := table[1]
	want := models.Spot{Frame: 7, T: 2.333, X: 12.35, Y: 3.14, Mass: 150, Size: 1.235, Eccentricity: 0.123, Signal: 33.34, RawMass: 99}
	if s != want {
		t.Errorf("Expected %+v, got %+v", want, s)
	}
}

// TestDetectEmpty reports ErrNoSpotsDetected
func TestDetectEmpty(t *testing.T) {
	_, err := Detect(frames.NewStack(1, 1, 1, 1), &fakeFinder{}, Params{Diameter: 7}, 25)
	if !errors.Is(err, ErrNoSpotsDetected) {
		t.Errorf("Expected ErrNoSpotsDetected, got %v", err)
	}
}

// TestClassifyFixedThreshold checks the signal and eccentricity rule
func TestClassifyFixedThreshold(t *testing.T) {
	table := Table{
		{Signal: 10, Eccentricity: 0.1},
		{Signal: 9.99, Eccentricity: 0.1},
		{Signal: 20, Eccentricity: 0.9},
		{Signal: 20, Eccentricity: 0.5},
	}
	thr, err := Classify(table, config.FixedThreshold(10), 0, 0.5)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if thr != 10 {
		t.Errorf("Expected threshold 10, got %g", thr)
	}

	want := []bool{true, false, false, true}
	for i, w := range want {
		if table[i].TrueParticle != w {
			t.Errorf("Spot %d: expected true_particle %v, got %v", i, w, table[i].TrueParticle)
		}
	}
}

// TestClassifyNothingLeft covers a threshold above every signal
func TestClassifyNothingLeft(t *testing.T) {
	table := Table{{Signal: 1}, {Signal: 2}, {Signal: 3}}
	_, err := Classify(table, config.FixedThreshold(50), 0, 1)
	if !errors.Is(err, ErrNoSpotsAfterFiltering) {
		t.Errorf("Expected ErrNoSpotsAfterFiltering, got %v", err)
	}
}

// bimodalSignal builds a large noise mode near 5 and a smaller organism mode near 50
func bimodalSignal() []float64 {
	var signal []float64
	for i := 0; i < 50; i++ {
		signal = append(signal, 4.5, 5, 5.5)
	}
	for i := 0; i < 20; i++ {
		signal = append(signal, 49.5, 50, 50.5)
	}
	return signal
}

// TestAutoThresholdBimodal places the threshold between the two clusters
func TestAutoThresholdBimodal(t *testing.T) {
	thr, err := AutoThreshold(bimodalSignal(), ThresholdBins)
	if err != nil {
		t.Fatalf("AutoThreshold failed: %v", err)
	}
	if thr <= 5.5 || thr >= 49.5 {
		t.Errorf("Expected a threshold between the clusters, got %g", thr)
	}
	// bins span [4.5, 50.5]
	width := (50.5 - 4.5) / float64(ThresholdBins)
	if k := (thr - 4.5) / width; math.Abs(k-math.Round(k)) > 1e-9 {
		t.Errorf("Expected the threshold on a bin edge, got %g", thr)
	}

	var table Table
	for _, s := range bimodalSignal() {
		table = append(table, models.Spot{Signal: s})
	}
	if _, err := Classify(table, config.AutoThreshold(), 0, 1); err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if n := table.CountTrue(); n != 60 {
		t.Errorf("Expected the 60 high-signal spots to be true, got %d", n)
	}
}

// TestAutoThresholdAmbiguous rejects unimodal and degenerate input
func TestAutoThresholdAmbiguous(t *testing.T) {
	tests := []struct {
		name   string
		signal []float64
	}{
		{"empty", nil},
		{"constant", []float64{7, 7, 7, 7}},
		{"unimodal", []float64{1, 2, 2, 3, 3, 3, 3, 4, 4, 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := AutoThreshold(tt.signal, 5)
			if !errors.Is(err, ErrAmbiguousThreshold) {
				t.Errorf("Expected ErrAmbiguousThreshold, got %v", err)
			}
		})
	}
}

// TestFindPeaksAndProminences compares against hand-computed values
func TestFindPeaksAndProminences(t *testing.T) {
	x := []float64{0, 2, 1, 3, 3, 3, 0, 4, 0}

	peaks := findPeaks(x)
	wantPeaks := []int{1, 4, 7}
	if len(peaks) != len(wantPeaks) {
		t.Fatalf("Expected peaks %v, got %v", wantPeaks, peaks)
	}
	for i := range peaks {
		if peaks[i] != wantPeaks[i] {
			t.Errorf("Expected peaks %v, got %v", wantPeaks, peaks)
		}
	}

	prom := prominences(x, peaks)
	wantProm := []float64{1, 3, 4}
	for i := range prom {
		if math.Abs(prom[i]-wantProm[i]) > 1e-12 {
			t.Errorf("Peak %d: expected prominence %g, got %g", peaks[i], wantProm[i], prom[i])
		}
	}
}

// TestFilteredAndInvertY checks the filtered ordering and y inversion
func TestFilteredAndInvertY(t *testing.T) {
	table := Table{
		{Frame: 1, X: 5, Y: 10, TrueParticle: true, Vial: 2},
		{Frame: 0, X: 5, Y: 30, TrueParticle: true, Vial: 2},
		{Frame: 0, X: 1, Y: 20, TrueParticle: true, Vial: 1},
		{Frame: 0, X: 1, Y: 25, TrueParticle: false, Vial: 0},
		{Frame: 0, X: 1, Y: 25, TrueParticle: true, Vial: 0},
	}

	filtered := table.Filtered()
	if len(filtered) != 3 {
		t.Fatalf("Expected 3 filtered spots, got %d", len(filtered))
	}
	if filtered[0].Vial != 1 || filtered[1].Frame != 0 || filtered[2].Frame != 1 {
		t.Errorf("Unexpected order %+v", filtered)
	}

	inverted := filtered.InvertY()
	want := []float64{10, 0, 20}
	for i, w := range want {
		if inverted[i].Y != w {
			t.Errorf("Spot %d: expected y %g, got %g", i, w, inverted[i].Y)
		}
	}
	if filtered[0].Y != 20 {
		t.Errorf("InvertY must not modify its receiver")
	}
}
