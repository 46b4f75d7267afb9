// Package spots turns finder detections into the rounded spot table and
// classifies each spot as a true organism or a false positive.
package spots

import (
	"fmt"
	"math"
	"sort"

	"climbrate/internal/models"
	"climbrate/pkg/frames"
	"climbrate/pkg/locate"
)

// Finder locates candidate spots in a frame stack
type Finder interface {
	Find(stack *frames.Stack, p locate.Params) ([]models.Feature, error)
}

// Params are the detection settings passed to the finder
type Params struct {
	Diameter int
	MinMass  float64
	MaxSize  float64
}

// Table is a spot table sorted by frame
type Table []models.Spot

// Detect runs the finder on a background-subtracted stack in inverted
// mode and rounds the results. Spots with a non-positive raw mass are
// dropped.
func Detect(stack *frames.Stack, finder Finder, p Params, frameRate float64) (Table, error) {
	feats, err := finder.Find(stack, locate.Params{
		Diameter: p.Diameter,
		MinMass:  p.MinMass,
		MaxSize:  p.MaxSize,
		Invert:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("spot finder failed: %w", err)
	}

	table := make(Table, 0, len(feats))
	for _, f := range feats {
		if f.RawMass <= 0 {
			continue
		}
		table = append(table, models.Spot{
			Frame:        f.Frame,
			T:            models.Round(float64(f.Frame)/frameRate, 3),
			X:            models.Round(f.X, 2),
			Y:            models.Round(f.Y, 2),
			Mass:         int(f.Mass),
			Size:         models.Round(f.Size, 3),
			Eccentricity: models.Round(f.Eccentricity, 3),
			Signal:       models.Round(f.Signal, 2),
			RawMass:      int(f.RawMass),
		})
	}
	if len(table) == 0 {
		return nil, ErrNoSpotsDetected
	}

	sort.SliceStable(table, func(i, j int) bool {
		return table[i].Frame < table[j].Frame
	})
	return table, nil
}

// Signals returns the signal column
func (t Table) Signals() []float64 {
	out := make([]float64, len(t))
	for i, s := range t {
		out[i] = s.Signal
	}
	return out
}

// True returns a copy of the spots classified as organisms
func (t Table) True() Table {
	var out Table
	for _, s := range t {
		if s.TrueParticle {
			out = append(out, s)
		}
	}
	return out
}

// CountTrue returns the number of true spots
func (t Table) CountTrue() int {
	n := 0
	for _, s := range t {
		if s.TrueParticle {
			n++
		}
	}
	return n
}

// Filtered returns true, vial-assigned spots sorted by vial, frame, y, x
func (t Table) Filtered() Table {
	var out Table
	for _, s := range t {
		if s.TrueParticle && s.Vial != 0 {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Vial != b.Vial {
			return a.Vial < b.Vial
		}
		if a.Frame != b.Frame {
			return a.Frame < b.Frame
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.X < b.X
	})
	return out
}

// Vial returns the spots assigned to vial v, in table order
func (t Table) Vial(v int) Table {
	var out Table
	for _, s := range t {
		if s.Vial == v {
			out = append(out, s)
		}
	}
	return out
}

// InvertY returns a copy with y measured upwards from the lowest spot:
// y' = max(y) - y, rounded to 2 decimals.
func (t Table) InvertY() Table {
	if len(t) == 0 {
		return nil
	}
	maxY := math.Inf(-1)
	for _, s := range t {
		maxY = math.Max(maxY, s.Y)
	}
	out := make(Table, len(t))
	for i, s := range t {
		s.Y = models.Round(math.Abs(maxY-s.Y), 2)
		out[i] = s
	}
	return out
}
