package models

import "strings"

// ROI is a sub-rectangle of every frame in pixel coordinates
type ROI struct {
	X, Y int

	W, H int
}

// Contains reports whether the ROI fits inside a frame of the given size
func (r ROI) Contains(width, height int) bool {
	return r.X >= 0 && r.Y >= 0 && r.W > 0 && r.H > 0 &&
		r.X+r.W <= width && r.Y+r.H <= height
}

// FrameRange is a half-open range of frame indices [First, Last)
type FrameRange struct {
	First int
	Last  int
}

// Len returns the number of frames covered by the range
func (r FrameRange) Len() int {
	return r.Last - r.First
}

// Spot is one candidate organism detection in one frame.
// Coordinates are relative to the ROI; Frame is relative to the
// first analysed frame.
type Spot struct {
	Frame int
	T     float64

	X float64
	Y float64

	Mass         int
	Size         float64
	Eccentricity float64
	Signal       float64
	RawMass      int

	// TrueParticle is set by classification
	TrueParticle bool

	// Vial is 0 for false positives and spots outside every bin
	Vial int
}

// WindowResult is the regression outcome of one sliding window.
// LastFrame is always FirstFrame plus the window size.
type WindowResult struct {
	FirstFrame int
	LastFrame  int
	Slope      float64
	Intercept  float64
	R          float64
	PValue     float64
	StdErr     float64
}

// Field is one naming-convention field of a video file name
type Field struct {
	Name  string
	Value string
}

// Identity holds the experiment fields parsed from a video file name
type Identity struct {
	// Fields preserves the order of the naming convention
	Fields []Field

	// VialPrefix is made of the first vial_id_vars values
	VialPrefix []string
}

// VialID returns the identifier of a vial, e.g. "w1118_M_3" or "w1118_M_all"
func (id Identity) VialID(suffix string) string {
	parts := append(append([]string{}, id.VialPrefix...), suffix)
	return strings.Join(parts, "_")
}

// Names returns the field names in naming-convention order
func (id Identity) Names() []string {
	names := make([]string, len(id.Fields))
	for i, f := range id.Fields {
		names[i] = f.Name
	}
	return names
}

// Values returns the field values in naming-convention order
func (id Identity) Values() []string {
	values := make([]string, len(id.Fields))
	for i, f := range id.Fields {
		values[i] = f.Value
	}
	return values
}

// Feature is an unrounded detection as produced by a spot finder
type Feature struct {
	Frame        int
	X            float64
	Y            float64
	Mass         float64
	Size         float64
	Eccentricity float64
	Signal       float64
	RawMass      float64
}
