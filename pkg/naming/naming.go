// Package naming derives the experiment identity and every output path
// from a video file name. All functions are pure.
package naming

import (
	"path/filepath"
	"strings"

	"climbrate/internal/models"
)

// Delimiter separates fields in file names and naming conventions
const Delimiter = "_"

// Output suffixes, appended to the video path without its extension
const (
	RawSuffix        = ".raw.csv"
	FilteredSuffix   = ".filtered.csv"
	DiagnosticSuffix = ".diagnostic.png"
	SlopesSuffix     = ".slopes.csv"
	ProcessedSuffix  = ".processed.png"
	SpotCheckSuffix  = ".spot_check.png"
	ROISuffix        = ".ROI.png"
)

// ResultsFile is the project-level concatenation of every slopes table
const ResultsFile = "results.csv"

// Paths lists the files written for one video
type Paths struct {
	Video      string
	Stem       string
	Raw        string
	Filtered   string
	Diagnostic string
	Slopes     string
	Processed  string
	SpotCheck  string
	ROI        string
}

// Stem returns the path with its last extension removed
func Stem(videoPath string) string {
	return strings.TrimSuffix(videoPath, filepath.Ext(videoPath))
}

// PathsFor derives every output path of a video
func PathsFor(videoPath string) Paths {
	stem := Stem(videoPath)
	return Paths{
		Video:      videoPath,
		Stem:       stem,
		Raw:        stem + RawSuffix,
		Filtered:   stem + FilteredSuffix,
		Diagnostic: stem + DiagnosticSuffix,
		Slopes:     stem + SlopesSuffix,
		Processed:  stem + ProcessedSuffix,
		SpotCheck:  stem + SpotCheckSuffix,
		ROI:        stem + ROISuffix,
	}
}

// Parse splits the base name of a video on the delimiter and pairs the
// values with the convention's field names. Extra names or values are
// dropped. The vial prefix is the first vialIDVars values.
func Parse(videoPath string, convention []string, vialIDVars int) models.Identity {
	values := strings.Split(filepath.Base(Stem(videoPath)), Delimiter)

	n := len(convention)
	if len(values) < n {
		n = len(values)
	}
	id := models.Identity{Fields: make([]models.Field, n)}
	for i := 0; i < n; i++ {
		id.Fields[i] = models.Field{Name: convention[i], Value: values[i]}
	}

	if vialIDVars > len(values) {
		vialIDVars = len(values)
	}
	if vialIDVars > 0 {
		id.VialPrefix = append([]string(nil), values[:vialIDVars]...)
	}
	return id
}
