// Package results assembles the per-vial slope table and reads and writes
// every CSV the pipeline produces.
package results

import (
	"strconv"

	"climbrate/internal/models"
)

// AllVials is the vial suffix of the global regression row
const AllVials = "all"

// SlopeColumns are the leading columns of a slopes table
var SlopeColumns = []string{"vial_ID", "first_frame", "last_frame", "slope", "intercept", "r_value", "p_value", "std_err"}

// Row is the winning window of one vial
type Row struct {
	VialID     string
	FirstFrame int
	LastFrame  int
	Slope      float64
	Intercept  float64
	R          float64
	PValue     float64
	StdErr     float64

	// Values holds the identity values, aligned with Table.Fields
	Values []string
}

// Table is the slopes table of one video, or of a whole project
type Table struct {
	Fields []string
	Rows   []Row
}

// ConversionFactor maps a pixel/frame slope to cm/sec when enabled
func ConversionFactor(convert bool, pixelToCm, frameRate float64) float64 {
	if !convert {
		return 1
	}
	return pixelToCm / frameRate
}

// Assemble builds one row per vial in vial order, skipping vials without a
// winner, plus an "all" row from the global regression when vialCount > 1
// and all is not nil. Slopes are scaled by factor; every float is rounded
// to 4 decimals.
func Assemble(winners map[int]models.WindowResult, all *models.WindowResult, id models.Identity, vialCount int, factor float64) Table {
	t := Table{Fields: id.Names()}
	values := id.Values()

	for v := 1; v <= vialCount; v++ {
		w, ok := winners[v]
		if !ok {
			continue
		}
		t.Rows = append(t.Rows, newRow(id.VialID(strconv.Itoa(v)), w, factor, values))
	}
	if vialCount > 1 && all != nil {
		t.Rows = append(t.Rows, newRow(id.VialID(AllVials), *all, factor, values))
	}
	return t
}

func newRow(vialID string, w models.WindowResult, factor float64, values []string) Row {
	return Row{
		VialID:     vialID,
		FirstFrame: w.FirstFrame,
		LastFrame:  w.LastFrame,
		Slope:      models.Round(w.Slope*factor, 4),
		Intercept:  models.Round(w.Intercept, 4),
		R:          models.Round(w.R, 4),
		PValue:     models.Round(w.PValue, 4),
		StdErr:     models.Round(w.StdErr, 4),
		Values:     append([]string(nil), values...),
	}
}
