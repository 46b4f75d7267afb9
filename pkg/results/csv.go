package results

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strconv"

	"climbrate/internal/models"
	"climbrate/pkg/naming"
	"climbrate/pkg/spots"
)

// ErrMalformed is returned when a slopes table cannot be parsed
var ErrMalformed = errors.New("malformed slopes table")

// raw detection columns
var rawColumns = []string{"frame", "t", "x", "y", "mass", "size", "ecc", "signal", "raw_mass", "true_particle", "vial"}

// filtered table columns, followed by the identity fields
var filteredColumns = []string{"frame", "t", "x", "y", "vial"}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// writeCSV creates path and writes the header followed by rows
func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return records, nil
}

// WriteSlopes writes the slopes table of one video
func WriteSlopes(path string, t Table) error {
	header := append(append([]string(nil), SlopeColumns...), t.Fields...)
	rows := make([][]string, 0, len(t.Rows))
	for _, r := range t.Rows {
		rec := []string{
			r.VialID,
			strconv.Itoa(r.FirstFrame),
			strconv.Itoa(r.LastFrame),
			formatFloat(r.Slope),
			formatFloat(r.Intercept),
			formatFloat(r.R),
			formatFloat(r.PValue),
			formatFloat(r.StdErr),
		}
		rows = append(rows, append(rec, r.Values...))
	}
	return writeCSV(path, header, rows)
}

// ReadSlopes reads a table written by WriteSlopes
func ReadSlopes(path string) (Table, error) {
	records, err := readCSV(path)
	if err != nil {
		return Table{}, err
	}
	if len(records) == 0 || len(records[0]) < len(SlopeColumns) {
		return Table{}, fmt.Errorf("%w: %s has no header", ErrMalformed, path)
	}
	for i, name := range SlopeColumns {
		if records[0][i] != name {
			return Table{}, fmt.Errorf("%w: column %d is %q, want %q", ErrMalformed, i, records[0][i], name)
		}
	}

	t := Table{Fields: append([]string(nil), records[0][len(SlopeColumns):]...)}
	width := len(records[0])
	for line, rec := range records[1:] {
		if len(rec) != width {
			return Table{}, fmt.Errorf("%w: line %d has %d fields, want %d", ErrMalformed, line+2, len(rec), width)
		}
		row, err := parseRow(rec)
		if err != nil {
			return Table{}, fmt.Errorf("%w: line %d: %v", ErrMalformed, line+2, err)
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func parseRow(rec []string) (Row, error) {
	row := Row{VialID: rec[0], Values: append([]string(nil), rec[len(SlopeColumns):]...)}

	var err error
	if row.FirstFrame, err = strconv.Atoi(rec[1]); err != nil {
		return row, err
	}
	if row.LastFrame, err = strconv.Atoi(rec[2]); err != nil {
		return row, err
	}
	floats := []*float64{&row.Slope, &row.Intercept, &row.R, &row.PValue, &row.StdErr}
	for i, dst := range floats {
		if *dst, err = strconv.ParseFloat(rec[3+i], 64); err != nil {
			return row, err
		}
	}
	return row, nil
}

// WriteRaw writes every detected spot with its classification and vial
func WriteRaw(path string, table spots.Table) error {
	rows := make([][]string, 0, len(table))
	for _, s := range table {
		rows = append(rows, []string{
			strconv.Itoa(s.Frame),
			formatFloat(s.T),
			formatFloat(s.X),
			formatFloat(s.Y),
			strconv.Itoa(s.Mass),
			formatFloat(s.Size),
			formatFloat(s.Eccentricity),
			formatFloat(s.Signal),
			strconv.Itoa(s.RawMass),
			strconv.FormatBool(s.TrueParticle),
			strconv.Itoa(s.Vial),
		})
	}
	return writeCSV(path, rawColumns, rows)
}

// WriteFiltered writes true, vial-assigned spots with the identity fields
// appended. The table is expected to be filtered with y already inverted.
func WriteFiltered(path string, table spots.Table, id models.Identity) error {
	header := append(append([]string(nil), filteredColumns...), id.Names()...)
	values := id.Values()

	rows := make([][]string, 0, len(table))
	for _, s := range table {
		rec := []string{
			strconv.Itoa(s.Frame),
			formatFloat(s.T),
			formatFloat(s.X),
			formatFloat(s.Y),
			strconv.Itoa(s.Vial),
		}
		rows = append(rows, append(rec, values...))
	}
	return writeCSV(path, header, rows)
}

// Concat row-concatenates every slopes table under root into out. Columns
// are the union of all headers in first-seen order; missing cells are
// left empty. It returns the number of tables merged.
func Concat(root, out string) (int, error) {
	files, err := naming.FindSlopes(root)
	if err != nil {
		return 0, err
	}

	var header []string
	index := make(map[string]int)
	type table struct {
		header []string
		rows   [][]string
	}
	var tables []table

	for _, path := range files {
		records, err := readCSV(path)
		if err != nil {
			return 0, err
		}
		if len(records) == 0 {
			continue
		}
		for _, col := range records[0] {
			if _, ok := index[col]; !ok {
				index[col] = len(header)
				header = append(header, col)
			}
		}
		tables = append(tables, table{header: records[0], rows: records[1:]})
	}

	var rows [][]string
	for _, tb := range tables {
		for _, rec := range tb.rows {
			row := make([]string, len(header))
			for i, col := range tb.header {
				if i < len(rec) {
					row[index[col]] = rec[i]
				}
			}
			rows = append(rows, row)
		}
	}

	if len(header) == 0 {
		header = SlopeColumns
	}
	if err := writeCSV(out, header, rows); err != nil {
		return 0, err
	}
	return len(tables), nil
}
