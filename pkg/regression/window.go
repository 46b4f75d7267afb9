package regression

import (
	"fmt"
	"math"

	"climbrate/internal/models"
)

// Selection methods
const (
	MaxR   = "max_r"
	MinErr = "min_err"
)

// significance is the p-value at or above which a slope is reported as 0
const significance = 0.05

// Point is one spot position used for regression
type Point struct {
	Frame int
	Y     float64
}

// Scan holds every window result of one sliding-window pass
type Scan struct {
	Results []models.WindowResult

	// Skipped lists first frames of windows with a frame lacking points
	Skipped []int
}

// Windows slides a window over frames [0, totalFrames). Window i covers
// frames i to i+window inclusive, for i from 0 to totalFrames-window-1.
// Points are averaged per frame; a window containing a frame without points
// is skipped. A failed fit yields a NaN row and a p-value at or above 0.05
// forces the slope to 0.
func Windows(points []Point, totalFrames, window int) Scan {
	sums := make(map[int]float64)
	counts := make(map[int]int)
	for _, p := range points {
		sums[p.Frame] += p.Y
		counts[p.Frame]++
	}

	var scan Scan
	x := make([]float64, 0, window+1)
	y := make([]float64, 0, window+1)

	for start := 0; start < totalFrames-window; start++ {
		stop := start + window
		x, y = x[:0], y[:0]
		complete := true
		for f := start; f <= stop; f++ {
			c := counts[f]
			if c == 0 {
				complete = false
				break
			}
			x = append(x, float64(f))
			y = append(y, sums[f]/float64(c))
		}
		if !complete {
			scan.Skipped = append(scan.Skipped, start)
			continue
		}

		res := models.WindowResult{FirstFrame: start, LastFrame: stop}
		fit, err := Linregress(x, y)
		if err != nil {
			nan := math.NaN()
			res.Slope, res.Intercept, res.R, res.PValue, res.StdErr = nan, nan, nan, nan, nan
			scan.Results = append(scan.Results, res)
			continue
		}

		res.Slope = fit.Slope
		res.Intercept = fit.Intercept
		res.R = fit.R
		res.PValue = fit.PValue
		res.StdErr = fit.StdErr
		if res.PValue >= significance {
			res.Slope = 0
		}
		scan.Results = append(scan.Results, res)
	}

	return scan
}

// Select picks the winning window. NaN metrics never win and the first
// window in frame order wins a tie.
func Select(results []models.WindowResult, method string) (models.WindowResult, error) {
	var metric func(models.WindowResult) float64
	var better func(a, b float64) bool

	switch method {
	case MaxR:
		metric = func(w models.WindowResult) float64 { return w.R }
		better = func(a, b float64) bool { return a > b }
	case MinErr:
		metric = func(w models.WindowResult) float64 { return w.StdErr }
		better = func(a, b float64) bool { return a < b }
	default:
		return models.WindowResult{}, fmt.Errorf("%w: %q", ErrUnknownMethod, method)
	}

	best := -1
	for i, w := range results {
		m := metric(w)
		if math.IsNaN(m) {
			continue
		}
		if best < 0 || better(m, metric(results[best])) {
			best = i
		}
	}
	if best < 0 {
		return models.WindowResult{}, fmt.Errorf("%w: %d window(s) evaluated", ErrNoUsableWindow, len(results))
	}
	return results[best], nil
}

// Regress runs Windows and Select
func Regress(points []Point, totalFrames, window int, method string) (models.WindowResult, Scan, error) {
	scan := Windows(points, totalFrames, window)
	best, err := Select(scan.Results, method)
	return best, scan, err
}
