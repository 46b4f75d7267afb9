package spots

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"climbrate/pkg/config"
)

// ThresholdBins is the number of histogram bins used by AutoThreshold
const ThresholdBins = 40

// Classify marks every spot as true when signal >= threshold and the
// eccentricity lies in [eccLow, eccHigh]. An automatic threshold is
// computed once from the signal column. It returns the threshold applied.
func Classify(table Table, threshold config.Threshold, eccLow, eccHigh float64) (float64, error) {
	thr := threshold.Value
	if threshold.Auto {
		var err error
		thr, err = AutoThreshold(table.Signals(), ThresholdBins)
		if err != nil {
			return 0, err
		}
	}

	for i := range table {
		s := &table[i]
		s.TrueParticle = s.Signal >= thr && s.Eccentricity >= eccLow && s.Eccentricity <= eccHigh
	}

	if table.CountTrue() == 0 {
		return thr, fmt.Errorf("%w: threshold %g, eccentricity [%g, %g]", ErrNoSpotsAfterFiltering, thr, eccLow, eccHigh)
	}
	return thr, nil
}

// AutoThreshold separates a dominant low-signal noise mode from a
// high-signal organism mode. The signal values are histogrammed, peaks of
// the count curve are ranked by prominence and the two most prominent
// modes kept. The threshold is the lower edge of the emptiest bin between
// them, so it is always a bin edge strictly between the two modes: above
// every value in the lower mode's bin and below every value in the upper
// mode's bin. Fewer than two modes, or two adjacent ones, is ambiguous.
func AutoThreshold(signal []float64, bins int) (float64, error) {
	if len(signal) == 0 || bins < 3 {
		return 0, fmt.Errorf("%w: %d values in %d bins", ErrAmbiguousThreshold, len(signal), bins)
	}

	x := append([]float64(nil), signal...)
	sort.Float64s(x)
	lo, hi := x[0], x[len(x)-1]
	if lo == hi {
		return 0, fmt.Errorf("%w: every signal equals %g", ErrAmbiguousThreshold, lo)
	}

	dividers := make([]float64, bins+1)
	floats.Span(dividers, lo, hi)
	// the last bin is closed on the right
	dividers[bins] = math.Nextafter(hi, math.Inf(1))
	counts := stat.Histogram(nil, dividers, x, nil)

	// zero padding lets a mode in the first or last bin count as a peak
	padded := make([]float64, 0, len(counts)+2)
	padded = append(padded, 0)
	padded = append(padded, counts...)
	padded = append(padded, 0)

	peaks := findPeaks(padded)
	if len(peaks) < 2 {
		return 0, fmt.Errorf("%w: found %d peak(s)", ErrAmbiguousThreshold, len(peaks))
	}
	prom := prominences(padded, peaks)

	order := make([]int, len(peaks))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return prom[order[a]] > prom[order[b]]
	})

	left, right := peaks[order[0]], peaks[order[1]]
	if left > right {
		left, right = right, left
	}
	if right-left < 2 {
		return 0, fmt.Errorf("%w: the two main modes are adjacent", ErrAmbiguousThreshold)
	}

	valley := left + 1
	for i := left + 1; i < right; i++ {
		if padded[i] < padded[valley] {
			valley = i
		}
	}
	// padded index i is histogram bin i-1, whose lower edge is dividers[i-1]
	return dividers[valley-1], nil
}

// findPeaks returns the indices of local maxima. A flat top counts once,
// at its middle sample (rounded down).
func findPeaks(x []float64) []int {
	var peaks []int
	i := 1
	last := len(x) - 1
	for i < last {
		if x[i-1] < x[i] {
			ahead := i + 1
			for ahead < last && x[ahead] == x[i] {
				ahead++
			}
			if x[ahead] < x[i] {
				peaks = append(peaks, (i+ahead-1)/2)
				i = ahead
				continue
			}
		}
		i++
	}
	return peaks
}

// prominences measures how far each peak stands above the higher of the
// two lowest points reachable before climbing above it.
func prominences(x []float64, peaks []int) []float64 {
	out := make([]float64, len(peaks))
	for k, p := range peaks {
		leftMin := x[p]
		for i := p; i >= 0 && x[i] <= x[p]; i-- {
			leftMin = math.Min(leftMin, x[i])
		}
		rightMin := x[p]
		for i := p; i < len(x) && x[i] <= x[p]; i++ {
			rightMin = math.Min(rightMin, x[i])
		}
		out[k] = x[p] - math.Max(leftMin, rightMin)
	}
	return out
}
