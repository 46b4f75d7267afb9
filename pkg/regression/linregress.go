// Package regression finds the window of constant climbing velocity by
// fitting ordinary least squares over a sliding window of frames.
package regression

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// tiny keeps the t statistic finite when |r| is 1
const tiny = 1e-20

// Fit is an ordinary least squares fit of y against x
type Fit struct {
	Slope     float64
	Intercept float64
	R         float64
	PValue    float64 // two-sided, null hypothesis slope == 0
	StdErr    float64 // standard error of the slope
}

// Linregress fits y = Slope*x + Intercept
func Linregress(x, y []float64) (Fit, error) {
	n := len(x)
	if n != len(y) {
		return Fit{}, fmt.Errorf("%w: %d x values and %d y values", ErrDegenerate, n, len(y))
	}
	if n < 2 {
		return Fit{}, fmt.Errorf("%w: need at least 2 points, got %d", ErrDegenerate, n)
	}

	// sample moments; every ratio below is the same as with population moments
	xVar := stat.Variance(x, nil)
	if xVar == 0 {
		return Fit{}, fmt.Errorf("%w: all x values are identical", ErrDegenerate)
	}
	yVar := stat.Variance(y, nil)
	cov := stat.Covariance(x, y, nil)

	intercept, slope := stat.LinearRegression(x, y, nil, false)

	var r float64
	if yVar != 0 {
		r = cov / math.Sqrt(xVar*yVar)
		r = math.Max(-1, math.Min(1, r))
	}

	fit := Fit{Slope: slope, Intercept: intercept, R: r}
	if n == 2 {
		fit.PValue = 0
		if y[0] == y[1] {
			fit.PValue = 1
		}
		return fit, nil
	}

	df := float64(n - 2)
	t := r * math.Sqrt(df/((1-r+tiny)*(1+r+tiny)))
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	fit.PValue = 2 * dist.Survival(math.Abs(t))
	fit.StdErr = math.Sqrt((1 - r*r) * yVar / xVar / df)
	return fit, nil
}
