package regression

import "errors"

var (
	// ErrDegenerate means a fit cannot be computed, e.g. every x is identical
	ErrDegenerate = errors.New("degenerate regression input")

	// ErrUnknownMethod is returned for a selection method other than max_r or min_err
	ErrUnknownMethod = errors.New("unrecognized selection method")

	// ErrNoUsableWindow means every window was skipped or produced NaN
	ErrNoUsableWindow = errors.New("no usable regression window")
)
