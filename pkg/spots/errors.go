package spots

import "errors"

var (
	// ErrNoSpotsDetected means the finder returned nothing for the video
	ErrNoSpotsDetected = errors.New("no spots detected, try modifying diameter, maxsize or minmass")

	// ErrNoSpotsAfterFiltering means classification rejected every spot
	ErrNoSpotsAfterFiltering = errors.New("threshold too restrictive, no spots left after filtering")

	// ErrAmbiguousThreshold means the signal histogram is not clearly bimodal
	ErrAmbiguousThreshold = errors.New("signal histogram is not bimodal, set a numeric threshold")
)
