package frames

import "errors"

var (
	// ErrInvalidROI is returned when the region of interest extends beyond the frame.
	ErrInvalidROI = errors.New("region of interest outside frame bounds")

	// ErrEmptyRange is returned when a frame range selects no frames.
	ErrEmptyRange = errors.New("empty frame range")

	// ErrDecode is returned when the video metadata or frames cannot be read.
	ErrDecode = errors.New("video decode failed")
)
