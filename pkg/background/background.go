// Package background estimates the static part of a recording and removes it.
package background

import (
	"fmt"
	"sort"

	"climbrate/internal/models"
	"climbrate/pkg/frames"
)

// Image is a single grayscale plane the size of the ROI
type Image struct {
	Width  int
	Height int
	Data   []float64
}

// At returns the value at column x, row y
func (img *Image) At(x, y int) float64 {
	return img.Data[y*img.Width+x]
}

// Compute returns the per-pixel median of the stack frames in blank (a range
// relative to the stack). Medians are computed in float64 and truncated to
// integers. Frames outside blank never influence the result.
func Compute(stack *frames.Stack, blank models.FrameRange) (*Image, error) {
	if stack.Channels != 1 {
		return nil, fmt.Errorf("background needs a grayscale stack, got %d channels", stack.Channels)
	}
	if blank.Last <= blank.First {
		return nil, fmt.Errorf("%w: background range [%d, %d)", frames.ErrEmptyRange, blank.First, blank.Last)
	}
	if blank.First < 0 || blank.Last > stack.Frames {
		return nil, fmt.Errorf("%w: background range [%d, %d) outside %d frames",
			frames.ErrEmptyRange, blank.First, blank.Last, stack.Frames)
	}

	plane := stack.Height * stack.Width
	bg := &Image{Width: stack.Width, Height: stack.Height, Data: make([]float64, plane)}
	values := make([]float64, blank.Len())

	for p := 0; p < plane; p++ {
		for f := blank.First; f < blank.Last; f++ {
			values[f-blank.First] = stack.Data[f*plane+p]
		}
		bg.Data[p] = float64(int(median(values)))
	}

	return bg, nil
}

// Subtract returns frame - background for every frame. Negative values are
// kept because dark organisms on a lighter background produce them.
func Subtract(stack *frames.Stack, bg *Image) (*frames.Stack, error) {
	if stack.Width != bg.Width || stack.Height != bg.Height || stack.Channels != 1 {
		return nil, fmt.Errorf("background %dx%d does not match stack %dx%dx%d",
			bg.Width, bg.Height, stack.Width, stack.Height, stack.Channels)
	}

	out := frames.NewStack(stack.Frames, stack.Height, stack.Width, 1)
	plane := stack.Height * stack.Width
	for f := 0; f < stack.Frames; f++ {
		src := stack.Frame(f)
		dst := out.Frame(f)
		for p := 0; p < plane; p++ {
			dst[p] = src[p] - bg.Data[p]
		}
	}
	return out, nil
}

// median sorts values in place and returns their median
func median(values []float64) float64 {
	sort.Float64s(values)

	n := len(values)
	if n == 0 {
		return 0
	}
	if n%2 == 0 {
		return (values[n/2-1] + values[n/2]) / 2
	}
	return values[n/2]
}
