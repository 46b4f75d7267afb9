// Package frames owns the decoded video and turns it into the cropped,
// optionally grayscale, frame stacks the detector works on.
package frames

import (
	"fmt"

	"climbrate/internal/models"
)

// ITU-R 601 luma weights
const (
	LumaR = 0.2989
	LumaG = 0.5870
	LumaB = 0.1140
)

// Video is a decoded recording: RGB24 frames in presentation order,
// each Width*Height*3 bytes, row-major.
type Video struct {
	Width  int
	Height int
	Frames [][]byte
}

// FrameCount returns the number of decoded frames
func (v *Video) FrameCount() int {
	return len(v.Frames)
}

// Decoder turns a video file into raw RGB frames
type Decoder interface {
	Decode(path string) (*Video, error)
}

// Stack is a fixed-size sequence of frames stored as a flat array in
// frame, row, column, channel order.
type Stack struct {
	Frames   int
	Height   int
	Width    int
	Channels int

	Data []float64
}

// NewStack allocates a zeroed stack
func NewStack(frames, height, width, channels int) *Stack {
	return &Stack{
		Frames:   frames,
		Height:   height,
		Width:    width,
		Channels: channels,
		Data:     make([]float64, frames*height*width*channels),
	}
}

// PlaneSize returns the number of values in one frame
func (s *Stack) PlaneSize() int {
	return s.Height * s.Width * s.Channels
}

// Frame returns the values of frame i without copying
func (s *Stack) Frame(i int) []float64 {
	n := s.PlaneSize()
	return s.Data[i*n : (i+1)*n]
}

// At returns the value of a single-channel stack
func (s *Stack) At(frame, y, x int) float64 {
	return s.Data[(frame*s.Height+y)*s.Width+x]
}

// CropAndGrayscale restricts the video to frameRange and roi. With grayscale
// each pixel becomes 0.2989R + 0.5870G + 0.1140B computed in float64;
// otherwise the three channels are kept.
func CropAndGrayscale(v *Video, roi models.ROI, frameRange models.FrameRange, grayscale bool) (*Stack, error) {
	if !roi.Contains(v.Width, v.Height) {
		return nil, fmt.Errorf("%w: roi %+v in %dx%d frame", ErrInvalidROI, roi, v.Width, v.Height)
	}
	if frameRange.Last <= frameRange.First {
		return nil, fmt.Errorf("%w: [%d, %d)", ErrEmptyRange, frameRange.First, frameRange.Last)
	}
	if frameRange.First < 0 || frameRange.Last > v.FrameCount() {
		return nil, fmt.Errorf("%w: [%d, %d) outside %d decoded frames",
			ErrEmptyRange, frameRange.First, frameRange.Last, v.FrameCount())
	}

	channels := 3
	if grayscale {
		channels = 1
	}
	stack := NewStack(frameRange.Len(), roi.H, roi.W, channels)

	for f := frameRange.First; f < frameRange.Last; f++ {
		src := v.Frames[f]
		if len(src) < v.Width*v.Height*3 {
			return nil, fmt.Errorf("%w: frame %d has %d bytes, want %d",
				ErrDecode, f, len(src), v.Width*v.Height*3)
		}
		dst := stack.Frame(f - frameRange.First)

		for y := 0; y < roi.H; y++ {
			row := ((roi.Y+y)*v.Width + roi.X) * 3
			for x := 0; x < roi.W; x++ {
				p := src[row+x*3 : row+x*3+3]
				if grayscale {
					dst[y*roi.W+x] = Luma(p[0], p[1], p[2])
					continue
				}
				i := (y*roi.W + x) * 3
				dst[i] = float64(p[0])
				dst[i+1] = float64(p[1])
				dst[i+2] = float64(p[2])
			}
		}
	}

	return stack, nil
}

// Luma converts one RGB pixel to its grayscale intensity
func Luma(r, g, b uint8) float64 {
	return LumaR*float64(r) + LumaG*float64(g) + LumaB*float64(b)
}
