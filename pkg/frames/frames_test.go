package frames

import (
	"errors"
	"math"
	"testing"

	"climbrate/internal/models"
)

// createTestVideo builds a video whose pixel colour encodes its frame and position
func createTestVideo(width, height, count int) *Video {
	v := &Video{Width: width, Height: height}
	for f := 0; f < count; f++ {
		frame := make([]byte, width*height*3)
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				i := (y*width + x) * 3
				frame[i] = byte(10*f + x)
				frame[i+1] = byte(20 + y)
				frame[i+2] = byte(200 - x - y)
			}
		}
		v.Frames = append(v.Frames, frame)
	}
	return v
}

// TestLuma verifies the ITU-R 601 weights for a range of pixels
func TestLuma(t *testing.T) {
	pixels := [][3]uint8{{0, 0, 0}, {255, 255, 255}, {255, 0, 0}, {0, 255, 0}, {0, 0, 255}, {12, 200, 77}}
	for _, p := range pixels {
		want := 0.2989*float64(p[0]) + 0.5870*float64(p[1]) + 0.1140*float64(p[2])
		got := Luma(p[0], p[1], p[2])
		if math.Abs(got-want) > 1e-6 {
			t.Errorf("Luma(%v) = %f, want %f", p, got, want)
		}
	}
}

// TestCropAndGrayscale checks cropping in space and time for both output modes
func TestCropAndGrayscale(t *testing.T) {
	v := createTestVideo(8, 6, 5)
	roi := models.ROI{X: 2, Y: 1, W: 4, H: 3}
	fr := models.FrameRange{First: 1, Last: 4}

	gray, err := CropAndGrayscale(v, roi, fr, true)
	if err != nil {
		t.Fatalf("CropAndGrayscale failed: %v", err)
	}
	if gray.Frames != 3 || gray.Height != 3 || gray.Width != 4 || gray.Channels != 1 {
		t.Fatalf("Unexpected shape %dx%dx%dx%d", gray.Frames, gray.Height, gray.Width, gray.Channels)
	}

	// Frame 0 of the stack is video frame 1; pixel (0,0) is video pixel (2,1)
	want := Luma(byte(10*1+2), byte(20+1), byte(200-2-1))
	if got := gray.At(0, 0, 0); math.Abs(got-want) > 1e-9 {
		t.Errorf("Expected %f at origin, got %f", want, got)
	}
	want = Luma(byte(10*3+5), byte(20+3), byte(200-5-3))
	if got := gray.At(2, 2, 3); math.Abs(got-want) > 1e-9 {
		t.Errorf("Expected %f at last pixel, got %f", want, got)
	}

	rgb, err := CropAndGrayscale(v, roi, fr, false)
	if err != nil {
		t.Fatalf("CropAndGrayscale failed: %v", err)
	}
	if rgb.Channels != 3 || len(rgb.Data) != 3*3*4*3 {
		t.Fatalf("Unexpected RGB stack size %d", len(rgb.Data))
	}
	if rgb.Data[0] != float64(10*1+2) || rgb.Data[1] != 21 || rgb.Data[2] != 197 {
		t.Errorf("Unexpected RGB origin %v", rgb.Data[:3])
	}
}

// TestCropAndGrayscaleErrors checks the ROI and range guards
func TestCropAndGrayscaleErrors(t *testing.T) {
	v := createTestVideo(8, 6, 5)

	_, err := CropAndGrayscale(v, models.ROI{X: 5, Y: 0, W: 4, H: 3}, models.FrameRange{First: 0, Last: 2}, true)
	if !errors.Is(err, ErrInvalidROI) {
		t.Errorf("Expected ErrInvalidROI, got %v", err)
	}

	_, err = CropAndGrayscale(v, models.ROI{X: 0, Y: 0, W: 4, H: 3}, models.FrameRange{First: 3, Last: 3}, true)
	if !errors.Is(err, ErrEmptyRange) {
		t.Errorf("Expected ErrEmptyRange, got %v", err)
	}
}
