// Package video decodes recordings with OpenCV into the raw RGB frames
// consumed by the frames package.
package video

import (
	"fmt"

	"gocv.io/x/gocv"

	"climbrate/internal/log"
	"climbrate/pkg/frames"
)

// Decoder reads every frame of a file through gocv
type Decoder struct {
	// MaxFrames stops decoding after this many frames; 0 reads to the end
	MaxFrames int
}

// NewDecoder returns a Decoder that reads whole files
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode opens path and returns its frames in presentation order as RGB24
func (d *Decoder) Decode(path string) (*frames.Video, error) {
	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open %s: %v", frames.ErrDecode, path, err)
	}
	defer capture.Close()

	if !capture.IsOpened() {
		return nil, fmt.Errorf("%w: cannot open %s", frames.ErrDecode, path)
	}

	width := int(capture.Get(gocv.VideoCaptureFrameWidth))
	height := int(capture.Get(gocv.VideoCaptureFrameHeight))
	expected := int(capture.Get(gocv.VideoCaptureFrameCount))
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %s reports a %dx%d frame", frames.ErrDecode, path, width, height)
	}
	log.Debugf("Decoding %s: %dx%d, ~%d frames", path, width, height, expected)

	v := &frames.Video{Width: width, Height: height}
	if expected > 0 {
		v.Frames = make([][]byte, 0, expected)
	}

	frame := gocv.NewMat()
	defer frame.Close()
	rgb := gocv.NewMat()
	defer rgb.Close()

	for d.MaxFrames == 0 || len(v.Frames) < d.MaxFrames {
		if ok := capture.Read(&frame); !ok || frame.Empty() {
			break
		}
		if frame.Cols() != width || frame.Rows() != height {
			return nil, fmt.Errorf("%w: frame %d of %s is %dx%d, want %dx%d",
				frames.ErrDecode, len(v.Frames), path, frame.Cols(), frame.Rows(), width, height)
		}

		gocv.CvtColor(frame, &rgb, gocv.ColorBGRToRGB)
		v.Frames = append(v.Frames, rgb.ToBytes())
	}

	if len(v.Frames) == 0 {
		return nil, fmt.Errorf("%w: no frames decoded from %s", frames.ErrDecode, path)
	}
	return v, nil
}
