package visualization

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// canvas is a BGR gocv.Mat that overlays are drawn on. Close releases it.
type canvas struct {
	mat gocv.Mat
}

// grayCanvas converts a grayscale image into a colour canvas
func grayCanvas(base *image.Gray) (*canvas, error) {
	gray, err := gocv.ImageGrayToMatGray(base)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image: %w", err)
	}
	defer gray.Close()

	c := &canvas{mat: gocv.NewMat()}
	gocv.CvtColor(gray, &c.mat, gocv.ColorGrayToBGR)
	return c, nil
}

// rgbCanvas wraps interleaved RGB bytes of a decoded frame
func rgbCanvas(pix []byte, width, height int) (*canvas, error) {
	rgb, err := gocv.NewMatFromBytes(height, width, gocv.MatTypeCV8UC3, pix[:width*height*3])
	if err != nil {
		return nil, fmt.Errorf("failed to convert frame: %w", err)
	}
	defer rgb.Close()

	// swapping R and B is its own inverse
	c := &canvas{mat: gocv.NewMat()}
	gocv.CvtColor(rgb, &c.mat, gocv.ColorBGRToRGB)
	return c, nil
}

// blankCanvas returns a canvas filled with one colour
func blankCanvas(width, height int, fill color.RGBA) *canvas {
	s := gocv.NewScalar(float64(fill.B), float64(fill.G), float64(fill.R), 0)
	return &canvas{mat: gocv.NewMatWithSizeFromScalar(s, height, width, gocv.MatTypeCV8UC3)}
}

func (c *canvas) line(from, to image.Point, col color.RGBA) {
	gocv.Line(&c.mat, from, to, col, 1)
}

func (c *canvas) ring(center image.Point, radius int, col color.RGBA) {
	gocv.Circle(&c.mat, center, radius, col, 1)
}

// rect outlines r, with r.Max as the last pixel drawn
func (c *canvas) rect(r image.Rectangle, col color.RGBA) {
	gocv.RectangleWithParams(&c.mat, r, col, 1, gocv.Line8, 0)
}

// image returns the canvas as RGBA so labels can be drawn on it
func (c *canvas) image() (*image.RGBA, error) {
	img, err := c.mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("failed to convert canvas: %w", err)
	}
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba, nil
	}
	return toRGBA(img), nil
}

func (c *canvas) Close() error {
	return c.mat.Close()
}
