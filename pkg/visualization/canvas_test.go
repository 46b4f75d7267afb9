package visualization

import (
	"image"
	"image/color"
	"testing"
)

// TestCanvasColours checks that colours survive the BGR round trip
func TestCanvasColours(t *testing.T) {
	c := blankCanvas(20, 10, panelColor)
	defer c.Close()

	c.line(image.Pt(0, 9), image.Pt(19, 9), edgeColor)
	c.ring(image.Pt(10, 4), 3, axisColor)

	img, err := c.image()
	if err != nil {
		t.Fatalf("image failed: %v", err)
	}
	if img.Bounds().Dx() != 20 || img.Bounds().Dy() != 10 {
		t.Fatalf("Unexpected size %v", img.Bounds())
	}
	if got := img.RGBAAt(0, 0); got != panelColor {
		t.Errorf("Expected fill %v, got %v", panelColor, got)
	}
	if got := img.RGBAAt(7, 9); got != edgeColor {
		t.Errorf("Expected line %v, got %v", edgeColor, got)
	}
	if got := img.RGBAAt(13, 4); got != axisColor {
		t.Errorf("Expected ring %v, got %v", axisColor, got)
	}
}

// TestGrayCanvas keeps gray levels when converting to colour
func TestGrayCanvas(t *testing.T) {
	base := image.NewGray(image.Rect(0, 0, 8, 6))
	base.SetGray(3, 2, color.Gray{Y: 200})

	c, err := grayCanvas(base)
	if err != nil {
		t.Fatalf("grayCanvas failed: %v", err)
	}
	defer c.Close()

	img, err := c.image()
	if err != nil {
		t.Fatalf("image failed: %v", err)
	}
	if got := img.RGBAAt(3, 2); got != (color.RGBA{200, 200, 200, 255}) {
		t.Errorf("Expected gray 200, got %v", got)
	}
	if got := img.RGBAAt(0, 0); got != (color.RGBA{0, 0, 0, 255}) {
		t.Errorf("Expected black, got %v", got)
	}
}
