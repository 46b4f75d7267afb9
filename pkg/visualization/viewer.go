// Package visualization renders the diagnostic images of a run: frames
// with detected spots and vial edges, the background, and per-vial
// position traces with the winning regression window.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"climbrate/pkg/frames"
)

var (
	labelColor = color.RGBA{255, 255, 0, 255}
	edgeColor  = color.RGBA{255, 64, 64, 255}
	panelColor = color.RGBA{255, 255, 255, 255}
	axisColor  = color.RGBA{80, 80, 80, 255}
)

// Viewer extracts displayable frames from a single-channel stack
type Viewer struct {
	stack *frames.Stack
}

// NewViewer creates a viewer over a grayscale stack
func NewViewer(stack *frames.Stack) *Viewer {
	return &Viewer{stack: stack}
}

// ExtractFrame returns frame i scaled to the full 8-bit range
func (v *Viewer) ExtractFrame(i int) (*image.Gray, error) {
	if v.stack.Channels != 1 {
		return nil, fmt.Errorf("viewer needs a grayscale stack, got %d channels", v.stack.Channels)
	}
	if i < 0 || i >= v.stack.Frames {
		return nil, fmt.Errorf("frame %d outside stack of %d frames", i, v.stack.Frames)
	}
	return GrayImage(v.stack.Frame(i), v.stack.Width, v.stack.Height), nil
}

// GrayImage maps values linearly from [min, max] to [0, 255]. A constant
// plane becomes mid-gray.
func GrayImage(data []float64, width, height int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range data {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			val := uint8(128)
			if hi > lo {
				val = uint8(math.Round((data[y*width+x] - lo) / (hi - lo) * 255))
			}
			img.SetGray(x, y, color.Gray{Y: val})
		}
	}
	return img
}

// SaveImage writes img as PNG
func SaveImage(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := png.Encode(file, img); err != nil {
		return fmt.Errorf("failed to encode %s: %w", filename, err)
	}
	return file.Close()
}

// Grid lays out equally sized panels in rows of cols
func Grid(panels []image.Image, cols int) *image.RGBA {
	if len(panels) == 0 || cols < 1 {
		return image.NewRGBA(image.Rect(0, 0, 1, 1))
	}

	cw, ch := 0, 0
	for _, p := range panels {
		cw = max(cw, p.Bounds().Dx())
		ch = max(ch, p.Bounds().Dy())
	}
	rows := (len(panels) + cols - 1) / cols

	out := image.NewRGBA(image.Rect(0, 0, cw*cols, ch*rows))
	draw.Draw(out, out.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
	for i, p := range panels {
		origin := image.Pt((i%cols)*cw, (i/cols)*ch)
		r := image.Rectangle{Min: origin, Max: origin.Add(p.Bounds().Size())}
		draw.Draw(out, r, p, p.Bounds().Min, draw.Src)
	}
	return out
}

// toRGBA copies any image into a drawable RGBA
func toRGBA(src image.Image) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, src.Bounds().Dx(), src.Bounds().Dy()))
	draw.Draw(out, out.Bounds(), src, src.Bounds().Min, draw.Src)
	return out
}

// drawLabel writes text with its baseline at (x, y)
func drawLabel(img *image.RGBA, x, y int, text string, c color.Color) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}
