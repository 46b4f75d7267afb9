package visualization

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sort"

	"climbrate/internal/models"
	"climbrate/pkg/spots"
	"climbrate/pkg/vials"
)

var (
	falseSpotColor = color.RGBA{160, 160, 160, 255}
	fitColor       = color.RGBA{0, 0, 0, 255}
)

// Diagnostic gathers what the diagnostic figure shows for one video
type Diagnostic struct {
	Title string

	// First and Last are the frames bounding the global winning window
	First *image.Gray
	Last  *image.Gray

	Background *image.Gray

	// Spots are all detections in image coordinates, with vials assigned
	Spots spots.Table
	Edges []float64

	// Traces are the filtered spots with y measured upwards
	Traces  spots.Table
	Winners map[int]models.WindowResult
	Global  *models.WindowResult

	Vials int
}

// Render draws a 2x2 figure: the first and last frame of the global
// window with their spots, the per-vial traces, and the background with
// every true spot.
func (d *Diagnostic) Render() (*image.RGBA, error) {
	palette := vials.Palette(d.Vials)

	first, last := 0, 0
	if d.Global != nil {
		first, last = d.Global.FirstFrame, d.Global.LastFrame
	}

	p1, err := d.framePanel(d.First, palette, func(s models.Spot) bool { return s.Frame == first })
	if err != nil {
		return nil, err
	}
	drawLabel(p1, 4, 14, fmt.Sprintf("frame %d", first), labelColor)

	p2, err := d.framePanel(d.Last, palette, func(s models.Spot) bool { return s.Frame == last })
	if err != nil {
		return nil, err
	}
	drawLabel(p2, 4, 14, fmt.Sprintf("frame %d", last), labelColor)

	p4, err := d.framePanel(d.Background, palette, func(s models.Spot) bool { return s.TrueParticle })
	if err != nil {
		return nil, err
	}
	drawLabel(p4, 4, 14, "background, all true spots", labelColor)

	p3, err := d.tracePanel(p1.Bounds().Dx(), p1.Bounds().Dy(), palette)
	if err != nil {
		return nil, err
	}

	fig := Grid([]image.Image{p1, p2, p3, p4}, 2)
	if d.Title != "" {
		drawLabel(fig, 4, fig.Bounds().Dy()-4, d.Title, labelColor)
	}
	return fig, nil
}

// framePanel draws the selected spots and vial edges over a frame
func (d *Diagnostic) framePanel(base *image.Gray, palette []color.RGBA, keep func(models.Spot) bool) (*image.RGBA, error) {
	if base == nil {
		base = image.NewGray(image.Rect(0, 0, 64, 64))
	}
	c, err := grayCanvas(base)
	if err != nil {
		return nil, err
	}
	defer c.Close()
	h := base.Bounds().Dy()

	for _, e := range d.Edges {
		x := int(math.Round(e))
		c.line(image.Pt(x, 0), image.Pt(x, h-1), edgeColor)
	}
	for _, s := range d.Spots {
		if !keep(s) {
			continue
		}
		col := falseSpotColor
		if s.Vial > 0 && s.Vial <= len(palette) {
			col = palette[s.Vial-1]
		}
		c.ring(image.Pt(int(math.Round(s.X)), int(math.Round(s.Y))), 3, col)
	}
	return c.image()
}

// tracePanel plots the per-frame mean height of every vial and overlays
// the fitted line of each winning window.
func (d *Diagnostic) tracePanel(width, height int, palette []color.RGBA) (*image.RGBA, error) {
	c := blankCanvas(width, height, panelColor)
	defer c.Close()

	const margin = 16
	maxFrame, maxY := 1.0, 1.0
	for _, s := range d.Traces {
		maxFrame = math.Max(maxFrame, float64(s.Frame))
		maxY = math.Max(maxY, s.Y)
	}
	pt := func(frame, y float64) image.Point {
		// keep lines that leave the panel short
		y = math.Max(-maxY, math.Min(2*maxY, y))
		return image.Pt(
			margin+int(math.Round(frame/maxFrame*float64(width-2*margin))),
			height-margin-int(math.Round(y/maxY*float64(height-2*margin))),
		)
	}

	c.line(image.Pt(margin, height-margin), image.Pt(width-margin, height-margin), axisColor)
	c.line(image.Pt(margin, margin), image.Pt(margin, height-margin), axisColor)

	for v := 1; v <= d.Vials; v++ {
		means := perFrameMean(d.Traces.Vial(v))
		for i := 1; i < len(means); i++ {
			a, b := means[i-1], means[i]
			c.line(pt(a.frame, a.y), pt(b.frame, b.y), palette[v-1])
		}

		w, ok := d.Winners[v]
		if !ok {
			continue
		}
		x0, x1 := float64(w.FirstFrame), float64(w.LastFrame)
		c.line(pt(x0, w.Intercept+w.Slope*x0), pt(x1, w.Intercept+w.Slope*x1), fitColor)
	}

	img, err := c.image()
	if err != nil {
		return nil, err
	}
	drawLabel(img, margin+2, margin-3, "mean height by frame", axisColor)
	return img, nil
}

type framePoint struct {
	frame float64
	y     float64
}

func perFrameMean(table spots.Table) []framePoint {
	sums := make(map[int]float64)
	counts := make(map[int]int)
	for _, s := range table {
		sums[s.Frame] += s.Y
		counts[s.Frame]++
	}

	out := make([]framePoint, 0, len(sums))
	for f, sum := range sums {
		out = append(out, framePoint{frame: float64(f), y: sum / float64(counts[f])})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].frame < out[j].frame })
	return out
}

// Processed shows a cropped frame, the background and the subtracted frame
// side by side.
func Processed(cropped, background, subtracted *image.Gray) *image.RGBA {
	panels := []*image.RGBA{toRGBA(cropped), toRGBA(background), toRGBA(subtracted)}
	labels := []string{"cropped", "background", "subtracted"}

	imgs := make([]image.Image, len(panels))
	for i, p := range panels {
		drawLabel(p, 4, 14, labels[i], labelColor)
		imgs[i] = p
	}
	return Grid(imgs, len(imgs))
}
