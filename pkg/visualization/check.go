package visualization

import (
	"fmt"
	"image"

	"climbrate/internal/models"
	"climbrate/pkg/frames"
	"climbrate/pkg/spots"
	"climbrate/pkg/vials"
)

// ROIFrame draws the region of interest over one full decoded frame
func ROIFrame(v *frames.Video, index int, roi models.ROI) (*image.RGBA, error) {
	if index < 0 || index >= v.FrameCount() {
		return nil, fmt.Errorf("frame %d outside video of %d frames", index, v.FrameCount())
	}
	src := v.Frames[index]
	if len(src) < v.Width*v.Height*3 {
		return nil, fmt.Errorf("%w: frame %d is short", frames.ErrDecode, index)
	}

	c, err := rgbCanvas(src, v.Width, v.Height)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	x0, y0 := roi.X, roi.Y
	c.rect(image.Rect(x0, y0, x0+roi.W-1, y0+roi.H-1), edgeColor)

	img, err := c.image()
	if err != nil {
		return nil, err
	}
	drawLabel(img, x0+4, y0+14, fmt.Sprintf("ROI %dx%d, frame %d", roi.W, roi.H, index), labelColor)
	return img, nil
}

// SpotCheck circles every spot of one frame, coloured by vial, with the
// bin edges drawn on top.
func SpotCheck(base *image.Gray, table spots.Table, frame int, edges []float64, vialCount int) (*image.RGBA, error) {
	d := &Diagnostic{Spots: table, Edges: edges, Vials: vialCount}
	img, err := d.framePanel(base, vials.Palette(vialCount), func(s models.Spot) bool { return s.Frame == frame })
	if err != nil {
		return nil, err
	}
	drawLabel(img, 4, 14, fmt.Sprintf("frame %d", frame), labelColor)
	return img, nil
}
