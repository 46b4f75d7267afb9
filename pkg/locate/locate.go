// Package locate finds roughly circular spots of a known diameter in frame
// stacks and measures their centroid, mass, size, eccentricity and signal.
//
// The steps follow the usual feature-finding recipe:
//  1. optionally invert the frame so organisms are bright
//  2. band-pass: Gaussian blur (sigma = NoiseSize) minus a box blur of Diameter
//  3. local maxima where the frame equals its grey dilation
//  4. suppress maxima closer than Separation, keeping the brighter one
//  5. refine each centroid by iterated centre of mass inside a circular mask
package locate

import (
	"fmt"
	"image"
	"math"
	"sort"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/kdtree"

	"climbrate/internal/models"
	"climbrate/pkg/frames"
)

const maxRefineIterations = 10

// Params controls spot detection
type Params struct {
	// Diameter is the expected feature size in pixels; must be odd
	Diameter int

	// MinMass is the minimum integrated brightness after band-pass
	MinMass float64

	// MaxSize is the maximum radius of gyration; 0 disables the filter
	MaxSize float64

	// Separation is the minimum distance between features; 0 means Diameter+1
	Separation float64

	// NoiseSize is the Gaussian sigma of the band-pass; 0 means 1
	NoiseSize float64

	// Threshold zeroes band-passed values not above it; 0 means 1
	Threshold float64

	// Invert treats dark spots on a light background as features
	Invert bool
}

// Locator finds features frame by frame. It holds no state between calls.
type Locator struct{}

// New returns a Locator
func New() *Locator {
	return &Locator{}
}

// Find locates features in every frame of a grayscale stack. Results are
// sorted by frame, then row, then column.
func (l *Locator) Find(stack *frames.Stack, p Params) ([]models.Feature, error) {
	if stack.Channels != 1 {
		return nil, fmt.Errorf("locate needs a grayscale stack, got %d channels", stack.Channels)
	}
	if p.Diameter < 3 || p.Diameter%2 == 0 {
		return nil, fmt.Errorf("diameter must be an odd integer >= 3, got %d", p.Diameter)
	}
	if p.Separation <= 0 {
		p.Separation = float64(p.Diameter + 1)
	}
	if p.NoiseSize <= 0 {
		p.NoiseSize = 1
	}
	if p.Threshold <= 0 {
		p.Threshold = 1
	}

	mask := newCircularMask(p.Diameter / 2)
	var out []models.Feature

	for f := 0; f < stack.Frames; f++ {
		raw := append([]float64(nil), stack.Frame(f)...)
		if p.Invert {
			floats.Scale(-1, raw)
		}

		img, err := bandpass(raw, stack.Width, stack.Height, p)
		if err != nil {
			return nil, fmt.Errorf("band-pass of frame %d failed: %w", f, err)
		}
		peaks, err := localMaxima(img, stack.Width, stack.Height, mask.radius)
		if err != nil {
			return nil, fmt.Errorf("local maxima of frame %d failed: %w", f, err)
		}
		peaks = suppress(peaks, img, stack.Width, p.Separation)

		for _, pk := range peaks {
			feat, ok := refine(img, raw, stack.Width, stack.Height, pk, mask)
			if !ok {
				continue
			}
			if feat.Mass <= p.MinMass {
				continue
			}
			if p.MaxSize > 0 && feat.Size > p.MaxSize {
				continue
			}
			feat.Frame = f
			out = append(out, feat)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Frame != out[j].Frame {
			return out[i].Frame < out[j].Frame
		}
		if out[i].Y != out[j].Y {
			return out[i].Y < out[j].Y
		}
		return out[i].X < out[j].X
	})
	return out, nil
}

// bandpass removes pixel noise and the slowly varying background. Values not
// above the threshold are zeroed.
func bandpass(img []float64, width, height int, p Params) ([]float64, error) {
	src, err := planeToMat(img, width, height)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	half := int(math.Ceil(4 * p.NoiseSize))
	gauss := gocv.NewMat()
	defer gauss.Close()
	gocv.GaussianBlur(src, &gauss, image.Pt(2*half+1, 2*half+1), p.NoiseSize, p.NoiseSize, gocv.BorderReplicate)

	box := gocv.NewMat()
	defer box.Close()
	gocv.Blur(src, &box, image.Pt(p.Diameter, p.Diameter))

	filtered := gocv.NewMat()
	defer filtered.Close()
	gocv.Subtract(gauss, box, &filtered)
	gocv.Threshold(filtered, &filtered, float32(p.Threshold), 0, gocv.ThresholdToZero)

	return matToPlane(filtered)
}

// planeToMat copies a row-major plane into a single-channel float Mat.
// The caller closes the Mat.
func planeToMat(plane []float64, width, height int) (gocv.Mat, error) {
	m := gocv.NewMatWithSize(height, width, gocv.MatTypeCV64F)
	data, err := m.DataPtrFloat64()
	if err != nil {
		m.Close()
		return gocv.NewMat(), err
	}
	copy(data, plane)
	return m, nil
}

func matToPlane(m gocv.Mat) ([]float64, error) {
	data, err := m.DataPtrFloat64()
	if err != nil {
		return nil, err
	}
	return append([]float64(nil), data...), nil
}

// peak is an integer local maximum
type peak struct {
	x, y int
}

// localMaxima returns positive pixels equal to the maximum of their
// (2*radius+1) square neighbourhood, skipping a margin of radius pixels
// along the border. Results are in raster order.
func localMaxima(img []float64, width, height, radius int) ([]peak, error) {
	src, err := planeToMat(img, width, height)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(2*radius+1, 2*radius+1))
	defer kernel.Close()

	dilated := gocv.NewMat()
	defer dilated.Close()
	gocv.Dilate(src, &dilated, kernel)

	neighbourhood, err := dilated.DataPtrFloat64()
	if err != nil {
		return nil, err
	}

	var peaks []peak
	for y := radius; y < height-radius; y++ {
		for x := radius; x < width-radius; x++ {
			i := y*width + x
			if img[i] <= 0 || img[i] < neighbourhood[i] {
				continue
			}
			peaks = append(peaks, peak{x: x, y: y})
		}
	}
	return peaks, nil
}

// point2 is a kd-tree point
type point2 [2]float64

func (p point2) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(point2)
	return p[d] - q[d]
}

func (p point2) Dims() int { return 2 }

// Distance returns the squared Euclidean distance
func (p point2) Distance(c kdtree.Comparable) float64 {
	q := c.(point2)
	dx := p[0] - q[0]
	dy := p[1] - q[1]
	return dx*dx + dy*dy
}

// suppress keeps the brightest peak among any group closer than separation.
// Equal brightness keeps the first peak in raster order.
func suppress(peaks []peak, img []float64, width int, separation float64) []peak {
	order := make([]int, len(peaks))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		pa, pb := peaks[order[a]], peaks[order[b]]
		return img[pa.y*width+pa.x] > img[pb.y*width+pb.x]
	})

	tree := &kdtree.Tree{}
	limit := separation * separation
	kept := make([]bool, len(peaks))
	for _, i := range order {
		pt := point2{float64(peaks[i].x), float64(peaks[i].y)}
		if nearest, dist := tree.Nearest(pt); nearest != nil && dist < limit {
			continue
		}
		tree.Insert(pt, false)
		kept[i] = true
	}

	out := make([]peak, 0, len(peaks))
	for i, pk := range peaks {
		if kept[i] {
			out = append(out, pk)
		}
	}
	return out
}

// circularMask lists the offsets inside a disc of the given radius
type circularMask struct {
	radius int
	dx, dy []int
}

func newCircularMask(radius int) circularMask {
	m := circularMask{radius: radius}
	r2 := radius * radius
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy <= r2 {
				m.dx = append(m.dx, dx)
				m.dy = append(m.dy, dy)
			}
		}
	}
	return m
}

// refine moves the mask to the centre of mass until it settles, then measures
// the feature at the final mask position. It reports false when the mask is
// empty.
func refine(img, raw []float64, width, height int, pk peak, m circularMask) (models.Feature, bool) {
	cx, cy := pk.x, pk.y
	comX, comY, mass := centreOfMass(img, width, cx, cy, m)

	for iter := 0; iter < maxRefineIterations && mass > 0; iter++ {
		if math.Abs(comX) <= 0.6 && math.Abs(comY) <= 0.6 {
			break
		}
		nx := cx + int(math.Round(comX))
		ny := cy + int(math.Round(comY))
		if nx < m.radius || ny < m.radius || nx >= width-m.radius || ny >= height-m.radius {
			break
		}
		cx, cy = nx, ny
		comX, comY, mass = centreOfMass(img, width, cx, cy, m)
	}
	if mass <= 0 {
		return models.Feature{}, false
	}

	var rg, cos2, sin2, signal, rawMass float64
	for i := range m.dx {
		idx := (cy+m.dy[i])*width + cx + m.dx[i]
		v := img[idx]
		rx := float64(m.dx[i]) - comX
		ry := float64(m.dy[i]) - comY
		r2 := rx*rx + ry*ry
		rg += v * r2
		if r2 > 0 {
			theta := math.Atan2(ry, rx)
			cos2 += v * math.Cos(2*theta)
			sin2 += v * math.Sin(2*theta)
		}
		if v > signal {
			signal = v
		}
		rawMass += raw[idx]
	}

	center := img[cy*width+cx]
	ecc := math.Sqrt(cos2*cos2+sin2*sin2) / (mass - center + 1e-6)
	if ecc > 1 {
		ecc = 1
	}

	return models.Feature{
		X:            float64(cx) + comX,
		Y:            float64(cy) + comY,
		Mass:         mass,
		Size:         math.Sqrt(rg / mass),
		Eccentricity: ecc,
		Signal:       signal,
		RawMass:      rawMass,
	}, true
}

// centreOfMass returns the offset of the centre of mass from (cx, cy) and
// the total mass under the mask.
func centreOfMass(img []float64, width, cx, cy int, m circularMask) (comX, comY, mass float64) {
	for i := range m.dx {
		v := img[(cy+m.dy[i])*width+cx+m.dx[i]]
		mass += v
		comX += v * float64(m.dx[i])
		comY += v * float64(m.dy[i])
	}
	if mass <= 0 {
		return 0, 0, mass
	}
	return comX / mass, comY / mass, mass
}
