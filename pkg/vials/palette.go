package vials

import (
	"image/color"
	"math"
)

// tab20 is the 20-colour qualitative map used for 11 to 20 vials
var tab20 = []color.RGBA{
	{31, 119, 180, 255}, {174, 199, 232, 255}, {255, 127, 14, 255}, {255, 187, 120, 255},
	{44, 160, 44, 255}, {152, 223, 138, 255}, {214, 39, 40, 255}, {255, 152, 150, 255},
	{148, 103, 189, 255}, {197, 176, 213, 255}, {140, 86, 75, 255}, {196, 156, 148, 255},
	{227, 119, 194, 255}, {247, 182, 210, 255}, {127, 127, 127, 255}, {199, 199, 199, 255},
	{188, 189, 34, 255}, {219, 219, 141, 255}, {23, 190, 207, 255}, {158, 218, 229, 255},
}

// jet segments as (position, value) anchors per channel
var (
	jetRed   = [][2]float64{{0, 0}, {0.35, 0}, {0.66, 1}, {0.89, 1}, {1, 0.5}}
	jetGreen = [][2]float64{{0, 0}, {0.125, 0}, {0.375, 1}, {0.64, 1}, {0.91, 0}, {1, 0}}
	jetBlue  = [][2]float64{{0, 0.5}, {0.11, 1}, {0.34, 1}, {0.65, 0}, {1, 0}}
)

// Palette returns one colour per vial, index 0 being vial 1. Up to 10 and
// above 20 vials sample the jet map; 11 to 20 use tab20. With an odd count
// above one, count+1 colours are sampled and the pale middle one dropped.
func Palette(count int) []color.RGBA {
	if count < 1 {
		count = 1
	}

	sample := count
	if count%2 == 1 && count > 1 {
		sample = count + 1
	}

	colors := make([]color.RGBA, sample)
	for i := range colors {
		pos := 0.0
		if sample > 1 {
			pos = float64(i) / float64(sample-1)
		}
		if count > 10 && count <= 20 {
			idx := int(pos * float64(len(tab20)))
			if idx >= len(tab20) {
				idx = len(tab20) - 1
			}
			colors[i] = tab20[idx]
		} else {
			colors[i] = jet(pos)
		}
	}

	if sample != count {
		mid := len(colors) / 2
		colors = append(colors[:mid], colors[mid+1:]...)
	}
	return colors
}

func jet(pos float64) color.RGBA {
	return color.RGBA{
		R: channel(jetRed, pos),
		G: channel(jetGreen, pos),
		B: channel(jetBlue, pos),
		A: 255,
	}
}

func channel(anchors [][2]float64, pos float64) uint8 {
	v := anchors[len(anchors)-1][1]
	for i := 1; i < len(anchors); i++ {
		if pos <= anchors[i][0] {
			a, b := anchors[i-1], anchors[i]
			t := (pos - a[0]) / (b[0] - a[0])
			v = a[1] + t*(b[1]-a[1])
			break
		}
	}
	return uint8(math.Round(v * 255))
}
