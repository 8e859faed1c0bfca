// Package render draws response maps as viridis overlays on the anatomical
// background and lays them out as a titled montage with a colorbar. The
// display threshold applied here is cosmetic and never feeds back into the
// maps.
package render

import (
	"fmt"
	"image"
	"math"

	"widefield-mapper/internal/response"
	"widefield-mapper/pkg/colorutil"
)

// Display holds a map prepared for drawing.
type Display struct {
	Values []float64 // thresholded and rounded z-scores
	Norm   []float64 // Values rescaled onto [0, 1]
	Shown  []bool    // cells drawn opaque
}

// Prepare thresholds m for display: NaN and values below threshold become 0,
// the rest are rounded to one decimal, then rescaled to [0, 1]. A cell is
// shown when its rounded value reaches the threshold.
func Prepare(m *response.Map, threshold float64) Display {
	d := Display{
		Values: make([]float64, len(m.Data)),
		Shown:  make([]bool, len(m.Data)),
	}
	for i, v := range m.Data {
		if math.IsNaN(v) || v < threshold {
			v = 0
		}
		v = math.RoundToEven(v*10) / 10
		d.Values[i] = v
		d.Shown[i] = v >= threshold
	}
	d.Norm = colorutil.MinMax(d.Values)
	return d
}

// Overlay renders m over bg at map resolution. bg must already match the map
// grid.
func Overlay(m *response.Map, bg image.Image, threshold float64) (*image.NRGBA, error) {
	if b := bg.Bounds(); b.Dx() != m.Width || b.Dy() != m.Height {
		return nil, fmt.Errorf("background is %dx%d, map %d is %dx%d", b.Dx(), b.Dy(), m.Label, m.Width, m.Height)
	}

	d := Prepare(m, threshold)
	levels := make([]uint8, len(d.Norm))
	for i, v := range d.Norm {
		levels[i] = colorutil.Level(v)
	}
	colored, err := Colorize(levels, m.Width, m.Height)
	if err != nil {
		return nil, err
	}
	for i, shown := range d.Shown {
		if !shown {
			colored.Pix[4*i+3] = colorutil.Clear.A
		}
	}

	c := NewComposite(m.Width, m.Height)
	c.AddLayer(bg, 1, 0, 0)
	c.AddLayer(colored, 1, 0, 0)
	return c.Render(), nil
}
