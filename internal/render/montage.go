package render

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"widefield-mapper/internal/response"
	"widefield-mapper/internal/stage"
	"widefield-mapper/pkg/colorutil"
)

const (
	titleHeight   = 18
	margin        = 6
	colorbarWidth = 14
	colorbarSpace = 72 // bar, tick labels and axis label
)

// Options controls the montage layout.
type Options struct {
	Threshold float64
	Columns   int // panels per row
	Scale     int // pixels per map cell
}

// DefaultOptions lays panels out six to a row.
func DefaultOptions(threshold float64) Options {
	return Options{Threshold: threshold, Columns: 6, Scale: 2}
}

// Montage renders every map over bg, in ascending label order, as a grid of
// panels titled "<label> Hz" with one viridis colorbar. bg may be nil.
func Montage(maps response.Maps, bg image.Image, opts Options) (*image.NRGBA, error) {
	labels := maps.Labels()
	if len(labels) == 0 {
		return nil, stage.Errorf(stage.Render, stage.ErrMalformedInput, "no response maps to render")
	}
	if opts.Columns < 1 {
		opts.Columns = 1
	}
	if opts.Scale < 1 {
		opts.Scale = 1
	}

	first := maps[labels[0]]
	mw, mh := first.Width, first.Height
	fitted := FitBackground(bg, mw, mh)

	cols := opts.Columns
	if len(labels) < cols {
		cols = len(labels)
	}
	rows := (len(labels) + cols - 1) / cols
	pw, ph := mw*opts.Scale, mh*opts.Scale
	cellW, cellH := pw+margin, ph+titleHeight+margin

	width := margin + cols*cellW + colorbarSpace
	height := margin + rows*cellH
	canvas := imaging.New(width, height, colorutil.White)

	for i, l := range labels {
		m := maps[l]
		if m.Width != mw || m.Height != mh {
			return nil, stage.Errorf(stage.Render, stage.ErrMalformedInput,
				"map is %dx%d, expected %dx%d", m.Width, m.Height, mw, mh).WithCondition(l)
		}
		panel, err := Overlay(m, fitted, opts.Threshold)
		if err != nil {
			return nil, stage.Wrap(stage.Render, err)
		}
		if opts.Scale > 1 {
			panel = imaging.Resize(panel, pw, ph, imaging.NearestNeighbor)
		}

		x := margin + (i%cols)*cellW
		y := margin + (i/cols)*cellH
		drawText(canvas, fmt.Sprintf("%d Hz", int(l)), x+pw/2, y+titleHeight-5, true)
		canvas = imaging.Paste(canvas, panel, image.Pt(x, y+titleHeight))
	}

	if err := drawColorbar(canvas, margin+cols*cellW, margin+titleHeight, rows*cellH-titleHeight-margin); err != nil {
		return nil, err
	}
	return canvas, nil
}

// drawColorbar draws a vertical viridis bar with max at the top.
func drawColorbar(dst *image.NRGBA, x, y, h int) error {
	if h < 2 {
		h = 2
	}
	colors, err := ramp()
	if err != nil {
		return stage.Wrap(stage.Render, err)
	}
	for row := 0; row < h; row++ {
		c := colors[(h-1-row)*255/(h-1)]
		for col := 0; col < colorbarWidth; col++ {
			dst.SetNRGBA(x+col, y+row, c)
		}
	}
	labelX := x + colorbarWidth + 3
	drawText(dst, "max", labelX, y+10, false)
	drawText(dst, "min", labelX, y+h, false)
	drawText(dst, "Z-score", labelX, y+h/2+4, false)
	return nil
}

// drawText writes s with its baseline at y, starting at x or centered on it.
func drawText(dst *image.NRGBA, s string, x, y int, centered bool) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.Color(colorutil.Black)),
		Face: basicfont.Face7x13,
	}
	if centered {
		x -= d.MeasureString(s).Ceil() / 2
	}
	d.Dot = fixed.P(x, y)
	d.DrawString(s)
}

// WriteOverlay renders maps over the background at backgroundPath (none when
// empty) and saves the montage to path.
func WriteOverlay(path string, maps response.Maps, backgroundPath string, factor int, threshold float64) error {
	var bg image.Image
	if backgroundPath != "" {
		img, err := LoadBackground(backgroundPath, factor)
		if err != nil {
			return err
		}
		bg = img
	}
	img, err := Montage(maps, bg, DefaultOptions(threshold))
	if err != nil {
		return err
	}
	return Save(path, img)
}

// Save writes img as a PNG (or any format imaging infers from the extension).
func Save(path string, img image.Image) error {
	if err := imaging.Save(img, path); err != nil {
		return stage.Wrap(stage.Render, fmt.Errorf("failed to save overlay: %w", err))
	}
	fmt.Printf("[Render] Saved %s\n", path)
	return nil
}
