package render

import (
	"image"
	"image/color"
	"image/draw"

	"widefield-mapper/pkg/colorutil"
)

// Layer is one image stacked into a Composite.
type Layer struct {
	Image   image.Image
	Opacity float64 // multiplies the image's own alpha
	OffsetX int
	OffsetY int
}

// Composite stacks layers bottom to top with source-over blending.
type Composite struct {
	Width     int
	Height    int
	Layers    []*Layer
	BackColor color.Color
}

// NewComposite creates a new Composite with the specified dimensions.
func NewComposite(width, height int) *Composite {
	return &Composite{
		Width:     width,
		Height:    height,
		BackColor: colorutil.DarkGray,
	}
}

// AddLayer adds a layer on top of the existing ones.
func (c *Composite) AddLayer(img image.Image, opacity float64, offsetX, offsetY int) {
	c.Layers = append(c.Layers, &Layer{
		Image:   img,
		Opacity: opacity,
		OffsetX: offsetX,
		OffsetY: offsetY,
	})
}

// Render produces the final composited image.
func (c *Composite) Render() *image.NRGBA {
	result := image.NewNRGBA(image.Rect(0, 0, c.Width, c.Height))
	draw.Draw(result, result.Bounds(), &image.Uniform{c.BackColor}, image.Point{}, draw.Src)

	for _, l := range c.Layers {
		if l.Image == nil || l.Opacity <= 0 {
			continue
		}
		c.compositeLayer(result, l)
	}
	return result
}

func (c *Composite) compositeLayer(dst *image.NRGBA, l *Layer) {
	src := l.Image
	b := src.Bounds()

	for y := b.Min.Y; y < b.Max.Y; y++ {
		dstY := y - b.Min.Y + l.OffsetY
		if dstY < 0 || dstY >= c.Height {
			continue
		}
		for x := b.Min.X; x < b.Max.X; x++ {
			dstX := x - b.Min.X + l.OffsetX
			if dstX < 0 || dstX >= c.Width {
				continue
			}
			dst.SetNRGBA(dstX, dstY, over(dst.NRGBAAt(dstX, dstY), src.At(x, y), l.Opacity))
		}
	}
}

// over blends src onto dst, weighting src by its alpha times opacity.
func over(dst color.NRGBA, src color.Color, opacity float64) color.NRGBA {
	s := color.NRGBAModel.Convert(src).(color.NRGBA)
	alpha := float64(s.A) / 255 * opacity
	if alpha <= 0 {
		return dst
	}

	mix := func(d, s uint8) uint8 {
		return colorutil.Level((float64(s)*alpha + float64(d)*(1-alpha)) / 255)
	}
	da := float64(dst.A) / 255
	return color.NRGBA{
		R: mix(dst.R, s.R),
		G: mix(dst.G, s.G),
		B: mix(dst.B, s.B),
		A: colorutil.Level(alpha + da*(1-alpha)),
	}
}
