package render

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// colormapViridis is OpenCV's COLORMAP_VIRIDIS, which gocv does not name.
const colormapViridis = gocv.ColormapTypes(16)

// Colorize maps 8-bit levels (row-major, w×h) through viridis. The result is
// opaque.
func Colorize(levels []uint8, w, h int) (*image.NRGBA, error) {
	if len(levels) != w*h {
		return nil, fmt.Errorf("colorize: %d levels for %dx%d", len(levels), w, h)
	}

	src, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8UC1, levels)
	if err != nil {
		return nil, fmt.Errorf("colorize: %w", err)
	}
	defer src.Close()

	dst := gocv.NewMat()
	defer dst.Close()
	gocv.ApplyColorMap(src, &dst, colormapViridis)

	bgr := dst.ToBytes()
	if len(bgr) != 3*w*h {
		return nil, fmt.Errorf("colorize: colormap returned %d bytes for %dx%d", len(bgr), w, h)
	}

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < w*h; i++ {
		img.Pix[4*i+0] = bgr[3*i+2]
		img.Pix[4*i+1] = bgr[3*i+1]
		img.Pix[4*i+2] = bgr[3*i+0]
		img.Pix[4*i+3] = 255
	}
	return img, nil
}

// ramp returns the viridis colors for levels 0..255, low to high.
func ramp() ([]color.NRGBA, error) {
	levels := make([]uint8, 256)
	for i := range levels {
		levels[i] = uint8(i)
	}
	img, err := Colorize(levels, 256, 1)
	if err != nil {
		return nil, err
	}
	out := make([]color.NRGBA, 256)
	for i := range out {
		out[i] = img.NRGBAAt(i, 0)
	}
	return out, nil
}
