package render

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"widefield-mapper/internal/stage"
)

// LoadBackground reads the anatomical image as grayscale and box-downsamples
// it by factor, matching the downsampling applied to the recording.
func LoadBackground(path string, factor int) (*image.NRGBA, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, stage.Wrap(stage.Render, fmt.Errorf("failed to open background: %w", err))
	}
	gray := imaging.Grayscale(img)

	if factor > 1 {
		b := gray.Bounds()
		w := (b.Dx() + factor - 1) / factor
		h := (b.Dy() + factor - 1) / factor
		gray = imaging.Resize(gray, w, h, imaging.Box)
	}
	fmt.Printf("[Render] Background %s: %dx%d\n", path, gray.Bounds().Dx(), gray.Bounds().Dy())
	return gray, nil
}

// FitBackground resamples bg to the map grid when their sizes differ. A nil
// bg yields a black background.
func FitBackground(bg image.Image, w, h int) *image.NRGBA {
	if bg == nil {
		return imaging.New(w, h, image.Black.C)
	}
	b := bg.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return imaging.Clone(bg)
	}
	return imaging.Resize(bg, w, h, imaging.Box)
}
