package recording

import (
	"fmt"
	"image"
	"image/color"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"widefield-mapper/internal/stage"

	_ "golang.org/x/image/tiff"
)

// SupportedFrameFormats returns the file extensions accepted as single frames.
func SupportedFrameFormats() []string {
	return []string{".tiff", ".tif", ".png"}
}

// IsSupportedFrame checks if the given path has a supported frame format.
func IsSupportedFrame(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, format := range SupportedFrameFormats() {
		if ext == format {
			return true
		}
	}
	return false
}

// LoadTIFFDir loads every frame file in dir, in lexical filename order, as one
// recording. Acquisition software numbers frames with zero padding, so lexical
// order is acquisition order.
func LoadTIFFDir(dir string, factor int) (*Recording, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read recording directory: %w", err)
	}

	var paths []string
	skipped := 0
	for _, e := range entries {
		if e.IsDir() || !IsSupportedFrame(e.Name()) {
			skipped++
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)

	if len(paths) == 0 {
		return nil, stage.Errorf(stage.Load, stage.ErrMalformedInput, "no frames found in %s", dir)
	}
	if skipped > 0 {
		fmt.Printf("[Recording] Skipped %d non-frame entries in %s\n", skipped, dir)
	}

	var rec *Recording
	var srcH, srcW int
	for i, path := range paths {
		frame, h, w, err := decodeFrame(path)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			srcH, srcW = h, w
		} else if h != srcH || w != srcW {
			return nil, stage.Errorf(stage.Load, stage.ErrMalformedInput,
				"frame %s is %dx%d, expected %dx%d", filepath.Base(path), w, h, srcW, srcH)
		}

		small, outH, outW := Downsample(frame, h, w, factor)
		if rec == nil {
			rec = New(len(paths), outH, outW)
		}
		copy(rec.Frame(i), small)
	}

	fmt.Printf("[Recording] Loaded %d frames from %s: %dx%d downsampled x%d to %dx%d\n",
		rec.Frames, dir, srcW, srcH, factor, rec.Width, rec.Height)
	return rec, nil
}

// decodeFrame reads one image file as gray intensities, keeping 16-bit depth.
func decodeFrame(path string) ([]float64, int, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to open frame: %w", err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to decode frame %s: %w", filepath.Base(path), err)
	}

	out, h, w := Intensities(img)
	return out, h, w, nil
}

// Intensities converts an image to row-major float64 gray values. 8-bit
// images keep their 0-255 range and 16-bit images their 0-65535 range.
func Intensities(img image.Image) ([]float64, int, int) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]float64, w*h)

	switch src := img.(type) {
	case *image.Gray16:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				out[y*w+x] = float64(src.Gray16At(b.Min.X+x, b.Min.Y+y).Y)
			}
		}
	case *image.Gray:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				out[y*w+x] = float64(src.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
			}
		}
	default:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				g := color.Gray16Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray16)
				out[y*w+x] = float64(g.Y)
			}
		}
	}
	return out, h, w
}
