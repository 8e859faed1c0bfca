// Package recording holds the fluorescence video as a frame-major block of
// float64 intensities and loads it from TIFF frame directories or FITS cubes.
package recording

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"widefield-mapper/internal/stage"
)

// Recording is an ordered sequence of Height×Width frames. Data is frame-major:
// sample (t, y, x) is Data[t*Height*Width + y*Width + x]. A Recording is not
// modified after it is loaded.
type Recording struct {
	Frames int
	Height int
	Width  int
	Data   []float64
}

// New allocates a zeroed recording.
func New(frames, height, width int) *Recording {
	return &Recording{
		Frames: frames,
		Height: height,
		Width:  width,
		Data:   make([]float64, frames*height*width),
	}
}

// Pixels is the number of samples per frame.
func (r *Recording) Pixels() int { return r.Height * r.Width }

// Frame returns frame t as a view into Data. Callers must not modify it.
func (r *Recording) Frame(t int) []float64 {
	size := r.Pixels()
	return r.Data[t*size : (t+1)*size]
}

// Span returns frames [start, end) as a view into Data.
func (r *Recording) Span(start, end int) []float64 {
	size := r.Pixels()
	return r.Data[start*size : end*size]
}

// Load reads a recording from a FITS cube (.fits/.fit/.fts) or a directory of
// TIFF frames, downsampling each frame by factor.
func Load(path string, factor int) (*Recording, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat recording: %w", err)
	}
	if info.IsDir() {
		return LoadTIFFDir(path, factor)
	}
	if IsFITS(path) {
		return LoadFITS(path, factor)
	}
	return nil, stage.Errorf(stage.Load, stage.ErrMalformedInput,
		"unsupported recording %s: expected a TIFF directory or FITS cube", path)
}

// IsFITS reports whether the path has a FITS extension.
func IsFITS(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".fits", ".fit", ".fts":
		return true
	}
	return false
}

// Downsample reduces a height×width frame by block-mean over factor×factor
// blocks. Trailing partial blocks average the samples they contain.
func Downsample(frame []float64, height, width, factor int) (out []float64, outH, outW int) {
	if factor <= 1 {
		out = make([]float64, len(frame))
		copy(out, frame)
		return out, height, width
	}

	outH = (height + factor - 1) / factor
	outW = (width + factor - 1) / factor
	out = make([]float64, outH*outW)
	counts := make([]float64, outH*outW)

	for y := 0; y < height; y++ {
		row := frame[y*width : (y+1)*width]
		dst := (y / factor) * outW
		for x, v := range row {
			out[dst+x/factor] += v
			counts[dst+x/factor]++
		}
	}
	for i := range out {
		out[i] /= counts[i]
	}
	return out, outH, outW
}
