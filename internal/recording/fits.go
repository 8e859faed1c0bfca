package recording

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"widefield-mapper/internal/stage"

	"github.com/astrogo/fitsio"
)

// LoadFITS loads a 3-axis FITS cube (NAXIS1=width, NAXIS2=height,
// NAXIS3=frames) from the primary HDU, downsampling each frame by factor.
func LoadFITS(path string, factor int) (*Recording, error) {
	r, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open FITS cube: %w", err)
	}
	defer r.Close()

	f, err := fitsio.Open(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse FITS cube %s: %w", path, err)
	}
	defer f.Close()

	img, ok := f.HDU(0).(fitsio.Image)
	if !ok {
		return nil, stage.Errorf(stage.Load, stage.ErrMalformedInput, "primary HDU of %s is not an image", path)
	}

	hdr := img.Header()
	axes := hdr.Axes()
	if len(axes) != 3 {
		return nil, stage.Errorf(stage.Load, stage.ErrMalformedInput,
			"FITS cube %s has %d axes, expected 3 (width, height, frames)", path, len(axes))
	}
	w, h, frames := axes[0], axes[1], axes[2]
	if w < 1 || h < 1 || frames < 1 {
		return nil, stage.Errorf(stage.Load, stage.ErrMalformedInput,
			"FITS cube %s is %dx%dx%d, need at least one frame of one pixel", path, w, h, frames)
	}

	samples, err := decodeSamples(img.Raw(), hdr.Bitpix(), cardFloat(hdr, "BZERO", 0), cardFloat(hdr, "BSCALE", 1))
	if err != nil {
		return nil, stage.Errorf(stage.Load, stage.ErrMalformedInput, "%s: %v", path, err)
	}
	if len(samples) < w*h*frames {
		return nil, stage.Errorf(stage.Load, stage.ErrMalformedInput,
			"FITS cube %s holds %d samples, header declares %dx%dx%d", path, len(samples), w, h, frames)
	}

	size := w * h
	var rec *Recording
	for t := 0; t < frames; t++ {
		small, outH, outW := Downsample(samples[t*size:(t+1)*size], h, w, factor)
		if rec == nil {
			rec = New(frames, outH, outW)
		}
		copy(rec.Frame(t), small)
	}

	fmt.Printf("[Recording] Loaded FITS cube %s: %d frames %dx%d (BITPIX %d) downsampled x%d to %dx%d\n",
		path, frames, w, h, hdr.Bitpix(), factor, rec.Width, rec.Height)
	return rec, nil
}

// decodeSamples converts big-endian FITS pixel data to physical values
// (bzero + bscale*raw).
func decodeSamples(raw []byte, bitpix int, bzero, bscale float64) ([]float64, error) {
	be := binary.BigEndian
	width := bitpix / 8
	if width < 0 {
		width = -width
	}
	if width == 0 {
		return nil, fmt.Errorf("invalid BITPIX %d", bitpix)
	}
	n := len(raw) / width
	out := make([]float64, n)

	for i := 0; i < n; i++ {
		b := raw[i*width : (i+1)*width]
		var v float64
		switch bitpix {
		case 8:
			v = float64(b[0])
		case 16:
			v = float64(int16(be.Uint16(b)))
		case 32:
			v = float64(int32(be.Uint32(b)))
		case 64:
			v = float64(int64(be.Uint64(b)))
		case -32:
			v = float64(math.Float32frombits(be.Uint32(b)))
		case -64:
			v = math.Float64frombits(be.Uint64(b))
		default:
			return nil, fmt.Errorf("unsupported BITPIX %d", bitpix)
		}
		out[i] = bzero + bscale*v
	}
	return out, nil
}

func cardFloat(hdr *fitsio.Header, name string, def float64) float64 {
	card := hdr.Get(name)
	if card == nil {
		return def
	}
	switch v := card.Value.(type) {
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case float64:
		return v
	case float32:
		return float64(v)
	}
	return def
}
