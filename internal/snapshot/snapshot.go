// Package snapshot checkpoints response maps to a FITS file so overlays can
// be re-rendered without recomputing. Each condition is one float64 image
// extension; NaN cells survive the round trip.
package snapshot

import (
	"fmt"
	"os"
	"strings"

	"github.com/astrogo/fitsio"

	"widefield-mapper/internal/conditions"
	"widefield-mapper/internal/response"
	"widefield-mapper/internal/stage"
)

// extPrefix starts the EXTNAME of every condition extension.
const extPrefix = "COND_"

// Meta describes the run a snapshot came from. It is stored in the primary
// header.
type Meta struct {
	RunID    string
	Window   response.Window
	Baseline int
}

// Save writes maps to path, one image extension per condition in ascending
// label order. A failure to flush or close the file is reported.
func Save(path string, maps response.Maps, meta Meta) error {
	w, err := os.Create(path)
	if err != nil {
		return stage.Wrap(stage.Snapshot, fmt.Errorf("failed to create snapshot: %w", err))
	}

	f, err := fitsio.Create(w)
	if err != nil {
		w.Close()
		return stage.Wrap(stage.Snapshot, fmt.Errorf("failed to start FITS stream: %w", err))
	}

	err = writeHDUs(f, maps, meta)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = stage.Wrap(stage.Snapshot, fmt.Errorf("failed to finish FITS stream: %w", cerr))
	}
	if cerr := w.Close(); err == nil && cerr != nil {
		err = stage.Wrap(stage.Snapshot, fmt.Errorf("failed to close snapshot: %w", cerr))
	}
	if err != nil {
		return err
	}

	fmt.Printf("[Snapshot] Saved %d response maps to %s\n", len(maps), path)
	return nil
}

// writeHDUs writes the primary header and one extension per condition.
func writeHDUs(f *fitsio.File, maps response.Maps, meta Meta) error {
	primary := fitsio.NewImage(8, []int{})
	err := primary.Header().Append(
		fitsio.Card{Name: "RUNID", Value: meta.RunID, Comment: "pipeline run identifier"},
		fitsio.Card{Name: "RSTART", Value: meta.Window.Start, Comment: "response window start frame"},
		fitsio.Card{Name: "RSTOP", Value: meta.Window.Stop, Comment: "response window stop frame (exclusive)"},
		fitsio.Card{Name: "NBASE", Value: meta.Baseline, Comment: "baseline frames"},
		fitsio.Card{Name: "NCOND", Value: len(maps), Comment: "condition extensions"},
	)
	if err != nil {
		return stage.Wrap(stage.Snapshot, err)
	}
	if err := f.Write(primary); err != nil {
		return stage.Wrap(stage.Snapshot, fmt.Errorf("failed to write primary HDU: %w", err))
	}

	for _, label := range maps.Labels() {
		m := maps[label]
		img := fitsio.NewImage(-64, []int{m.Width, m.Height})
		err := img.Header().Append(
			fitsio.Card{Name: "EXTNAME", Value: fmt.Sprintf("%s%d", extPrefix, int(label))},
			fitsio.Card{Name: "LABEL", Value: int(label), Comment: "stimulus condition"},
			fitsio.Card{Name: "NREPS", Value: m.Reps, Comment: "repetitions in the median"},
		)
		if err != nil {
			return stage.Wrap(stage.Snapshot, err)
		}
		if err := img.Write(m.Data); err != nil {
			return stage.Errorf(stage.Snapshot, stage.ErrMalformedInput, "failed to encode map: %v", err).WithCondition(label)
		}
		if err := f.Write(img); err != nil {
			return stage.Wrap(stage.Snapshot, fmt.Errorf("failed to write condition %d: %w", label, err))
		}
	}
	return nil
}

// Load reads a snapshot written by Save.
func Load(path string) (response.Maps, Meta, error) {
	var meta Meta
	r, err := os.Open(path)
	if err != nil {
		return nil, meta, stage.Wrap(stage.Snapshot, fmt.Errorf("failed to open snapshot: %w", err))
	}
	defer r.Close()

	f, err := fitsio.Open(r)
	if err != nil {
		return nil, meta, stage.Wrap(stage.Snapshot, fmt.Errorf("failed to parse snapshot %s: %w", path, err))
	}
	defer f.Close()

	hdus := f.HDUs()
	if len(hdus) == 0 {
		return nil, meta, stage.Errorf(stage.Snapshot, stage.ErrMalformedInput, "%s has no HDUs", path)
	}
	hdr := hdus[0].Header()
	if c := hdr.Get("RUNID"); c != nil {
		meta.RunID = strings.TrimSpace(fmt.Sprint(c.Value))
	}
	meta.Window.Start = cardInt(hdr, "RSTART")
	meta.Window.Stop = cardInt(hdr, "RSTOP")
	meta.Baseline = cardInt(hdr, "NBASE")

	maps := make(response.Maps)
	for _, hdu := range hdus[1:] {
		if !strings.HasPrefix(hdu.Name(), extPrefix) {
			continue
		}
		img, ok := hdu.(fitsio.Image)
		if !ok {
			return nil, meta, stage.Errorf(stage.Snapshot, stage.ErrMalformedInput, "HDU %s is not an image", hdu.Name())
		}
		m, err := readMap(img)
		if err != nil {
			return nil, meta, err
		}
		maps[m.Label] = m
	}
	if len(maps) == 0 {
		return nil, meta, stage.Errorf(stage.Snapshot, stage.ErrMalformedInput, "%s holds no response maps", path)
	}

	fmt.Printf("[Snapshot] Loaded %d response maps from %s\n", len(maps), path)
	return maps, meta, nil
}

func readMap(img fitsio.Image) (*response.Map, error) {
	hdr := img.Header()
	if hdr.Bitpix() != -64 {
		return nil, stage.Errorf(stage.Snapshot, stage.ErrMalformedInput,
			"HDU %s has BITPIX %d, expected -64", img.Name(), hdr.Bitpix())
	}
	axes := hdr.Axes()
	if len(axes) != 2 {
		return nil, stage.Errorf(stage.Snapshot, stage.ErrMalformedInput,
			"HDU %s has %d axes, expected 2", img.Name(), len(axes))
	}

	m := &response.Map{
		Label:  conditions.Label(cardInt(hdr, "LABEL")),
		Reps:   cardInt(hdr, "NREPS"),
		Width:  axes[0],
		Height: axes[1],
	}
	m.Data = make([]float64, m.Width*m.Height)
	if err := img.Read(&m.Data); err != nil {
		return nil, stage.Wrap(stage.Snapshot, fmt.Errorf("failed to read HDU %s: %w", img.Name(), err))
	}
	return m, nil
}

func cardInt(hdr *fitsio.Header, name string) int {
	c := hdr.Get(name)
	if c == nil {
		return 0
	}
	switch v := c.Value.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
