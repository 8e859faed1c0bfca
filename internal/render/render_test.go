package render

import (
	"image"
	"image/color"
	"math"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"widefield-mapper/internal/conditions"
	"widefield-mapper/internal/response"
)

func TestPrepareThresholdsAndRounds(t *testing.T) {
	m := &response.Map{Label: 4000, Height: 1, Width: 5, Data: []float64{math.NaN(), 1.99, 2.04, 3.25, 6}}
	d := Prepare(m, 2)

	assert.Equal(t, []float64{0, 0, 2.0, 3.2, 6}, d.Values)
	assert.Equal(t, []bool{false, false, true, true, true}, d.Shown)
	assert.InDeltaSlice(t, []float64{0, 0, 2.0 / 6, 3.2 / 6, 1}, d.Norm, 1e-12)
	assert.True(t, math.IsNaN(m.Data[0]), "map is not modified")
}

func TestPrepareNothingAboveThreshold(t *testing.T) {
	m := &response.Map{Height: 1, Width: 3, Data: []float64{0.5, -4, 1}}
	d := Prepare(m, 2)
	assert.Equal(t, []float64{0, 0, 0}, d.Norm)
	assert.Equal(t, []bool{false, false, false}, d.Shown)
}

func TestCompositeOver(t *testing.T) {
	bg := imaging.New(2, 1, color.NRGBA{R: 100, G: 100, B: 100, A: 255})
	fg := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	fg.SetNRGBA(0, 0, color.NRGBA{R: 200, G: 0, B: 0, A: 255})
	fg.SetNRGBA(1, 0, color.NRGBA{R: 200, G: 0, B: 0, A: 0})

	c := NewComposite(2, 1)
	c.AddLayer(bg, 1, 0, 0)
	c.AddLayer(fg, 1, 0, 0)
	out := c.Render()

	assert.Equal(t, color.NRGBA{R: 200, G: 0, B: 0, A: 255}, out.NRGBAAt(0, 0))
	assert.Equal(t, color.NRGBA{R: 100, G: 100, B: 100, A: 255}, out.NRGBAAt(1, 0))
}

func TestCompositeOpacityAndOffset(t *testing.T) {
	fg := imaging.New(1, 1, color.NRGBA{R: 255, G: 255, B: 255, A: 255})

	c := NewComposite(3, 1)
	c.BackColor = color.NRGBA{A: 255}
	c.AddLayer(fg, 0.5, 2, 0)
	out := c.Render()

	assert.Equal(t, color.NRGBA{A: 255}, out.NRGBAAt(0, 0))
	assert.Equal(t, color.NRGBA{R: 128, G: 128, B: 128, A: 255}, out.NRGBAAt(2, 0))
}

func TestLoadBackgroundDownsamples(t *testing.T) {
	path := filepath.Join(t.TempDir(), "background.png")
	src := imaging.New(8, 6, color.NRGBA{R: 0, G: 0, B: 255, A: 255})
	require.NoError(t, imaging.Save(src, path))

	bg, err := LoadBackground(path, 2)
	require.NoError(t, err)
	assert.Equal(t, 4, bg.Bounds().Dx())
	assert.Equal(t, 3, bg.Bounds().Dy())

	px := bg.NRGBAAt(1, 1)
	assert.Equal(t, px.R, px.G)
	assert.Equal(t, px.G, px.B)
}

func TestFitBackground(t *testing.T) {
	black := FitBackground(nil, 3, 2)
	assert.Equal(t, image.Rect(0, 0, 3, 2), black.Bounds())
	assert.Equal(t, color.NRGBA{A: 255}, black.NRGBAAt(2, 1))

	bg := imaging.New(5, 5, color.White)
	assert.Equal(t, image.Rect(0, 0, 3, 2), FitBackground(bg, 3, 2).Bounds())
	assert.Equal(t, image.Rect(0, 0, 5, 5), FitBackground(bg, 5, 5).Bounds())
}

func TestOverlayHidesBelowThreshold(t *testing.T) {
	m := &response.Map{Label: 8000, Height: 1, Width: 2, Data: []float64{1, 9}}
	out, err := Overlay(m, FitBackground(nil, 2, 1), 2)
	require.NoError(t, err)

	assert.Equal(t, color.NRGBA{A: 255}, out.NRGBAAt(0, 0))
	top := out.NRGBAAt(1, 0)
	assert.Greater(t, top.R, uint8(200), "viridis maximum is yellow")
	assert.Greater(t, top.G, uint8(200))
	assert.Less(t, top.B, uint8(100))

	_, err = Overlay(m, FitBackground(nil, 3, 1), 2)
	assert.Error(t, err)
}

func TestMontageLayout(t *testing.T) {
	maps := response.Maps{}
	for i, l := range []conditions.Label{2000, 4000, 8000, 16000, 32000, 45000, 64000} {
		m := &response.Map{Label: l, Height: 4, Width: 5, Reps: 2, Data: make([]float64, 20)}
		m.Data[i] = 5
		maps[l] = m
	}

	img, err := Montage(maps, nil, DefaultOptions(2))
	require.NoError(t, err)
	// two rows of six 10x8 panels plus titles and the colorbar
	assert.Equal(t, 6+6*16+colorbarSpace, img.Bounds().Dx())
	assert.Equal(t, 6+2*32, img.Bounds().Dy())

	path := filepath.Join(t.TempDir(), "overlay.png")
	require.NoError(t, Save(path, img))
	saved, err := imaging.Open(path)
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), saved.Bounds())
}

func TestMontageRejectsMixedGrids(t *testing.T) {
	maps := response.Maps{
		1: {Label: 1, Height: 2, Width: 2, Data: make([]float64, 4)},
		2: {Label: 2, Height: 3, Width: 2, Data: make([]float64, 6)},
	}
	_, err := Montage(maps, nil, DefaultOptions(2))
	assert.Error(t, err)

	_, err = Montage(response.Maps{}, nil, DefaultOptions(2))
	assert.Error(t, err)
}
