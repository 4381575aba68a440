package inpaint

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wmclean/pkg/watermark"
)

func TestDiffusionFillsFlatBackground(t *testing.T) {
	bg := color.NRGBA{40, 90, 200, 255}
	img := imaging.New(64, 32, bg)
	// the "watermark": white text strokes across the middle
	for x := 8; x < 56; x++ {
		img.SetNRGBA(x, 15, color.NRGBA{255, 255, 255, 255})
		img.SetNRGBA(x, 16, color.NRGBA{255, 255, 255, 255})
	}
	mask := watermark.NewMask(64, 32)
	mask.Fill(image.Rect(4, 12, 60, 20))

	out, err := (&DiffusionInpainter{Smoothing: 5}).Inpaint(context.Background(), img, mask)
	require.NoError(t, err)
	nrgba := imaging.Clone(out)
	for _, p := range []image.Point{{8, 15}, {30, 16}, {55, 15}, {4, 12}, {59, 19}} {
		assert.Equal(t, bg, nrgba.NRGBAAt(p.X, p.Y), "pixel %v", p)
	}
	assert.Equal(t, color.NRGBA{255, 255, 255, 255}, img.NRGBAAt(30, 16), "input untouched")
}

func TestDiffusionKeepsUnmaskedPixels(t *testing.T) {
	img := imaging.New(10, 10, color.NRGBA{0, 0, 0, 255})
	img.SetNRGBA(1, 1, color.NRGBA{255, 0, 0, 255})
	mask := watermark.NewMask(10, 10)
	mask.Fill(image.Rect(5, 5, 8, 8))
	out, err := (&DiffusionInpainter{}).Inpaint(context.Background(), img, mask)
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{255, 0, 0, 255}, imaging.Clone(out).NRGBAAt(1, 1))
}

func TestDiffusionFullyMasked(t *testing.T) {
	img := imaging.New(4, 4, color.NRGBA{9, 9, 9, 255})
	mask := watermark.NewMask(4, 4)
	mask.Fill(image.Rect(0, 0, 4, 4))
	out, err := (&DiffusionInpainter{Smoothing: 2}).Inpaint(context.Background(), img, mask)
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{9, 9, 9, 255}, imaging.Clone(out).NRGBAAt(2, 2))
}

func TestInpaintMaskSize(t *testing.T) {
	img := imaging.New(4, 4, color.NRGBA{})
	_, err := (&DiffusionInpainter{}).Inpaint(context.Background(), img, watermark.NewMask(4, 5))
	assert.ErrorIs(t, err, ErrMaskSize)
	_, err = (&DiffusionInpainter{}).Inpaint(context.Background(), img, nil)
	assert.ErrorIs(t, err, ErrMaskSize)
}

func TestNewSelectsImplementation(t *testing.T) {
	assert.IsType(t, &DiffusionInpainter{}, New(Config{}))
	assert.IsType(t, &HTTPInpainter{}, New(Config{URL: "http://localhost:8080/inpaint"}))
}
