// Package inpaint fills the masked region of an image. The production path is
// an external LaMa-style model served over HTTP; DiffusionInpainter is a small
// pure-Go fill for offline runs and tests.
package inpaint

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"wmclean/pkg/watermark"
)

// ErrMaskSize is returned when the mask and the image differ in size.
var ErrMaskSize = errors.New("mask size does not match image")

// Inpainter reconstructs the pixels selected by mask.
type Inpainter interface {
	Inpaint(ctx context.Context, img image.Image, mask *watermark.Mask) (image.Image, error)
}

// Config selects and tunes an Inpainter.
type Config struct {
	// URL of the inpainting service. Empty selects the diffusion fill.
	URL       string
	Timeout   time.Duration
	Retries   int
	RetryWait time.Duration
	// Smoothing is the number of relaxation sweeps of the diffusion fill.
	Smoothing int
}

// New returns an HTTPInpainter when cfg.URL is set and a DiffusionInpainter otherwise.
func New(cfg Config) Inpainter {
	if cfg.URL != "" {
		return NewHTTPInpainter(cfg)
	}
	return &DiffusionInpainter{Smoothing: cfg.Smoothing}
}

func checkSize(img image.Image, mask *watermark.Mask) error {
	if mask == nil {
		return fmt.Errorf("%w: nil mask", ErrMaskSize)
	}
	b := img.Bounds()
	if b.Dx() != mask.Width || b.Dy() != mask.Height {
		return fmt.Errorf("%w: image %dx%d, mask %dx%d", ErrMaskSize, b.Dx(), b.Dy(), mask.Width, mask.Height)
	}
	return nil
}
