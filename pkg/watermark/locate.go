// Package watermark turns noisy OCR output into a binary mask covering a known,
// repeating text watermark, ready for an inpainting step.
//
// The locator is pure: it performs no I/O, keeps no state between calls and
// never logs. Given the same image size and detections it returns the same mask.
package watermark

import (
	"fmt"
	"image"
	"slices"
)

// Source tells which path produced a mask.
type Source string

const (
	SourceOCR      Source = "ocr"
	SourceFallback Source = "fallback"
	SourceEmpty    Source = "empty"
)

// Result is the full outcome of locating the watermark in one image.
type Result struct {
	Mask    *Mask
	Source  Source
	Matched []TextDetection
	// Span is the band rectangle before dilation (OCR path) or the fallback
	// rectangle. It is empty for zero-area images.
	Span image.Rectangle
}

// Locator applies one immutable Config. It is safe for concurrent use.
type Locator struct {
	cfg Config
}

// NewLocator validates cfg and returns a Locator holding a private copy of it.
func NewLocator(cfg Config) (*Locator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Keywords = slices.Clone(cfg.Keywords)
	return &Locator{cfg: cfg}, nil
}

// Default returns a Locator configured with DefaultConfig.
func Default() *Locator {
	l, err := NewLocator(DefaultConfig())
	if err != nil {
		panic(err)
	}
	return l
}

// Config returns a copy of the locator settings.
func (l *Locator) Config() Config {
	cfg := l.cfg
	cfg.Keywords = slices.Clone(cfg.Keywords)
	return cfg
}

// Classify filters dets with the configured keywords and threshold.
func (l *Locator) Classify(dets []TextDetection) []TextDetection {
	return ClassifyDetections(dets, l.cfg.Keywords, l.cfg.ConfidenceThreshold)
}

// MaskFromDetections builds the band mask from already classified detections.
// An empty matched list yields an all-clear mask; this function never invents
// geometry, that is the job of FallbackMask.
func (l *Locator) MaskFromDetections(img image.Image, matched []TextDetection, padding int) (*Mask, error) {
	m, _, err := l.bandMask(img.Bounds(), matched, padding)
	return m, err
}

func (l *Locator) bandMask(b image.Rectangle, matched []TextDetection, padding int) (*Mask, image.Rectangle, error) {
	if padding < 0 {
		return nil, image.Rectangle{}, fmt.Errorf("%w: padding %d is negative", ErrInvalidInput, padding)
	}
	w, h := b.Dx(), b.Dy()
	m := NewMask(w, h)
	if len(matched) == 0 || w <= 0 || h <= 0 {
		return m, image.Rectangle{}, nil
	}
	// rows further out than lo/hi pad to the same clamped band, so
	// coordinates are bounded before the int conversion
	lo, hi := -float64(padding)-1, float64(h+padding)+1
	var minY, maxY int
	first := true
	for _, d := range matched {
		if err := d.validate(); err != nil {
			return nil, image.Rectangle{}, err
		}
		for _, p := range d.Quad {
			// truncate toward zero, matching integer pixel coordinates
			y := int(min(max(p.Y, lo), hi))
			if first {
				minY, maxY, first = y, y, false
				continue
			}
			minY, maxY = min(minY, y), max(maxY, y)
		}
	}
	y0 := max(0, minY-padding)
	y1 := min(h, maxY+padding)
	x0 := int(float64(w) * l.cfg.Band.XMin)
	x1 := int(float64(w) * l.cfg.Band.XMax)
	span := image.Rect(x0, y0, x1, y1)
	if y0 >= y1 {
		span = image.Rectangle{}
	}
	m.Fill(span)
	return dilate(m, l.cfg.DilationRadius), span, nil
}

// FallbackMask marks the fixed rectangle where the watermark usually sits.
// It depends only on the image size.
func (l *Locator) FallbackMask(img image.Image) *Mask {
	m, _ := l.fallback(img.Bounds())
	return m
}

func (l *Locator) fallback(b image.Rectangle) (*Mask, image.Rectangle) {
	w, h := b.Dx(), b.Dy()
	m := NewMask(w, h)
	fb := l.cfg.Fallback
	r := image.Rect(
		int(float64(w)*fb.XMin), int(float64(h)*fb.YMin),
		int(float64(w)*fb.XMax), int(float64(h)*fb.YMax),
	)
	m.Fill(r)
	return m, r.Intersect(m.bounds())
}

// Locate returns the mask to inpaint for img given the OCR detections.
func (l *Locator) Locate(img image.Image, dets []TextDetection) (*Mask, error) {
	res, err := l.Analyze(img, dets)
	if err != nil {
		return nil, err
	}
	return res.Mask, nil
}

// Analyze is Locate plus the details of how the mask was derived.
func (l *Locator) Analyze(img image.Image, dets []TextDetection) (Result, error) {
	b := img.Bounds()
	if b.Empty() {
		return Result{Mask: NewMask(b.Dx(), b.Dy()), Source: SourceEmpty, Matched: []TextDetection{}}, nil
	}
	matched := l.Classify(dets)
	if len(matched) == 0 {
		m, span := l.fallback(b)
		return Result{Mask: m, Source: SourceFallback, Matched: matched, Span: span}, nil
	}
	m, span, err := l.bandMask(b, matched, l.cfg.Padding)
	if err != nil {
		return Result{}, fmt.Errorf("build band mask: %w", err)
	}
	return Result{Mask: m, Source: SourceOCR, Matched: matched, Span: span}, nil
}
