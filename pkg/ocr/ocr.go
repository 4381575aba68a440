// Package ocr finds text in images and reports it as watermark.TextDetection
// values: a quadrilateral in source-image pixels, the text and a confidence
// in [0, 1].
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"
	"github.com/rs/zerolog/log"

	"wmclean/pkg/watermark"
)

// Detector locates text in an image.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]watermark.TextDetection, error)
}

// TesseractDetector runs several preprocessed passes through Tesseract and
// merges the word boxes of all of them.
type TesseractDetector struct {
	Languages []string
	// Level selects the box granularity (words by default).
	Level gosseract.PageIteratorLevel
	// Images shorter than MinHeight are upscaled to TargetHeight before OCR.
	MinHeight    int
	TargetHeight int

	clientFactory func() *gosseract.Client
}

// NewTesseractDetector returns a detector for the given languages ("eng" when none).
func NewTesseractDetector(languages ...string) *TesseractDetector {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	return &TesseractDetector{
		Languages:     languages,
		Level:         gosseract.RIL_WORD,
		MinHeight:     900,
		TargetHeight:  1300,
		clientFactory: gosseract.NewClient,
	}
}

// Detect implements Detector. A pass that fails is logged and skipped; an
// error is returned only when every pass failed.
func (d *TesseractDetector) Detect(ctx context.Context, img image.Image) ([]watermark.TextDetection, error) {
	if img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}
	variants := buildVariants(img, d.MinHeight, d.TargetHeight)
	var passes [][]watermark.TextDetection
	var lastErr error
	for _, v := range variants {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dets, err := d.runPass(v)
		if err != nil {
			log.Debug().Err(err).Str("pass", v.name).Msg("ocr pass failed")
			lastErr = err
			continue
		}
		log.Debug().Str("pass", v.name).Int("boxes", len(dets)).Msg("ocr pass")
		passes = append(passes, dets)
	}
	if len(passes) == 0 {
		return nil, fmt.Errorf("ocr passes: %w", lastErr)
	}
	return mergeDetections(passes...), nil
}

func (d *TesseractDetector) runPass(v variant) ([]watermark.TextDetection, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, v.img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode %s pass: %w", v.name, err)
	}
	c := d.clientFactory()
	defer c.Close()
	if err := c.SetLanguage(d.Languages...); err != nil {
		return nil, fmt.Errorf("set languages: %w", err)
	}
	if err := c.SetPageSegMode(gosseract.PSM_SPARSE_TEXT); err != nil {
		return nil, fmt.Errorf("set page seg mode: %w", err)
	}
	if err := c.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}
	boxes, err := c.GetBoundingBoxes(d.Level)
	if err != nil {
		return nil, fmt.Errorf("bounding boxes: %w", err)
	}
	return boxesToDetections(boxes, v.sx, v.sy), nil
}

// boxesToDetections converts Tesseract boxes into detections in source pixels.
func boxesToDetections(boxes []gosseract.BoundingBox, sx, sy float64) []watermark.TextDetection {
	if sx <= 0 {
		sx = 1
	}
	if sy <= 0 {
		sy = 1
	}
	out := make([]watermark.TextDetection, 0, len(boxes))
	for _, b := range boxes {
		text := normalizeOCRText(b.Word)
		if strings.TrimSpace(text) == "" {
			continue
		}
		x0, y0 := float64(b.Box.Min.X)/sx, float64(b.Box.Min.Y)/sy
		x1, y1 := float64(b.Box.Max.X)/sx, float64(b.Box.Max.Y)/sy
		out = append(out, watermark.TextDetection{
			Quad:       []watermark.Point{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}},
			Text:       text,
			Confidence: clamp01(b.Confidence / 100.0),
		})
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Describe formats detections for log lines.
func Describe(dets []watermark.TextDetection) string {
	parts := make([]string, 0, len(dets))
	for _, d := range dets {
		parts = append(parts, fmt.Sprintf("%q(%.2f)", snippet(d.Text, 40), d.Confidence))
	}
	return strings.Join(parts, " ")
}
