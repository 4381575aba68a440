package watermark

import (
	"fmt"
	"math"
	"strings"
	"unicode"
)

// Point is a pixel coordinate with the origin in the upper-left corner.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// TextDetection is one OCR hit: a quadrilateral, the recognized text and a
// confidence in [0, 1].
type TextDetection struct {
	Quad       []Point `json:"quad"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// validate checks the quad is usable as geometry.
func (d TextDetection) validate() error {
	if len(d.Quad) != 4 {
		return fmt.Errorf("%w: detection %q has %d points, want 4", ErrInvalidInput, d.Text, len(d.Quad))
	}
	for _, p := range d.Quad {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			return fmt.Errorf("%w: detection %q has non-finite point", ErrInvalidInput, d.Text)
		}
	}
	return nil
}

// normalizeText lowercases s and drops every whitespace rune.
func normalizeText(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, s)
}
