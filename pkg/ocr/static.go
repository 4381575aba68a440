package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"
	"slices"

	"github.com/goccy/go-json"

	"wmclean/pkg/watermark"
)

// StaticDetector returns a fixed set of detections, typically produced by an
// external OCR engine and loaded with LoadDetections.
type StaticDetector []watermark.TextDetection

// Detect implements Detector.
func (s StaticDetector) Detect(ctx context.Context, _ image.Image) ([]watermark.TextDetection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return slices.Clone([]watermark.TextDetection(s)), nil
}

// LoadDetections reads a detections JSON file, see ParseDetections.
func LoadDetections(path string) ([]watermark.TextDetection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read detections: %w", err)
	}
	dets, err := ParseDetections(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return dets, nil
}

// ParseDetections accepts a JSON array whose elements are either EasyOCR
// readtext tuples, [[[x,y],[x,y],[x,y],[x,y]], "text", 0.87], or objects in
// the TextDetection encoding, {"quad":[{"x":..,"y":..},...],"text":..,"confidence":..}.
// Geometry is not validated here; the locator rejects malformed quads it needs.
func ParseDetections(data []byte) ([]watermark.TextDetection, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse detections: %w", err)
	}
	out := make([]watermark.TextDetection, 0, len(raw))
	for i, el := range raw {
		d, err := parseDetection(el)
		if err != nil {
			return nil, fmt.Errorf("detection %d: %w", i, err)
		}
		out = append(out, d)
	}
	return out, nil
}

func parseDetection(el json.RawMessage) (watermark.TextDetection, error) {
	trimmed := bytes.TrimSpace(el)
	if len(trimmed) == 0 {
		return watermark.TextDetection{}, fmt.Errorf("empty element")
	}
	if trimmed[0] == '{' {
		var d watermark.TextDetection
		if err := json.Unmarshal(trimmed, &d); err != nil {
			return watermark.TextDetection{}, err
		}
		return d, nil
	}
	var tuple []json.RawMessage
	if err := json.Unmarshal(trimmed, &tuple); err != nil {
		return watermark.TextDetection{}, err
	}
	if len(tuple) != 3 {
		return watermark.TextDetection{}, fmt.Errorf("tuple has %d fields, want 3", len(tuple))
	}
	var pts [][]float64
	if err := json.Unmarshal(tuple[0], &pts); err != nil {
		return watermark.TextDetection{}, fmt.Errorf("box: %w", err)
	}
	d := watermark.TextDetection{Quad: make([]watermark.Point, 0, len(pts))}
	for _, p := range pts {
		if len(p) != 2 {
			return watermark.TextDetection{}, fmt.Errorf("point has %d coordinates, want 2", len(p))
		}
		d.Quad = append(d.Quad, watermark.Point{X: p[0], Y: p[1]})
	}
	if err := json.Unmarshal(tuple[1], &d.Text); err != nil {
		return watermark.TextDetection{}, fmt.Errorf("text: %w", err)
	}
	if err := json.Unmarshal(tuple[2], &d.Confidence); err != nil {
		return watermark.TextDetection{}, fmt.Errorf("confidence: %w", err)
	}
	return d, nil
}
