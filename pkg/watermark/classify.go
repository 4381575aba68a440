package watermark

import "strings"

// ClassifyDetections keeps the detections that look like part of the
// watermark: the normalized text contains one of keywords, or the confidence
// is below threshold. The watermark is semi-transparent, so OCR reads it with
// low confidence; that is a heuristic, and callers own the threshold.
// Input order is preserved and the result is never nil.
func ClassifyDetections(dets []TextDetection, keywords []string, threshold float64) []TextDetection {
	norm := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if k := normalizeText(kw); k != "" {
			norm = append(norm, k)
		}
	}
	out := make([]TextDetection, 0, len(dets))
	for _, d := range dets {
		if d.Confidence < threshold || containsAny(normalizeText(d.Text), norm) {
			out = append(out, d)
		}
	}
	return out
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
