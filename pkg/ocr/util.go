package ocr

import (
	"fmt"
	"strings"

	"wmclean/pkg/watermark"
)

// snippet returns a shortened version of text for logging.
func snippet(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "…"
}

// normalizeOCRText collapses whitespace and replaces newlines/tabs.
func normalizeOCRText(t string) string {
	t = strings.ReplaceAll(t, "\n", " ")
	t = strings.ReplaceAll(t, "\t", " ")
	return strings.Join(strings.Fields(t), " ")
}

// detectionKey identifies a detection by text and integer geometry so the
// same word read by two passes is kept once.
func detectionKey(d watermark.TextDetection) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(d.Text))
	for _, p := range d.Quad {
		fmt.Fprintf(&b, "|%d,%d", int(p.X), int(p.Y))
	}
	return b.String()
}

// mergeDetections appends the detections of every pass, dropping duplicates
// and keeping the first occurrence.
func mergeDetections(passes ...[]watermark.TextDetection) []watermark.TextDetection {
	seen := map[string]struct{}{}
	out := []watermark.TextDetection{}
	for _, pass := range passes {
		for _, d := range pass {
			k := detectionKey(d)
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, d)
		}
	}
	return out
}
