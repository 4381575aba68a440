package clean

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// debug masks written next to the images must never be picked up again
const maskSuffix = "_mask"

func isSupportedExt(name string) bool {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	if strings.HasSuffix(stem, maskSuffix) || strings.HasPrefix(name, ".") {
		return false
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".webp":
		return true
	}
	return false
}

// listImageFiles returns the supported image names directly inside dir, sorted.
func listImageFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if !isSupportedExt(e.Name()) {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out, nil
}

// maskName is the debug mask file name for an image.
func maskName(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name)) + maskSuffix + ".png"
}

// resultName keeps the source name unless its format cannot be encoded
// (webp), in which case the result is written as PNG.
func resultName(name string) string {
	ext := filepath.Ext(name)
	if strings.EqualFold(ext, ".webp") {
		return strings.TrimSuffix(name, ext) + ".png"
	}
	return name
}
