package ocr

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// adaptiveThreshold performs a simple mean adaptive threshold. Faint
// semi-transparent text survives it better than a global threshold.
func adaptiveThreshold(img image.Image, window int, bias int) *image.NRGBA {
	if window < 3 {
		window = 3
	}
	if window%2 == 0 {
		window++
	}
	b := img.Bounds()
	w := b.Dx()
	h := b.Dy()
	out := imaging.New(w, h, color.NRGBA{255, 255, 255, 255})
	half := window / 2
	lum := make([]int, w*h)
	ints := make([]int, w*h)
	for y := 0; y < h; y++ {
		rowSum := 0
		for x := 0; x < w; x++ {
			r, g, bb, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			v := int((r + g + bb) / 3 >> 8)
			lum[y*w+x] = v
			rowSum += v
			idx := y*w + x
			if y == 0 {
				ints[idx] = rowSum
			} else {
				ints[idx] = ints[(y-1)*w+x] + rowSum
			}
		}
	}
	at := func(x, y int) int {
		if x < 0 || y < 0 {
			return 0
		}
		return ints[y*w+x]
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			x0, y0 := max(x-half, 0), max(y-half, 0)
			x1, y1 := min(x+half, w-1), min(y+half, h-1)
			sum := at(x1, y1) - at(x0-1, y1) - at(x1, y0-1) + at(x0-1, y0-1)
			mean := sum / ((x1 - x0 + 1) * (y1 - y0 + 1))
			th := max(mean-bias, 0)
			if lum[y*w+x] < th {
				out.SetNRGBA(x, y, color.NRGBA{0, 0, 0, 255})
			}
		}
	}
	return out
}

// variant is one preprocessed rendition of the source image. sx and sy map
// variant pixels back to source pixels (source = variant / scale).
type variant struct {
	name   string
	img    image.Image
	sx, sy float64
}

// buildVariants prepares the OCR passes: an enhanced grayscale, its inverse
// (the watermark is usually light text over the photo) and an adaptive
// threshold. Short images are upscaled first; Tesseract reads small glyphs poorly.
func buildVariants(img image.Image, minHeight, targetHeight int) []variant {
	gray := imaging.Grayscale(img)
	gray = imaging.AdjustContrast(gray, 15)
	gray = imaging.Sharpen(gray, 0.7)
	sx, sy := 1.0, 1.0
	w, h := gray.Bounds().Dx(), gray.Bounds().Dy()
	if minHeight > 0 && h < minHeight && targetHeight > h {
		gray = imaging.Resize(gray, 0, targetHeight, imaging.Lanczos)
		sx = float64(gray.Bounds().Dx()) / float64(w)
		sy = float64(gray.Bounds().Dy()) / float64(h)
	}
	return []variant{
		{name: "gray", img: gray, sx: sx, sy: sy},
		{name: "inverted", img: imaging.Invert(gray), sx: sx, sy: sy},
		{name: "adaptive", img: adaptiveThreshold(gray, 15, 7), sx: sx, sy: sy},
	}
}
