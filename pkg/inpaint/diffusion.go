package inpaint

import (
	"context"
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"wmclean/pkg/watermark"
)

var neighbours8 = []image.Point{{-1, -1}, {0, -1}, {1, -1}, {-1, 0}, {1, 0}, {-1, 1}, {0, 1}, {1, 1}}

var neighbours4 = []image.Point{{0, -1}, {-1, 0}, {1, 0}, {0, 1}}

// DiffusionInpainter fills the mask from its border inwards: each pass sets
// the masked pixels touching known pixels to the mean of those neighbours.
// A few relaxation sweeps then smooth the filled area.
type DiffusionInpainter struct {
	Smoothing int
}

type rgba struct{ r, g, b, a float64 }

// Inpaint implements Inpainter. Unmasked pixels are copied unchanged.
func (d *DiffusionInpainter) Inpaint(ctx context.Context, img image.Image, mask *watermark.Mask) (image.Image, error) {
	if err := checkSize(img, mask); err != nil {
		return nil, err
	}
	src := imaging.Clone(img)
	w, h := mask.Width, mask.Height
	if w == 0 || h == 0 || mask.Empty() {
		return src, nil
	}

	px := make([]rgba, w*h)
	known := make([]bool, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := src.NRGBAAt(x, y)
			px[y*w+x] = rgba{float64(c.R), float64(c.G), float64(c.B), float64(c.A)}
			known[y*w+x] = !mask.Marked(x, y)
		}
	}

	type fill struct {
		idx int
		c   rgba
	}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var layer []fill
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				i := y*w + x
				if known[i] {
					continue
				}
				var sum rgba
				n := 0
				for _, o := range neighbours8 {
					nx, ny := x+o.X, y+o.Y
					if nx < 0 || ny < 0 || nx >= w || ny >= h || !known[ny*w+nx] {
						continue
					}
					p := px[ny*w+nx]
					sum.r, sum.g, sum.b, sum.a = sum.r+p.r, sum.g+p.g, sum.b+p.b, sum.a+p.a
					n++
				}
				if n > 0 {
					f := float64(n)
					layer = append(layer, fill{i, rgba{sum.r / f, sum.g / f, sum.b / f, sum.a / f}})
				}
			}
		}
		if len(layer) == 0 {
			// nothing known left to grow from (fully masked image) or done
			break
		}
		for _, f := range layer {
			px[f.idx] = f.c
			known[f.idx] = true
		}
	}

	for s := 0; s < d.Smoothing; s++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next := make([]rgba, len(px))
		copy(next, px)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				if !mask.Marked(x, y) {
					continue
				}
				var sum rgba
				n := 0
				for _, o := range neighbours4 {
					nx, ny := x+o.X, y+o.Y
					if nx < 0 || ny < 0 || nx >= w || ny >= h {
						continue
					}
					p := px[ny*w+nx]
					sum.r, sum.g, sum.b, sum.a = sum.r+p.r, sum.g+p.g, sum.b+p.b, sum.a+p.a
					n++
				}
				f := float64(n)
				next[y*w+x] = rgba{sum.r / f, sum.g / f, sum.b / f, sum.a / f}
			}
		}
		px = next
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !mask.Marked(x, y) || !known[y*w+x] {
				continue
			}
			p := px[y*w+x]
			src.SetNRGBA(x, y, color.NRGBA{clampByte(p.r), clampByte(p.g), clampByte(p.b), clampByte(p.a)})
		}
	}
	return src, nil
}

func clampByte(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v + 0.5)
	}
}
