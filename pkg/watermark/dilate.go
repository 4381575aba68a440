package watermark

import (
	"image"
	"math"
)

// ellipseKernel returns the offsets of an elliptical structuring element of the
// given radius, laid out the way OpenCV's MORPH_ELLIPSE builds a
// (2r+1)x(2r+1) kernel. Radius 2 gives the 5x5 kernel with clipped corners.
func ellipseKernel(radius int) []image.Point {
	if radius <= 0 {
		return []image.Point{{}}
	}
	size := 2*radius + 1
	r := float64(radius)
	var out []image.Point
	for i := 0; i < size; i++ {
		dy := i - radius
		dx := int(math.RoundToEven(r * math.Sqrt((r*r-float64(dy*dy))/(r*r))))
		j1 := max(radius-dx, 0)
		j2 := min(radius+dx+1, size)
		for j := j1; j < j2; j++ {
			out = append(out, image.Pt(j-radius, dy))
		}
	}
	return out
}

// dilate grows the marked region of m by one pass of the elliptical kernel.
// Only the neighbourhood of the marked extent is scanned.
func dilate(m *Mask, radius int) *Mask {
	if radius <= 0 || m.Empty() {
		return m
	}
	kernel := ellipseKernel(radius)
	ext := m.Extent()
	area := ext.Inset(-radius).Intersect(m.bounds())
	out := NewMask(m.Width, m.Height)
	copy(out.Pix, m.Pix)
	for y := area.Min.Y; y < area.Max.Y; y++ {
		for x := area.Min.X; x < area.Max.X; x++ {
			if m.Pix[y*m.Width+x] == marked {
				continue
			}
			for _, k := range kernel {
				if m.Marked(x+k.X, y+k.Y) {
					out.Pix[y*m.Width+x] = marked
					break
				}
			}
		}
	}
	return out
}
