package watermark

import (
	"bytes"
	"image"
	"image/color"
)

const (
	clear  uint8 = 0
	marked uint8 = 255
)

// Mask is a binary per-pixel selection with the same size as the image it
// was built for. Pix is row-major, one byte per pixel, 0 clear and 255 marked,
// so it maps directly onto an 8-bit grayscale image.
type Mask struct {
	Width  int
	Height int
	Pix    []uint8
}

// NewMask returns an all-clear mask. Non-positive dimensions yield an empty mask
// that keeps the requested size.
func NewMask(width, height int) *Mask {
	n := 0
	if width > 0 && height > 0 {
		n = width * height
	}
	return &Mask{Width: width, Height: height, Pix: make([]uint8, n)}
}

func (m *Mask) bounds() image.Rectangle {
	if m.Width <= 0 || m.Height <= 0 {
		return image.Rectangle{}
	}
	return image.Rect(0, 0, m.Width, m.Height)
}

// Marked reports whether (x, y) is selected. Out-of-range coordinates are clear.
func (m *Mask) Marked(x, y int) bool {
	if !(image.Point{X: x, Y: y}).In(m.bounds()) {
		return false
	}
	return m.Pix[y*m.Width+x] == marked
}

// Fill marks every pixel of r that falls inside the mask.
func (m *Mask) Fill(r image.Rectangle) {
	r = r.Intersect(m.bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := m.Pix[y*m.Width : (y+1)*m.Width]
		for x := r.Min.X; x < r.Max.X; x++ {
			row[x] = marked
		}
	}
}

// Count returns the number of marked pixels.
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.Pix {
		if v == marked {
			n++
		}
	}
	return n
}

// Extent returns the smallest rectangle containing every marked pixel, or the
// zero rectangle when nothing is marked.
func (m *Mask) Extent() image.Rectangle {
	minX, minY, maxX, maxY := m.Width, m.Height, -1, -1
	for y := 0; y < m.Height; y++ {
		row := m.Pix[y*m.Width : (y+1)*m.Width]
		first := bytes.IndexByte(row, marked)
		if first < 0 {
			continue
		}
		last := bytes.LastIndexByte(row, marked)
		minX, maxX = min(minX, first), max(maxX, last)
		if minY > y {
			minY = y
		}
		maxY = y
	}
	if maxY < 0 {
		return image.Rectangle{}
	}
	return image.Rect(minX, minY, maxX+1, maxY+1)
}

// Empty reports whether no pixel is marked.
func (m *Mask) Empty() bool {
	return bytes.IndexByte(m.Pix, marked) < 0
}

// Equal reports whether two masks have the same size and selection.
func (m *Mask) Equal(o *Mask) bool {
	if m == nil || o == nil {
		return m == o
	}
	return m.Width == o.Width && m.Height == o.Height && bytes.Equal(m.Pix, o.Pix)
}

// Gray exposes the mask as a grayscale image sharing the same pixel buffer.
func (m *Mask) Gray() *image.Gray {
	return &image.Gray{Pix: m.Pix, Stride: m.Width, Rect: m.bounds()}
}

// MaskFromImage thresholds any image into a mask: pixels brighter than mid-gray
// are marked. It is the inverse of Gray and is used to read debug masks back.
func MaskFromImage(img image.Image) *Mask {
	b := img.Bounds()
	m := NewMask(b.Dx(), b.Dy())
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			g := color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
			if g.Y >= 128 {
				m.Pix[y*m.Width+x] = marked
			}
		}
	}
	return m
}
