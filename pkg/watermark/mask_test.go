package watermark

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEllipseKernel(t *testing.T) {
	k := ellipseKernel(2)
	assert.Len(t, k, 17)
	for _, sy := range []int{-2, 2} {
		assert.Contains(t, k, image.Pt(0, sy))
		for _, x := range []int{-2, -1, 1, 2} {
			assert.NotContains(t, k, image.Pt(x, sy))
		}
	}
	for x := -2; x <= 2; x++ {
		assert.Contains(t, k, image.Pt(x, 0))
		assert.Contains(t, k, image.Pt(x, -1))
		assert.Contains(t, k, image.Pt(x, 1))
	}
	assert.Equal(t, []image.Point{{}}, ellipseKernel(0))
}

func TestDilateSinglePixel(t *testing.T) {
	m := NewMask(9, 9)
	m.Fill(image.Rect(4, 4, 5, 5))
	out := dilate(m, 2)
	assert.Equal(t, 17, out.Count())
	assert.True(t, out.Marked(4, 2))
	assert.False(t, out.Marked(3, 2))
	assert.Equal(t, 1, m.Count(), "input is not modified")
}

func TestMaskGrayRoundTrip(t *testing.T) {
	m := NewMask(5, 3)
	m.Fill(image.Rect(1, 1, 4, 2))
	g := m.Gray()
	assert.Equal(t, uint8(255), g.GrayAt(2, 1).Y)
	assert.Equal(t, uint8(0), g.GrayAt(0, 0).Y)
	assert.True(t, m.Equal(MaskFromImage(g)))
}

func TestMaskOutOfRange(t *testing.T) {
	m := NewMask(2, 2)
	m.Fill(image.Rect(-5, -5, 10, 10))
	assert.Equal(t, 4, m.Count())
	assert.False(t, m.Marked(2, 0))
	assert.False(t, m.Marked(-1, 0))
	assert.Equal(t, image.Rectangle{}, NewMask(3, 3).Extent())
}
