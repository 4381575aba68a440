package watermark

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quad(x0, y0, x1, y1 float64) []Point {
	return []Point{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}}
}

func blank(w, h int) image.Image {
	return image.NewGray(image.Rect(0, 0, w, h))
}

func TestClassifyDetections(t *testing.T) {
	dets := []TextDetection{
		{Quad: quad(0, 0, 10, 10), Text: "Hello", Confidence: 0.9},
		{Quad: quad(0, 0, 10, 10), Text: "escort", Confidence: 0.95},
		{Quad: quad(0, 0, 10, 10), Text: "menu", Confidence: 0.1},
		{Quad: quad(0, 0, 10, 10), Text: "Euro Girls", Confidence: 0.99},
		{Quad: quad(0, 0, 10, 10), Text: "pricing", Confidence: 0.4},
	}
	got := Default().Classify(dets)
	require.Len(t, got, 3)
	assert.Equal(t, "escort", got[0].Text)
	assert.Equal(t, "menu", got[1].Text, "low confidence is treated as watermark")
	assert.Equal(t, "Euro Girls", got[2].Text, "whitespace and case are ignored")
}

func TestClassifyDetectionsEmpty(t *testing.T) {
	got := ClassifyDetections(nil, []string{"euro"}, 0.4)
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestClassifyKeywordNormalization(t *testing.T) {
	dets := []TextDetection{{Text: "ACME stock", Confidence: 0.8}}
	got := ClassifyDetections(dets, []string{" Acme "}, 0)
	assert.Len(t, got, 1)
}

func TestMaskFromDetectionsBand(t *testing.T) {
	img := blank(2000, 1000)
	matched := []TextDetection{{Quad: quad(900, 100, 1100, 150), Text: "escort", Confidence: 0.9}}

	m, err := Default().MaskFromDetections(img, matched, 0)
	require.NoError(t, err)
	require.Equal(t, 2000, m.Width)
	require.Equal(t, 1000, m.Height)

	// band rows [100,150) x cols [80,1920), dilated by the 5x5 ellipse
	assert.Equal(t, image.Rect(78, 98, 1922, 152), m.Extent())
	assert.Equal(t, 52*1844+2*1840, m.Count())

	assert.True(t, m.Marked(78, 99))
	assert.False(t, m.Marked(77, 99))
	assert.False(t, m.Marked(78, 98), "ellipse corners stay clear")
	assert.True(t, m.Marked(80, 98))
	assert.False(t, m.Marked(79, 98))
	assert.True(t, m.Marked(1921, 120))
	assert.False(t, m.Marked(1922, 120))
	assert.True(t, m.Marked(1919, 151))
	assert.False(t, m.Marked(1920, 151))
	assert.False(t, m.Marked(1000, 97))
	assert.False(t, m.Marked(1000, 152))
}

func TestMaskFromDetectionsNoMatches(t *testing.T) {
	m, err := Default().MaskFromDetections(blank(300, 200), nil, 12)
	require.NoError(t, err)
	assert.Equal(t, 300, m.Width)
	assert.Equal(t, 200, m.Height)
	assert.True(t, m.Empty())
}

func TestMaskFromDetectionsNegativePadding(t *testing.T) {
	_, err := Default().MaskFromDetections(blank(10, 10), nil, -1)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestMaskFromDetectionsClampsToImage(t *testing.T) {
	img := blank(200, 100)
	matched := []TextDetection{
		{Quad: quad(20, 2, 60, 30), Text: "euro"},
		{Quad: quad(120, 90, 180, 99), Text: "girls"},
	}
	m, err := Default().MaskFromDetections(img, matched, 12)
	require.NoError(t, err)
	require.Len(t, m.Pix, 200*100)
	assert.Equal(t, image.Rect(6, 0, 194, 100), m.Extent())
	assert.True(t, m.Marked(100, 0))
	assert.True(t, m.Marked(100, 99))
}

func TestAnalyzeExtremeCoordinates(t *testing.T) {
	img := blank(200, 100)
	l := Default()

	res, err := l.Analyze(img, []TextDetection{
		{Quad: quad(20, 40, 180, 50), Text: "euro", Confidence: 0.9},
		{Quad: quad(20, 1e20, 180, 1e20), Text: "girls", Confidence: 0.9},
	})
	require.NoError(t, err)
	assert.Equal(t, SourceOCR, res.Source)
	assert.Equal(t, image.Rect(8, 28, 192, 100), res.Span)

	res, err = l.Analyze(img, []TextDetection{
		{Quad: quad(20, -1e20, 180, 50), Text: "euro", Confidence: 0.9},
	})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(8, 0, 192, 62), res.Span)
	assert.True(t, res.Mask.Marked(100, 0))

	res, err = l.Analyze(img, []TextDetection{
		{Quad: quad(20, -1e20, 180, -1e19), Text: "euro", Confidence: 0.9},
	})
	require.NoError(t, err)
	assert.True(t, res.Mask.Empty(), "band entirely above the image")
}

func TestMaskFromDetectionsOutsideImage(t *testing.T) {
	matched := []TextDetection{{Quad: quad(10, 500, 20, 520), Text: "euro"}}
	m, err := Default().MaskFromDetections(blank(100, 100), matched, 5)
	require.NoError(t, err)
	assert.True(t, m.Empty())
}

func TestMaskFromDetectionsMalformedQuad(t *testing.T) {
	matched := []TextDetection{{Quad: []Point{{0, 0}, {1, 1}, {2, 2}}, Text: "euro"}}
	_, err := Default().MaskFromDetections(blank(100, 100), matched, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestFallbackMask(t *testing.T) {
	m := Default().FallbackMask(blank(200, 100))
	assert.Equal(t, image.Rect(16, 40, 184, 48), m.Extent())
	assert.Equal(t, 8*168, m.Count())
}

func TestLocateEmptyDetectionsUsesFallback(t *testing.T) {
	l := Default()
	img := blank(640, 480)
	got, err := l.Locate(img, nil)
	require.NoError(t, err)
	assert.True(t, got.Equal(l.FallbackMask(img)))

	res, err := l.Analyze(img, []TextDetection{{Quad: quad(0, 0, 5, 5), Text: "menu", Confidence: 0.99}})
	require.NoError(t, err)
	assert.Equal(t, SourceFallback, res.Source)
	assert.Empty(t, res.Matched)
}

func TestLocateUsesPadding(t *testing.T) {
	img := blank(1000, 1000)
	res, err := Default().Analyze(img, []TextDetection{{Quad: quad(300, 400, 700, 440), Text: "EuroGirlsEscort.com", Confidence: 0.8}})
	require.NoError(t, err)
	assert.Equal(t, SourceOCR, res.Source)
	assert.Equal(t, image.Rect(40, 388, 960, 452), res.Span)
	assert.Equal(t, image.Rect(38, 386, 962, 454), res.Mask.Extent())
}

func TestLocateIgnoresMalformedUnmatched(t *testing.T) {
	dets := []TextDetection{{Quad: []Point{{1, 1}}, Text: "menu", Confidence: 0.9}}
	res, err := Default().Analyze(blank(100, 100), dets)
	require.NoError(t, err)
	assert.Equal(t, SourceFallback, res.Source)
}

func TestLocateMalformedMatched(t *testing.T) {
	dets := []TextDetection{{Quad: []Point{{1, 1}}, Text: "escort", Confidence: 0.9}}
	_, err := Default().Locate(blank(100, 100), dets)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestLocateZeroArea(t *testing.T) {
	res, err := Default().Analyze(image.NewGray(image.Rect(0, 0, 0, 50)), []TextDetection{{Text: "escort"}})
	require.NoError(t, err)
	assert.Equal(t, SourceEmpty, res.Source)
	assert.Equal(t, 0, res.Mask.Width)
	assert.Equal(t, 50, res.Mask.Height)
	assert.Empty(t, res.Mask.Pix)
}

func TestLocateSameSizeAndDeterministic(t *testing.T) {
	l := Default()
	dets := []TextDetection{
		{Quad: quad(10, 33.7, 90, 47.2), Text: "girls", Confidence: 0.7},
		{Quad: quad(100, 35, 150, 52), Text: "noise", Confidence: 0.2},
	}
	for _, size := range []image.Point{{1, 1}, {3, 200}, {257, 129}, {1024, 768}} {
		img := blank(size.X, size.Y)
		a, err := l.Locate(img, dets)
		require.NoError(t, err)
		b, err := l.Locate(img, dets)
		require.NoError(t, err)
		assert.Equal(t, size.X, a.Width)
		assert.Equal(t, size.Y, a.Height)
		assert.True(t, a.Equal(b), "size %v", size)
	}
}

func TestLocatorCopiesConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Keywords = []string{"acme"}
	l, err := NewLocator(cfg)
	require.NoError(t, err)
	cfg.Keywords[0] = "other"
	assert.Equal(t, []string{"acme"}, l.Config().Keywords)
}
