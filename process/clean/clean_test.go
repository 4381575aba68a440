package clean

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wmclean/models"
	"wmclean/pkg/watermark"
)

// fakeDetector answers per image width so tests can steer the OCR path.
type fakeDetector struct {
	byWidth map[int][]watermark.TextDetection
	fail    bool
}

func (f fakeDetector) Detect(_ context.Context, img image.Image) ([]watermark.TextDetection, error) {
	if f.fail {
		return nil, errors.New("tesseract exploded")
	}
	return f.byWidth[img.Bounds().Dx()], nil
}

type memStore struct {
	mu   sync.Mutex
	jobs []models.Job
}

func (m *memStore) Record(_ context.Context, j *models.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j.ID = uint(len(m.jobs) + 1)
	m.jobs = append(m.jobs, *j)
	return nil
}

func (m *memStore) List(context.Context, int) ([]models.Job, error) { return m.jobs, nil }

func (m *memStore) Get(_ context.Context, id uint) (models.Job, error) {
	return m.jobs[id-1], nil
}

func (m *memStore) byFile() map[string]models.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]models.Job{}
	for _, j := range m.jobs {
		out[j.FileName] = j
	}
	return out
}

func writeImage(t *testing.T, path string, w, h int) {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{30, 60, 90, 255})
	require.NoError(t, imaging.Save(img, path))
}

func setup(t *testing.T) (target, results, debug string) {
	t.Helper()
	base := t.TempDir()
	target = filepath.Join(base, "target")
	require.NoError(t, os.MkdirAll(target, 0o755))
	return target, filepath.Join(base, "results"), filepath.Join(base, "debug")
}

func TestRunProcessesDirectory(t *testing.T) {
	target, results, debug := setup(t)
	writeImage(t, filepath.Join(target, "a.png"), 200, 100)
	writeImage(t, filepath.Join(target, "b.JPG"), 120, 80)
	require.NoError(t, os.WriteFile(filepath.Join(target, "notes.txt"), []byte("x"), 0o644))

	det := fakeDetector{byWidth: map[int][]watermark.TextDetection{
		200: {{Quad: []watermark.Point{{X: 50, Y: 40}, {X: 150, Y: 40}, {X: 150, Y: 50}, {X: 50, Y: 50}}, Text: "escort.com", Confidence: 0.9}},
	}}
	st := &memStore{}
	reg := prometheus.NewRegistry()
	r, err := New(Options{TargetDir: target, ResultsDir: results, DebugDir: debug, Workers: 2},
		Deps{Detector: det, Store: st, Metrics: NewMetrics(reg)})
	require.NoError(t, err)

	sum, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{Total: 2, OCR: 1, Fallback: 1}, sum)

	jobs := st.byFile()
	require.Len(t, jobs, 2)
	a := jobs["a.png"]
	assert.Equal(t, models.JobDone, a.Status)
	assert.Equal(t, "ocr", a.MaskSource)
	assert.Equal(t, 1, a.Matched)
	assert.Equal(t, [4]int{8, 28, 192, 62}, [4]int{a.SpanX0, a.SpanY0, a.SpanX1, a.SpanY1})
	assert.Equal(t, "fallback", jobs["b.JPG"].MaskSource)
	assert.Equal(t, r.RunID(), a.RunID)

	mask, err := imaging.Open(filepath.Join(debug, "a_mask.png"))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 200, 100), mask.Bounds())
	m := watermark.MaskFromImage(mask)
	assert.True(t, m.Marked(100, 45))
	assert.False(t, m.Marked(100, 80))

	assert.FileExists(t, filepath.Join(results, "a.png"))
	assert.FileExists(t, filepath.Join(results, "b.JPG"))
	assert.FileExists(t, filepath.Join(debug, "b_mask.png"))
	assert.NoFileExists(t, filepath.Join(debug, "notes_mask.png"))

	assert.Equal(t, 1.0, testutil.ToFloat64(r.deps.Metrics.images.WithLabelValues("ocr", models.JobDone)))
}

func TestRunNoImages(t *testing.T) {
	target, results, debug := setup(t)
	r, err := New(Options{TargetDir: target, ResultsDir: results, DebugDir: debug}, Deps{Detector: fakeDetector{}})
	require.NoError(t, err)
	_, err = r.Run(context.Background())
	assert.ErrorIs(t, err, ErrNoImages)
}

func TestRunKeepsGoingOnFailure(t *testing.T) {
	target, results, debug := setup(t)
	writeImage(t, filepath.Join(target, "a.png"), 40, 40)
	require.NoError(t, os.WriteFile(filepath.Join(target, "broken.png"), []byte("not a png"), 0o644))
	st := &memStore{}
	r, err := New(Options{TargetDir: target, ResultsDir: results, DebugDir: debug, Workers: 1},
		Deps{Detector: fakeDetector{}, Store: st})
	require.NoError(t, err)

	sum, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Total)
	assert.Equal(t, 1, sum.Failed)
	broken := st.byFile()["broken.png"]
	assert.Equal(t, models.JobFailed, broken.Status)
	assert.Contains(t, broken.Error, "open image")
}

func TestProcessFileDetectorError(t *testing.T) {
	target, results, debug := setup(t)
	writeImage(t, filepath.Join(target, "a.png"), 40, 40)
	r, err := New(Options{TargetDir: target, ResultsDir: results, DebugDir: debug}, Deps{Detector: fakeDetector{fail: true}})
	require.NoError(t, err)
	job := r.ProcessFile(context.Background(), "a.png")
	assert.Equal(t, models.JobFailed, job.Status)
	assert.Contains(t, job.Error, "tesseract exploded")
}

func TestMasksOnlyAndSidecarDetections(t *testing.T) {
	target, results, debug := setup(t)
	writeImage(t, filepath.Join(target, "photo.png"), 100, 100)
	side := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(side, "photo.json"),
		[]byte(`[[[[10,20],[90,20],[90,30],[10,30]], "girls", 0.95]]`), 0o644))

	r, err := New(Options{TargetDir: target, ResultsDir: results, DebugDir: debug, MasksOnly: true, DetectionsDir: side},
		Deps{Detector: fakeDetector{fail: true}})
	require.NoError(t, err)
	require.NoError(t, r.ensureDirs())

	job := r.ProcessFile(context.Background(), "photo.png")
	assert.Equal(t, models.JobMasked, job.Status)
	assert.Equal(t, "ocr", job.MaskSource)
	assert.Equal(t, 8, job.SpanY0)
	assert.Equal(t, 42, job.SpanY1)
	assert.FileExists(t, filepath.Join(debug, "photo_mask.png"))
	assert.NoFileExists(t, filepath.Join(results, "photo.png"))
}

func TestWatchProcessesNewFiles(t *testing.T) {
	target, results, debug := setup(t)
	r, err := New(Options{TargetDir: target, ResultsDir: results, DebugDir: debug, Workers: 1}, Deps{Detector: fakeDetector{}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- r.Watch(ctx) }()
	defer func() {
		cancel()
		assert.NoError(t, <-errCh)
	}()

	// give the watcher time to register before the file appears
	time.Sleep(100 * time.Millisecond)
	writeImage(t, filepath.Join(target, "new.png"), 50, 50)

	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(results, "new.png"))
		return err == nil
	}, 10*time.Second, 50*time.Millisecond)
}

func TestWatchPicksUpFilesAddedAfterRun(t *testing.T) {
	target, results, debug := setup(t)
	writeImage(t, filepath.Join(target, "first.png"), 40, 40)
	st := &memStore{}
	r, err := New(Options{TargetDir: target, ResultsDir: results, DebugDir: debug, Workers: 1}, Deps{Detector: fakeDetector{}, Store: st})
	require.NoError(t, err)

	sum, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, sum.Total)

	// lands before the watcher is registered
	writeImage(t, filepath.Join(target, "second.png"), 40, 40)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- r.Watch(ctx) }()

	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(results, "second.png"))
		return err == nil
	}, 10*time.Second, 50*time.Millisecond)
	cancel()
	require.NoError(t, <-errCh)

	st.mu.Lock()
	defer st.mu.Unlock()
	names := map[string]int{}
	for _, j := range st.jobs {
		names[j.FileName]++
	}
	assert.Equal(t, map[string]int{"first.png": 1, "second.png": 1}, names)
}
