// Package clean runs the watermark pipeline over a directory of images:
// OCR, mask, debug mask file, inpainting, result file and job record.
package clean

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/webp"

	"wmclean/models"
	"wmclean/pkg/inpaint"
	"wmclean/pkg/ocr"
	"wmclean/pkg/store"
	"wmclean/pkg/watermark"
)

// ErrNoImages is returned by Run when the target directory holds no supported image.
var ErrNoImages = errors.New("no images found")

// Options are the directories and switches of a run.
type Options struct {
	TargetDir  string
	ResultsDir string
	DebugDir   string
	// Workers defaults to NumCPU.
	Workers int
	// MasksOnly writes debug masks and skips inpainting.
	MasksOnly bool
	// DetectionsDir holds optional <stem>.json detection files that replace
	// OCR for the matching image.
	DetectionsDir string
}

// Deps are the collaborators of a Runner. Nil fields get defaults: the default
// locator, Tesseract, the diffusion fill and no persistence.
type Deps struct {
	Locator   *watermark.Locator
	Detector  ocr.Detector
	Inpainter inpaint.Inpainter
	Store     store.Store
	Metrics   *Metrics
}

// Summary counts the outcomes of a run.
type Summary struct {
	Total    int
	OCR      int
	Fallback int
	Failed   int
}

func (s *Summary) add(job models.Job) {
	s.Total++
	switch {
	case job.Status == models.JobFailed:
		s.Failed++
	case job.MaskSource == string(watermark.SourceOCR):
		s.OCR++
	case job.MaskSource == string(watermark.SourceFallback):
		s.Fallback++
	}
}

// Runner processes images. It is safe to call ProcessFile concurrently.
type Runner struct {
	opts  Options
	deps  Deps
	runID string

	mu   sync.Mutex
	seen map[string]struct{}
}

// New validates opts and fills default dependencies.
func New(opts Options, deps Deps) (*Runner, error) {
	if opts.TargetDir == "" {
		return nil, fmt.Errorf("target dir required")
	}
	if opts.ResultsDir == "" {
		opts.ResultsDir = filepath.Join(filepath.Dir(opts.TargetDir), "results")
	}
	if opts.DebugDir == "" {
		opts.DebugDir = filepath.Join(filepath.Dir(opts.TargetDir), "debug")
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if deps.Locator == nil {
		deps.Locator = watermark.Default()
	}
	if deps.Detector == nil {
		deps.Detector = ocr.NewTesseractDetector()
	}
	if deps.Inpainter == nil {
		deps.Inpainter = &inpaint.DiffusionInpainter{Smoothing: 10}
	}
	if deps.Store == nil {
		deps.Store = store.Discard
	}
	return &Runner{opts: opts, deps: deps, runID: uuid.NewString(), seen: map[string]struct{}{}}, nil
}

// RunID identifies the jobs recorded by this runner.
func (r *Runner) RunID() string { return r.runID }

func (r *Runner) ensureDirs() error {
	for _, d := range []string{r.opts.ResultsDir, r.opts.DebugDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", d, err)
		}
	}
	return nil
}

// Run processes every supported image in the target directory once.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	files, err := listImageFiles(r.opts.TargetDir)
	if err != nil {
		return Summary{}, fmt.Errorf("scan %s: %w", r.opts.TargetDir, err)
	}
	if len(files) == 0 {
		return Summary{}, fmt.Errorf("%w in %s", ErrNoImages, r.opts.TargetDir)
	}
	if err := r.ensureDirs(); err != nil {
		return Summary{}, err
	}
	log.Info().Str("dir", r.opts.TargetDir).Int("images", len(files)).Int("workers", r.opts.Workers).Str("run", r.runID).Msg("processing")

	fileCh := make(chan string)
	go func() {
		defer close(fileCh)
		for _, f := range files {
			select {
			case fileCh <- f:
			case <-ctx.Done():
				return
			}
		}
	}()
	sum := r.runWorkerPool(ctx, fileCh)
	return sum, ctx.Err()
}

// runWorkerPool drains fileCh with the configured number of workers.
func (r *Runner) runWorkerPool(ctx context.Context, fileCh <-chan string) Summary {
	var (
		mu  sync.Mutex
		sum Summary
		wg  sync.WaitGroup
	)
	for i := 0; i < r.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for name := range fileCh {
				job := r.ProcessFile(ctx, name)
				mu.Lock()
				sum.add(job)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return sum
}

// ProcessFile runs the pipeline for one file of the target directory and
// records the job. Failures are logged and reflected in the returned job.
func (r *Runner) ProcessFile(ctx context.Context, name string) models.Job {
	start := time.Now()
	r.markSeen(name)
	job := models.Job{RunID: r.runID, FileName: name}
	if err := r.process(ctx, name, &job); err != nil {
		job.Status = models.JobFailed
		job.Error = models.Truncate(err.Error(), 512)
		log.Error().Err(err).Str("file", name).Msg("processing failed")
	}
	job.DurationMs = time.Since(start).Milliseconds()
	if err := r.deps.Store.Record(ctx, &job); err != nil {
		log.Warn().Err(err).Str("file", name).Msg("job not recorded")
	}
	r.deps.Metrics.Observe(job)
	return job
}

func (r *Runner) markSeen(name string) {
	r.mu.Lock()
	r.seen[name] = struct{}{}
	r.mu.Unlock()
}

func (r *Runner) processed(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.seen[name]
	return ok
}

func (r *Runner) process(ctx context.Context, name string, job *models.Job) error {
	img, err := imaging.Open(filepath.Join(r.opts.TargetDir, name), imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}
	job.Width, job.Height = img.Bounds().Dx(), img.Bounds().Dy()

	dets, err := r.detect(ctx, name, img)
	if err != nil {
		return fmt.Errorf("detect text: %w", err)
	}
	job.Detections = len(dets)
	r.logDetections(name, dets)

	res, err := r.deps.Locator.Analyze(img, dets)
	if err != nil {
		return err
	}
	job.MaskSource = string(res.Source)
	job.Matched = len(res.Matched)
	job.SpanX0, job.SpanY0, job.SpanX1, job.SpanY1 = res.Span.Min.X, res.Span.Min.Y, res.Span.Max.X, res.Span.Max.Y
	switch res.Source {
	case watermark.SourceOCR:
		log.Info().Str("file", name).Int("matched", len(res.Matched)).Msg("watermark regions found via OCR")
	case watermark.SourceFallback:
		log.Info().Str("file", name).Msg("OCR didn't find watermark, using fallback mask")
	}

	job.MaskPath = filepath.Join(r.opts.DebugDir, maskName(name))
	if err := imaging.Save(res.Mask.Gray(), job.MaskPath); err != nil {
		return fmt.Errorf("save debug mask: %w", err)
	}
	log.Debug().Str("file", name).Str("mask", job.MaskPath).Msg("debug mask saved")

	if r.opts.MasksOnly {
		job.Status = models.JobMasked
		return nil
	}
	out, err := r.deps.Inpainter.Inpaint(ctx, img, res.Mask)
	if err != nil {
		return fmt.Errorf("inpaint: %w", err)
	}
	job.ResultPath = filepath.Join(r.opts.ResultsDir, resultName(name))
	if err := imaging.Save(out, job.ResultPath); err != nil {
		return fmt.Errorf("save result: %w", err)
	}
	job.Status = models.JobDone
	log.Info().Str("file", name).Str("result", job.ResultPath).Msg("saved")
	return nil
}

// detect prefers a sidecar detections file over running OCR.
func (r *Runner) detect(ctx context.Context, name string, img image.Image) ([]watermark.TextDetection, error) {
	if r.opts.DetectionsDir != "" {
		p := filepath.Join(r.opts.DetectionsDir, strings.TrimSuffix(name, filepath.Ext(name))+".json")
		if _, err := os.Stat(p); err == nil {
			return ocr.LoadDetections(p)
		}
	}
	return r.deps.Detector.Detect(ctx, img)
}

func (r *Runner) logDetections(name string, dets []watermark.TextDetection) {
	log.Debug().Str("file", name).Int("detections", len(dets)).Str("texts", ocr.Describe(dets)).Msg("OCR text regions")
	for _, d := range dets {
		marked := len(r.deps.Locator.Classify([]watermark.TextDetection{d})) == 1
		log.Debug().Str("file", name).Str("text", d.Text).Float64("conf", d.Confidence).Bool("watermark", marked).Msg("ocr region")
	}
}
