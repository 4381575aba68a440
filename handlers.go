package main

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/webp"

	"wmclean/models"
	"wmclean/pkg/auth"
	"wmclean/pkg/inpaint"
	"wmclean/pkg/ocr"
	"wmclean/pkg/store"
	"wmclean/pkg/watermark"
	"wmclean/process/clean"
)

const maxUpload = 20 << 20

var errTooLarge = errors.New("file too large (max 20MB)")

type server struct {
	locator   *watermark.Locator
	detector  ocr.Detector
	inpainter inpaint.Inpainter
	store     store.Store
	metrics   *clean.Metrics
	registry  *prometheus.Registry
}

func setupRoutes(r *gin.Engine, s *server, secret []byte) {
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if s.registry != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
	}
	authGroup := r.Group("")
	authGroup.Use(auth.Middleware(secret))
	authGroup.POST("/locate", s.locateHandler)
	authGroup.POST("/clean", s.cleanHandler)
	authGroup.GET("/jobs", s.listJobsHandler)
	authGroup.GET("/jobs/:id", s.getJobHandler)
}

// upload is a decoded image from the "file" form field.
type upload struct {
	name string
	img  image.Image
}

// readUpload answers the request itself on failure and returns ok=false.
func readUpload(c *gin.Context) (upload, bool) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file missing"})
		return upload{}, false
	}
	if fh.Size > maxUpload {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": errTooLarge.Error()})
		return upload{}, false
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read file"})
		return upload{}, false
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxUpload+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read file"})
		return upload{}, false
	}
	if len(data) > maxUpload {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": errTooLarge.Error()})
		return upload{}, false
	}
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "not an image: " + mt.String()})
		return upload{}, false
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot decode image"})
		return upload{}, false
	}
	return upload{name: fh.Filename, img: img}, true
}

// detections uses the "detections" form field when present, OCR otherwise.
func (s *server) detections(c *gin.Context, img image.Image) ([]watermark.TextDetection, error) {
	if raw := strings.TrimSpace(c.PostForm("detections")); raw != "" {
		return ocr.ParseDetections([]byte(raw))
	}
	return s.detector.Detect(c.Request.Context(), img)
}

func writePNG(c *gin.Context, img image.Image) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "encode failed"})
		return
	}
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

func spanJSON(r image.Rectangle) gin.H {
	return gin.H{"x0": r.Min.X, "y0": r.Min.Y, "x1": r.Max.X, "y1": r.Max.Y}
}

// locateHandler returns the watermark mask as PNG, or its description with format=json.
func (s *server) locateHandler(c *gin.Context) {
	up, ok := readUpload(c)
	if !ok {
		return
	}
	dets, err := s.detections(c, up.img)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	res, err := s.locator.Analyze(up.img, dets)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.Header("X-Mask-Source", string(res.Source))
	if c.DefaultPostForm("format", c.Query("format")) == "json" {
		c.JSON(http.StatusOK, gin.H{
			"width":      res.Mask.Width,
			"height":     res.Mask.Height,
			"source":     res.Source,
			"detections": len(dets),
			"matched":    res.Matched,
			"span":       spanJSON(res.Span),
			"marked":     res.Mask.Count(),
		})
		return
	}
	writePNG(c, res.Mask.Gray())
}

// cleanHandler removes the watermark and returns the restored image as PNG.
func (s *server) cleanHandler(c *gin.Context) {
	up, ok := readUpload(c)
	if !ok {
		return
	}
	start := time.Now()
	b := up.img.Bounds()
	job := models.Job{RunID: uuid.NewString(), FileName: models.Truncate(up.name, 255), Width: b.Dx(), Height: b.Dy()}
	out, status, err := s.clean(c, up.img, &job)
	job.DurationMs = time.Since(start).Milliseconds()
	if err != nil {
		job.Status = models.JobFailed
		job.Error = models.Truncate(err.Error(), 512)
	} else {
		job.Status = models.JobDone
	}
	if rerr := s.store.Record(c.Request.Context(), &job); rerr != nil {
		log.Warn().Err(rerr).Str("file", up.name).Msg("job not recorded")
	}
	s.metrics.Observe(job)
	if err != nil {
		log.Error().Err(err).Str("file", up.name).Msg("clean failed")
		c.JSON(status, gin.H{"error": err.Error(), "job_id": job.ID})
		return
	}
	c.Header("X-Mask-Source", job.MaskSource)
	c.Header("X-Job-ID", strconv.FormatUint(uint64(job.ID), 10))
	writePNG(c, out)
}

func (s *server) clean(c *gin.Context, img image.Image, job *models.Job) (image.Image, int, error) {
	dets, err := s.detections(c, img)
	if err != nil {
		return nil, http.StatusUnprocessableEntity, fmt.Errorf("detect text: %w", err)
	}
	job.Detections = len(dets)
	res, err := s.locator.Analyze(img, dets)
	if err != nil {
		return nil, http.StatusUnprocessableEntity, err
	}
	job.MaskSource = string(res.Source)
	job.Matched = len(res.Matched)
	job.SpanX0, job.SpanY0, job.SpanX1, job.SpanY1 = res.Span.Min.X, res.Span.Min.Y, res.Span.Max.X, res.Span.Max.Y
	out, err := s.inpainter.Inpaint(c.Request.Context(), img, res.Mask)
	if err != nil {
		return nil, http.StatusBadGateway, fmt.Errorf("inpaint: %w", err)
	}
	return out, http.StatusOK, nil
}

// listJobsHandler returns the last 100 jobs.
func (s *server) listJobsHandler(c *gin.Context) {
	jobs, err := s.store.List(c.Request.Context(), 100)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, jobs)
}

func (s *server) getJobHandler(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	job, err := s.store.Get(c.Request.Context(), uint(id))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, job)
}
