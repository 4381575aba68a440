package clean

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"wmclean/models"
)

// Metrics counts processed images. A nil *Metrics records nothing.
type Metrics struct {
	images   *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewMetrics registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		images: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wmclean_images_total",
			Help: "Images processed, by mask source and job status.",
		}, []string{"source", "status"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "wmclean_image_duration_seconds",
			Help:    "Time spent on one image, OCR and inpainting included.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
	}
	reg.MustRegister(m.images, m.duration)
	return m
}

// Observe records one finished job.
func (m *Metrics) Observe(job models.Job) {
	if m == nil {
		return
	}
	src := job.MaskSource
	if src == "" {
		src = "none"
	}
	m.images.WithLabelValues(src, job.Status).Inc()
	m.duration.Observe((time.Duration(job.DurationMs) * time.Millisecond).Seconds())
}
