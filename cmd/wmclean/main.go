package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"wmclean/pkg/config"
	"wmclean/pkg/ocr"
	"wmclean/pkg/store"
	"wmclean/process/clean"
)

func main() {
	target := flag.String("target", "target", "directory with images to clean")
	results := flag.String("results", "results", "directory for cleaned images")
	debug := flag.String("debug", "debug", "directory for <name>_mask.png files")
	workers := flag.Int("workers", 0, "parallel workers (0 = NumCPU)")
	watch := flag.Bool("watch", false, "keep watching target for new images")
	masksOnly := flag.Bool("masks-only", false, "write masks, skip inpainting")
	cfgPath := flag.String("config", "", "locator YAML config (overrides WMCLEAN_CONFIG)")
	detections := flag.String("detections", "", "directory with <stem>.json OCR detections")
	metricsAddr := flag.String("metrics-addr", "", "serve prometheus metrics on this address (e.g. :9102)")
	flag.Parse()

	env, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	config.SetupLogging(env)
	if *cfgPath != "" {
		env.LocatorConfig = *cfgPath
	}
	loc, err := env.Locator()
	if err != nil {
		log.Fatal().Err(err).Msg("locator config")
	}

	deps := clean.Deps{
		Locator:   loc,
		Detector:  ocr.NewTesseractDetector(env.OCRLanguages...),
		Inpainter: env.Inpainter(),
	}
	if *metricsAddr != "" {
		var h http.Handler
		deps.Metrics, h = metricsHandler()
		go func() {
			if err := http.ListenAndServe(*metricsAddr, h); err != nil {
				log.Error().Err(err).Str("addr", *metricsAddr).Msg("metrics server stopped")
			}
		}()
	}
	if env.DBDSN != "" {
		st, err := store.Open(env.DBDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("open database")
		}
		deps.Store = st
	}
	r, err := clean.New(clean.Options{
		TargetDir:     *target,
		ResultsDir:    *results,
		DebugDir:      *debug,
		Workers:       *workers,
		MasksOnly:     *masksOnly,
		DetectionsDir: *detections,
	}, deps)
	if err != nil {
		log.Fatal().Err(err).Msg("setup")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sum, err := r.Run(ctx)
	switch {
	case errors.Is(err, clean.ErrNoImages) && !*watch:
		log.Error().Err(err).Msg("nothing to do")
		os.Exit(1)
	case errors.Is(err, clean.ErrNoImages):
	case err != nil && !errors.Is(err, context.Canceled):
		log.Fatal().Err(err).Msg("run failed")
	}
	log.Info().Int("total", sum.Total).Int("ocr", sum.OCR).Int("fallback", sum.Fallback).Int("failed", sum.Failed).Str("run", r.RunID()).Msg("batch done")

	if *watch {
		if err := r.Watch(ctx); err != nil {
			log.Fatal().Err(err).Msg("watch")
		}
	}
	if sum.Failed > 0 {
		os.Exit(1)
	}
}

// metricsHandler registers the runner metrics and serves them on /metrics.
func metricsHandler() (*clean.Metrics, http.Handler) {
	reg := prometheus.NewRegistry()
	m := clean.NewMetrics(reg)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return m, mux
}
