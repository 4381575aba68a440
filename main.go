package main

import (
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"wmclean/pkg/config"
	"wmclean/pkg/ocr"
	"wmclean/pkg/store"
	"wmclean/process/clean"
)

func main() {
	env, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	config.SetupLogging(env)

	// `./wmclean-server migrate` creates the jobs table and exits.
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if env.DBDSN == "" {
			log.Fatal().Msg("DB_DSN is not set")
		}
		st, err := store.Open(env.DBDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("open database")
		}
		if err := st.Migrate(); err != nil {
			log.Fatal().Err(err).Msg("migrate")
		}
		fmt.Println("migration completed")
		return
	}

	srv, err := newServer(env)
	if err != nil {
		log.Fatal().Err(err).Msg("setup")
	}
	r := gin.Default()
	setupRoutes(r, srv, []byte(env.JWTSecret))
	log.Info().Str("addr", env.HTTPAddr).Msg("listening")
	if err := r.Run(env.HTTPAddr); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func newServer(env config.Env) (*server, error) {
	loc, err := env.Locator()
	if err != nil {
		return nil, err
	}
	st := store.Discard
	if env.DBDSN != "" {
		g, err := store.Open(env.DBDSN)
		if err != nil {
			return nil, err
		}
		st = g
	} else {
		log.Warn().Msg("DB_DSN not set; jobs are not persisted")
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return &server{
		locator:   loc,
		detector:  ocr.NewTesseractDetector(env.OCRLanguages...),
		inpainter: env.Inpainter(),
		store:     st,
		metrics:   clean.NewMetrics(reg),
		registry:  reg,
	}, nil
}
