// Package config loads process settings from the environment (and an optional
// .env file) and builds the collaborators they describe.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"wmclean/pkg/inpaint"
	"wmclean/pkg/watermark"
)

// devSecret is only used when JWT_SECRET is unset.
const devSecret = "dev-insecure-secret-change"

// Env is the environment of the server and the batch tools.
type Env struct {
	HTTPAddr       string        `envconfig:"HTTP_ADDR" default:":8081"`
	DBDSN          string        `envconfig:"DB_DSN"`
	JWTSecret      string        `envconfig:"JWT_SECRET"`
	InpaintURL     string        `envconfig:"INPAINT_URL"`
	InpaintTimeout time.Duration `envconfig:"INPAINT_TIMEOUT" default:"2m"`
	InpaintRetries int           `envconfig:"INPAINT_RETRIES" default:"2"`
	Smoothing      int           `envconfig:"INPAINT_SMOOTHING" default:"10"`
	LocatorConfig  string        `envconfig:"WMCLEAN_CONFIG"`
	OCRLanguages   []string      `envconfig:"OCR_LANGUAGES" default:"eng"`
	LogLevel       string        `envconfig:"LOG_LEVEL" default:"info"`
	LogHuman       bool          `envconfig:"LOG_HUMAN"`
}

// Load reads ./.env when present, without overriding variables that are
// already set, then decodes the environment.
func Load() (Env, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Env{}, fmt.Errorf("load .env: %w", err)
	}
	var env Env
	if err := envconfig.Process("", &env); err != nil {
		return Env{}, fmt.Errorf("read environment: %w", err)
	}
	if env.JWTSecret == "" {
		env.JWTSecret = devSecret
	}
	return env, nil
}

// SetupLogging configures the global zerolog logger.
func SetupLogging(env Env) {
	zerolog.TimeFieldFormat = time.RFC3339
	lvl, err := zerolog.ParseLevel(strings.ToLower(env.LogLevel))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	if env.LogHuman {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

// Locator builds the watermark locator from WMCLEAN_CONFIG, or the defaults.
func (e Env) Locator() (*watermark.Locator, error) {
	cfg := watermark.DefaultConfig()
	if e.LocatorConfig != "" {
		var err error
		if cfg, err = watermark.LoadConfig(e.LocatorConfig); err != nil {
			return nil, err
		}
	}
	return watermark.NewLocator(cfg)
}

// Inpainter builds the HTTP inpainter when INPAINT_URL is set, the diffusion fill otherwise.
func (e Env) Inpainter() inpaint.Inpainter {
	return inpaint.New(inpaint.Config{
		URL:       e.InpaintURL,
		Timeout:   e.InpaintTimeout,
		Retries:   e.InpaintRetries,
		RetryWait: 500 * time.Millisecond,
		Smoothing: e.Smoothing,
	})
}
