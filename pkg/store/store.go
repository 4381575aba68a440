// Package store persists processing jobs in Postgres through gorm.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"wmclean/models"
)

// ErrNotFound is returned when a job id does not exist.
var ErrNotFound = errors.New("job not found")

// Store records and lists jobs.
type Store interface {
	Record(ctx context.Context, job *models.Job) error
	List(ctx context.Context, limit int) ([]models.Job, error)
	Get(ctx context.Context, id uint) (models.Job, error)
}

// Gorm is a Store backed by a gorm connection.
type Gorm struct {
	db *gorm.DB
}

// Open connects to Postgres with dsn and migrates the jobs table unless
// DB_AUTO_MIGRATE is false/0/no.
func Open(dsn string) (*Gorm, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("empty DSN")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	g := NewGorm(db)
	if shouldMigrate() {
		if err := g.Migrate(); err != nil {
			// permission errors on managed databases are not fatal
			log.Warn().Err(err).Msg("migration warning (jobs)")
		}
	}
	return g, nil
}

// NewGorm wraps an existing connection.
func NewGorm(db *gorm.DB) *Gorm { return &Gorm{db: db} }

func shouldMigrate() bool {
	switch strings.ToLower(os.Getenv("DB_AUTO_MIGRATE")) {
	case "false", "0", "no":
		return false
	}
	return true
}

// Migrate creates or updates the jobs table.
func (g *Gorm) Migrate() error {
	return g.db.AutoMigrate(&models.Job{})
}

// Record inserts job and fills its ID.
func (g *Gorm) Record(ctx context.Context, job *models.Job) error {
	if err := g.db.WithContext(ctx).Create(job).Error; err != nil {
		return fmt.Errorf("record job %s: %w", job.FileName, err)
	}
	return nil
}

// List returns the most recent jobs first.
func (g *Gorm) List(ctx context.Context, limit int) ([]models.Job, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	var jobs []models.Job
	if err := g.db.WithContext(ctx).Order("id desc").Limit(limit).Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

// Get loads one job.
func (g *Gorm) Get(ctx context.Context, id uint) (models.Job, error) {
	var job models.Job
	err := g.db.WithContext(ctx).First(&job, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Job{}, ErrNotFound
	}
	if err != nil {
		return models.Job{}, fmt.Errorf("get job %d: %w", id, err)
	}
	return job, nil
}

// Discard is a Store that keeps nothing; it is used when no database is configured.
var Discard Store = discard{}

type discard struct{}

func (discard) Record(context.Context, *models.Job) error       { return nil }
func (discard) List(context.Context, int) ([]models.Job, error) { return []models.Job{}, nil }
func (discard) Get(context.Context, uint) (models.Job, error)   { return models.Job{}, ErrNotFound }
