package cli

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-donation-tracker/internal/config"
	"github.com/tbourn/go-donation-tracker/internal/domain"
	"github.com/tbourn/go-donation-tracker/internal/export"
	"github.com/tbourn/go-donation-tracker/internal/i18n"
	"github.com/tbourn/go-donation-tracker/internal/live"
	"github.com/tbourn/go-donation-tracker/internal/repo"
)

// openStore opens and migrates the configured database.
func openStore(cfg config.Config) (*gorm.DB, error) {
	db, err := repo.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.DBDriver, err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

func closeStore(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// newHub returns a snapshot hub reading the whole collection from db.
func newHub(db *gorm.DB) *live.Hub {
	return live.NewHub(func(ctx context.Context) ([]domain.Donation, error) {
		return repo.ListDonations(ctx, db)
	})
}

// newExporter builds the receipt exporter, archiving to S3 when a bucket is
// configured.
func newExporter(ctx context.Context, cfg config.Config) (*export.Exporter, error) {
	r, err := export.NewRasterizer(cfg.Receipt.FontPath)
	if err != nil {
		return nil, err
	}
	var archiver export.Archiver
	if cfg.S3.Bucket != "" {
		a, err := export.NewS3Archiver(ctx, export.S3Options{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Prefix:    cfg.S3.Prefix,
		})
		if err != nil {
			return nil, err
		}
		archiver = a
		log.Info().Str("bucket", cfg.S3.Bucket).Msg("receipt archive enabled")
	}
	return export.NewExporter(r, cfg.Receipt.Scale, archiver), nil
}

func catalog(cfg config.Config) *i18n.Catalog {
	return i18n.NewCatalog(map[i18n.Locale]string{
		i18n.Arabic:  cfg.Receipt.OrgNameAR,
		i18n.English: cfg.Receipt.OrgNameEN,
	})
}

// localeOr parses s, falling back to the configured default.
func localeOr(s string, cfg config.Config) i18n.Locale {
	if l, ok := i18n.ParseLocale(s); ok {
		return l
	}
	if l, ok := i18n.ParseLocale(cfg.DefaultLocale); ok {
		return l
	}
	return i18n.Arabic
}
