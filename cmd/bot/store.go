package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-quota-bot/internal/config"
	"github.com/tbourn/go-quota-bot/internal/domain"
	"github.com/tbourn/go-quota-bot/internal/period"
	"github.com/tbourn/go-quota-bot/internal/repo"
	"github.com/tbourn/go-quota-bot/internal/services"
)

// openStore opens the database, migrates it and seeds default settings.
func openStore(ctx context.Context, cfg config.Config) (*gorm.DB, func(), error) {
	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", cfg.DBPath, err)
	}
	closeDB := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if err := repo.AutoMigrate(db); err != nil {
		closeDB()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	if err := services.NewSettingsService(db).Seed(ctx); err != nil {
		closeDB()
		return nil, nil, fmt.Errorf("seed settings: %w", err)
	}
	log.Debug().Str("path", cfg.DBPath).Msg("database ready")
	return db, closeDB, nil
}

// core is the service layer shared by the bot and the HTTP API.
type core struct {
	clock    *period.Clock
	quota    *services.QuotaService
	grants   *services.EntitlementService
	settings *services.SettingsService
}

func newCore(db *gorm.DB, cfg config.Config) core {
	clock := period.New(cfg.Quota.Location(), cfg.Quota.ResetHour)
	settings := services.NewSettingsService(db)
	caps := domain.Caps{
		domain.FeatureLike:  cfg.Quota.LikeCap,
		domain.FeatureSpam:  cfg.Quota.SpamCap,
		domain.FeatureVisit: cfg.Quota.VisitCap,
	}
	return core{
		clock:    clock,
		quota:    services.NewQuotaService(db, clock, caps),
		grants:   services.NewEntitlementService(db, clock, settings),
		settings: settings,
	}
}
