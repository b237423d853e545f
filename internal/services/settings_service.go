// Package services – SettingsService
//
// SettingsService exposes the settings table through typed accessors so
// callers never compare raw strings. Missing keys read as their defaults.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-quota-bot/internal/domain"
	"github.com/tbourn/go-quota-bot/internal/repo"
)

// SettingsService reads and writes process-wide settings.
type SettingsService struct {
	DB *gorm.DB
}

// NewSettingsService constructs a SettingsService.
func NewSettingsService(db *gorm.DB) *SettingsService {
	return &SettingsService{DB: db}
}

// Seed inserts the default settings that are not stored yet.
func (s *SettingsService) Seed(ctx context.Context) error {
	return repo.SeedSettings(ctx, s.DB, domain.DefaultSettings())
}

// Maintenance reports whether maintenance mode is on.
func (s *SettingsService) Maintenance(ctx context.Context) (bool, error) {
	v, err := s.get(ctx, domain.SettingMaintenance, "0")
	if err != nil {
		return false, err
	}
	return v == "1", nil
}

// SetMaintenance turns maintenance mode on or off.
func (s *SettingsService) SetMaintenance(ctx context.Context, on bool) error {
	v := "0"
	if on {
		v = "1"
	}
	return repo.SetSetting(ctx, s.DB, domain.SettingMaintenance, v)
}

// Footer returns the footer appended to profile lookups.
func (s *SettingsService) Footer(ctx context.Context) (string, error) {
	return s.get(ctx, domain.SettingFooter, domain.DefaultFooter)
}

// SetFooter replaces the footer. Blank text is rejected.
func (s *SettingsService) SetFooter(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return invalid("footer", "Footer text must not be empty.")
	}
	return repo.SetSetting(ctx, s.DB, domain.SettingFooter, text)
}

// LastGlobalReset returns when every counter was last reset, or nil.
func (s *SettingsService) LastGlobalReset(ctx context.Context) (*time.Time, error) {
	v, err := s.get(ctx, domain.SettingLastGlobalReset, "")
	if err != nil || v == "" {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		log.Warn().Err(err).Str("value", v).Msg("settings: unreadable last_global_reset")
		return nil, nil
	}
	return &t, nil
}

// MarkGlobalReset stores at as the last global reset.
func (s *SettingsService) MarkGlobalReset(ctx context.Context, at time.Time) error {
	return markGlobalReset(ctx, s.DB, at)
}

// All returns every stored setting.
func (s *SettingsService) All(ctx context.Context) ([]domain.Setting, error) {
	return repo.ListSettings(ctx, s.DB)
}

func (s *SettingsService) get(ctx context.Context, key, def string) (string, error) {
	v, err := repo.GetSetting(ctx, s.DB, key)
	if errors.Is(err, repo.ErrNotFound) {
		return def, nil
	}
	return v, err
}

func markGlobalReset(ctx context.Context, db *gorm.DB, at time.Time) error {
	return repo.SetSetting(ctx, db, domain.SettingLastGlobalReset, at.UTC().Format(time.RFC3339))
}
