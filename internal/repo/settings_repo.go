// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides key/value access to the settings table.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-quota-bot/internal/domain"
)

// GetSetting returns the value stored under key or ErrNotFound.
func GetSetting(ctx context.Context, db *gorm.DB, key string) (string, error) {
	var s domain.Setting
	err := db.WithContext(ctx).Where("key = ?", key).Take(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return s.Value, nil
}

// SetSetting stores value under key, replacing any previous value.
func SetSetting(ctx context.Context, db *gorm.DB, key, value string) error {
	row := domain.Setting{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&row).Error
}

// ListSettings returns every setting ordered by key.
func ListSettings(ctx context.Context, db *gorm.DB) ([]domain.Setting, error) {
	var out []domain.Setting
	err := db.WithContext(ctx).Order("key ASC").Find(&out).Error
	return out, err
}
