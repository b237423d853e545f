// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the per-user daily usage counters.
//
// Every mutation is a single SQL statement so concurrent callers serialize
// inside SQLite instead of racing on a read-then-write sequence:
//
//   - IncrementUsage:       INSERT .. ON CONFLICT DO UPDATE SET used = used + 1
//   - IncrementUsageBelow:  same, guarded by used < cap (0 rows when full)
//   - DecrementUsage:       used = used - 1 guarded by used > 0
//   - ResetUsage:           used = 0 for today's matching rows with used > 0
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-quota-bot/internal/domain"
)

const (
	upsertIncrement = `INSERT INTO daily_usages (user_id, command_type, date, used)
VALUES (?, ?, ?, 1)
ON CONFLICT(user_id, command_type, date) DO UPDATE SET used = used + 1`

	upsertIncrementBelow = upsertIncrement + ` WHERE daily_usages.used < ?`
)

// UsageFilter scopes reset operations. Nil fields match everything.
type UsageFilter struct {
	UserID  *int64
	Feature *domain.Feature
}

// GetUsage returns the counter for (userID, feature, date), or 0 when no row
// exists.
func GetUsage(ctx context.Context, db *gorm.DB, userID int64, f domain.Feature, date string) (int, error) {
	var row domain.DailyUsage
	err := db.WithContext(ctx).
		Select("used").
		Where("user_id = ? AND command_type = ? AND date = ?", userID, f, date).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return row.Used, nil
}

// ListUsage returns every counter of userID for date.
func ListUsage(ctx context.Context, db *gorm.DB, userID int64, date string) ([]domain.DailyUsage, error) {
	var rows []domain.DailyUsage
	err := db.WithContext(ctx).
		Where("user_id = ? AND date = ?", userID, date).
		Order("command_type ASC").
		Find(&rows).Error
	return rows, err
}

// IncrementUsage adds one to the counter, creating it at 1 when absent.
func IncrementUsage(ctx context.Context, db *gorm.DB, userID int64, f domain.Feature, date string) error {
	return db.WithContext(ctx).Exec(upsertIncrement, userID, f, date).Error
}

// IncrementUsageBelow adds one to the counter only while it is below limit.
// It reports false when the counter was already at or above limit.
func IncrementUsageBelow(ctx context.Context, db *gorm.DB, userID int64, f domain.Feature, date string, limit int) (bool, error) {
	if limit <= 0 {
		return false, nil
	}
	res := db.WithContext(ctx).Exec(upsertIncrementBelow, userID, f, date, limit)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// DecrementUsage gives back one unit. It never drives the counter below 0
// and reports whether a unit was returned.
func DecrementUsage(ctx context.Context, db *gorm.DB, userID int64, f domain.Feature, date string) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.DailyUsage{}).
		Where("user_id = ? AND command_type = ? AND date = ? AND used > 0", userID, f, date).
		Update("used", gorm.Expr("used - 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ResetUsage zeroes the non-zero counters of date matching filter and stamps
// last_reset/reset_by. Rows already at zero are not counted, so repeating a
// reset reports 0.
func ResetUsage(ctx context.Context, db *gorm.DB, filter UsageFilter, date string, resetBy int64, at time.Time) (int64, error) {
	q := db.WithContext(ctx).
		Model(&domain.DailyUsage{}).
		Where("date = ? AND used > 0", date)
	if filter.UserID != nil {
		q = q.Where("user_id = ?", *filter.UserID)
	}
	if filter.Feature != nil {
		q = q.Where("command_type = ?", *filter.Feature)
	}
	res := q.Updates(map[string]any{
		"used":       0,
		"last_reset": at.UTC(),
		"reset_by":   resetBy,
	})
	return res.RowsAffected, res.Error
}

// ResetUsageAtLimit zeroes one counter only when it equals limit exactly.
func ResetUsageAtLimit(ctx context.Context, db *gorm.DB, userID int64, f domain.Feature, date string, limit int, resetBy int64, at time.Time) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.DailyUsage{}).
		Where("user_id = ? AND command_type = ? AND date = ? AND used = ?", userID, f, date, limit).
		Updates(map[string]any{
			"used":       0,
			"last_reset": at.UTC(),
			"reset_by":   resetBy,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// WipeUsage deletes every usage row for every user and every date.
func WipeUsage(ctx context.Context, db *gorm.DB) (int64, error) {
	res := db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&domain.DailyUsage{})
	return res.RowsAffected, res.Error
}
