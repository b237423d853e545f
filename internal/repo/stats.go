// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries used by the
// stats command and the admin API.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-quota-bot/internal/domain"
)

// CountDistinctUsers returns how many users have a usage row on any date.
func CountDistinctUsers(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.DailyUsage{}).
		Distinct("user_id").
		Count(&n).Error
	return n, err
}

// CountUsersOn returns how many users have a non-zero counter on date.
func CountUsersOn(ctx context.Context, db *gorm.DB, date string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.DailyUsage{}).
		Where("date = ? AND used > 0", date).
		Distinct("user_id").
		Count(&n).Error
	return n, err
}

// SumUsage returns the total of all counters on date per feature.
func SumUsage(ctx context.Context, db *gorm.DB, date string) (map[domain.Feature]int64, error) {
	var rows []struct {
		CommandType domain.Feature
		Total       int64
	}
	err := db.WithContext(ctx).
		Model(&domain.DailyUsage{}).
		Select("command_type, SUM(used) AS total").
		Where("date = ?", date).
		Group("command_type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[domain.Feature]int64, len(rows))
	for _, r := range rows {
		out[r.CommandType] = r.Total
	}
	return out, nil
}
