// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file records processed Telegram update ids so webhook
// redeliveries are recognized.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-quota-bot/internal/domain"
)

// MarkUpdateProcessed records updateID and returns ErrDuplicate when it was
// already recorded.
func MarkUpdateProcessed(ctx context.Context, db *gorm.DB, updateID, chatID int64, ttl time.Duration) error {
	now := time.Now().UTC()
	rec := &domain.ProcessedUpdate{
		UpdateID:  updateID,
		ChatID:    chatID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// PurgeProcessedUpdates deletes records that expired before now.
func PurgeProcessedUpdates(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("expires_at <= ?", now.UTC()).
		Delete(&domain.ProcessedUpdate{})
	return res.RowsAffected, res.Error
}
