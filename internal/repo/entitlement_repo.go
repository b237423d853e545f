// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for group grants.
//
// Per-group consumption lives on the grant row itself: remaining_requests
// counts the units left in the period stored next to it. ConsumeGrant and
// ReleaseGrant are single conditional UPDATEs; a grant whose stored period
// is stale is refilled to requests by the same statement that consumes from
// it.
package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tbourn/go-quota-bot/internal/domain"
)

const (
	consumeGrantSQL = `UPDATE group_entitlements
SET remaining_requests = CASE WHEN period = ? THEN remaining_requests - 1 ELSE requests - 1 END,
    period = ?
WHERE group_id = ? AND feature_type = ? AND requests > 0
  AND (period <> ? OR remaining_requests > 0)`

	releaseGrantSQL = `UPDATE group_entitlements
SET remaining_requests = remaining_requests + 1
WHERE group_id = ? AND feature_type = ? AND period = ? AND remaining_requests < requests`
)

// CreateGrant inserts g and returns ErrDuplicate when the group already has
// a grant for the same feature.
func CreateGrant(ctx context.Context, db *gorm.DB, g *domain.GroupEntitlement) error {
	if err := db.WithContext(ctx).Create(g).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetGrant fetches one grant or ErrNotFound.
func GetGrant(ctx context.Context, db *gorm.DB, groupID string, f domain.Feature) (*domain.GroupEntitlement, error) {
	var g domain.GroupEntitlement
	err := db.WithContext(ctx).
		Where("group_id = ? AND feature_type = ?", groupID, f).
		Take(&g).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// ListGrants returns every grant, newest first.
func ListGrants(ctx context.Context, db *gorm.DB) ([]domain.GroupEntitlement, error) {
	var out []domain.GroupEntitlement
	err := db.WithContext(ctx).
		Order("added_at DESC").
		Order("id DESC").
		Find(&out).Error
	return out, err
}

// ListGroupGrants returns the grants of one group ordered by feature.
func ListGroupGrants(ctx context.Context, db *gorm.DB, groupID string) ([]domain.GroupEntitlement, error) {
	var out []domain.GroupEntitlement
	err := db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("feature_type ASC").
		Find(&out).Error
	return out, err
}

// DeleteGrants removes one feature grant of a group, or all of them when f
// is nil, and returns the number of deleted rows.
func DeleteGrants(ctx context.Context, db *gorm.DB, groupID string, f *domain.Feature) (int64, error) {
	q := db.WithContext(ctx).Where("group_id = ?", groupID)
	if f != nil {
		q = q.Where("feature_type = ?", *f)
	}
	res := q.Delete(&domain.GroupEntitlement{})
	return res.RowsAffected, res.Error
}

// ConsumeGrant takes one unit of the group's allowance for period. It
// reports false when the grant does not exist or its allowance is spent.
func ConsumeGrant(ctx context.Context, db *gorm.DB, groupID string, f domain.Feature, period string) (bool, error) {
	res := db.WithContext(ctx).Exec(consumeGrantSQL, period, period, groupID, f, period)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ReleaseGrant returns one unit taken by ConsumeGrant in the same period.
// Units taken in an earlier period are dropped.
func ReleaseGrant(ctx context.Context, db *gorm.DB, groupID string, f domain.Feature, period string) (bool, error) {
	res := db.WithContext(ctx).Exec(releaseGrantSQL, groupID, f, period)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
