package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/go-quota-bot/internal/domain"
	"github.com/tbourn/go-quota-bot/internal/repo"
)

func newQuota(t *testing.T) (*QuotaService, *fixedClock) {
	t.Helper()
	clk := newFixedClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	return NewQuotaService(newServiceDB(t), clk.Clock, nil), clk
}

func TestQuota_IncrementThenGet(t *testing.T) {
	q, _ := newQuota(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		require.NoError(t, q.IncrementUsage(ctx, 1, domain.FeatureSpam))
	}
	n, err := q.GetUsage(ctx, 1, domain.FeatureSpam)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = q.GetUsage(ctx, 2, domain.FeatureSpam)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = q.GetUsage(ctx, 1, domain.Feature("boost"))
	assert.ErrorIs(t, err, ErrInvalidFeature)
}

func TestQuota_Reserve_LikeScenario(t *testing.T) {
	q, _ := newQuota(t)
	ctx := context.Background()

	r, err := q.Reserve(ctx, 555, domain.FeatureLike)
	require.NoError(t, err)
	assert.Equal(t, "2025-06-01", r.Period)

	n, _ := q.GetUsage(ctx, 555, domain.FeatureLike)
	assert.Equal(t, 1, n)

	_, err = q.Reserve(ctx, 555, domain.FeatureLike)
	require.ErrorIs(t, err, ErrQuotaExceeded)

	var qe *QuotaExceededError
	require.True(t, errors.As(err, &qe))
	assert.Equal(t, 1, qe.Used)
	assert.Equal(t, 1, qe.Cap)
	assert.Equal(t, time.Date(2025, 6, 2, 4, 0, 0, 0, time.UTC), qe.NextReset)
}

func TestQuota_Release_BelowThresholdCountsNothing(t *testing.T) {
	q, _ := newQuota(t)
	ctx := context.Background()

	r, err := q.Reserve(ctx, 555, domain.FeatureLike)
	require.NoError(t, err)
	require.NoError(t, q.Release(ctx, r))

	n, _ := q.GetUsage(ctx, 555, domain.FeatureLike)
	assert.Zero(t, n)

	// Releasing twice never goes negative.
	require.NoError(t, q.Release(ctx, r))
	n, _ = q.GetUsage(ctx, 555, domain.FeatureLike)
	assert.Zero(t, n)

	// Zero reservation is a no-op.
	require.NoError(t, q.Release(ctx, Reservation{}))
}

func TestQuota_Release_AfterRolloverLeavesNewPeriodAlone(t *testing.T) {
	q, clk := newQuota(t)
	ctx := context.Background()

	r, err := q.Reserve(ctx, 9, domain.FeatureVisit)
	require.NoError(t, err)

	clk.advance(24 * time.Hour)
	_, err = q.Reserve(ctx, 9, domain.FeatureVisit)
	require.NoError(t, err)

	require.NoError(t, q.Release(ctx, r))
	n, _ := q.GetUsage(ctx, 9, domain.FeatureVisit)
	assert.Equal(t, 1, n, "new period counter must be untouched")
}

func TestQuota_RolloverAtResetHour(t *testing.T) {
	q, clk := newQuota(t)
	ctx := context.Background()

	clk.now = time.Date(2025, 6, 2, 3, 59, 0, 0, time.UTC)
	_, err := q.Reserve(ctx, 1, domain.FeatureLike)
	require.NoError(t, err)
	_, err = q.Reserve(ctx, 1, domain.FeatureLike)
	require.ErrorIs(t, err, ErrQuotaExceeded)

	clk.now = time.Date(2025, 6, 2, 4, 0, 0, 0, time.UTC)
	_, err = q.Reserve(ctx, 1, domain.FeatureLike)
	require.NoError(t, err, "04:00 opens a new period")
}

func TestQuota_Reserve_ConcurrentRespectsCap(t *testing.T) {
	db, err := repo.OpenSQLite(t.TempDir() + "/quota.db")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	require.NoError(t, repo.AutoMigrate(db))
	clk := newFixedClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	q := NewQuotaService(db, clk.Clock, nil)

	const attempts = 30
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, over int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := q.Reserve(context.Background(), 77, domain.FeatureVisit)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrQuotaExceeded):
				over++
			default:
				t.Errorf("Reserve: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, ok)
	assert.Equal(t, attempts-20, over)
}

func TestQuota_ResetUser_Idempotent(t *testing.T) {
	q, _ := newQuota(t)
	ctx := context.Background()

	require.NoError(t, q.IncrementUsage(ctx, 3, domain.FeatureSpam))
	require.NoError(t, q.IncrementUsage(ctx, 3, domain.FeatureVisit))

	spam := domain.FeatureSpam
	n, err := q.ResetUser(ctx, 3, &spam, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = q.ResetUser(ctx, 3, &spam, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	n, err = q.ResetUser(ctx, 3, nil, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, _ := q.GetUsage(ctx, 3, domain.FeatureVisit)
	assert.Zero(t, got)

	bad := domain.Feature("nope")
	_, err = q.ResetUser(ctx, 3, &bad, 1)
	assert.ErrorIs(t, err, ErrInvalidFeature)
}

func TestQuota_ResetAll_FeatureScopeLeavesOthers(t *testing.T) {
	q, clk := newQuota(t)
	ctx := context.Background()

	// Yesterday's like row must survive.
	clk.advance(-24 * time.Hour)
	require.NoError(t, q.IncrementUsage(ctx, 1, domain.FeatureLike))
	clk.advance(24 * time.Hour)

	for _, u := range []int64{1, 2} {
		require.NoError(t, q.IncrementUsage(ctx, u, domain.FeatureLike))
		require.NoError(t, q.IncrementUsage(ctx, u, domain.FeatureSpam))
	}

	like := domain.FeatureLike
	n, err := q.ResetAll(ctx, &like, 42)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	for _, u := range []int64{1, 2} {
		l, _ := q.GetUsage(ctx, u, domain.FeatureLike)
		s, _ := q.GetUsage(ctx, u, domain.FeatureSpam)
		assert.Zero(t, l)
		assert.Equal(t, 1, s)
	}
	old, err := repo.GetUsage(ctx, q.DB, 1, domain.FeatureLike, "2025-05-31")
	require.NoError(t, err)
	assert.Equal(t, 1, old)

	// Feature-scoped reset does not stamp the global marker.
	settings := NewSettingsService(q.DB)
	last, err := settings.LastGlobalReset(ctx)
	require.NoError(t, err)
	assert.Nil(t, last)
}

func TestQuota_ResetAll_EverythingStampsGlobalReset(t *testing.T) {
	q, clk := newQuota(t)
	ctx := context.Background()

	require.NoError(t, q.IncrementUsage(ctx, 1, domain.FeatureVisit))
	n, err := q.ResetAll(ctx, nil, 42)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	last, err := NewSettingsService(q.DB).LastGlobalReset(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.True(t, last.Equal(clk.now))
}

func TestQuota_WipeAll(t *testing.T) {
	q, clk := newQuota(t)
	ctx := context.Background()

	require.NoError(t, q.IncrementUsage(ctx, 1, domain.FeatureSpam))
	clk.advance(48 * time.Hour)
	require.NoError(t, q.IncrementUsage(ctx, 1, domain.FeatureSpam))

	n, err := q.WipeAll(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	got, _ := q.GetUsage(ctx, 1, domain.FeatureSpam)
	assert.Zero(t, got)
	old, _ := repo.GetUsage(ctx, q.DB, 1, domain.FeatureSpam, "2025-06-01")
	assert.Zero(t, old)
}

func TestQuota_Remaining(t *testing.T) {
	q, _ := newQuota(t)
	ctx := context.Background()

	require.NoError(t, q.IncrementUsage(ctx, 8, domain.FeatureSpam))
	require.NoError(t, q.IncrementUsage(ctx, 8, domain.FeatureLike))
	require.NoError(t, q.IncrementUsage(ctx, 8, domain.FeatureLike))

	got, err := q.Remaining(ctx, 8)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, FeatureUsage{Feature: domain.FeatureLike, Used: 2, Cap: 1, Remaining: 0}, got[0])
	assert.Equal(t, FeatureUsage{Feature: domain.FeatureSpam, Used: 1, Cap: 15, Remaining: 14}, got[1])
	assert.Equal(t, FeatureUsage{Feature: domain.FeatureVisit, Used: 0, Cap: 20, Remaining: 20}, got[2])
}

func TestQuota_RefillIfAtCap(t *testing.T) {
	q, _ := newQuota(t)
	ctx := context.Background()

	used, ok, err := q.RefillIfAtCap(ctx, 4, domain.FeatureLike, 1)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, used)

	_, err = q.Reserve(ctx, 4, domain.FeatureLike)
	require.NoError(t, err)

	used, ok, err = q.RefillIfAtCap(ctx, 4, domain.FeatureLike, 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, used)

	n, _ := q.GetUsage(ctx, 4, domain.FeatureLike)
	assert.Zero(t, n)
}

func TestQuota_CustomCaps(t *testing.T) {
	clk := newFixedClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	q := NewQuotaService(newServiceDB(t), clk.Clock, domain.Caps{domain.FeatureSpam: 2})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := q.Reserve(ctx, 1, domain.FeatureSpam)
		require.NoError(t, err)
	}
	_, err := q.Reserve(ctx, 1, domain.FeatureSpam)
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	// A feature without a cap is always refused.
	_, err = q.Reserve(ctx, 1, domain.FeatureVisit)
	assert.ErrorIs(t, err, ErrQuotaExceeded)
}
