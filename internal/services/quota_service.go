// Package services – QuotaService
//
// QuotaService owns the per-user daily counters. The current period key comes
// from a period.Clock, so every read and write agrees on what "today" is.
//
// Feature handlers take a Reservation before calling out and Release it when
// the outcome must not count. Reserve is one conditional upsert, so two
// concurrent requests from the same user cannot both pass a full counter.
//
// Observability: public methods are OpenTelemetry-instrumented with the user
// id and feature as span attributes.
package services

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-quota-bot/internal/domain"
	"github.com/tbourn/go-quota-bot/internal/period"
	"github.com/tbourn/go-quota-bot/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Reservation is one unit of quota taken by Reserve.
type Reservation struct {
	UserID  int64
	Feature domain.Feature
	Period  string
}

// FeatureUsage is a user's standing for one feature in the current period.
type FeatureUsage struct {
	Feature   domain.Feature `json:"feature"`
	Used      int            `json:"used"`
	Cap       int            `json:"cap"`
	Remaining int            `json:"remaining"`
}

// QuotaService enforces per-user daily caps.
type QuotaService struct {
	DB    *gorm.DB
	Clock *period.Clock
	Caps  domain.Caps
}

// NewQuotaService constructs a QuotaService. Nil caps fall back to the
// defaults.
func NewQuotaService(db *gorm.DB, clock *period.Clock, caps domain.Caps) *QuotaService {
	if caps == nil {
		caps = domain.DefaultCaps()
	}
	return &QuotaService{DB: db, Clock: clock, Caps: caps}
}

func (s *QuotaService) span(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer("services/QuotaService").Start(ctx, name, trace.WithAttributes(attrs...))
}

// Cap returns the daily cap of f.
func (s *QuotaService) Cap(f domain.Feature) int { return s.Caps.Of(f) }

// NextReset returns when the current period ends.
func (s *QuotaService) NextReset() time.Time { return s.Clock.NextReset() }

// GetUsage returns how often userID used f in the current period.
func (s *QuotaService) GetUsage(ctx context.Context, userID int64, f domain.Feature) (int, error) {
	ctx, span := s.span(ctx, "GetUsage", attribute.Int64("user.id", userID), attribute.String("feature", f.String()))
	defer span.End()

	if !f.Valid() {
		return 0, ErrInvalidFeature
	}
	return repo.GetUsage(ctx, s.DB, userID, f, s.Clock.Today())
}

// IncrementUsage records one use of f without checking the cap.
func (s *QuotaService) IncrementUsage(ctx context.Context, userID int64, f domain.Feature) error {
	ctx, span := s.span(ctx, "IncrementUsage", attribute.Int64("user.id", userID), attribute.String("feature", f.String()))
	defer span.End()

	if !f.Valid() {
		return ErrInvalidFeature
	}
	return repo.IncrementUsage(ctx, s.DB, userID, f, s.Clock.Today())
}

// Reserve takes one unit of userID's allowance for f. When the cap is
// reached it returns a *QuotaExceededError and leaves the counter as is.
func (s *QuotaService) Reserve(ctx context.Context, userID int64, f domain.Feature) (Reservation, error) {
	ctx, span := s.span(ctx, "Reserve", attribute.Int64("user.id", userID), attribute.String("feature", f.String()))
	defer span.End()

	if !f.Valid() {
		return Reservation{}, ErrInvalidFeature
	}
	key := s.Clock.Today()
	limit := s.Cap(f)

	ok, err := repo.IncrementUsageBelow(ctx, s.DB, userID, f, key, limit)
	if err != nil {
		return Reservation{}, fmt.Errorf("reserve %s: %w", f, err)
	}
	if !ok {
		used, err := repo.GetUsage(ctx, s.DB, userID, f, key)
		if err != nil {
			return Reservation{}, err
		}
		span.SetAttributes(attribute.Bool("quota.exceeded", true))
		return Reservation{}, &QuotaExceededError{
			Feature:   f,
			Used:      used,
			Cap:       limit,
			NextReset: s.Clock.NextReset(),
		}
	}
	return Reservation{UserID: userID, Feature: f, Period: key}, nil
}

// Release gives back a unit taken by Reserve. A reservation from a period
// that has already rolled over is a no-op against the new period.
func (s *QuotaService) Release(ctx context.Context, r Reservation) error {
	ctx, span := s.span(ctx, "Release", attribute.Int64("user.id", r.UserID), attribute.String("feature", r.Feature.String()))
	defer span.End()

	if r.Period == "" {
		return nil
	}
	_, err := repo.DecrementUsage(ctx, s.DB, r.UserID, r.Feature, r.Period)
	return err
}

// ResetUser zeroes userID's counters of the current period, for one feature
// or all of them when f is nil. It returns the number of counters zeroed.
func (s *QuotaService) ResetUser(ctx context.Context, userID int64, f *domain.Feature, resetBy int64) (int64, error) {
	ctx, span := s.span(ctx, "ResetUser", attribute.Int64("user.id", userID), attribute.Int64("reset.by", resetBy))
	defer span.End()

	if f != nil && !f.Valid() {
		return 0, ErrInvalidFeature
	}
	return repo.ResetUsage(ctx, s.DB, repo.UsageFilter{UserID: &userID, Feature: f}, s.Clock.Today(), resetBy, s.Clock.Current())
}

// ResetAll zeroes every user's counters of the current period. Without a
// feature it also records the time as the last global reset.
func (s *QuotaService) ResetAll(ctx context.Context, f *domain.Feature, resetBy int64) (int64, error) {
	ctx, span := s.span(ctx, "ResetAll", attribute.Int64("reset.by", resetBy))
	defer span.End()

	if f != nil && !f.Valid() {
		return 0, ErrInvalidFeature
	}
	now := s.Clock.Current()
	var n int64
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		n, err = repo.ResetUsage(ctx, tx, repo.UsageFilter{Feature: f}, s.Clock.Key(now), resetBy, now)
		if err != nil {
			return err
		}
		if f == nil {
			return markGlobalReset(ctx, tx, now)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// WipeAll deletes every usage counter of every period.
func (s *QuotaService) WipeAll(ctx context.Context) (int64, error) {
	ctx, span := s.span(ctx, "WipeAll")
	defer span.End()

	return repo.WipeUsage(ctx, s.DB)
}

// Remaining returns userID's standing for every feature.
func (s *QuotaService) Remaining(ctx context.Context, userID int64) ([]FeatureUsage, error) {
	ctx, span := s.span(ctx, "Remaining", attribute.Int64("user.id", userID))
	defer span.End()

	rows, err := repo.ListUsage(ctx, s.DB, userID, s.Clock.Today())
	if err != nil {
		return nil, err
	}
	used := make(map[domain.Feature]int, len(rows))
	for _, r := range rows {
		used[r.CommandType] = r.Used
	}
	out := make([]FeatureUsage, 0, len(domain.Features))
	for _, f := range domain.Features {
		c := s.Cap(f)
		out = append(out, FeatureUsage{
			Feature:   f,
			Used:      used[f],
			Cap:       c,
			Remaining: max(0, c-used[f]),
		})
	}
	return out, nil
}

// RefillIfAtCap zeroes userID's counter for f only when it sits exactly at
// the cap. It returns the counter seen and whether it was refilled.
func (s *QuotaService) RefillIfAtCap(ctx context.Context, userID int64, f domain.Feature, resetBy int64) (int, bool, error) {
	ctx, span := s.span(ctx, "RefillIfAtCap", attribute.Int64("user.id", userID), attribute.String("feature", f.String()))
	defer span.End()

	if !f.Valid() {
		return 0, false, ErrInvalidFeature
	}
	key := s.Clock.Today()
	limit := s.Cap(f)
	used, err := repo.GetUsage(ctx, s.DB, userID, f, key)
	if err != nil {
		return 0, false, err
	}
	if used != limit {
		return used, false, nil
	}
	ok, err := repo.ResetUsageAtLimit(ctx, s.DB, userID, f, key, limit, resetBy, s.Clock.Current())
	if err != nil {
		return used, false, err
	}
	return used, ok, nil
}
