// Package services – EntitlementService
//
// EntitlementService manages group grants: time-boxed, capped permission for
// one group to use one feature. Grants are validated with validator/v10
// before any write. Lapsed grants stay stored and are only reported as
// expired.
//
// Per-group consumption is tracked on the grant row for the current period
// (see repo.ConsumeGrant); Consume and ReleaseUnit mirror QuotaService's
// Reserve and Release.
package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"github.com/tbourn/go-quota-bot/internal/domain"
	"github.com/tbourn/go-quota-bot/internal/period"
	"github.com/tbourn/go-quota-bot/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// GrantInput is the raw input of AddGrant.
type GrantInput struct {
	GroupID  string `validate:"required,groupid"`
	Feature  string `validate:"required,feature"`
	Requests int    `validate:"gt=0"`
	Days     int    `validate:"gt=0"`
}

// GrantStatus is a grant together with its standing at a point in time.
type GrantStatus struct {
	Grant        domain.GroupEntitlement `json:"grant"`
	ExpiresAt    time.Time               `json:"expires_at"`
	Expired      bool                    `json:"expired"`
	DaysLeft     int                     `json:"days_left"`
	UsedToday    int                     `json:"used_today"`
	UsagePercent float64                 `json:"usage_percent"`
}

// Stats is the aggregate view shown by the stats command.
type Stats struct {
	TotalGrants   int           `json:"total_grants"`
	ActiveGrants  int           `json:"active_grants"`
	DistinctUsers int64         `json:"distinct_users"`
	TotalUsed     int           `json:"total_used"`
	TotalCap      int           `json:"total_cap"`
	Maintenance   bool          `json:"maintenance"`
	Grants        []GrantStatus `json:"grants"`
}

// GroupUnit is one unit of a group's allowance taken by Consume.
type GroupUnit struct {
	GroupID string
	Feature domain.Feature
	Period  string
}

// EntitlementService manages group grants.
type EntitlementService struct {
	DB       *gorm.DB
	Clock    *period.Clock
	Settings *SettingsService

	validate *validator.Validate
}

// NewEntitlementService constructs an EntitlementService.
func NewEntitlementService(db *gorm.DB, clock *period.Clock, settings *SettingsService) *EntitlementService {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("groupid", func(fl validator.FieldLevel) bool {
		n, err := strconv.ParseInt(fl.Field().String(), 10, 64)
		return err == nil && n < 0
	})
	_ = v.RegisterValidation("feature", func(fl validator.FieldLevel) bool {
		return domain.Feature(fl.Field().String()).Valid()
	})
	return &EntitlementService{DB: db, Clock: clock, Settings: settings, validate: v}
}

func (s *EntitlementService) span(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer("services/EntitlementService").Start(ctx, name, trace.WithAttributes(attrs...))
}

// AddGrant validates in and stores a new grant with a full allowance.
// Invalid input returns a *ValidationError; an existing grant for the same
// group and feature returns ErrGrantExists. Neither writes anything.
func (s *EntitlementService) AddGrant(ctx context.Context, in GrantInput) (*domain.GroupEntitlement, error) {
	ctx, span := s.span(ctx, "AddGrant",
		attribute.String("group.id", in.GroupID),
		attribute.String("feature", in.Feature),
	)
	defer span.End()

	if err := s.validate.Struct(in); err != nil {
		return nil, grantValidationError(err)
	}
	in.GroupID = canonicalGroupID(in.GroupID)

	now := s.Clock.Current().UTC()
	g := &domain.GroupEntitlement{
		GroupID:           in.GroupID,
		FeatureType:       domain.Feature(in.Feature),
		Requests:          in.Requests,
		RemainingRequests: in.Requests,
		Period:            s.Clock.Key(now),
		Days:              in.Days,
		AddedAt:           now,
		ExpiresAt:         now.AddDate(0, 0, in.Days),
	}
	if err := repo.CreateGrant(ctx, s.DB, g); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrGrantExists
		}
		return nil, err
	}
	return g, nil
}

// grantValidationError turns the first failed rule into a user message.
func grantValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	switch fe := verrs[0]; fe.Field() {
	case "GroupID":
		return invalid("group_id", "Group ID must be a negative number (e.g., -123456789).")
	case "Feature":
		return invalid("feature", "Feature type must be 'like', 'spam' or 'visit'.")
	case "Requests":
		return invalid("requests", "Requests must be a positive integer.")
	case "Days":
		return invalid("days", "Days must be a positive integer.")
	default:
		return invalid(fe.Field(), "Invalid %s.", fe.Field())
	}
}

// RemoveGrant deletes one feature grant of groupID, or all of them when f is
// nil, and returns how many were deleted.
func (s *EntitlementService) RemoveGrant(ctx context.Context, groupID string, f *domain.Feature) (int64, error) {
	ctx, span := s.span(ctx, "RemoveGrant", attribute.String("group.id", groupID))
	defer span.End()

	if f != nil && !f.Valid() {
		return 0, ErrInvalidFeature
	}
	return repo.DeleteGrants(ctx, s.DB, canonicalGroupID(groupID), f)
}

// canonicalGroupID renders a numeric id the way chat ids are formatted, so
// "-0100123" and "-100123" name the same group. Anything else is returned
// trimmed.
func canonicalGroupID(id string) string {
	id = strings.TrimSpace(id)
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return strconv.FormatInt(n, 10)
	}
	return id
}

// ListGrants returns every grant, newest first.
func (s *EntitlementService) ListGrants(ctx context.Context) ([]domain.GroupEntitlement, error) {
	ctx, span := s.span(ctx, "ListGrants")
	defer span.End()

	return repo.ListGrants(ctx, s.DB)
}

// DescribeGroup returns the standing of every grant of groupID. An unknown
// group yields an empty slice.
func (s *EntitlementService) DescribeGroup(ctx context.Context, groupID string) ([]GrantStatus, error) {
	ctx, span := s.span(ctx, "DescribeGroup", attribute.String("group.id", groupID))
	defer span.End()

	grants, err := repo.ListGroupGrants(ctx, s.DB, canonicalGroupID(groupID))
	if err != nil {
		return nil, err
	}
	now := s.Clock.Current()
	out := make([]GrantStatus, 0, len(grants))
	for _, g := range grants {
		out = append(out, s.status(g, now))
	}
	return out, nil
}

func (s *EntitlementService) status(g domain.GroupEntitlement, now time.Time) GrantStatus {
	used := g.UsedIn(s.Clock.Key(now))
	st := GrantStatus{
		Grant:     g,
		ExpiresAt: g.ExpiresAt,
		Expired:   g.Expired(now),
		DaysLeft:  DaysLeft(g.ExpiresAt, now),
		UsedToday: used,
	}
	if g.Requests > 0 {
		st.UsagePercent = math.Round(float64(used)/float64(g.Requests)*1000) / 10
	}
	return st
}

// DaysLeft returns the whole days between now and expiry, never negative.
func DaysLeft(expiry, now time.Time) int {
	d := expiry.Sub(now)
	if d <= 0 {
		return 0
	}
	return int(d / (24 * time.Hour))
}

// Stats aggregates every grant, the number of distinct users that ever used
// a feature, and the maintenance flag.
func (s *EntitlementService) Stats(ctx context.Context) (*Stats, error) {
	ctx, span := s.span(ctx, "Stats")
	defer span.End()

	grants, err := repo.ListGrants(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	users, err := repo.CountDistinctUsers(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	st := &Stats{
		TotalGrants:   len(grants),
		DistinctUsers: users,
		Grants:        make([]GrantStatus, 0, len(grants)),
	}
	if s.Settings != nil {
		if st.Maintenance, err = s.Settings.Maintenance(ctx); err != nil {
			return nil, err
		}
	}
	now := s.Clock.Current()
	for _, g := range grants {
		gs := s.status(g, now)
		if !gs.Expired {
			st.ActiveGrants++
		}
		st.TotalUsed += gs.UsedToday
		st.TotalCap += g.Requests
		st.Grants = append(st.Grants, gs)
	}
	return st, nil
}

// Check reports whether groupID may use f right now, without consuming.
func (s *EntitlementService) Check(ctx context.Context, groupID string, f domain.Feature) (*domain.GroupEntitlement, error) {
	ctx, span := s.span(ctx, "Check", attribute.String("group.id", groupID), attribute.String("feature", f.String()))
	defer span.End()

	g, err := repo.GetGrant(ctx, s.DB, canonicalGroupID(groupID), f)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrGroupNotAllowed
	}
	if err != nil {
		return nil, err
	}
	if g.Expired(s.Clock.Current()) {
		return g, ErrGrantExpired
	}
	return g, nil
}

// Consume takes one unit of groupID's allowance for f in the current
// period. It fails with ErrGroupNotAllowed, ErrGrantExpired or
// ErrGroupQuotaExceeded.
func (s *EntitlementService) Consume(ctx context.Context, groupID string, f domain.Feature) (*GroupUnit, error) {
	groupID = canonicalGroupID(groupID)
	ctx, span := s.span(ctx, "Consume", attribute.String("group.id", groupID), attribute.String("feature", f.String()))
	defer span.End()

	if _, err := s.Check(ctx, groupID, f); err != nil {
		return nil, err
	}
	key := s.Clock.Today()
	ok, err := repo.ConsumeGrant(ctx, s.DB, groupID, f, key)
	if err != nil {
		return nil, fmt.Errorf("consume grant: %w", err)
	}
	if !ok {
		return nil, ErrGroupQuotaExceeded
	}
	return &GroupUnit{GroupID: groupID, Feature: f, Period: key}, nil
}

// ReleaseUnit gives back a unit taken by Consume. Nil is a no-op.
func (s *EntitlementService) ReleaseUnit(ctx context.Context, u *GroupUnit) error {
	if u == nil {
		return nil
	}
	ctx, span := s.span(ctx, "ReleaseUnit", attribute.String("group.id", u.GroupID), attribute.String("feature", u.Feature.String()))
	defer span.End()

	_, err := repo.ReleaseGrant(ctx, s.DB, u.GroupID, u.Feature, u.Period)
	return err
}
