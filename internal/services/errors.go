// Package services defines the business logic for quotas, group grants and
// process-wide settings. This file centralizes service-level error values so
// that they can be consistently returned by service methods and checked by
// callers.
//
// Translation into chat replies or HTTP status codes is performed by the bot
// dispatcher and the HTTP handlers.
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/tbourn/go-quota-bot/internal/domain"
)

var (
	// ErrGrantExists is returned by AddGrant when the group already holds a
	// grant for the feature.
	ErrGrantExists = errors.New("grant already exists")

	// ErrQuotaExceeded indicates that a user reached the daily cap of a
	// feature. Reserve returns it wrapped in a *QuotaExceededError.
	ErrQuotaExceeded = errors.New("daily quota exceeded")

	// ErrGroupNotAllowed is returned when a group has no grant for a feature.
	ErrGroupNotAllowed = errors.New("group has no grant for this feature")

	// ErrGrantExpired is returned when the group's grant has lapsed.
	ErrGrantExpired = errors.New("group grant expired")

	// ErrGroupQuotaExceeded indicates that the group's allowance for the
	// current period is spent.
	ErrGroupQuotaExceeded = errors.New("group allowance exhausted")

	// ErrInvalidFeature is returned for feature names outside the enum.
	ErrInvalidFeature = errors.New("invalid feature")
)

// ValidationError reports a rejected input. Msg is safe to show to users.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string { return e.Msg }

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// QuotaExceededError carries the state of a refused reservation.
type QuotaExceededError struct {
	Feature   domain.Feature
	Used      int
	Cap       int
	NextReset time.Time
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("%s: %s used %d/%d", ErrQuotaExceeded, e.Feature, e.Used, e.Cap)
}

// Unwrap lets errors.Is match ErrQuotaExceeded.
func (e *QuotaExceededError) Unwrap() error { return ErrQuotaExceeded }
