package domain

import (
	"fmt"
	"strings"
)

// Feature is one of the rate-limited user actions.
type Feature string

// Supported features.
const (
	FeatureLike  Feature = "like"
	FeatureSpam  Feature = "spam"
	FeatureVisit Feature = "visit"
)

// Features lists every feature in display order.
var Features = []Feature{FeatureLike, FeatureSpam, FeatureVisit}

// ParseFeature normalizes s and returns the matching Feature.
func ParseFeature(s string) (Feature, error) {
	f := Feature(strings.ToLower(strings.TrimSpace(s)))
	if f.Valid() {
		return f, nil
	}
	return "", fmt.Errorf("unknown feature %q", s)
}

// Valid reports whether f is a known feature.
func (f Feature) Valid() bool {
	switch f {
	case FeatureLike, FeatureSpam, FeatureVisit:
		return true
	}
	return false
}

func (f Feature) String() string { return string(f) }

// Caps maps each feature to its per-user daily cap.
type Caps map[Feature]int

// DefaultCaps are the per-user daily caps used when none are configured.
func DefaultCaps() Caps {
	return Caps{FeatureLike: 1, FeatureSpam: 15, FeatureVisit: 20}
}

// Of returns the cap for f, or 0 when f has none.
func (c Caps) Of(f Feature) int { return c[f] }
