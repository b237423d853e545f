// Package domain defines the persistence models for group grants, per-user
// daily usage counters, and process-wide settings. These types are mapped
// with GORM and form the core data layer of the bot.
package domain

import "time"

// GroupEntitlement is one group's time-boxed grant of a feature.
//
// Fields:
//   - GroupID/FeatureType: unique together; group ids are negative integers
//     kept as text.
//   - Requests: daily cap of the grant, immutable once created.
//   - RemainingRequests: units left in Period, 0..Requests.
//   - Period: quota period key the remaining counter belongs to. A counter
//     from an older period reads as full.
//   - Days/AddedAt/ExpiresAt: grant window. Lapsed grants stay in the table.
type GroupEntitlement struct {
	ID                uint      `json:"-"                  gorm:"primaryKey"`
	GroupID           string    `json:"group_id"           gorm:"type:TEXT NOT NULL;uniqueIndex:ux_group_feature,priority:1"`
	FeatureType       Feature   `json:"feature_type"       gorm:"type:TEXT NOT NULL;uniqueIndex:ux_group_feature,priority:2"`
	Requests          int       `json:"requests"           gorm:"not null"`
	RemainingRequests int       `json:"remaining_requests" gorm:"not null"`
	Period            string    `json:"period"             gorm:"type:TEXT NOT NULL;default:''"`
	Days              int       `json:"days"               gorm:"not null"`
	AddedAt           time.Time `json:"added_at"           gorm:"not null;index"`
	ExpiresAt         time.Time `json:"expires_at"         gorm:"not null"`
}

// TableName returns the database table name for GroupEntitlement.
func (GroupEntitlement) TableName() string { return "group_entitlements" }

// Expired reports whether the grant has lapsed at now.
func (g GroupEntitlement) Expired(now time.Time) bool {
	return !now.Before(g.ExpiresAt)
}

// UsedIn returns the units consumed during period.
func (g GroupEntitlement) UsedIn(period string) int {
	if g.Period != period {
		return 0
	}
	return g.Requests - g.RemainingRequests
}

// DailyUsage counts how often one user exercised one feature in one quota
// period. Rows are created on first use and zeroed by admin resets.
type DailyUsage struct {
	ID          uint       `json:"-"                    gorm:"primaryKey"`
	UserID      int64      `json:"user_id"              gorm:"not null;uniqueIndex:ux_usage_user_cmd_date,priority:1"`
	CommandType Feature    `json:"command_type"         gorm:"type:TEXT NOT NULL;uniqueIndex:ux_usage_user_cmd_date,priority:2"`
	Date        string     `json:"date"                 gorm:"type:TEXT NOT NULL;uniqueIndex:ux_usage_user_cmd_date,priority:3;index"`
	Used        int        `json:"used"                 gorm:"not null;default:0;check:used >= 0"`
	LastReset   *time.Time `json:"last_reset,omitempty"`
	ResetBy     *int64     `json:"reset_by,omitempty"`
}

// TableName returns the database table name for DailyUsage.
func (DailyUsage) TableName() string { return "daily_usages" }

// Setting is a process-wide key/value pair.
type Setting struct {
	Key       string    `json:"key"        gorm:"type:TEXT;primaryKey"`
	Value     string    `json:"value"      gorm:"type:TEXT NOT NULL;default:''"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Setting.
func (Setting) TableName() string { return "settings" }

// Setting keys.
const (
	SettingFooter          = "custom_footer"
	SettingMaintenance     = "maintenance_mode"
	SettingLastGlobalReset = "last_global_reset"
)

// DefaultFooter is appended to profile lookups until an admin replaces it.
const DefaultFooter = "🔗 <b>JOIN US</b>\n<b>Our Group:</b> https://t.me/FFinfoChat\n<b>Our Channel:</b> https://t.me/VampirePB"

// DefaultSettings are seeded insert-if-absent at startup.
func DefaultSettings() []Setting {
	return []Setting{
		{Key: SettingFooter, Value: DefaultFooter},
		{Key: SettingMaintenance, Value: "0"},
		{Key: SettingLastGlobalReset, Value: ""},
	}
}
