// Package period defines the quota period: the window over which per-user
// and per-group counters accumulate before they roll over. Every component
// asks a Clock for "today" instead of formatting dates on its own.
package period

import "time"

// KeyLayout is the layout of period keys stored in the database.
const KeyLayout = "2006-01-02"

// Clock maps instants to quota period keys. A period starts at ResetHour:00
// in Location and lasts 24 hours, so with ResetHour=4 the period key of
// 03:59 is still the previous calendar day.
type Clock struct {
	Location  *time.Location
	ResetHour int
	// Now is the time source; nil means time.Now.
	Now func() time.Time
}

// New returns a Clock for loc with periods starting at resetHour.
func New(loc *time.Location, resetHour int) *Clock {
	if loc == nil {
		loc = time.UTC
	}
	return &Clock{Location: loc, ResetHour: resetHour}
}

func (c *Clock) loc() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

// Current returns the current instant.
func (c *Clock) Current() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Key returns the period key containing t.
func (c *Clock) Key(t time.Time) string {
	return c.start(t).Format(KeyLayout)
}

// Today returns the key of the current period.
func (c *Clock) Today() string { return c.Key(c.Current()) }

// NextReset returns the instant the current period ends.
func (c *Clock) NextReset() time.Time {
	return c.start(c.Current()).AddDate(0, 0, 1)
}

// start returns the beginning of the period containing t.
func (c *Clock) start(t time.Time) time.Time {
	lt := t.In(c.loc())
	s := time.Date(lt.Year(), lt.Month(), lt.Day(), c.ResetHour, 0, 0, 0, c.loc())
	if lt.Before(s) {
		s = s.AddDate(0, 0, -1)
	}
	return s
}
