package period

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixed(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestKey_RollsOverAtResetHour(t *testing.T) {
	ist, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	c := New(ist, 4)

	assert.Equal(t, "2025-05-09", c.Key(time.Date(2025, 5, 10, 3, 59, 59, 0, ist)))
	assert.Equal(t, "2025-05-10", c.Key(time.Date(2025, 5, 10, 4, 0, 0, 0, ist)))
	assert.Equal(t, "2025-05-10", c.Key(time.Date(2025, 5, 10, 23, 30, 0, 0, ist)))
}

func TestKey_UsesClockLocation(t *testing.T) {
	ist, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	c := New(ist, 4)

	// 22:45 UTC on May 9 is 04:15 IST on May 10.
	assert.Equal(t, "2025-05-10", c.Key(time.Date(2025, 5, 9, 22, 45, 0, 0, time.UTC)))
}

func TestMidnightClock(t *testing.T) {
	c := New(nil, 0)
	c.Now = fixed(time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "2025-01-31", c.Today())
	assert.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), c.NextReset())
}

func TestNextReset(t *testing.T) {
	ist, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	c := New(ist, 4)

	c.Now = fixed(time.Date(2025, 5, 10, 2, 0, 0, 0, ist))
	assert.True(t, c.NextReset().Equal(time.Date(2025, 5, 10, 4, 0, 0, 0, ist)))

	c.Now = fixed(time.Date(2025, 5, 10, 4, 0, 0, 0, ist))
	assert.True(t, c.NextReset().Equal(time.Date(2025, 5, 11, 4, 0, 0, 0, ist)))
}

func TestZeroValueClock(t *testing.T) {
	var c Clock
	assert.Len(t, c.Today(), len(KeyLayout))
	assert.True(t, c.NextReset().After(time.Now()))
}
