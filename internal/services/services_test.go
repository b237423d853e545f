package services

import (
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-quota-bot/internal/period"
	"github.com/tbourn/go-quota-bot/internal/repo"
)

func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:svc_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	require.NoError(t, repo.AutoMigrate(db))
	return db
}

// fixedClock is a UTC clock with a 04:00 rollover whose time can be moved.
type fixedClock struct {
	*period.Clock
	now time.Time
}

func newFixedClock(now time.Time) *fixedClock {
	fc := &fixedClock{now: now}
	fc.Clock = period.New(time.UTC, 4)
	fc.Clock.Now = func() time.Time { return fc.now }
	return fc
}

func (c *fixedClock) advance(d time.Duration) { c.now = c.now.Add(d) }
