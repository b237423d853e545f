package backup

import (
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tbourn/go-quota-bot/internal/config"
	"github.com/tbourn/go-quota-bot/internal/domain"
	"github.com/tbourn/go-quota-bot/internal/repo"
)

func newDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "bot.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	require.NoError(t, repo.AutoMigrate(db))
	require.NoError(t, repo.SetSetting(context.Background(), db, domain.SettingFooter, "hello"))
	return db
}

func fixedNow(ts string) func() time.Time {
	return func() time.Time {
		t, _ := time.Parse(time.RFC3339, ts)
		return t
	}
}

func TestRun_PlainCopyIsAReadableDatabase(t *testing.T) {
	db := newDB(t)
	dir := t.TempDir()
	svc := New(db, config.BackupConfig{Dir: dir, Keep: 5})
	svc.Now = fixedNow("2025-06-01T04:00:00Z")

	res, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "bot_data-20250601-040000.db"), res.Path)
	assert.Positive(t, res.Size)

	sumLine, err := os.ReadFile(res.Path + ".sha256")
	require.NoError(t, err)
	assert.Equal(t, res.SHA256+"  bot_data-20250601-040000.db\n", string(sumLine))

	raw, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	h := sha256.Sum256(raw)
	assert.Equal(t, hex.EncodeToString(h[:]), res.SHA256)

	copyDB, err := repo.OpenSQLite(res.Path)
	require.NoError(t, err)
	defer func() {
		if sqlDB, err := copyDB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}()
	v, err := repo.GetSetting(context.Background(), copyDB, domain.SettingFooter)
	require.NoError(t, err)
	assert.Equal(t, "hello", v)
}

func TestRun_Compressed(t *testing.T) {
	db := newDB(t)
	dir := t.TempDir()
	svc := New(db, config.BackupConfig{Dir: dir, Keep: 5, Compress: true})
	svc.Now = fixedNow("2025-06-01T04:00:00Z")

	res, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(res.Path, ".db.gz"))

	_, err = os.Stat(strings.TrimSuffix(res.Path, ".gz"))
	assert.True(t, os.IsNotExist(err), "uncompressed copy should be removed")

	f, err := os.Open(res.Path)
	require.NoError(t, err)
	defer f.Close()
	zr, err := gzip.NewReader(f)
	require.NoError(t, err)
	head := make([]byte, 16)
	_, err = io.ReadFull(zr, head)
	require.NoError(t, err)
	assert.Equal(t, "SQLite format 3\x00", string(head))
}

func TestRun_SameSecondTwiceFails(t *testing.T) {
	db := newDB(t)
	svc := New(db, config.BackupConfig{Dir: t.TempDir(), Keep: 5})
	svc.Now = fixedNow("2025-06-01T04:00:00Z")

	_, err := svc.Run(context.Background())
	require.NoError(t, err)
	_, err = svc.Run(context.Background())
	assert.ErrorContains(t, err, "already exists")
}

func TestRun_Busy(t *testing.T) {
	svc := New(nil, config.BackupConfig{Dir: t.TempDir()})
	svc.mu.Lock()
	defer svc.mu.Unlock()

	_, err := svc.Run(context.Background())
	assert.ErrorIs(t, err, ErrBusy)
}

func TestRun_KeepsNewest(t *testing.T) {
	db := newDB(t)
	dir := t.TempDir()
	svc := New(db, config.BackupConfig{Dir: dir, Keep: 2})

	base := time.Date(2025, 6, 1, 4, 0, 0, 0, time.UTC)
	var last *Result
	for i := 0; i < 4; i++ {
		at := base.Add(time.Duration(i) * time.Hour)
		svc.Now = func() time.Time { return at }
		res, err := svc.Run(context.Background())
		require.NoError(t, err)
		last = res
	}
	assert.Equal(t, 1, last.Pruned)

	files, err := List(dir)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "bot_data-20250601-060000.db", filepath.Base(files[0]))
	assert.Equal(t, "bot_data-20250601-070000.db", filepath.Base(files[1]))

	_, err = os.Stat(filepath.Join(dir, "bot_data-20250601-040000.db.sha256"))
	assert.True(t, os.IsNotExist(err), "checksum of pruned backup should be removed")
}

func TestList_MissingDirAndForeignFiles(t *testing.T) {
	files, err := List(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Empty(t, files)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), nil, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bot_data-20250101-000000.db"), nil, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bot_data-20250101-000000.db.sha256"), nil, 0o600))
	files, err = List(dir)
	require.NoError(t, err)
	assert.Len(t, files, 1)
}
