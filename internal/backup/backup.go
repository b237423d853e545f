// Package backup snapshots the SQLite store with VACUUM INTO, optionally
// gzips the copy, records its SHA-256 next to it and prunes old copies.
// Scheduler runs backups and housekeeping on a cron schedule.
package backup

import (
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/tbourn/go-quota-bot/internal/config"
)

const (
	filePrefix = "bot_data-"
	stampFmt   = "20060102-150405"
	sumSuffix  = ".sha256"
)

// ErrBusy is returned when a backup is already in progress.
var ErrBusy = errors.New("backup already running")

// Result describes one finished backup.
type Result struct {
	Path     string
	Size     int64
	SHA256   string
	Duration time.Duration
	Pruned   int
}

// Service takes backups of one database.
type Service struct {
	DB  *gorm.DB
	Cfg config.BackupConfig
	// Now is the time source for file names; nil means time.Now.
	Now func() time.Time

	mu sync.Mutex
}

// New returns a Service writing into cfg.Dir.
func New(db *gorm.DB, cfg config.BackupConfig) *Service {
	if cfg.Keep < 1 {
		cfg.Keep = 1
	}
	if cfg.Dir == "" {
		cfg.Dir = "backups"
	}
	return &Service{DB: db, Cfg: cfg}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Run takes a backup now. Only one backup runs at a time; a concurrent call
// gets ErrBusy.
func (s *Service) Run(ctx context.Context) (res *Result, err error) {
	if !s.mu.TryLock() {
		return nil, ErrBusy
	}
	defer s.mu.Unlock()

	ctx, span := otel.Tracer("backup").Start(ctx, "backup.Run")
	defer span.End()

	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
			span.RecordError(err)
		}
		backupsTotal.WithLabelValues(outcome).Inc()
	}()

	if err := os.MkdirAll(s.Cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}
	raw := filepath.Join(s.Cfg.Dir, filePrefix+s.now().UTC().Format(stampFmt)+".db")
	if _, err := os.Stat(raw); err == nil {
		return nil, fmt.Errorf("backup %s already exists", raw)
	}
	if err := s.DB.WithContext(ctx).Exec("VACUUM INTO ?", raw).Error; err != nil {
		_ = os.Remove(raw)
		return nil, fmt.Errorf("vacuum into: %w", err)
	}

	path := raw
	if s.Cfg.Compress {
		if path, err = gzipFile(raw); err != nil {
			return nil, err
		}
	}
	sum, size, err := checksum(path)
	if err != nil {
		return nil, err
	}
	line := sum + "  " + filepath.Base(path) + "\n"
	if err := os.WriteFile(path+sumSuffix, []byte(line), 0o640); err != nil {
		return nil, fmt.Errorf("write checksum: %w", err)
	}

	pruned, err := Prune(s.Cfg.Dir, s.Cfg.Keep)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("prune backups")
	}

	res = &Result{Path: path, Size: size, SHA256: sum, Duration: time.Since(start), Pruned: pruned}
	span.SetAttributes(attribute.String("backup.path", path), attribute.Int64("backup.size", size))
	backupSize.Set(float64(size))
	backupLast.SetToCurrentTime()
	log.Ctx(ctx).Info().
		Str("path", path).
		Str("size", humanize.Bytes(uint64(size))).
		Str("sha256", sum).
		Int("pruned", pruned).
		Dur("took", res.Duration).
		Msg("backup written")
	return res, nil
}

// gzipFile compresses src into src.gz and removes src.
func gzipFile(src string) (string, error) {
	dst := src + ".gz"
	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return "", err
	}
	zw, _ := gzip.NewWriterLevel(out, gzip.BestCompression)
	zw.Name = filepath.Base(src)
	if _, err := io.Copy(zw, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return "", fmt.Errorf("compress backup: %w", err)
	}
	if err := zw.Close(); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return "", fmt.Errorf("compress backup: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	_ = in.Close()
	if err := os.Remove(src); err != nil {
		return "", err
	}
	return dst, nil
}

// checksum returns the hex SHA-256 and size of the file at path.
func checksum(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()
	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// List returns the backup files in dir, oldest first.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || strings.HasSuffix(name, sumSuffix) {
			continue
		}
		out = append(out, filepath.Join(dir, name))
	}
	// Names embed a sortable UTC timestamp.
	sort.Strings(out)
	return out, nil
}

// Prune removes all but the newest keep backups in dir together with their
// checksum files and returns how many backups were removed.
func Prune(dir string, keep int) (int, error) {
	files, err := List(dir)
	if err != nil {
		return 0, err
	}
	if keep < 1 {
		keep = 1
	}
	n := 0
	for len(files)-n > keep {
		p := files[n]
		if err := os.Remove(p); err != nil {
			return n, err
		}
		_ = os.Remove(p + sumSuffix)
		n++
	}
	return n, nil
}
