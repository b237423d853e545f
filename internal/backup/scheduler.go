package backup

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-quota-bot/internal/repo"
)

// Job is one scheduled task.
type Job func(ctx context.Context) error

// Scheduler runs jobs on five-field cron schedules in a fixed location.
type Scheduler struct {
	cron *cron.Cron
	ctx  context.Context
}

// NewScheduler returns a stopped Scheduler evaluating specs in loc. Jobs
// receive ctx.
func NewScheduler(ctx context.Context, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		cron: cron.New(
			cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow)),
			cron.WithLocation(loc),
		),
		ctx: ctx,
	}
}

// Add registers job under name at spec.
func (s *Scheduler) Add(name, spec string, job Job) error {
	_, err := s.cron.AddFunc(spec, func() {
		start := time.Now()
		logger := log.With().Str("job", name).Logger()
		if err := job(logger.WithContext(s.ctx)); err != nil {
			logger.Error().Err(err).Dur("took", time.Since(start)).Msg("scheduled job failed")
			return
		}
		logger.Debug().Dur("took", time.Since(start)).Msg("scheduled job done")
	})
	if err != nil {
		return fmt.Errorf("schedule %s %q: %w", name, spec, err)
	}
	return nil
}

// Next returns when the earliest job runs next, or the zero time when
// nothing is scheduled or the scheduler is stopped.
func (s *Scheduler) Next() time.Time {
	var next time.Time
	for _, e := range s.cron.Entries() {
		if !e.Next.IsZero() && (next.IsZero() || e.Next.Before(next)) {
			next = e.Next
		}
	}
	return next
}

// Start runs the scheduler in the background.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop stops scheduling and waits for running jobs or ctx, whichever ends
// first.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// BackupJob adapts Service.Run to a Job.
func BackupJob(svc *Service) Job {
	return func(ctx context.Context) error {
		_, err := svc.Run(ctx)
		return err
	}
}

// PurgeJob removes expired webhook dedupe rows.
func PurgeJob(db *gorm.DB) Job {
	return func(ctx context.Context) error {
		n, err := repo.PurgeProcessedUpdates(ctx, db, time.Now())
		if err != nil {
			return err
		}
		housekeepingPurged.Add(float64(n))
		if n > 0 {
			log.Ctx(ctx).Info().Int64("purged", n).Msg("expired processed updates removed")
		}
		return nil
	}
}
