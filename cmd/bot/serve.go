package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/tbourn/go-quota-bot/internal/backup"
	"github.com/tbourn/go-quota-bot/internal/bot"
	"github.com/tbourn/go-quota-bot/internal/config"
	"github.com/tbourn/go-quota-bot/internal/gameapi"
	httpapi "github.com/tbourn/go-quota-bot/internal/http"
	"github.com/tbourn/go-quota-bot/internal/observability"
	"github.com/tbourn/go-quota-bot/internal/ratelimit"
	"github.com/tbourn/go-quota-bot/internal/services"
	"github.com/tbourn/go-quota-bot/internal/telegram"
)

const (
	shutdownTimeout = 20 * time.Second
	// Webhook dedupe rows are purged hourly.
	purgeSchedule = "17 * * * *"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot, the HTTP server and the scheduled jobs (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), a.cfg)
		},
	}
}

func runServe(ctx context.Context, cfg config.Config) error {
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, appVersion(),
		attribute.String("bot.transport", cfg.Telegram.Transport))
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, closeDB, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeDB()
	c := newCore(db, cfg)

	tg, err := telegram.New(cfg.Telegram)
	if err != nil {
		return err
	}
	backups := backup.New(db, cfg.Backup)

	d := bot.New(bot.Options{
		Quota:          c.quota,
		Grants:         c.grants,
		Settings:       c.settings,
		Admins:         services.NewStaticAdmins(cfg.Telegram.AdminIDs...),
		API:            gameapi.New(cfg.GameAPI, nil),
		Out:            tg,
		Clock:          c.clock,
		Backups:        backups,
		Flood:          ratelimit.New(cfg.FloodRPS, cfg.FloodBurst),
		BotName:        tg.Username(),
		Regions:        cfg.GameAPI.Regions,
		LikeThreshold:  cfg.GameAPI.LikeThreshold,
		GrantsEnforced: cfg.Quota.GrantsEnforced,
	})
	runner := bot.NewRunner(d, cfg.Workers)

	sched := backup.NewScheduler(ctx, c.clock.Location)
	if cfg.Backup.Enabled {
		if err := sched.Add("backup", cfg.Backup.Schedule, backup.BackupJob(backups)); err != nil {
			return err
		}
	}
	if err := sched.Add("purge-updates", purgeSchedule, backup.PurgeJob(db)); err != nil {
		return err
	}

	webhook := cfg.Telegram.Transport == config.TransportWebhook
	gin.SetMode(cfg.GinMode)
	r := gin.New()
	deps := httpapi.Deps{DB: db, Grants: c.grants, Usage: c.quota, Settings: c.settings}
	if webhook {
		deps.Sink = runner
	}
	httpapi.RegisterRoutes(r, cfg, deps)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	transport := func(ctx context.Context) error {
		if webhook {
			return tg.SetWebhook(ctx)
		}
		if err := tg.DeleteWebhook(ctx); err != nil {
			log.Warn().Err(err).Msg("delete webhook before polling")
		}
		log.Info().Str("bot", tg.Username()).Int("workers", cfg.Workers).Msg("long polling started")
		return runner.Run(ctx, tg.Poll(ctx))
	}

	sched.Start()
	if next := sched.Next(); !next.IsZero() {
		log.Info().Time("next_job", next).Msg("scheduler started")
	}

	err = lifecycle(ctx, srv, transport, func(ctx context.Context) {
		if err := sched.Stop(ctx); err != nil {
			log.Warn().Err(err).Msg("scheduler did not stop in time")
		}
		runner.Wait()
	})
	log.Info().Msg("bye")
	return err
}

// lifecycle serves srv and runs transport until ctx ends or either fails.
// The server is then shut down and stop drains the rest, bounded by
// shutdownTimeout. A transport that returns nil (webhook registration) leaves
// the server running.
func lifecycle(ctx context.Context, srv *http.Server, transport func(context.Context) error, stop func(context.Context)) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Str("version", appVersion()).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := transport(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			log.Error().Err(err).Msg("http shutdown")
		}
		if stop != nil {
			stop(sctx)
		}
		return nil
	})
	return g.Wait()
}
