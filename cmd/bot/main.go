// Command bot runs the quota bot and its maintenance tasks.
//
// @title                      Quota Bot Admin API
// @version                    1.0
// @description                Read-only operator views over group grants, per-user quota and bot settings.
// @BasePath                   /api/v1
// @securityDefinitions.apikey AdminToken
// @in                         header
// @name                       X-Admin-Token
package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tbourn/go-quota-bot/internal/config"
	"github.com/tbourn/go-quota-bot/internal/sysutil"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = ""

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("bot exited")
		os.Exit(1)
	}
}

// app carries what every subcommand needs once PersistentPreRunE ran.
type app struct {
	envFile string
	cfg     config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "bot",
		Short:         "Telegram group bot with per-user daily quotas and group grants",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       appVersion(),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), a.cfg)
		},
	}
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before the environment is read")

	root.AddCommand(
		newServeCmd(a),
		newBackupCmd(a),
		newWipeUsageCmd(a),
		newMigrateCmd(a),
	)
	return root
}

// load reads the dotenv file (if any), the configuration, and installs the
// global logger.
func (a *app) load() error {
	if err := godotenv.Load(a.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	sysutil.SetupLogger(os.Stderr, cfg.LogLevel, cfg.LogPretty)
	a.cfg = cfg
	return nil
}

func appVersion() string {
	return sysutil.FirstNonEmpty(version, os.Getenv("APP_VERSION"), "dev")
}
