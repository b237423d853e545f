package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tbourn/go-quota-bot/internal/backup"
	"github.com/tbourn/go-quota-bot/internal/sysutil"
)

func newBackupCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Take a database backup now and prune old ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, closeDB, err := openStore(cmd.Context(), a.cfg)
			if err != nil {
				return err
			}
			defer closeDB()

			res, err := backup.New(db, a.cfg.Backup).Run(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n  size    %s\n  sha256  %s\n  took    %s\n  pruned  %d\n",
				res.Path, humanize.Bytes(uint64(res.Size)), res.SHA256, res.Duration, res.Pruned)
			return nil
		},
	}
}

func newWipeUsageCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "wipe-usage",
		Short: "Delete every per-user usage row (all periods)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				fmt.Fprint(cmd.OutOrStdout(), "This deletes all usage history. Continue? [y/N] ")
				answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if !sysutil.IsTruthy(strings.TrimSpace(answer)) {
					return fmt.Errorf("aborted")
				}
			}
			db, closeDB, err := openStore(cmd.Context(), a.cfg)
			if err != nil {
				return err
			}
			defer closeDB()

			n, err := newCore(db, a.cfg).quota.WipeAll(cmd.Context())
			if err != nil {
				return err
			}
			log.Warn().Int64("rows", n).Msg("usage wiped")
			fmt.Fprintf(cmd.OutOrStdout(), "%d usage rows deleted\n", n)
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "do not ask for confirmation")
	return cmd
}

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and seed default settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, closeDB, err := openStore(cmd.Context(), a.cfg)
			if err != nil {
				return err
			}
			closeDB()
			fmt.Fprintf(cmd.OutOrStdout(), "schema up to date: %s\n", a.cfg.DBPath)
			return nil
		},
	}
}
