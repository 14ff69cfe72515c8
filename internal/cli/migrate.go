package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/prohmpiriya/turf-booking/internal/repository"
	"github.com/prohmpiriya/turf-booking/pkg/config"
	"github.com/prohmpiriya/turf-booking/pkg/database"
)

const defaultMigrateTimeout = 2 * time.Minute

func newMigrateCmd() *cobra.Command {
	timeout := defaultMigrateTimeout
	c := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending PostgreSQL migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			db, err := database.NewPostgres(ctx, database.FromConfig(cfg.Database, false, "turfctl"))
			if err != nil {
				return err
			}
			defer db.Close()

			applied, err := repository.Migrate(ctx, db.Pool())
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
				return nil
			}
			for _, name := range applied {
				fmt.Fprintln(cmd.OutOrStdout(), "applied:", name)
			}
			return nil
		},
	}
	c.Flags().DurationVar(&timeout, "migrate-timeout", timeout, "deadline for connecting and migrating")
	return c
}
