package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/prohmpiriya/turf-booking/internal/di"
	"github.com/prohmpiriya/turf-booking/pkg/config"
	"github.com/prohmpiriya/turf-booking/pkg/logger"
)

// Builder opens the infrastructure and wires a container. The returned
// cleanup closes every connection.
type Builder func(ctx context.Context) (*di.Container, *config.Config, func(), error)

// DefaultBuilder loads configuration from the environment
func DefaultBuilder(ctx context.Context) (*di.Container, *config.Config, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}
	infra, err := di.NewInfrastructure(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	c, err := di.NewContainer(&di.ContainerConfig{Infra: infra, Config: cfg})
	if err != nil {
		infra.Close()
		return nil, nil, nil, err
	}
	return c, cfg, infra.Close, nil
}

type app struct {
	build   Builder
	timeout time.Duration
}

// run builds the container and calls fn with a bounded context
func (a *app) run(cmd *cobra.Command, fn func(ctx context.Context, c *di.Container, cfg *config.Config) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), a.timeout)
	defer cancel()

	c, cfg, cleanup, err := a.build(ctx)
	if err != nil {
		return err
	}
	defer cleanup()
	return fn(ctx, c, cfg)
}

// NewRoot builds the turfctl command tree
func NewRoot(build Builder) *cobra.Command {
	if build == nil {
		build = DefaultBuilder
	}
	a := &app{build: build, timeout: 30 * time.Second}

	cmd := &cobra.Command{
		Use:           "turfctl",
		Short:         "Operate the turf booking service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			verbose, _ := cmd.Flags().GetBool("verbose")
			level := "warn"
			if verbose {
				level = "debug"
			}
			return logger.Init(&logger.Config{Level: level, ServiceName: "turfctl", Development: true})
		},
	}
	cmd.PersistentFlags().Bool("verbose", false, "log infrastructure activity")
	cmd.PersistentFlags().DurationVar(&a.timeout, "timeout", a.timeout, "deadline for the whole command")

	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newPricingCmd(a))
	cmd.AddCommand(newSlotsCmd(a))
	cmd.AddCommand(newBookingsCmd(a))
	cmd.AddCommand(newReconcileCmd(a))
	return cmd
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
