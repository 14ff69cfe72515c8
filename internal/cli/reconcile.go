package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/prohmpiriya/turf-booking/internal/di"
	"github.com/prohmpiriya/turf-booking/pkg/config"
)

func newReconcileCmd(a *app) *cobra.Command {
	var pending bool
	var limit int
	c := &cobra.Command{
		Use:   "reconcile [ID]",
		Short: "Ask the payment gateway whether unconfirmed orders were paid",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if pending == (len(args) == 1) {
				return fmt.Errorf("pass either a booking ID or --pending")
			}
			return a.run(cmd, func(ctx context.Context, c *di.Container, _ *config.Config) error {
				if pending {
					n, err := c.PaymentService.ReconcilePending(ctx, limit)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "reconciled %d bookings\n", n)
					return nil
				}
				resp, err := c.PaymentService.Reconcile(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), resp)
			})
		},
	}
	c.Flags().BoolVar(&pending, "pending", false, "reconcile every candidate older than the configured minimum age")
	c.Flags().IntVar(&limit, "limit", 50, "maximum bookings with --pending")
	return c
}
