package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/prohmpiriya/turf-booking/internal/di"
	"github.com/prohmpiriya/turf-booking/internal/dto"
	"github.com/prohmpiriya/turf-booking/pkg/config"
)

func newSlotsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slots",
		Short: "Inspect and lock slots",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show DATE",
		Short: "Print the availability grid of a date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, c *di.Container, _ *config.Config) error {
				resp, err := c.BookingService.Availability(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), resp)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "state DATE",
		Short: "Print the raw day ledger of a date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, c *di.Container, _ *config.Config) error {
				resp, err := c.BookingService.SlotState(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), resp)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "lock DATE SLOT_ID",
		Short: "Block a slot for maintenance",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, c *di.Container, _ *config.Config) error {
				resp, err := c.BookingService.LockSlot(ctx, &dto.SlotActionRequest{Date: args[0], SlotID: args[1]})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), resp)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "unlock DATE SLOT_ID",
		Short: "Remove a maintenance lock",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, c *di.Container, _ *config.Config) error {
				resp, err := c.BookingService.UnlockSlot(ctx, &dto.SlotActionRequest{Date: args[0], SlotID: args[1]})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), resp)
			})
		},
	})
	return cmd
}
