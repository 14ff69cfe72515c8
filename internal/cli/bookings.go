package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/prohmpiriya/turf-booking/internal/di"
	"github.com/prohmpiriya/turf-booking/internal/dto"
	"github.com/prohmpiriya/turf-booking/pkg/config"
)

func newBookingsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bookings",
		Short: "List, inspect and release bookings",
	}
	cmd.AddCommand(newBookingsListCmd(a))
	cmd.AddCommand(&cobra.Command{
		Use:   "get ID",
		Short: "Print one booking",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, c *di.Container, _ *config.Config) error {
				b, err := c.BookingService.GetBooking(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), b)
			})
		},
	})
	cmd.AddCommand(newBookingsReleaseCmd(a))
	cmd.AddCommand(newBookingsExpireCmd(a))
	return cmd
}

func newBookingsListCmd(a *app) *cobra.Command {
	var q dto.BookingListQuery
	c := &cobra.Command{
		Use:   "list",
		Short: "List bookings by date, phone or status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, c *di.Container, _ *config.Config) error {
				list, err := c.BookingService.ListBookings(ctx, &q)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), list)
			})
		},
	}
	c.Flags().StringVar(&q.Date, "date", "", "booking date (YYYY-MM-DD)")
	c.Flags().StringVar(&q.Phone, "phone", "", "customer phone")
	c.Flags().StringVar(&q.Status, "status", "", "pending, confirmed, released or expired")
	c.Flags().IntVar(&q.Limit, "limit", 50, "maximum bookings to print")
	return c
}

func newBookingsReleaseCmd(a *app) *cobra.Command {
	var yes bool
	c := &cobra.Command{
		Use:   "release ID",
		Short: "Free a booking's slots",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("releasing a paid booking can double book its slots; pass --yes to continue")
			}
			return a.run(cmd, func(ctx context.Context, c *di.Container, _ *config.Config) error {
				resp, err := c.BookingService.Release(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.ErrOrStderr(), "warning:", resp.Warning)
				return printJSON(cmd.OutOrStdout(), resp.Booking)
			})
		},
	}
	c.Flags().BoolVar(&yes, "yes", false, "confirm the release")
	return c
}

func newBookingsExpireCmd(a *app) *cobra.Command {
	var limit int
	c := &cobra.Command{
		Use:   "expire",
		Short: "Record lapsed holds as expired once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, c *di.Container, _ *config.Config) error {
				n, err := c.BookingService.ExpireStaleHolds(ctx, limit)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "expired %d holds\n", n)
				return nil
			})
		},
	}
	c.Flags().IntVar(&limit, "limit", 100, "maximum holds to expire")
	return c
}
