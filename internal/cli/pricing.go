package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/prohmpiriya/turf-booking/internal/di"
	"github.com/prohmpiriya/turf-booking/internal/dto"
	"github.com/prohmpiriya/turf-booking/pkg/config"
)

func newPricingCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pricing",
		Short: "Show or change slot rates",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Print the current rates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, c *di.Container, _ *config.Config) error {
				p, err := c.PricingService.GetPricing(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), p)
			})
		},
	})
	cmd.AddCommand(newPricingSetCmd(a))
	cmd.AddCommand(newQuoteCmd(a))
	return cmd
}

func newPricingSetCmd(a *app) *cobra.Command {
	var req dto.UpdatePricingRequest
	c := &cobra.Command{
		Use:   "set",
		Short: "Store new weekday and weekend rates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, c *di.Container, _ *config.Config) error {
				p, err := c.PricingService.UpdatePricing(ctx, &req)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), p)
			})
		},
	}
	c.Flags().Int64Var(&req.WeekdayRate, "weekday", 0, "weekday rate per slot")
	c.Flags().Int64Var(&req.WeekendRate, "weekend", 0, "weekend rate per slot")
	_ = c.MarkFlagRequired("weekday")
	_ = c.MarkFlagRequired("weekend")
	return c
}

func newQuoteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "quote DATE SLOT_ID[,SLOT_ID...]",
		Short: "Price a set of slots on a date",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, c *di.Container, _ *config.Config) error {
				q, err := c.PricingService.Quote(ctx, args[0], strings.Split(args[1], ","))
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), q)
			})
		},
	}
}
