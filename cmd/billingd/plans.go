package main

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/billsync/pkg/billing"
	"github.com/dmitrymomot/billsync/pkg/config"
)

func newPlansCmd(envFiles *[]string) *cobra.Command {
	return &cobra.Command{
		Use:   "plans",
		Short: "Validate and print the plan catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(config.WithEnvFiles(*envFiles...))
			if err != nil {
				return err
			}
			catalog, err := billing.CatalogFromConfig(cfg.Billing)
			if err != nil {
				return err
			}
			return printPlans(cmd.OutOrStdout(), catalog)
		},
	}
}

func printPlans(w io.Writer, catalog *billing.Catalog) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PLAN\tPRICE\tCONTENTS\tTEAM\tFEATURES")
	for _, p := range catalog.Plans() {
		price := p.PriceID
		if price == "" {
			price = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n",
			p.ID, price,
			formatLimit(catalog.Limit(p.ID, billing.ResourceContents)),
			formatLimit(catalog.Limit(p.ID, billing.ResourceTeamMembers)),
			len(p.Features),
		)
	}
	return tw.Flush()
}

func formatLimit(n int64) string {
	if n == billing.Unlimited {
		return "unlimited"
	}
	return strconv.FormatInt(n, 10)
}
