package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/Dan9191/rent-service/internal/models"
	"github.com/Dan9191/rent-service/internal/timeutil"
	"github.com/spf13/cobra"
)

func alertsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "List customers by increment urgency",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")

			ctx := cmd.Context()
			env, err := openEnvironment(ctx)
			if err != nil {
				return err
			}
			defer env.Close(ctx)

			report, err := env.svc.AlertReport(ctx, env.svc.Now())
			if err != nil {
				return err
			}
			return printAlerts(cmd.OutOrStdout(), report, asJSON)
		},
	}

	cmd.Flags().BoolP("json", "j", false, "Output as JSON")

	return cmd
}

func printAlerts(w io.Writer, report *models.AlertReport, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIER\tNAME\tPHONE\tCURRENT\tNEXT INCREMENT\tPROJECTED\t")
	for _, a := range report.Alerts {
		next := timeutil.FormatDate(a.Increment.NextIncrementDate)
		if a.Increment.IsOverdue {
			next += " (overdue)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t\n",
			a.Tier,
			a.Customer.Name,
			a.Customer.PhoneNumber,
			a.Customer.CurrentRent.StringFixed(2),
			next,
			a.Increment.ProjectedRent.StringFixed(2),
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(report.Failures) > 0 {
		fmt.Fprintf(w, "\n%d record(s) could not be evaluated:\n", len(report.Failures))
		for _, f := range report.Failures {
			fmt.Fprintf(w, "  %s (%s): %s\n", f.Name, f.CustomerID, f.Error)
		}
	}
	return nil
}
