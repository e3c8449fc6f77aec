package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var errInconsistent = errors.New("statement failed consistency checks")

var forecastMonths int

var dashboardCmd = &cobra.Command{
	Use:   "dashboard FILE",
	Short: "Print the dashboard KPIs and monthly series as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ledger, _, err := loadLedger(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		d, err := ledger.Dashboard(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), d)
	},
}

var forecastCmd = &cobra.Command{
	Use:   "forecast FILE",
	Short: "Extend revenue, EBITDA and net income past the last month",
	Long: `Forecast fits a straight line to each monthly series and projects it
forward. With a single month of history the last values are repeated.

Example:
  finctl-cli forecast export.csv --months 6`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ledger, _, err := loadLedger(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		f, err := ledger.Forecast(cmd.Context(), forecastMonths)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), f)
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate FILE",
	Short: "Check the statement identities and the dashboard figures",
	Long: `Validate recomputes every derived line and margin and compares the
dashboard with the statement. It exits non-zero on any violation.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ledger, _, err := loadLedger(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		report, err := ledger.Validate(cmd.Context())
		if err != nil {
			return err
		}
		if report.Valid {
			writeOut(cmd, "OK: %d months, %d unclassified transactions\n", report.Months, report.Unclassified)
			return nil
		}
		for _, v := range append(report.Identities, report.Dashboard...) {
			writeOut(cmd, "FAIL %s %s: %s\n", v.Month, v.Metric, v.Message)
		}
		return fmt.Errorf("%w: %d violations", errInconsistent, len(report.Identities)+len(report.Dashboard))
	},
}

func init() {
	forecastCmd.Flags().IntVar(&forecastMonths, "months", 3, "months to project (1-36)")
}
