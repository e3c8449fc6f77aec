package cmd

import (
	"fmt"
	"log/slog"
	"strings"
	"text/tabwriter"

	applog "finctl/internal/log"
	"finctl/internal/pnl"

	"github.com/spf13/cobra"
)

var (
	startDate string
	endDate   string
	pnlFormat string
)

var pnlCmd = &cobra.Command{
	Use:   "pnl FILE",
	Short: "Print the P&L statement",
	Long: `Print the monthly P&L statement computed from an export.

Example:
  finctl-cli pnl export.csv --start 2024-01-01 --end 2024-03-31
  finctl-cli pnl export.csv --format json --overrides overrides.json`,
	Args: cobra.ExactArgs(1),
	RunE: runPnL,
}

func init() {
	pnlCmd.Flags().StringVar(&startDate, "start", "", "first day included (YYYY-MM-DD)")
	pnlCmd.Flags().StringVar(&endDate, "end", "", "last day included (YYYY-MM-DD)")
	pnlCmd.Flags().StringVar(&pnlFormat, "format", "table", "output format: table or json")
}

func runPnL(cmd *cobra.Command, args []string) error {
	if pnlFormat != "table" && pnlFormat != "json" {
		return fmt.Errorf("unknown format %q: use table or json", pnlFormat)
	}
	rng, err := pnl.ParseRange(startDate, endDate)
	if err != nil {
		return err
	}
	ledger, _, err := loadLedger(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	stmt, err := ledger.Statement(cmd.Context(), rng)
	if err != nil {
		return err
	}
	if stmt.Unclassified > 0 {
		slog.Warn("Transactions matched no mapping rule", applog.FieldUnclassified, stmt.Unclassified)
	}

	if pnlFormat == "json" {
		return printJSON(cmd.OutOrStdout(), stmt)
	}
	return printStatement(cmd, stmt)
}

func printStatement(cmd *cobra.Command, stmt pnl.Statement) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', tabwriter.AlignRight)
	header := []string{"Line", "Description"}
	for _, m := range stmt.Headers {
		header = append(header, m.String())
	}
	fmt.Fprintln(tw, strings.Join(header, "\t")+"\t")

	for _, row := range stmt.Rows {
		cells := []string{fmt.Sprint(row.Line), row.Description}
		for _, m := range stmt.Headers {
			if row.IsPercent {
				cells = append(cells, fmt.Sprintf("%.2f%%", row.Values[m]))
			} else {
				cells = append(cells, fmt.Sprintf("%.2f", row.Values[m]))
			}
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t")+"\t")
	}
	return tw.Flush()
}
