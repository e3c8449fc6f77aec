package cmd

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"

	"finctl/internal/core"
	"finctl/internal/ingest"
	applog "finctl/internal/log"

	"github.com/spf13/cobra"
)

var normalizeFormat string

var normalizeCmd = &cobra.Command{
	Use:   "normalize FILE",
	Short: "Print the normalized transactions of an export",
	Long: `Normalize reads an export, repairs encodings, amounts and dates, and
prints the transactions it accepted. Dropped and zeroed rows are logged.

Example:
  finctl-cli normalize export.csv --format csv > clean.csv`,
	Args: cobra.ExactArgs(1),
	RunE: runNormalize,
}

func init() {
	normalizeCmd.Flags().StringVar(&normalizeFormat, "format", "json", "output format: json or csv")
}

func runNormalize(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read export: %w", err)
	}
	txs, report, err := ingest.Normalize(raw)
	if err != nil {
		return err
	}
	for _, issue := range report.Dropped {
		slog.Warn("Row dropped", "row", issue.Row, "reason", issue.Reason)
	}
	slog.Info("Export normalized",
		applog.FieldRows, report.Rows,
		applog.FieldAccepted, report.Accepted,
		applog.FieldDropped, len(report.Dropped),
		applog.FieldZeroed, len(report.Zeroed),
		applog.FieldEncoding, report.Encoding)

	switch normalizeFormat {
	case "json":
		return printJSON(cmd.OutOrStdout(), struct {
			Transactions []core.Transaction `json:"transactions"`
			Report       ingest.Report      `json:"report"`
		}{txs, report})
	case "csv":
		w := csv.NewWriter(cmd.OutOrStdout())
		w.Write([]string{"row", "date", "month", "amount", "cost_center", "counterparty", "description", "category"})
		for _, tx := range txs {
			w.Write([]string{
				fmt.Sprint(tx.Row),
				tx.Date.Format("2006-01-02"),
				tx.Month.String(),
				tx.Amount.StringFixed(2),
				tx.CostCenter,
				tx.Counterparty,
				tx.Description,
				tx.Category,
			})
		}
		w.Flush()
		return w.Error()
	default:
		return fmt.Errorf("unknown format %q: use json or csv", normalizeFormat)
	}
}
