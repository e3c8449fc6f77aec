package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"finctl/internal/export"
	applog "finctl/internal/log"
	"finctl/internal/pnl"

	"github.com/spf13/cobra"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export FILE",
	Short: "Write the statement and dashboard to an xlsx workbook",
	Long: `Export writes a workbook with the P&L statement and a dashboard sheet.
Without --out the file is named after the dataset version.

Example:
  finctl-cli export export.csv --out pnl-2024.xlsx --start 2024-01-01`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&startDate, "start", "", "first day included (YYYY-MM-DD)")
	exportCmd.Flags().StringVar(&endDate, "end", "", "last day included (YYYY-MM-DD)")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output path")
}

func runExport(cmd *cobra.Command, args []string) error {
	rng, err := pnl.ParseRange(startDate, endDate)
	if err != nil {
		return err
	}
	ledger, res, err := loadLedger(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	stmt, err := ledger.Statement(cmd.Context(), rng)
	if err != nil {
		return err
	}

	path := exportOut
	if path == "" {
		path = export.FileName(res.Version)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create workbook: %w", err)
	}
	if err := export.WriteWorkbook(f, export.NewReport(res.Version, stmt, time.Now())); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close workbook: %w", err)
	}

	slog.Info("Workbook written", applog.FieldFile, path, applog.FieldMonths, len(stmt.Headers))
	writeOut(cmd, "%s\n", path)
	return nil
}
