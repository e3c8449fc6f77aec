// Package cmd provides the offline commands of finctl-cli.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"finctl/internal/cli"
	applog "finctl/internal/log"

	"github.com/spf13/cobra"
)

var (
	envFile       string
	mappingsFile  string
	overridesFile string
	debug         bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "finctl-cli",
	Short: "Classify accounting exports and compute the P&L offline",
	Long: `finctl-cli runs the finctl pipeline on a local export file without a
server: normalization, classification, the P&L statement, the dashboard
and the forecast.

Exports may be CSV (any common delimiter, UTF-8 or Latin-1) or xlsx.

Example:
  finctl-cli pnl export.csv --start 2024-01-01 --end 2024-06-30
  finctl-cli validate export.xlsx --mappings mappings.yaml
  finctl-cli export export.csv --out pnl.xlsx`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := cli.LoadEnvFile(envFile); err != nil {
			return err
		}
		level := "info"
		if debug {
			level = "debug"
		}
		lc := applog.ConfigFromEnv(level, os.Getenv("LOG_FORMAT"), applog.ComponentCLI)
		lc.Output = cmd.ErrOrStderr()
		applog.SetDefault(applog.New(lc))
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		slog.Debug("Command failed", applog.FieldError, err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "env file loaded before running")
	rootCmd.PersistentFlags().StringVar(&mappingsFile, "mappings", "", "mapping rules file (.yaml, or .json for the legacy layout)")
	rootCmd.PersistentFlags().StringVar(&overridesFile, "overrides", "", `overrides file, {"line": {"YYYY-MM": value}}`)
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(normalizeCmd)
	rootCmd.AddCommand(pnlCmd)
	rootCmd.AddCommand(dashboardCmd)
	rootCmd.AddCommand(forecastCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(mappingsCmd)
	rootCmd.AddCommand(exportCmd)
}

func writeOut(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
