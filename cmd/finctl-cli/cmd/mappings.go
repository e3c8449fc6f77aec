package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"finctl/internal/mapping"

	"github.com/spf13/cobra"
)

var (
	mappingsFormat string
	mappingsOut    string
)

var mappingsCmd = &cobra.Command{
	Use:   "mappings",
	Short: "Inspect and convert mapping rule tables",
}

var mappingsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the rule table in effect as YAML or legacy JSON",
	Long: `Export writes the rules loaded with --mappings, or the built-in
defaults, in either supported layout. Converting between layouts is a
matter of loading one and exporting the other.

Example:
  finctl-cli mappings export --mappings old.json --format yaml --out mappings.yaml`,
	Args: cobra.NoArgs,
	RunE: runMappingsExport,
}

var mappingsUnmatchedCmd = &cobra.Command{
	Use:   "unmatched FILE",
	Short: "List the cost center and counterparty pairs no rule matches",
	Args:  cobra.ExactArgs(1),
	RunE:  runMappingsUnmatched,
}

func init() {
	mappingsExportCmd.Flags().StringVar(&mappingsFormat, "format", "yaml", "output format: yaml or legacy")
	mappingsExportCmd.Flags().StringVar(&mappingsOut, "out", "", "output path (default stdout)")

	mappingsCmd.AddCommand(mappingsExportCmd)
	mappingsCmd.AddCommand(mappingsUnmatchedCmd)
}

func runMappingsExport(cmd *cobra.Command, args []string) error {
	rules := mapping.DefaultRules()
	if mappingsFile != "" {
		var err error
		if rules, err = mapping.LoadFile(mappingsFile); err != nil {
			return err
		}
	}

	var write func(io.Writer, []mapping.Rule) error
	switch mappingsFormat {
	case "yaml":
		write = mapping.WriteYAML
	case "legacy":
		write = mapping.WriteLegacyJSON
	default:
		return fmt.Errorf("unknown format %q: use yaml or legacy", mappingsFormat)
	}

	if mappingsOut == "" {
		return write(cmd.OutOrStdout(), rules)
	}
	f, err := os.Create(mappingsOut)
	if err != nil {
		return fmt.Errorf("create mappings file: %w", err)
	}
	if err := write(f, rules); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

type unmatchedKey struct {
	costCenter   string
	counterparty string
}

func runMappingsUnmatched(cmd *cobra.Command, args []string) error {
	ledger, _, err := loadLedger(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	cls := mapping.Classify(ledger.Snapshot().Transactions, ledger.Rules())

	counts := make(map[unmatchedKey]int)
	for _, tx := range cls.Unclassified {
		counts[unmatchedKey{tx.CostCenter, tx.Counterparty}]++
	}
	keys := make([]unmatchedKey, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		if keys[i].costCenter != keys[j].costCenter {
			return keys[i].costCenter < keys[j].costCenter
		}
		return keys[i].counterparty < keys[j].counterparty
	})

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join([]string{"COUNT", "COST CENTER", "COUNTERPARTY"}, "\t"))
	for _, k := range keys {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", counts[k], k.costCenter, k.counterparty)
	}
	return tw.Flush()
}
