package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"allthetropes/catwalk/internal/graph"
)

var (
	ancestorsBudget int
	ancestorsLeaf   int64
	ancestorsJSON   bool
	ancestorsSelect string
)

var ancestorsCmd = &cobra.Command{
	Use:   "ancestors",
	Short: "List the upward category paths of every trope",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("budget") {
			cfg.Hierarchy.NodeBudget = ancestorsBudget
		}

		snap, err := loadSnapshot(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		report, err := graph.AncestorPaths(snap, cfg.Hierarchy.NodeBudget)
		if err != nil {
			return err
		}

		if ancestorsLeaf != 0 {
			rows := report.Rows[:0:0]
			for _, r := range report.Rows {
				if r.LeafID == ancestorsLeaf {
					rows = append(rows, r)
				}
			}
			report.Rows = rows
		}

		if ancestorsJSON || ancestorsSelect != "" {
			return writeJSON(cmd.OutOrStdout(), report, ancestorsSelect)
		}

		out := cmd.OutOrStdout()
		for _, r := range report.Rows {
			fmt.Fprintf(out, "%-40s  %s\n", truncTitle(r.LeafTitle, 40), r.Path)
		}
		if report.Truncated {
			fmt.Fprintf(os.Stderr, "[ancestors] truncated at --budget %d; results are incomplete\n", cfg.Hierarchy.NodeBudget)
		}
		return nil
	},
}

func init() {
	ancestorsCmd.Flags().IntVar(&ancestorsBudget, "budget", 100, "Maximum rows to materialize")
	ancestorsCmd.Flags().Int64Var(&ancestorsLeaf, "trope", 0, "Only show rows for this trope id")
	ancestorsCmd.Flags().BoolVar(&ancestorsJSON, "json", false, "Output as JSON")
	ancestorsCmd.Flags().StringVar(&ancestorsSelect, "select", "", "JSONPath applied to the JSON output")
	rootCmd.AddCommand(ancestorsCmd)
}
