package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"allthetropes/catwalk/internal/config"
	"allthetropes/catwalk/internal/graph"
)

var (
	pathsMinFanout int
	pathsBudget    int
	pathsSort      string
	pathsJSON      bool
	pathsSelect    string
)

var pathsCmd = &cobra.Command{
	Use:   "paths",
	Short: "Expand every root category down to its leaves",
	Long: `Lists the category paths from each root (a category with no parent and
more than --min-root-fanout members) down to every member. "->" joins a
category to a subcategory and "=>" joins a category to a trope.

Cycles are not detected here: a cycle yields ever longer paths until the
--budget row cap is reached, and the output then reports truncation.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("min-root-fanout") {
			cfg.Hierarchy.MinRootFanout = pathsMinFanout
		}
		if cmd.Flags().Changed("budget") {
			cfg.Hierarchy.NodeBudget = pathsBudget
		}

		snap, err := loadSnapshot(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		report, err := graph.ResolvePaths(snap, cfg.Hierarchy.MinRootFanout, cfg.Hierarchy.NodeBudget)
		if err != nil {
			return err
		}
		switch pathsSort {
		case "iter":
		case "member":
			graph.SortByMember(report.Rows)
		default:
			return fmt.Errorf("unknown sort %q (want iter or member)", pathsSort)
		}

		if pathsJSON || pathsSelect != "" {
			return writeJSON(cmd.OutOrStdout(), report, pathsSelect)
		}

		out := cmd.OutOrStdout()
		for _, row := range report.Rows {
			fmt.Fprintf(out, "%3d  %8d  %s\n", row.Iter, row.MemberID, row.Path)
		}
		fmt.Fprintf(os.Stderr, "[paths] %d roots, %s rows\n", len(report.Roots), humanize.Comma(int64(len(report.Rows))))
		if report.Truncated {
			fmt.Fprintf(os.Stderr, "[paths] truncated at --budget %d; results are incomplete\n", cfg.Hierarchy.NodeBudget)
		}
		return nil
	},
}

// loadSnapshot reads the whole store into memory.
func loadSnapshot(ctx context.Context, cfg *config.Config) (*graph.GraphSnapshot, error) {
	store, err := OpenDatabase(cfg, false)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	snap, err := graph.SnapshotFromDB(ctx, store)
	if err != nil {
		return nil, fmt.Errorf("loading graph: %w", err)
	}
	return snap, nil
}

func init() {
	pathsCmd.Flags().IntVar(&pathsMinFanout, "min-root-fanout", 10, "Roots must have more members than this")
	pathsCmd.Flags().IntVar(&pathsBudget, "budget", 100, "Maximum rows to materialize, root rows included")
	pathsCmd.Flags().StringVar(&pathsSort, "sort", "iter", "Row order: iter (breadth-first) or member")
	pathsCmd.Flags().BoolVar(&pathsJSON, "json", false, "Output as JSON")
	pathsCmd.Flags().StringVar(&pathsSelect, "select", "", "JSONPath applied to the JSON output, e.g. '$.rows[*].path'")
	rootCmd.AddCommand(pathsCmd)
}
