package cmd

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"allthetropes/catwalk/internal/graph"
)

var (
	statsJSON bool
	statsTopN int
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the stored graph: components, roots, fan-out, hubs, cycles",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		snap, err := loadSnapshot(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		report := graph.ComputeTopology(snap, statsTopN)
		if statsJSON {
			return writeJSON(cmd.OutOrStdout(), report, "")
		}
		printTopology(cmd.OutOrStdout(), report, snap)
		return nil
	},
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Output as JSON")
	statsCmd.Flags().IntVar(&statsTopN, "top-n", 10, "Number of top items to show per section")
	rootCmd.AddCommand(statsCmd)
}

func printTopology(w io.Writer, t *graph.TopologyReport, snap *graph.GraphSnapshot) {
	fmt.Fprintln(w, "\n  TOPOLOGY")
	fmt.Fprintln(w, "  ────────────────────────────────────────")
	fmt.Fprintf(w, "  Categories: %s  Tropes: %s  Edges: %s\n",
		humanize.Comma(int64(t.Categories)), humanize.Comma(int64(t.Tropes)), humanize.Comma(int64(t.Edges)))
	fmt.Fprintf(w, "  Roots: %d  Components: %d  Largest component: %s\n",
		t.Roots, t.NumComponents, humanize.Comma(int64(t.LargestComponent)))

	if t.OrphanCount > 0 {
		fmt.Fprintf(w, "  Orphans: %d pages with no membership edge\n", t.OrphanCount)
		limit := min(5, len(t.OrphanIDs))
		for _, id := range t.OrphanIDs[:limit] {
			fmt.Fprintf(w, "    - %d (%s)\n", id, truncTitle(snap.Title(id), 50))
		}
		if t.OrphanCount > limit {
			fmt.Fprintf(w, "    ... and %d more\n", t.OrphanCount-limit)
		}
	}

	fmt.Fprintln(w, "\n  Category fan-out:")
	for _, b := range t.FanoutHistogram {
		if b.Count > 0 {
			barWidth := max(1, int(math.Log2(float64(b.Count)))+2)
			fmt.Fprintf(w, "    %7s: %5d  %s\n", b.Label, b.Count, strings.Repeat("=", barWidth))
		}
	}

	if len(t.Hubs) > 0 {
		fmt.Fprintln(w, "\n  Largest categories:")
		for _, hub := range t.Hubs {
			fmt.Fprintf(w, "    %8d members=%d parents=%d  %s\n",
				hub.ID, hub.Members, hub.Parents, truncTitle(hub.Title, 40))
		}
	}

	if len(t.Cycles) > 0 {
		fmt.Fprintln(w, "\n  CYCLES")
		fmt.Fprintln(w, "  ────────────────────────────────────────")
		fmt.Fprintf(w, "  %d cycles over %d categories (path expansion revisits these):\n",
			len(t.Cycles), t.CycleCategories)
		limit := min(10, len(t.Cycles))
		for _, c := range t.Cycles[:limit] {
			fmt.Fprintf(w, "    %s\n", truncTitle(strings.Join(c.Titles, " <-> "), 70))
		}
	}

	fmt.Fprintln(w)
}
