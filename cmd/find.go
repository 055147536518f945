package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	findLimit int
	findJSON  bool
)

var findCmd = &cobra.Command{
	Use:   "find <words...>",
	Short: "Search stored category and trope titles",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := OpenDatabase(cfg, false)
		if err != nil {
			return err
		}
		defer store.Close()

		matches, err := store.SearchTitles(cmd.Context(), strings.Join(args, " "), findLimit)
		if err != nil {
			return err
		}
		if findJSON {
			return writeJSON(cmd.OutOrStdout(), matches, "")
		}
		if len(matches) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No matches.")
			return nil
		}
		for _, m := range matches {
			fmt.Fprintf(cmd.OutOrStdout(), "%8d  %-8s  %s\n", m.Page.ID, m.Kind, m.Page.Title)
		}
		return nil
	},
}

func init() {
	findCmd.Flags().IntVar(&findLimit, "limit", 20, "Maximum results")
	findCmd.Flags().BoolVar(&findJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(findCmd)
}
