package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"allthetropes/catwalk/internal/wiki"
)

var lookupJSON bool

var lookupCmd = &cobra.Command{
	Use:   "lookup <category name>",
	Short: "Resolve a category name to its page id",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}

		name := wiki.CategoryName(strings.Join(args, " "))
		client := newClient(cfg, nil, logger)
		cache, err := wiki.NewLookupCache(1)
		if err != nil {
			return err
		}
		page, found, err := wiki.NewResolver(client, cache, nil).Resolve(cmd.Context(), name)
		if err != nil {
			return err
		}

		if lookupJSON {
			out := map[string]any{"name": name, "found": found}
			if found {
				out["page"] = page
			}
			return writeJSON(cmd.OutOrStdout(), out, "")
		}
		if !found {
			return fmt.Errorf("category not found: %s", name)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", page.ID, page.Title)
		return nil
	},
}

func init() {
	lookupCmd.Flags().BoolVar(&lookupJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(lookupCmd)
}
