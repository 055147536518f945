package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"allthetropes/catwalk/internal/db"
	"allthetropes/catwalk/internal/wiki"
)

var (
	showJSON   bool
	showSelect string
)

// projection renders one read-only view of the store.
type projection struct {
	help  string
	query func(ctx context.Context, d *db.DB) (any, error)
	print func(w io.Writer, v any)
}

var projections = map[string]projection{
	"categories": {
		help: "every category with its member count",
		query: func(ctx context.Context, d *db.DB) (any, error) {
			return d.ListCategories(ctx)
		},
		print: func(w io.Writer, v any) {
			for _, c := range v.([]db.CategoryCount) {
				fmt.Fprintf(w, "%8d  %6d  %s\n", c.ID, c.Members, c.Title)
			}
		},
	},
	"tropes": {
		help: "every trope",
		query: func(ctx context.Context, d *db.DB) (any, error) {
			return d.AllTropes(ctx)
		},
		print: printPages,
	},
	"members": {
		help: "category and member title pairs",
		query: func(ctx context.Context, d *db.DB) (any, error) {
			return d.ListMembers(ctx)
		},
		print: func(w io.Writer, v any) {
			for _, m := range v.([]db.Membership) {
				fmt.Fprintf(w, "%-40s  %-8s  %s\n", truncTitle(m.CategoryTitle, 40), m.MemberKind, m.MemberTitle)
			}
		},
	},
	"by-trope": {
		help: "the categories of each trope",
		query: func(ctx context.Context, d *db.DB) (any, error) {
			return d.CategoriesByTrope(ctx)
		},
		print: printGroupings,
	},
	"nested": {
		help: "categories that are members of another category",
		query: func(ctx context.Context, d *db.DB) (any, error) {
			return d.CategoriesThatAreMembers(ctx)
		},
		print: printPages,
	},
	"by-category": {
		help: "the parent categories of each nested category",
		query: func(ctx context.Context, d *db.DB) (any, error) {
			return d.CategoriesByCategory(ctx)
		},
		print: printGroupings,
	},
}

func projectionNames() []string {
	return []string{"categories", "tropes", "members", "by-trope", "nested", "by-category"}
}

func projectionHelp() string {
	var b strings.Builder
	b.WriteString("Projections:\n")
	for _, name := range projectionNames() {
		fmt.Fprintf(&b, "  %-12s %s\n", name, projections[name].help)
	}
	return b.String()
}

var showCmd = &cobra.Command{
	Use:       "show <projection>",
	Short:     "Print a read-only view of the membership store",
	Long:      "Print a read-only view of the membership store.\n\n" + projectionHelp(),
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: projectionNames(),
	RunE: func(cmd *cobra.Command, args []string) error {
		p := projections[args[0]]

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := OpenDatabase(cfg, false)
		if err != nil {
			return err
		}
		defer store.Close()

		v, err := p.query(cmd.Context(), store)
		if err != nil {
			return err
		}
		if showJSON || showSelect != "" {
			return writeJSON(cmd.OutOrStdout(), v, showSelect)
		}
		p.print(cmd.OutOrStdout(), v)
		return nil
	},
}

func printPages(w io.Writer, v any) {
	for _, p := range v.([]wiki.Page) {
		fmt.Fprintf(w, "%8d  %s\n", p.ID, p.Title)
	}
}

func printGroupings(w io.Writer, v any) {
	for _, g := range v.([]db.Grouping) {
		titles := make([]string, len(g.Categories))
		for i, c := range g.Categories {
			titles[i] = c.Title
		}
		fmt.Fprintf(w, "%s: %s\n", g.Member.Title, strings.Join(titles, ", "))
	}
}

func init() {
	showCmd.Flags().BoolVar(&showJSON, "json", false, "Output as JSON")
	showCmd.Flags().StringVar(&showSelect, "select", "", "JSONPath applied to the JSON output")
	rootCmd.AddCommand(showCmd)
}
