package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/censusmap/pkg/census"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Browse the variable catalog for a dataset vintage",
	Long: `Lists the variable dictionary for one (year, dataset) pair. Catalogs are
cached locally, so repeat lookups skip the network. Use --search to match
label and concept text, --geography to restrict to a publication level.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		year, _ := cmd.Flags().GetInt("year")
		dataset, _ := cmd.Flags().GetString("dataset")
		geography, _ := cmd.Flags().GetString("geography")
		search, _ := cmd.Flags().GetString("search")
		limit, _ := cmd.Flags().GetInt("limit")

		if year == 0 {
			year = cfg.Census.Year
		}
		if dataset == "" {
			dataset = cfg.Census.Dataset
		}
		if err := cfg.Validate("catalog"); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		cat, err := newCensus(st).Variables(ctx, year, dataset)
		if err != nil {
			return eris.Wrap(err, "catalog")
		}

		vars := cat.All()
		if search != "" {
			vars = cat.Search(search)
		}
		if geography != "" {
			keep := make(map[string]bool)
			for _, v := range cat.ForGeography(geography) {
				keep[v.Name] = true
			}
			filtered := make([]census.Variable, 0, len(vars))
			for _, v := range vars {
				if keep[v.Name] {
					filtered = append(filtered, v)
				}
			}
			vars = filtered
		}

		if len(vars) == 0 {
			fmt.Fprintln(os.Stderr, "No variables matched.")
			return nil
		}

		total := len(vars)
		if limit > 0 && len(vars) > limit {
			vars = vars[:limit]
		}
		formatVariables(os.Stdout, vars)
		if total > len(vars) {
			fmt.Printf("%d of %d variables shown (raise --limit for more)\n", len(vars), total)
		}
		return nil
	},
}

func init() {
	catalogCmd.Flags().Int("year", 0, "dataset vintage (default: from config)")
	catalogCmd.Flags().String("dataset", "", "dataset path, e.g. acs/acs5 (default: from config)")
	catalogCmd.Flags().String("geography", "", "restrict to a publication level, e.g. tract")
	catalogCmd.Flags().String("search", "", "match label and concept text, e.g. \"median income\"")
	catalogCmd.Flags().Int("limit", 40, "maximum variables to print; 0 prints all")
	rootCmd.AddCommand(catalogCmd)
}

// formatVariables writes a tabular variable listing to w.
func formatVariables(out io.Writer, vars []census.Variable) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "CODE\tLABEL\tCONCEPT")
	_, _ = fmt.Fprintln(w, "----\t-----\t-------")

	for _, v := range vars {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n",
			v.Name,
			truncate(v.Label, 64),
			truncate(v.Concept, 40),
		)
	}
	_ = w.Flush()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
