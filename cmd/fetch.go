package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/censusmap/internal/export"
	"github.com/sells-group/censusmap/internal/frame"
	"github.com/sells-group/censusmap/internal/pipeline"
	"github.com/sells-group/censusmap/internal/transform"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch ACS estimates for one geography level",
	Long: `Fetches tabular ACS estimates for every unit of a geography level within a
state, derives any ratios declared in the variables file, and optionally
attaches cartographic boundary geometry. Writes CSV or GeoJSON depending on
the --out extension; with no --out it prints a summary.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		year, _ := cmd.Flags().GetInt("year")
		dataset, _ := cmd.Flags().GetString("dataset")
		state, _ := cmd.Flags().GetString("state")
		county, _ := cmd.Flags().GetString("county")
		geography, _ := cmd.Flags().GetString("geography")
		varsPath, _ := cmd.Flags().GetString("variables")
		geometry, _ := cmd.Flags().GetBool("geometry")
		out, _ := cmd.Flags().GetString("out")

		if year == 0 {
			year = cfg.Census.Year
		}
		if dataset == "" {
			dataset = cfg.Census.Dataset
		}
		if err := cfg.Validate("fetch"); err != nil {
			return err
		}

		stateFIPS, err := resolveState(state)
		if err != nil {
			return err
		}
		if county != "" {
			county = transform.NormalizeFIPSCounty(county)
		}

		vf, err := pipeline.LoadVars(varsPath)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		deps := pipeline.Deps{
			Census:  newCensus(st),
			Fetcher: newFetcher(),
			Store:   st,
		}
		params := pipeline.Params{
			Year:            year,
			Dataset:         dataset,
			Geography:       geography,
			StateFIPS:       stateFIPS,
			CountyFIPS:      county,
			Variables:       vf.Specs(),
			Ratios:          vf.RatioSpecs(),
			Geometry:        geometry,
			Resolution:      cfg.Tiger.Resolution,
			BoundaryBaseURL: cfg.Tiger.BaseURL,
			BoundaryFTPHost: cfg.Tiger.FTPHost,
			CacheDir:        cfg.Cache.Dir,
			PreferFTP:       cfg.Tiger.PreferFTP,
		}

		f, err := pipeline.Fetch(ctx, deps, params)
		if err != nil {
			return eris.Wrap(err, "fetch")
		}

		zap.L().Info("fetch complete",
			zap.Int("units", f.NumUnits()),
			zap.Strings("columns", f.Columns()),
		)

		if out != "" {
			if err := writeFrame(out, f); err != nil {
				return err
			}
			fmt.Printf("Wrote %d units to %s\n", f.NumUnits(), out)
			return nil
		}

		fmt.Printf("Fetched %d %s units (%s)\n",
			f.NumUnits(), geography, strings.Join(f.Columns(), ", "))
		return nil
	},
}

func init() {
	fetchCmd.Flags().Int("year", 0, "ACS vintage (default: from config)")
	fetchCmd.Flags().String("dataset", "", "dataset path (default: from config)")
	fetchCmd.Flags().String("state", "", "state abbreviation or FIPS code (required)")
	fetchCmd.Flags().String("county", "", "3-digit county FIPS; narrows tract and block group output")
	fetchCmd.Flags().String("geography", "tract", "geography level: state, county, tract, block group, place, zcta")
	fetchCmd.Flags().String("variables", "", "variables YAML file (required)")
	fetchCmd.Flags().Bool("geometry", false, "attach cartographic boundary geometry")
	fetchCmd.Flags().String("out", "", "output path; .csv or .geojson")
	_ = fetchCmd.MarkFlagRequired("state")
	_ = fetchCmd.MarkFlagRequired("variables")
	rootCmd.AddCommand(fetchCmd)
}

// writeFrame writes the frame in the format named by the path extension.
func writeFrame(path string, f *frame.Frame) error {
	var write func(io.Writer, *frame.Frame) error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		write = export.WriteCSV
	case ".geojson", ".json":
		write = export.WriteGeoJSON
	default:
		return eris.Errorf("unsupported output extension %s (want .csv or .geojson)", path)
	}

	fh, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "create %s", path)
	}
	defer fh.Close()

	return write(fh, f)
}
