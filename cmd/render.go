package main

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/censusmap/internal/choropleth"
	"github.com/sells-group/censusmap/internal/pipeline"
	"github.com/sells-group/censusmap/internal/places"
	"github.com/sells-group/censusmap/internal/transform"
)

// palettes maps a palette name to a two-color ramp (low, high).
var palettes = map[string][2]string{
	"blues":   {"#132B43", "#56B1F7"},
	"viridis": {"#440154", "#FDE725"},
	"magma":   {"#000004", "#FCFDBF"},
	"plasma":  {"#0D0887", "#F0F921"},
	"heat":    {"#FFF5F0", "#67000D"},
}

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render a faceted choropleth map",
	Long: `Runs the full pipeline: fetches ACS estimates and boundary geometry, joins
an external measure table such as a CDC PLACES release, and renders one SVG
with a panel per variable sharing a single color scale. Optionally writes
the joined data as GeoJSON alongside the map.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		year, _ := cmd.Flags().GetInt("year")
		dataset, _ := cmd.Flags().GetString("dataset")
		state, _ := cmd.Flags().GetString("state")
		county, _ := cmd.Flags().GetString("county")
		geography, _ := cmd.Flags().GetString("geography")
		varsPath, _ := cmd.Flags().GetString("variables")
		placesPath, _ := cmd.Flags().GetString("places")
		measure, _ := cmd.Flags().GetString("measure")
		release, _ := cmd.Flags().GetString("release")
		minMatch, _ := cmd.Flags().GetFloat64("min-match-rate")
		selectStr, _ := cmd.Flags().GetString("select")
		out, _ := cmd.Flags().GetString("out")
		geojsonOut, _ := cmd.Flags().GetString("geojson")

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

		render, err := renderOptions(cmd)
		if err != nil {
			return err
		}

		if out == "" {
			out = filepath.Join(cfg.Render.OutputDir,
				fmt.Sprintf("censusmap_%d_%s.svg", year, geography))
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
			Resolution:      cfg.Tiger.Resolution,
			BoundaryBaseURL: cfg.Tiger.BaseURL,
			BoundaryFTPHost: cfg.Tiger.FTPHost,
			CacheDir:        cfg.Cache.Dir,
			PreferFTP:       cfg.Tiger.PreferFTP,
			MinMatchRate:    minMatch,
			Render:          render,
			OutSVG:          out,
			OutGeoJSON:      geojsonOut,
		}
		if selectStr != "" {
			params.SelectMetrics = splitAndTrim(selectStr)
		}
		if placesPath == "" && measure != "" {
			// No local file given; pull the configured PLACES release.
			placesPath, err = downloadPlaces(ctx)
			if err != nil {
				return err
			}
			if release == "" {
				release = cfg.Places.Release
			}
		}
		if placesPath != "" {
			src := &pipeline.ExternalSource{
				Path:    placesPath,
				Options: places.Options{Geography: geography},
			}
			if measure != "" {
				src.Options.Filters = append(src.Options.Filters,
					places.Filter{Column: "MeasureId", Equals: measure})
			}
			if release != "" {
				src.Options.Filters = append(src.Options.Filters,
					places.Filter{Column: "Year", Equals: release})
			}
			params.External = src
		}

		res, err := pipeline.Run(ctx, deps, params)
		if err != nil {
			return eris.Wrap(err, "render")
		}

		zap.L().Info("render complete",
			zap.String("run_id", res.RunID),
			zap.Int("units", res.Units),
			zap.Strings("panels", res.Artifact.Panels),
			zap.Float64("match_rate", res.MatchRate),
		)

		fmt.Printf("Wrote %s (%d units, %d panels)\n", res.SVGPath, res.Units, len(res.Artifact.Panels))
		if params.External != nil {
			fmt.Printf("Join match rate: %.1f%%\n", 100*res.MatchRate)
		}
		if res.GeoJSONPath != "" {
			fmt.Printf("Wrote %s\n", res.GeoJSONPath)
		}
		return nil
	},
}

func init() {
	renderCmd.Flags().Int("year", 0, "ACS vintage (default: from config)")
	renderCmd.Flags().String("dataset", "", "dataset path (default: from config)")
	renderCmd.Flags().String("state", "", "state abbreviation or FIPS code (required)")
	renderCmd.Flags().String("county", "", "3-digit county FIPS; narrows tract and block group output")
	renderCmd.Flags().String("geography", "tract", "geography level")
	renderCmd.Flags().String("variables", "", "variables YAML file (required)")
	renderCmd.Flags().String("places", "", "external measure file: .csv, .xlsx, or .shp (default: download the configured PLACES release when --measure is set)")
	renderCmd.Flags().String("measure", "", "keep only rows with this MeasureId, e.g. CHD")
	renderCmd.Flags().String("release", "", "keep only rows from this release year (default: places.release from config)")
	renderCmd.Flags().Float64("min-match-rate", 0, "fail when the join match rate falls below this fraction")
	renderCmd.Flags().String("select", "", "comma-separated metrics to map (default: all)")
	renderCmd.Flags().String("title", "", "map title")
	renderCmd.Flags().Int("columns", 0, "facet columns (default: from config)")
	renderCmd.Flags().Int("width", 0, "SVG width in px (default: from config)")
	renderCmd.Flags().Int("height", 0, "SVG height in px")
	renderCmd.Flags().String("palette", "", "color ramp name: blues, viridis, magma, plasma, heat")
	renderCmd.Flags().String("low-color", "", "ramp start as #RRGGBB; overrides --palette")
	renderCmd.Flags().String("high-color", "", "ramp end as #RRGGBB; overrides --palette")
	renderCmd.Flags().Int("classes", 0, "quantize the ramp into discrete classes")
	renderCmd.Flags().Float64("trim-quantile", 0, "trim the scale domain to [q, 1-q]")
	renderCmd.Flags().Bool("no-north-arrow", false, "omit the north arrow")
	renderCmd.Flags().Bool("imperial", false, "scale bar in miles instead of kilometers")
	renderCmd.Flags().String("out", "", "SVG output path (default: under render.output_dir)")
	renderCmd.Flags().String("geojson", "", "also write the joined data as GeoJSON")
	_ = renderCmd.MarkFlagRequired("state")
	_ = renderCmd.MarkFlagRequired("variables")
	rootCmd.AddCommand(renderCmd)
}

// renderOptions assembles choropleth options from flags and config defaults.
func renderOptions(cmd *cobra.Command) (choropleth.Options, error) {
	title, _ := cmd.Flags().GetString("title")
	columns, _ := cmd.Flags().GetInt("columns")
	width, _ := cmd.Flags().GetInt("width")
	height, _ := cmd.Flags().GetInt("height")
	palette, _ := cmd.Flags().GetString("palette")
	lowColor, _ := cmd.Flags().GetString("low-color")
	highColor, _ := cmd.Flags().GetString("high-color")
	classes, _ := cmd.Flags().GetInt("classes")
	trimQ, _ := cmd.Flags().GetFloat64("trim-quantile")
	noArrow, _ := cmd.Flags().GetBool("no-north-arrow")
	imperial, _ := cmd.Flags().GetBool("imperial")

	if columns == 0 {
		columns = cfg.Render.Columns
	}
	if width == 0 {
		width = cfg.Render.Width
	}
	cfg.Render.Columns = columns
	cfg.Render.Width = width
	if err := cfg.Validate("render"); err != nil {
		return choropleth.Options{}, err
	}

	if palette == "" {
		palette = cfg.Render.Palette
	}
	ramp, ok := palettes[strings.ToLower(palette)]
	if !ok {
		return choropleth.Options{}, eris.Errorf("unknown palette %q (want one of: blues, viridis, magma, plasma, heat)", palette)
	}
	if lowColor != "" {
		ramp[0] = lowColor
	}
	if highColor != "" {
		ramp[1] = highColor
	}

	opts := choropleth.Options{
		Title:   title,
		Columns: columns,
		Width:   width,
		Height:  height,
		Scale: choropleth.ScaleOptions{
			LowColor:     ramp[0],
			HighColor:    ramp[1],
			TrimQuantile: trimQ,
			Classes:      classes,
		},
	}
	if noArrow {
		opts.NorthArrow = choropleth.CornerNone
	}
	if imperial {
		opts.ScaleBar = choropleth.UnitsImperial
	}
	return opts, nil
}
