// Package pipeline drives the six-step mapping flow: fetch tabular
// estimates and boundary geometry in parallel, attach geometry by GEOID,
// derive proportion metrics, join an external measure, reshape to long
// form, and render the faceted choropleth.
package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	geom "github.com/twpayne/go-geom"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/censusmap/internal/choropleth"
	"github.com/sells-group/censusmap/internal/export"
	"github.com/sells-group/censusmap/internal/fetcher"
	"github.com/sells-group/censusmap/internal/frame"
	"github.com/sells-group/censusmap/internal/places"
	"github.com/sells-group/censusmap/internal/tiger"
	"github.com/sells-group/censusmap/internal/transform"
	"github.com/sells-group/censusmap/pkg/census"
)

// Deps bundles the clients the pipeline drives.
type Deps struct {
	Census  census.Client
	Fetcher fetcher.Fetcher     // boundary downloads
	Store   tiger.GeometryStore // optional persistent boundary cache
}

// ExternalSource names a local measure file to join onto the fetched
// units. CSV, XLSX, and shapefile attribute tables are recognized by
// extension.
type ExternalSource struct {
	Path    string
	Options places.Options
}

// Params parameterizes one run.
type Params struct {
	Year       int
	Dataset    string // defaults to acs/acs5
	Geography  string // tract, county, state, place, block group, zcta
	StateFIPS  string
	CountyFIPS string

	Variables []census.VariableSpec
	Ratios    []transform.Ratio

	Geometry        bool   // fetch cartographic boundaries and attach by GEOID
	Resolution      string // 500k, 5m, or 20m
	BoundaryBaseURL string // boundary server prefix; empty means the Bureau's
	BoundaryFTPHost string // FTP mirror host:port; empty means ftp2.census.gov
	CacheDir        string // download scratch directory
	PreferFTP       bool

	External     *ExternalSource
	MinMatchRate float64 // join match-rate floor; zero means any nonzero rate passes

	SelectMetrics []string // metrics to map; empty means all
	Render        choropleth.Options
	OutSVG        string
	OutGeoJSON    string
}

func (p Params) validate() error {
	if p.Year <= 0 {
		return eris.New("pipeline: year is required")
	}
	if strings.TrimSpace(p.Geography) == "" {
		return eris.New("pipeline: geography is required")
	}
	if len(p.Variables) == 0 {
		return eris.New("pipeline: at least one variable is required")
	}
	if p.External != nil {
		if _, err := externalExt(p.External.Path); err != nil {
			return err
		}
	}
	return nil
}

func (p Params) metricAliases() []string {
	out := make([]string, 0, len(p.Variables)+len(p.Ratios))
	for _, v := range p.Variables {
		out = append(out, v.Alias)
	}
	for _, r := range p.Ratios {
		out = append(out, r.Alias)
	}
	return out
}

// Result summarizes one completed run.
type Result struct {
	RunID       string
	Units       int
	MatchRate   float64 // external join match rate; 1 when no external source
	Artifact    *choropleth.Artifact
	SVGPath     string
	GeoJSONPath string
}

// Fetch runs the retrieval steps: tabular estimates and boundary geometry
// in parallel, geometry attach, and proportion derivation. The returned
// frame holds one column per variable alias and ratio alias.
func Fetch(ctx context.Context, deps Deps, p Params) (*frame.Frame, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	log := zap.L().With(
		zap.String("component", "pipeline"),
		zap.Int("year", p.Year),
		zap.String("geography", p.Geography),
	)

	var units []census.Unit
	var geoms map[string]geom.T

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		units, err = deps.Census.GetACS(gCtx, census.GetACSRequest{
			Geography:  p.Geography,
			StateFIPS:  p.StateFIPS,
			CountyFIPS: p.CountyFIPS,
			Variables:  p.Variables,
			Year:       p.Year,
			Dataset:    p.Dataset,
		})
		if err != nil {
			return err
		}
		log.Info("pipeline: tabular fetched", zap.Int("units", len(units)))
		return nil
	})

	if p.Geometry {
		g.Go(func() error {
			var err error
			geoms, _, err = tiger.FetchBoundaries(gCtx, deps.Fetcher, tiger.BoundaryRequest{
				Geography:  p.Geography,
				StateFIPS:  p.StateFIPS,
				CountyFIPS: p.CountyFIPS,
				Year:       p.Year,
				Resolution: p.Resolution,
				BaseURL:    p.BoundaryBaseURL,
				FTPHost:    p.BoundaryFTPHost,
				CacheDir:   p.CacheDir,
				PreferFTP:  p.PreferFTP,
				Store:      deps.Store,
			})
			if err != nil {
				return err
			}
			log.Info("pipeline: boundaries fetched", zap.Int("geometries", len(geoms)))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if p.Geometry {
		matched := census.AttachGeometry(units, geoms)
		if matched == 0 && len(units) > 0 {
			log.Warn("pipeline: no geometries matched any unit")
		}
		log.Info("pipeline: geometry attached",
			zap.Int("matched", matched),
			zap.Int("units", len(units)),
		)
	}

	if len(p.Ratios) > 0 {
		var err error
		units, err = transform.DeriveProportions(units, p.Ratios)
		if err != nil {
			return nil, err
		}
		log.Info("pipeline: proportions derived",
			zap.Int("ratios", len(p.Ratios)),
			zap.Int("units", len(units)),
		)
	}

	return frame.New(units, p.metricAliases()), nil
}

// Run executes the full flow and writes the requested outputs. Boundary
// geometry is always fetched; a map needs shapes.
func Run(ctx context.Context, deps Deps, p Params) (*Result, error) {
	runID := uuid.New().String()
	log := zap.L().With(
		zap.String("component", "pipeline"),
		zap.String("run_id", runID),
	)
	log.Info("pipeline: starting run",
		zap.Int("year", p.Year),
		zap.String("geography", p.Geography),
		zap.String("state", p.StateFIPS),
		zap.Int("variables", len(p.Variables)),
	)

	p.Geometry = true
	f, err := Fetch(ctx, deps, p)
	if err != nil {
		return nil, err
	}

	matchRate := 1.0
	if p.External != nil {
		metric, err := loadExternal(ctx, p.External)
		if err != nil {
			return nil, err
		}
		f.LeftJoinMetric(metric)
		if err := f.CheckJoin(metric.Name); err != nil {
			return nil, err
		}
		matchRate = f.MatchRate(metric.Name)
		if p.MinMatchRate > 0 && matchRate < p.MinMatchRate {
			return nil, eris.Errorf("pipeline: join match rate %.1f%% below minimum %.1f%%",
				100*matchRate, 100*p.MinMatchRate)
		}
		log.Info("pipeline: external metric joined",
			zap.String("metric", metric.Name),
			zap.Int("values", len(metric.Values)),
			zap.Float64("match_rate", matchRate),
		)
	}

	long, err := f.Unpivot("variable", "value", p.SelectMetrics...)
	if err != nil {
		return nil, err
	}
	log.Info("pipeline: reshaped", zap.Int("rows", len(long.Rows)))

	art, err := choropleth.Render(long, p.Render)
	if err != nil {
		return nil, err
	}

	res := &Result{
		RunID:     runID,
		Units:     f.NumUnits(),
		MatchRate: matchRate,
		Artifact:  art,
	}

	if p.OutSVG != "" {
		if err := os.WriteFile(p.OutSVG, art.SVG, 0o644); err != nil {
			return nil, eris.Wrapf(err, "pipeline: write svg %s", p.OutSVG)
		}
		res.SVGPath = p.OutSVG
	}

	if p.OutGeoJSON != "" {
		if err := writeGeoJSONFile(p.OutGeoJSON, f); err != nil {
			return nil, err
		}
		res.GeoJSONPath = p.OutGeoJSON
	}

	log.Info("pipeline: run complete",
		zap.Int("units", res.Units),
		zap.Strings("panels", art.Panels),
		zap.Float64("match_rate", matchRate),
	)
	return res, nil
}

func writeGeoJSONFile(path string, f *frame.Frame) error {
	fh, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "pipeline: create geojson %s", path)
	}
	defer fh.Close()
	return export.WriteGeoJSON(fh, f)
}

// loadExternal reads the measure file named by the source, dispatching on
// extension.
func loadExternal(ctx context.Context, src *ExternalSource) (*places.Metric, error) {
	ext, err := externalExt(src.Path)
	if err != nil {
		return nil, err
	}
	switch ext {
	case ".csv":
		fh, err := os.Open(src.Path)
		if err != nil {
			return nil, eris.Wrapf(err, "pipeline: open external source %s", src.Path)
		}
		defer fh.Close()
		return places.LoadCSV(ctx, fh, src.Options)
	case ".xlsx":
		return places.LoadXLSX(src.Path, src.Options)
	default:
		return places.LoadShapefile(src.Path, src.Options)
	}
}

func externalExt(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".csv", ".xlsx", ".shp":
		return ext, nil
	}
	return "", eris.Errorf("pipeline: unsupported external source %s (want .csv, .xlsx, or .shp)", path)
}
