package tiger

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/censusmap/internal/fetcher"
	"github.com/sells-group/censusmap/internal/transform"
)

// GeometryStore is the persistent boundary cache consulted before the
// network. Geometries are EWKB bytes keyed by GEOID under a
// (year, geography, scope) set, where scope is a state FIPS code or "us".
type GeometryStore interface {
	GetBoundaries(ctx context.Context, year int, geography, scope string) (map[string][]byte, bool, error)
	PutBoundaries(ctx context.Context, year int, geography, scope string, encoded map[string][]byte) error
}

// BoundaryRequest identifies one cartographic boundary download.
type BoundaryRequest struct {
	Geography  string // level: tract, county, state, place, block group, zcta
	StateFIPS  string // required for per-state layers
	CountyFIPS string // optional; narrows county-nested layers after parse
	Year       int
	Resolution string        // 500k, 5m, or 20m (default 500k)
	BaseURL    string        // boundary server prefix (default DefaultBaseURL)
	FTPHost    string        // FTP mirror host:port (default DefaultFTPHost)
	CacheDir   string        // download/extract directory (default os.TempDir()/censusmap)
	PreferFTP  bool          // use the FTP mirror instead of HTTP
	Store      GeometryStore // optional persistent cache
}

func (r BoundaryRequest) validate() (Layer, error) {
	layer, ok := LayerByName(r.Geography)
	if !ok {
		return Layer{}, eris.Errorf("tiger: unsupported geography level %q", r.Geography)
	}
	if !layer.National && strings.TrimSpace(r.StateFIPS) == "" {
		return Layer{}, eris.Errorf("tiger: %s boundaries require a state FIPS code", layer.Name)
	}
	if r.Year == 0 {
		return Layer{}, eris.New("tiger: boundary year is required")
	}
	return layer, nil
}

// FetchBoundaries downloads (or reads from cache) the boundary geometries for
// one geography level and returns them keyed by GEOID, along with the SRID
// they carry.
func FetchBoundaries(ctx context.Context, f fetcher.Fetcher, req BoundaryRequest) (map[string]geom.T, int, error) {
	layer, err := req.validate()
	if err != nil {
		return nil, 0, err
	}

	stateFIPS := req.StateFIPS
	if stateFIPS != "" {
		stateFIPS = transform.NormalizeFIPSState(stateFIPS)
	}

	scope := "us"
	if !layer.National {
		scope = stateFIPS
	}

	log := zap.L().With(
		zap.String("component", "tiger.boundaries"),
		zap.String("geography", layer.Name),
		zap.String("scope", scope),
		zap.Int("year", req.Year),
	)

	if req.Store != nil {
		encoded, ok, getErr := req.Store.GetBoundaries(ctx, req.Year, layer.Name, scope)
		if getErr != nil {
			log.Warn("boundary cache read failed", zap.Error(getErr))
		} else if ok {
			geoms, decErr := decodeBoundaries(encoded)
			if decErr == nil {
				log.Debug("boundary cache hit", zap.Int("units", len(geoms)))
				return narrowToCounty(geoms, layer, stateFIPS, req.CountyFIPS), SRID, nil
			}
			log.Warn("boundary cache entry unreadable, refetching", zap.Error(decErr))
		}
	}

	url := BoundaryURL(req.BaseURL, layer, req.Year, stateFIPS, req.Resolution)
	if req.PreferFTP {
		url = BoundaryFTPURL(req.FTPHost, layer, req.Year, stateFIPS, req.Resolution)
	}

	cacheDir := req.CacheDir
	if cacheDir == "" {
		cacheDir = filepath.Join(os.TempDir(), "censusmap")
	}
	destDir := filepath.Join(cacheDir, "boundaries", strconv.Itoa(req.Year))

	start := time.Now()
	shpPath, err := Download(ctx, f, url, destDir)
	if err != nil && req.PreferFTP {
		log.Warn("ftp download failed, falling back to http", zap.Error(err))
		url = BoundaryURL(req.BaseURL, layer, req.Year, stateFIPS, req.Resolution)
		shpPath, err = Download(ctx, f, url, destDir)
	}
	if err != nil {
		return nil, 0, eris.Wrapf(err, "tiger: fetch %s boundaries for %s", layer.Name, scope)
	}

	geoms, skipped, err := ParseBoundaries(shpPath, layer)
	if err != nil {
		return nil, 0, err
	}

	log.Info("boundaries fetched",
		zap.Int("units", len(geoms)),
		zap.Int("skipped", skipped),
		zap.Duration("duration", time.Since(start)),
	)

	if req.Store != nil {
		encoded, encErr := encodeBoundaries(geoms)
		if encErr != nil {
			log.Warn("boundary cache encode failed", zap.Error(encErr))
		} else if putErr := req.Store.PutBoundaries(ctx, req.Year, layer.Name, scope, encoded); putErr != nil {
			log.Warn("boundary cache write failed", zap.Error(putErr))
		}
	}

	return narrowToCounty(geoms, layer, stateFIPS, req.CountyFIPS), SRID, nil
}

// narrowToCounty keeps only the units of one county for county-nested layers.
// Tract and block-group GEOIDs begin with the 5-digit state+county prefix.
func narrowToCounty(geoms map[string]geom.T, layer Layer, stateFIPS, countyFIPS string) map[string]geom.T {
	if countyFIPS == "" || (layer.Name != "tract" && layer.Name != "block group") {
		return geoms
	}

	prefix := transform.CombineFIPS(stateFIPS, countyFIPS)
	out := make(map[string]geom.T, len(geoms))
	for id, g := range geoms {
		if strings.HasPrefix(id, prefix) {
			out[id] = g
		}
	}
	return out
}

func encodeBoundaries(geoms map[string]geom.T) (map[string][]byte, error) {
	encoded := make(map[string][]byte, len(geoms))
	for id, g := range geoms {
		data, err := MarshalGeometry(g)
		if err != nil {
			return nil, eris.Wrapf(err, "tiger: encode boundary %s", id)
		}
		encoded[id] = data
	}
	return encoded, nil
}

func decodeBoundaries(encoded map[string][]byte) (map[string]geom.T, error) {
	geoms := make(map[string]geom.T, len(encoded))
	for id, data := range encoded {
		g, err := UnmarshalGeometry(data)
		if err != nil {
			return nil, eris.Wrapf(err, "tiger: decode boundary %s", id)
		}
		geoms[id] = g
	}
	return geoms, nil
}
