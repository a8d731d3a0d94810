package tiger

import (
	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"go.uber.org/zap"
)

// SRID is the spatial reference carried by every geometry this package
// produces (WGS 84 longitude/latitude).
const SRID = 4326

// MarshalGeometry encodes a geometry as EWKB for the persistent boundary cache.
func MarshalGeometry(g geom.T) ([]byte, error) {
	data, err := ewkb.Marshal(g, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "tiger: marshal geometry")
	}
	return data, nil
}

// UnmarshalGeometry decodes EWKB bytes read back from the boundary cache.
func UnmarshalGeometry(data []byte) (geom.T, error) {
	g, err := ewkb.Unmarshal(data)
	if err != nil {
		return nil, eris.Wrap(err, "tiger: unmarshal geometry")
	}
	return g, nil
}

// geomFromShape converts a shapefile record to a go-geom geometry with SRID
// 4326. Cartographic boundary layers ship polygons, but point and polyline
// records are handled so a mixed layer does not abort a parse. Returns nil
// for empty or unsupported shapes.
func geomFromShape(shape shp.Shape) geom.T {
	switch s := shape.(type) {
	case *shp.Point:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y}).SetSRID(SRID)
	case *shp.Polygon:
		return shapeToMultiPolygon(s)
	case *shp.PolyLine:
		return shapeToMultiLineString(s)
	default:
		return nil
	}
}

// partCoords returns the flat XY coordinates of part i. Shapefile multipart
// records store one point array with part start offsets; the last part runs
// to the end of the array.
func partCoords(points []shp.Point, parts []int32, i int) []float64 {
	start := parts[i]
	end := int32(len(points))
	if i+1 < len(parts) {
		end = parts[i+1]
	}

	flat := make([]float64, 0, (end-start)*2)
	for _, p := range points[start:end] {
		flat = append(flat, p.X, p.Y)
	}
	return flat
}

// shapeToMultiPolygon treats every part as an outer ring. The cartographic
// boundary files carry holes (lakes, enclaves) as separate parts; rendering
// them as stacked rings is acceptable for choropleth fills.
func shapeToMultiPolygon(p *shp.Polygon) geom.T {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY).SetSRID(SRID)
	for i := range p.Parts {
		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(geom.NewLinearRingFlat(geom.XY, partCoords(p.Points, p.Parts, i))); err != nil {
			zap.L().Debug("tiger: dropping bad ring", zap.Int("part", i), zap.Error(err))
			continue
		}
		if err := mp.Push(poly); err != nil {
			zap.L().Debug("tiger: dropping bad polygon part", zap.Int("part", i), zap.Error(err))
		}
	}

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

func shapeToMultiLineString(pl *shp.PolyLine) geom.T {
	if pl == nil || pl.NumParts == 0 || len(pl.Points) == 0 {
		return nil
	}

	mls := geom.NewMultiLineString(geom.XY).SetSRID(SRID)
	for i := range pl.Parts {
		ls := geom.NewLineStringFlat(geom.XY, partCoords(pl.Points, pl.Parts, i))
		if err := mls.Push(ls); err != nil {
			zap.L().Debug("tiger: dropping bad line part", zap.Int("part", i), zap.Error(err))
		}
	}

	if mls.NumLineStrings() == 0 {
		return nil
	}
	return mls
}
