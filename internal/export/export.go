// Package export writes joined frames to interchange formats.
//
// GeoJSON output is one FeatureCollection with a feature per unit (wide
// form) or per observation (long form). Metric columns become feature
// properties, with null standing in for missing values so every feature
// carries the same schema. Units without geometry keep a null geometry
// member rather than being dropped.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/censusmap/internal/frame"
)

// WriteGeoJSON writes f as a GeoJSON FeatureCollection, one feature per
// unit, keyed by GEOID.
func WriteGeoJSON(w io.Writer, f *frame.Frame) error {
	features := make([]*geojson.Feature, 0, f.NumUnits())
	for _, u := range f.Units() {
		props := map[string]interface{}{
			"geoid": u.GEOID,
			"name":  u.Name,
		}
		for _, col := range f.Columns() {
			if v, ok := f.Value(col, u.GEOID); ok {
				props[col] = v
			} else {
				props[col] = nil
			}
		}
		features = append(features, &geojson.Feature{
			ID:         u.GEOID,
			Geometry:   u.Geometry,
			Properties: props,
		})
	}

	fc := &geojson.FeatureCollection{Features: features}
	if err := json.NewEncoder(w).Encode(fc); err != nil {
		return eris.Wrap(err, "export: encode feature collection")
	}

	zap.L().Debug("export: wrote geojson",
		zap.Int("features", len(features)),
		zap.Int("columns", len(f.Columns())),
	)
	return nil
}

// WriteLongGeoJSON writes a reshaped frame as a GeoJSON FeatureCollection,
// one feature per observation. The long form's variable and value labels
// name the corresponding properties.
func WriteLongGeoJSON(w io.Writer, long *frame.Long) error {
	variable, value := long.VariableCol, long.ValueCol
	if variable == "" {
		variable = "variable"
	}
	if value == "" {
		value = "value"
	}

	features := make([]*geojson.Feature, 0, len(long.Rows))
	for _, obs := range long.Rows {
		props := map[string]interface{}{
			"geoid":  obs.GEOID,
			"name":   obs.Name,
			variable: obs.Variable,
		}
		if obs.Valid {
			props[value] = obs.Value
		} else {
			props[value] = nil
		}
		features = append(features, &geojson.Feature{
			Geometry:   obs.Geometry,
			Properties: props,
		})
	}

	fc := &geojson.FeatureCollection{Features: features}
	if err := json.NewEncoder(w).Encode(fc); err != nil {
		return eris.Wrap(err, "export: encode feature collection")
	}

	zap.L().Debug("export: wrote long geojson", zap.Int("features", len(features)))
	return nil
}

// WriteCSV writes f as a flat table: geoid, name, then one column per
// metric. Missing cells are left empty.
func WriteCSV(w io.Writer, f *frame.Frame) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := append([]string{"geoid", "name"}, f.Columns()...)
	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "export: write header")
	}

	for _, u := range f.Units() {
		row := make([]string, 0, len(header))
		row = append(row, u.GEOID, u.Name)
		for _, col := range f.Columns() {
			if v, ok := f.Value(col, u.GEOID); ok {
				row = append(row, strconv.FormatFloat(v, 'f', -1, 64))
			} else {
				row = append(row, "")
			}
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrap(err, "export: write row")
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return eris.Wrap(err, "export: flush")
	}

	zap.L().Debug("export: wrote csv", zap.Int("rows", f.NumUnits()))
	return nil
}
