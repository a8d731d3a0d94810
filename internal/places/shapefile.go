package places

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
)

// LoadShapefile reads metric values from a shapefile's attribute table,
// ignoring the geometry. GIS-friendly PLACES releases ship one column per
// measure, so ValueColumn must name the measure column.
func LoadShapefile(path string, opts Options) (*Metric, error) {
	opts = opts.withDefaults()

	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "places: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	colIdx := make(map[string]int, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		colIdx[strings.ToLower(name)] = i
	}

	if err := requireColumns(colIdx, requiredColumns(opts)...); err != nil {
		return nil, err
	}

	b := newBuilder(opts)

	for reader.Next() {
		record := make([]string, len(fields))
		for i := range fields {
			record[i] = strings.TrimRight(reader.Attribute(i), "\x00")
		}

		if !matchFilters(record, colIdx, opts.Filters) {
			continue
		}

		b.add(getCol(record, colIdx, opts.UnitIDColumn), getCol(record, colIdx, opts.ValueColumn))
	}

	return b.metric(opts.ValueColumn), nil
}
