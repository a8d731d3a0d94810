package places

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/censusmap/internal/fetcher"
)

// LoadXLSX reads metric values from a spreadsheet. The first row of the
// selected sheet is treated as the header.
func LoadXLSX(path string, opts Options) (*Metric, error) {
	opts = opts.withDefaults()

	rows, err := fetcher.ReadXLSX(path, fetcher.XLSXOptions{SheetName: opts.SheetName})
	if err != nil {
		return nil, eris.Wrap(err, "places: read xlsx")
	}
	if len(rows) == 0 {
		return nil, eris.Errorf("places: no rows in %s", path)
	}

	colIdx := mapColumns(rows[0])
	if err := requireColumns(colIdx, requiredColumns(opts)...); err != nil {
		return nil, err
	}

	b := newBuilder(opts)

	for _, record := range rows[1:] {
		if !matchFilters(record, colIdx, opts.Filters) {
			continue
		}

		b.add(getCol(record, colIdx, opts.UnitIDColumn), getCol(record, colIdx, opts.ValueColumn))
	}

	return b.metric(opts.ValueColumn), nil
}
