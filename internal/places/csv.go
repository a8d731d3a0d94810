package places

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
)

// csvRow carries the standard CDC PLACES columns. Files with other layouts
// are read through the Options column names instead.
type csvRow struct {
	Measure    string `csv:"Measure"`
	MeasureID  string `csv:"MeasureId"`
	DataValue  string `csv:"Data_Value"`
	LocationID string `csv:"LocationID"`
}

// LoadCSV reads a delimited metrics file, such as a CDC PLACES release, and
// returns one metric keyed by normalized GEOID. Filters select the rows of
// interest (for example MeasureId = CHD) before values are read.
func LoadCSV(ctx context.Context, r io.Reader, opts Options) (*Metric, error) {
	opts = opts.withDefaults()

	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, eris.Wrap(err, "places: read csv header")
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\uFEFF")
	}

	colIdx := mapColumns(header)
	if err := requireColumns(colIdx, requiredColumns(opts)...); err != nil {
		return nil, err
	}

	dec, err := csvutil.NewDecoder(reader, header...)
	if err != nil {
		return nil, eris.Wrap(err, "places: create csv decoder")
	}

	// The tagged row covers the PLACES layout; caller-named or oddly cased
	// columns go through the header index.
	tagged := strings.EqualFold(opts.UnitIDColumn, DefaultUnitIDColumn) &&
		strings.EqualFold(opts.ValueColumn, DefaultValueColumn) &&
		hasExact(header, DefaultUnitIDColumn) && hasExact(header, DefaultValueColumn)

	b := newBuilder(opts)
	var derivedName string

	for {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "places: context cancelled")
		}

		var row csvRow
		if err := dec.Decode(&row); err != nil {
			if err == io.EOF {
				break
			}
			// Malformed rows are skippable; a broken reader is not — its
			// error is sticky and would loop forever.
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) || errors.Is(err, csvutil.ErrFieldCount) {
				continue
			}
			return nil, eris.Wrap(err, "places: read csv")
		}

		record := dec.Record()
		if !matchFilters(record, colIdx, opts.Filters) {
			continue
		}

		rawID, rawValue := row.LocationID, row.DataValue
		if !tagged {
			rawID = getCol(record, colIdx, opts.UnitIDColumn)
			rawValue = getCol(record, colIdx, opts.ValueColumn)
		}
		b.add(rawID, rawValue)

		if derivedName == "" {
			switch {
			case row.MeasureID != "":
				derivedName = row.MeasureID
			case row.Measure != "":
				derivedName = row.Measure
			}
		}
	}

	if derivedName == "" {
		derivedName = opts.ValueColumn
	}

	return b.metric(derivedName), nil
}

func hasExact(header []string, name string) bool {
	for _, h := range header {
		if strings.TrimSpace(h) == name {
			return true
		}
	}
	return false
}
