// Package places loads external metrics, such as CDC PLACES health measure
// releases, from CSV, XLSX, and shapefile attribute tables into values keyed
// by normalized GEOID so they can be joined against census units.
package places

import (
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/censusmap/internal/transform"
)

// Default column names match the CDC PLACES release layout.
const (
	DefaultUnitIDColumn = "LocationID"
	DefaultValueColumn  = "Data_Value"
)

// Metric is a named set of observations keyed by normalized GEOID.
type Metric struct {
	Name   string
	Values map[string]float64
}

// Filter keeps only rows whose named column equals the given value.
// Column lookup is case-insensitive; values are compared after trimming
// whitespace and surrounding quotes.
type Filter struct {
	Column string
	Equals string
}

// Options configures how a source file is read. Zero values fall back to
// the CDC PLACES column layout at tract level.
type Options struct {
	UnitIDColumn string   // column holding the unit GEOID
	ValueColumn  string   // column holding the numeric value
	MetricName   string   // metric name; derived from the data when empty
	Filters      []Filter // rows must match every filter
	Geography    string   // geography level used to normalize GEOIDs
	SheetName    string   // XLSX sheet; first sheet when empty
}

func (o Options) withDefaults() Options {
	if o.UnitIDColumn == "" {
		o.UnitIDColumn = DefaultUnitIDColumn
	}
	if o.ValueColumn == "" {
		o.ValueColumn = DefaultValueColumn
	}
	if o.Geography == "" {
		o.Geography = "tract"
	}
	return o
}

func requiredColumns(opts Options) []string {
	cols := []string{opts.UnitIDColumn, opts.ValueColumn}
	for _, f := range opts.Filters {
		cols = append(cols, f.Column)
	}
	return cols
}

// builder accumulates observations from one source file.
type builder struct {
	name       string
	width      int
	values     map[string]float64
	skipped    int
	duplicates int
}

func newBuilder(opts Options) *builder {
	return &builder{
		name:   opts.MetricName,
		width:  transform.GEOIDWidth(opts.Geography),
		values: make(map[string]float64),
	}
}

// add records one observation. Rows with an empty key or a value that is not
// a finite number count as absent. Duplicate keys keep the last value seen.
func (b *builder) add(rawID, rawValue string) {
	id := transform.NormalizeGEOID(trimQuotes(rawID), b.width)
	if id == "" {
		b.skipped++
		return
	}

	v, err := strconv.ParseFloat(trimQuotes(rawValue), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		b.skipped++
		return
	}

	if _, ok := b.values[id]; ok {
		b.duplicates++
	}
	b.values[id] = v
}

// metric finalizes the accumulated values. fallback names the metric when
// neither Options.MetricName nor the data provided one.
func (b *builder) metric(fallback string) *Metric {
	name := b.name
	if name == "" {
		name = fallback
	}

	if b.duplicates > 0 {
		zap.L().Debug("places: duplicate unit IDs, kept last value",
			zap.String("metric", name),
			zap.Int("duplicates", b.duplicates),
		)
	}
	if b.skipped > 0 {
		zap.L().Debug("places: skipped rows with missing keys or non-numeric values",
			zap.String("metric", name),
			zap.Int("skipped", b.skipped),
		)
	}

	return &Metric{Name: name, Values: b.values}
}

// mapColumns builds a case-insensitive column name to index map.
func mapColumns(header []string) map[string]int {
	m := make(map[string]int, len(header))
	for i, col := range header {
		m[strings.ToLower(strings.TrimSpace(col))] = i
	}
	return m
}

// getCol gets a column value by name, returning empty string if not found.
func getCol(record []string, colIdx map[string]int, name string) string {
	idx, ok := colIdx[strings.ToLower(name)]
	if !ok || idx >= len(record) {
		return ""
	}
	return record[idx]
}

func requireColumns(colIdx map[string]int, names ...string) error {
	for _, name := range names {
		if name == "" {
			continue
		}
		if _, ok := colIdx[strings.ToLower(name)]; !ok {
			return eris.Errorf("places: column %q not found in header", name)
		}
	}
	return nil
}

func matchFilters(record []string, colIdx map[string]int, filters []Filter) bool {
	for _, f := range filters {
		if trimQuotes(getCol(record, colIdx, f.Column)) != f.Equals {
			return false
		}
	}
	return true
}

func trimQuotes(s string) string {
	return strings.Trim(strings.TrimSpace(s), `"`)
}
