// Package frame joins census units with external metrics and reshapes the
// result into the long form the renderer consumes.
package frame

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/censusmap/internal/places"
	"github.com/sells-group/censusmap/pkg/census"
)

// ErrKeyMismatch reports a join that matched no units at all, which almost
// always means the join keys disagree in padding or type.
var ErrKeyMismatch = eris.New("frame: join matched no rows")

// Frame is a wide table with one row per census unit, in fetch order, and
// one column per metric. Cells are missing rather than zero when a unit has
// no value for a column.
type Frame struct {
	units   []census.Unit
	columns []string
	cells   map[string]map[string]float64 // column → GEOID → value
}

// New builds a frame from fetched units, pulling the named metrics out of
// each unit's values. Invalid estimates become missing cells. Unit order is
// preserved throughout the frame's life.
func New(units []census.Unit, metrics []string) *Frame {
	f := &Frame{
		units: append([]census.Unit(nil), units...),
		cells: make(map[string]map[string]float64, len(metrics)),
	}

	for _, name := range metrics {
		if _, ok := f.cells[name]; ok {
			continue
		}
		col := make(map[string]float64, len(units))
		for _, u := range units {
			if v, ok := u.Values[name]; ok && v.Valid {
				col[u.GEOID] = v.Estimate
			}
		}
		f.columns = append(f.columns, name)
		f.cells[name] = col
	}

	return f
}

// LeftJoinMetric adds an external metric as a column. Units keep their order,
// units without a matching key get a missing cell, and metric keys that match
// no unit are dropped. Joining the same name again replaces the column.
func (f *Frame) LeftJoinMetric(m *places.Metric) {
	col := make(map[string]float64, len(f.units))
	matched := 0
	for _, u := range f.units {
		if v, ok := m.Values[u.GEOID]; ok {
			col[u.GEOID] = v
			matched++
		}
	}

	if _, ok := f.cells[m.Name]; !ok {
		f.columns = append(f.columns, m.Name)
	}
	f.cells[m.Name] = col

	zap.L().Debug("frame: joined metric",
		zap.String("metric", m.Name),
		zap.Int("matched", matched),
		zap.Int("units", len(f.units)),
	)
}

// MatchRate reports the fraction of units that have a value in the column.
func (f *Frame) MatchRate(col string) float64 {
	cells, ok := f.cells[col]
	if !ok || len(f.units) == 0 {
		return 0
	}

	matched := 0
	for _, u := range f.units {
		if _, ok := cells[u.GEOID]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(f.units))
}

// CheckJoin verifies that a joined column matched at least one unit. A zero
// match rate is the canonical symptom of numeric keys that lost their
// leading zeros.
func (f *Frame) CheckJoin(col string) error {
	if f.MatchRate(col) == 0 {
		return eris.Wrapf(ErrKeyMismatch, "column %s", col)
	}
	return nil
}

// NumUnits returns the number of rows in the frame.
func (f *Frame) NumUnits() int { return len(f.units) }

// Units returns the frame's rows in order. The slice is a read-only view.
func (f *Frame) Units() []census.Unit { return f.units }

// Columns returns the metric columns in declaration order. The slice is a
// read-only view.
func (f *Frame) Columns() []string { return f.columns }

// Value reads one cell, reporting whether it is present.
func (f *Frame) Value(col, geoid string) (float64, bool) {
	v, ok := f.cells[col][geoid]
	return v, ok
}

// Observation is one row of the long form: one unit and one variable.
type Observation struct {
	GEOID    string
	Name     string
	Geometry geom.T
	Variable string
	Value    float64
	Valid    bool
}

// Long is the unpivoted frame. Rows are grouped by unit in frame order, and
// within a unit follow the metric order given to Unpivot. VariableCol and
// ValueCol carry the caller's labels for the reshaped columns, used as
// property names on export.
type Long struct {
	Rows        []Observation
	SRID        int
	VariableCol string
	ValueCol    string
}

// Unpivot reshapes the frame from one row per unit to one row per unit and
// metric. Every unit contributes exactly one row per metric: missing cells
// become rows with Valid false, so len(Rows) is always NumUnits times the
// metric count. With no metrics listed, all columns are unpivoted.
func (f *Frame) Unpivot(variable, value string, metrics ...string) (*Long, error) {
	if variable == "" {
		variable = "variable"
	}
	if value == "" {
		value = "value"
	}
	if len(metrics) == 0 {
		metrics = f.columns
	}

	for _, m := range metrics {
		if _, ok := f.cells[m]; !ok {
			return nil, eris.Errorf("frame: unknown column %q", m)
		}
	}

	rows := make([]Observation, 0, len(f.units)*len(metrics))
	for _, u := range f.units {
		for _, m := range metrics {
			obs := Observation{
				GEOID:    u.GEOID,
				Name:     u.Name,
				Geometry: u.Geometry,
				Variable: m,
			}
			if v, ok := f.cells[m][u.GEOID]; ok {
				obs.Value = v
				obs.Valid = true
			}
			rows = append(rows, obs)
		}
	}

	return &Long{Rows: rows, SRID: f.srid(), VariableCol: variable, ValueCol: value}, nil
}

// srid is taken from the first unit that carries geometry.
func (f *Frame) srid() int {
	for _, u := range f.units {
		if u.Geometry != nil {
			return u.Geometry.SRID()
		}
	}
	return 0
}
