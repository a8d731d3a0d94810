package frame

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/censusmap/internal/places"
	"github.com/sells-group/censusmap/pkg/census"
)

func testUnit(geoid, name string, vals map[string]float64) census.Unit {
	values := make(map[string]census.Value, len(vals))
	for k, v := range vals {
		values[k] = census.Value{Estimate: v, Valid: true}
	}
	return census.Unit{GEOID: geoid, Name: name, Values: values}
}

func testPolygon(t *testing.T) geom.T {
	t.Helper()
	poly, err := geom.NewPolygon(geom.XY).SetCoords([][]geom.Coord{
		{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}},
	})
	require.NoError(t, err)
	return poly.SetSRID(4326)
}

func threeTracts(t *testing.T) []census.Unit {
	t.Helper()
	units := []census.Unit{
		testUnit("36001000100", "Tract 1", map[string]float64{"income": 50000, "no_school": 0.05}),
		testUnit("36001000200", "Tract 2", map[string]float64{"income": 62000, "no_school": 0.02}),
		testUnit("36001000300", "Tract 3", map[string]float64{"income": 43000}),
	}
	units[0].Geometry = testPolygon(t)
	units[1].Geometry = testPolygon(t)
	return units
}

func TestNew_PreservesOrderAndValues(t *testing.T) {
	f := New(threeTracts(t), []string{"income", "no_school"})

	assert.Equal(t, 3, f.NumUnits())
	assert.Equal(t, []string{"income", "no_school"}, f.Columns())
	assert.Equal(t, "36001000100", f.Units()[0].GEOID)
	assert.Equal(t, "36001000300", f.Units()[2].GEOID)

	v, ok := f.Value("income", "36001000200")
	require.True(t, ok)
	assert.Equal(t, 62000.0, v)
}

func TestNew_MissingValues(t *testing.T) {
	units := threeTracts(t)
	// An annotated estimate arrives invalid.
	units[1].Values["income"] = census.Value{Estimate: -666666666, Valid: false}

	f := New(units, []string{"income", "no_school"})

	_, ok := f.Value("income", "36001000200")
	assert.False(t, ok, "invalid estimate must be a missing cell")

	_, ok = f.Value("no_school", "36001000300")
	assert.False(t, ok, "absent alias must be a missing cell")
}

func TestNew_DuplicateMetricNames(t *testing.T) {
	f := New(threeTracts(t), []string{"income", "income"})
	assert.Equal(t, []string{"income"}, f.Columns())
}

func TestLeftJoinMetric_Basic(t *testing.T) {
	f := New(threeTracts(t), []string{"income"})

	f.LeftJoinMetric(&places.Metric{
		Name: "CHD",
		Values: map[string]float64{
			"36001000100": 6.3,
			"36001000300": 7.1,
			"99999999999": 1.0, // no such unit
		},
	})

	assert.Equal(t, []string{"income", "CHD"}, f.Columns())
	assert.Equal(t, 3, f.NumUnits(), "joining never drops units")

	v, ok := f.Value("CHD", "36001000100")
	require.True(t, ok)
	assert.Equal(t, 6.3, v)

	_, ok = f.Value("CHD", "36001000200")
	assert.False(t, ok, "unmatched unit must be missing")

	_, ok = f.Value("CHD", "99999999999")
	assert.False(t, ok, "unmatched metric keys are dropped")
}

func TestLeftJoinMetric_ReplacesColumn(t *testing.T) {
	f := New(threeTracts(t), []string{"income"})

	f.LeftJoinMetric(&places.Metric{Name: "CHD", Values: map[string]float64{"36001000100": 1}})
	f.LeftJoinMetric(&places.Metric{Name: "CHD", Values: map[string]float64{"36001000100": 2}})

	assert.Equal(t, []string{"income", "CHD"}, f.Columns())
	v, _ := f.Value("CHD", "36001000100")
	assert.Equal(t, 2.0, v)
}

func TestMatchRate(t *testing.T) {
	f := New(threeTracts(t), []string{"income"})
	f.LeftJoinMetric(&places.Metric{
		Name:   "CHD",
		Values: map[string]float64{"36001000100": 6.3, "36001000200": 5.0},
	})

	assert.InDelta(t, 1.0, f.MatchRate("income"), 1e-9)
	assert.InDelta(t, 2.0/3.0, f.MatchRate("CHD"), 1e-9)
	assert.Zero(t, f.MatchRate("nope"))
}

func TestCheckJoin(t *testing.T) {
	f := New(threeTracts(t), []string{"income"})
	f.LeftJoinMetric(&places.Metric{
		Name:   "CHD",
		Values: map[string]float64{"1100100": 6.3}, // unpadded keys match nothing
	})

	require.NoError(t, f.CheckJoin("income"))

	err := f.CheckJoin("CHD")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrKeyMismatch))
	assert.Contains(t, err.Error(), "CHD")
}

func TestUnpivot_Cardinality(t *testing.T) {
	f := New(threeTracts(t), []string{"income", "no_school"})

	long, err := f.Unpivot("variable", "estimate")
	require.NoError(t, err)

	require.Len(t, long.Rows, 6, "rows must be units times metrics")
	assert.Equal(t, "variable", long.VariableCol)
	assert.Equal(t, "estimate", long.ValueCol)

	// Grouped by unit in input order, metrics in listed order within a unit.
	assert.Equal(t, "36001000100", long.Rows[0].GEOID)
	assert.Equal(t, "income", long.Rows[0].Variable)
	assert.Equal(t, "no_school", long.Rows[1].Variable)
	assert.Equal(t, "36001000200", long.Rows[2].GEOID)
	assert.Equal(t, "36001000300", long.Rows[4].GEOID)
}

func TestUnpivot_ValueFidelity(t *testing.T) {
	f := New(threeTracts(t), []string{"income", "no_school"})

	long, err := f.Unpivot("", "")
	require.NoError(t, err)

	for _, obs := range long.Rows {
		want, ok := f.Value(obs.Variable, obs.GEOID)
		assert.Equal(t, ok, obs.Valid, "unit %s variable %s", obs.GEOID, obs.Variable)
		if ok {
			assert.Equal(t, want, obs.Value)
		}
	}

	// Tract 3 has no no_school value; its row exists but is invalid.
	last := long.Rows[5]
	assert.Equal(t, "36001000300", last.GEOID)
	assert.Equal(t, "no_school", last.Variable)
	assert.False(t, last.Valid)
}

func TestUnpivot_CarriesIdentifiersAndGeometry(t *testing.T) {
	f := New(threeTracts(t), []string{"income"})

	long, err := f.Unpivot("variable", "value")
	require.NoError(t, err)

	assert.Equal(t, 4326, long.SRID)
	assert.Equal(t, "Tract 1", long.Rows[0].Name)
	assert.NotNil(t, long.Rows[0].Geometry)
	assert.Nil(t, long.Rows[2].Geometry, "units without boundaries stay geometry-less")
}

func TestUnpivot_SelectedMetrics(t *testing.T) {
	f := New(threeTracts(t), []string{"income", "no_school"})

	long, err := f.Unpivot("variable", "value", "no_school")
	require.NoError(t, err)

	require.Len(t, long.Rows, 3)
	for _, obs := range long.Rows {
		assert.Equal(t, "no_school", obs.Variable)
	}
}

func TestUnpivot_UnknownMetric(t *testing.T) {
	f := New(threeTracts(t), []string{"income"})

	_, err := f.Unpivot("variable", "value", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
}

func TestUnpivot_EmptyFrame(t *testing.T) {
	f := New(nil, []string{"income"})

	long, err := f.Unpivot("variable", "value")
	require.NoError(t, err)
	assert.Empty(t, long.Rows)
	assert.Zero(t, long.SRID)
}
