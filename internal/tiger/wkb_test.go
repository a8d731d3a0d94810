package tiger

import (
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

func countyPolygon() *shp.Polygon {
	return &shp.Polygon{
		NumParts: 1,
		Parts:    []int32{0},
		Points: []shp.Point{
			{X: -95.0, Y: 29.5},
			{X: -95.0, Y: 30.1},
			{X: -94.4, Y: 30.1},
			{X: -94.4, Y: 29.5},
			{X: -95.0, Y: 29.5},
		},
	}
}

func TestGeomFromShape_Polygon(t *testing.T) {
	g := geomFromShape(countyPolygon())
	require.NotNil(t, g)

	mp, ok := g.(*geom.MultiPolygon)
	require.True(t, ok)
	assert.Equal(t, SRID, mp.SRID())
	assert.Equal(t, 1, mp.NumPolygons())
	assert.Equal(t, 10, len(mp.FlatCoords()))
}

func TestGeomFromShape_MultiPartPolygon(t *testing.T) {
	p := &shp.Polygon{
		NumParts: 2,
		Parts:    []int32{0, 5},
		Points: []shp.Point{
			{X: -95.0, Y: 29.5},
			{X: -95.0, Y: 30.0},
			{X: -94.5, Y: 30.0},
			{X: -94.5, Y: 29.5},
			{X: -95.0, Y: 29.5},
			{X: -96.0, Y: 28.0},
			{X: -96.0, Y: 28.5},
			{X: -95.5, Y: 28.5},
			{X: -95.5, Y: 28.0},
			{X: -96.0, Y: 28.0},
		},
	}

	g := geomFromShape(p)
	require.NotNil(t, g)

	mp, ok := g.(*geom.MultiPolygon)
	require.True(t, ok)
	assert.Equal(t, 2, mp.NumPolygons())
}

func TestGeomFromShape_Point(t *testing.T) {
	g := geomFromShape(&shp.Point{X: -80.19, Y: 25.77})
	require.NotNil(t, g)

	pt, ok := g.(*geom.Point)
	require.True(t, ok)
	assert.Equal(t, SRID, pt.SRID())
	assert.Equal(t, []float64{-80.19, 25.77}, pt.FlatCoords())
}

func TestGeomFromShape_PolyLine(t *testing.T) {
	pl := &shp.PolyLine{
		NumParts: 1,
		Parts:    []int32{0},
		Points: []shp.Point{
			{X: -80.0, Y: 25.0},
			{X: -80.1, Y: 25.1},
			{X: -80.2, Y: 25.2},
		},
	}

	g := geomFromShape(pl)
	require.NotNil(t, g)

	mls, ok := g.(*geom.MultiLineString)
	require.True(t, ok)
	assert.Equal(t, 1, mls.NumLineStrings())
}

func TestGeomFromShape_EmptyShapes(t *testing.T) {
	assert.Nil(t, geomFromShape(&shp.Polygon{}))
	assert.Nil(t, geomFromShape(&shp.PolyLine{}))
	assert.Nil(t, geomFromShape(nil))
	assert.Nil(t, geomFromShape(&shp.Null{}))
}

func TestPartCoords_LastPartRunsToEnd(t *testing.T) {
	points := []shp.Point{
		{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 2, Y: 2}, {X: 3, Y: 3},
	}
	parts := []int32{0, 2}

	assert.Equal(t, []float64{0, 0, 1, 1}, partCoords(points, parts, 0))
	assert.Equal(t, []float64{2, 2, 3, 3}, partCoords(points, parts, 1))
}

func TestGeometryRoundTrip(t *testing.T) {
	g := geomFromShape(countyPolygon())
	require.NotNil(t, g)

	encoded, err := MarshalGeometry(g)
	require.NoError(t, err)
	require.NotEmpty(t, encoded)

	decoded, err := UnmarshalGeometry(encoded)
	require.NoError(t, err)

	mp, ok := decoded.(*geom.MultiPolygon)
	require.True(t, ok)
	assert.Equal(t, SRID, mp.SRID())
	assert.Equal(t, g.FlatCoords(), mp.FlatCoords())
}

func TestUnmarshalGeometry_Garbage(t *testing.T) {
	_, err := UnmarshalGeometry([]byte{0x00, 0x01, 0x02})
	assert.Error(t, err)
}
