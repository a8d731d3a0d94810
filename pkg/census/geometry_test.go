package census

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/twpayne/go-geom"
)

func TestAttachGeometry(t *testing.T) {
	units := []Unit{
		{GEOID: "36001000100", Name: "Census Tract 1"},
		{GEOID: "36001000200", Name: "Census Tract 2"},
		{GEOID: "36001000300", Name: "Census Tract 3"},
	}
	geoms := map[string]geom.T{
		"36001000100": geom.NewPointFlat(geom.XY, []float64{-73.8, 42.7}),
		"36001000300": geom.NewPointFlat(geom.XY, []float64{-73.9, 42.6}),
		"36001999999": geom.NewPointFlat(geom.XY, []float64{-74.0, 42.5}), // no matching unit
	}

	matched := AttachGeometry(units, geoms)

	assert.Equal(t, 2, matched)
	assert.NotNil(t, units[0].Geometry)
	assert.Nil(t, units[1].Geometry)
	assert.NotNil(t, units[2].Geometry)
}

func TestAttachGeometry_Empty(t *testing.T) {
	assert.Equal(t, 0, AttachGeometry(nil, nil))
	assert.Equal(t, 0, AttachGeometry([]Unit{{GEOID: "36"}}, map[string]geom.T{}))
}
