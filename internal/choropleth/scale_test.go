package choropleth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseColor(t *testing.T) {
	c, err := parseColor("#132B43")
	require.NoError(t, err)
	assert.Equal(t, rgb{0x13, 0x2b, 0x43}, c)

	c, err = parseColor("#abc")
	require.NoError(t, err)
	assert.Equal(t, rgb{0xaa, 0xbb, 0xcc}, c)

	for _, bad := range []string{"", "blue", "#12345", "#gggggg"} {
		_, err := parseColor(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestRGBLerp(t *testing.T) {
	black := rgb{0, 0, 0}
	white := rgb{255, 255, 255}

	assert.Equal(t, "#000000", black.lerp(white, 0).String())
	assert.Equal(t, "#ffffff", black.lerp(white, 1).String())
	assert.Equal(t, "#808080", black.lerp(white, 0.5).String())
}

func TestNewScale_Defaults(t *testing.T) {
	sc, err := newScale([]float64{3, 1, 2}, ScaleOptions{})
	require.NoError(t, err)

	assert.Equal(t, [2]float64{1, 3}, sc.domain)
	assert.Equal(t, "#132b43", sc.color(1, true))
	assert.Equal(t, "#56b1f7", sc.color(3, true))
	assert.Equal(t, defaultNoDataColor, sc.color(2, false))
}

func TestNewScale_TrimQuantile(t *testing.T) {
	values := make([]float64, 0, 21)
	for i := 1; i <= 20; i++ {
		values = append(values, float64(i))
	}
	values = append(values, 1000) // outlier

	sc, err := newScale(values, ScaleOptions{TrimQuantile: 0.1})
	require.NoError(t, err)

	assert.GreaterOrEqual(t, sc.domain[0], 1.0)
	assert.Less(t, sc.domain[1], 1000.0, "trim must cut the outlier")
	assert.Less(t, sc.domain[0], sc.domain[1])
}

func TestNewScale_TrimOutOfRange(t *testing.T) {
	_, err := newScale([]float64{1, 2}, ScaleOptions{TrimQuantile: 0.5})
	require.Error(t, err)

	_, err = newScale([]float64{1, 2}, ScaleOptions{TrimQuantile: -0.1})
	require.Error(t, err)
}

func TestNewScale_BadColor(t *testing.T) {
	_, err := newScale([]float64{1, 2}, ScaleOptions{LowColor: "red"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "low color")
}

func TestScale_ColorClampsOutOfDomain(t *testing.T) {
	sc, err := newScale([]float64{10, 20}, ScaleOptions{LowColor: "#000000", HighColor: "#ffffff"})
	require.NoError(t, err)

	assert.Equal(t, "#000000", sc.color(-5, true))
	assert.Equal(t, "#ffffff", sc.color(99, true))
}

func TestScale_DegenerateDomain(t *testing.T) {
	sc, err := newScale([]float64{7, 7, 7}, ScaleOptions{LowColor: "#000000", HighColor: "#ffffff"})
	require.NoError(t, err)

	// Everything lands mid-ramp rather than dividing by zero.
	assert.Equal(t, "#808080", sc.color(7, true))
}

func TestScale_Classes(t *testing.T) {
	sc, err := newScale([]float64{0, 10}, ScaleOptions{
		LowColor:  "#000000",
		HighColor: "#ffffff",
		Classes:   2,
	})
	require.NoError(t, err)

	assert.Equal(t, "#000000", sc.color(2, true))
	assert.Equal(t, "#ffffff", sc.color(8, true))
	assert.Equal(t, "#ffffff", sc.color(10, true))
}
