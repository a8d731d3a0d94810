package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeGEOID(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		width int
		want  string
	}{
		{"already normalized", "36001000100", GEOIDLenTract, "36001000100"},
		{"leading zero lost", "6001000100", GEOIDLenTract, "06001000100"},
		{"float ingestion artifact", "36001000100.0", GEOIDLenTract, "36001000100"},
		{"float with two decimal zeros", "36001000100.00", GEOIDLenTract, "36001000100"},
		{"float and lost zero", "6001000100.0", GEOIDLenTract, "06001000100"},
		{"county five digits", "1001", GEOIDLenCounty, "01001"},
		{"state single digit", "6", GEOIDLenState, "06"},
		{"whitespace", " 36001000100 ", GEOIDLenTract, "36001000100"},
		{"empty", "", GEOIDLenTract, ""},
		{"nonzero decimal kept", "36001000100.5", GEOIDLenTract, "36001000100.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeGEOID(tt.in, tt.width))
		})
	}
}

func TestNormalizeGEOID_Idempotent(t *testing.T) {
	inputs := []string{"36001000100", "6001000100.0", "1001", ""}
	for _, in := range inputs {
		once := NormalizeGEOID(in, GEOIDLenTract)
		twice := NormalizeGEOID(once, GEOIDLenTract)
		assert.Equal(t, once, twice, "input %q", in)
	}
}

func TestGEOIDWidth(t *testing.T) {
	tests := []struct {
		level string
		want  int
	}{
		{"state", GEOIDLenState},
		{"county", GEOIDLenCounty},
		{"place", GEOIDLenPlace},
		{"tract", GEOIDLenTract},
		{"Tract", GEOIDLenTract},
		{"block group", GEOIDLenBlockGroup},
		{"blockgroup", GEOIDLenBlockGroup},
		{"cbg", GEOIDLenBlockGroup},
		{"zcta", GEOIDLenZCTA},
		{"zip code tabulation area", GEOIDLenZCTA},
		{"galaxy", 0},
		{"", 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, GEOIDWidth(tt.level), "level %q", tt.level)
	}
}

func TestNormalizeFIPSState(t *testing.T) {
	assert.Equal(t, "06", NormalizeFIPSState("6"))
	assert.Equal(t, "36", NormalizeFIPSState("36"))
	assert.Equal(t, "", NormalizeFIPSState(""))
	assert.Equal(t, "36", NormalizeFIPSState(" 36 "))
}

func TestNormalizeFIPSCounty(t *testing.T) {
	assert.Equal(t, "001", NormalizeFIPSCounty("1"))
	assert.Equal(t, "061", NormalizeFIPSCounty("61"))
	assert.Equal(t, "061", NormalizeFIPSCounty("061"))
	assert.Equal(t, "", NormalizeFIPSCounty(""))
}

func TestCombineFIPS(t *testing.T) {
	assert.Equal(t, "36001", CombineFIPS("36", "1"))
	assert.Equal(t, "06061", CombineFIPS("6", "61"))
	assert.Equal(t, "", CombineFIPS("", "1"))
	assert.Equal(t, "", CombineFIPS("36", ""))
}

func TestFormatFIPS(t *testing.T) {
	assert.Equal(t, "06", FormatFIPS(6, 2))
	assert.Equal(t, "001", FormatFIPS(1, 3))
	assert.Equal(t, "36001000100", FormatFIPS(36001000100, 11))
}
