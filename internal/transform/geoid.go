// Package transform derives metrics from fetched census units and
// normalizes geographic identifiers for cross-dataset joins.
package transform

import (
	"fmt"
	"strings"
)

// GEOID lengths by summary level.
const (
	GEOIDLenState      = 2
	GEOIDLenCounty     = 5
	GEOIDLenPlace      = 7
	GEOIDLenTract      = 11
	GEOIDLenBlockGroup = 12
	GEOIDLenZCTA       = 5
)

// GEOIDWidth returns the canonical GEOID width for a geography level.
// Unknown levels return 0, which NormalizeGEOID treats as "no padding".
func GEOIDWidth(level string) int {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "state":
		return GEOIDLenState
	case "county":
		return GEOIDLenCounty
	case "place":
		return GEOIDLenPlace
	case "tract":
		return GEOIDLenTract
	case "block group", "blockgroup", "block_group", "cbg":
		return GEOIDLenBlockGroup
	case "zcta", "zip code tabulation area", "zip_code_tabulation_area":
		return GEOIDLenZCTA
	}
	return 0
}

// NormalizeGEOID normalizes a geographic identifier to a zero-padded string
// of the given width. Sources that round-trip keys through numeric types
// emit values like "36001000100.0" or drop leading zeros; both are
// repaired here. Normalizing an already-normalized GEOID is a no-op.
func NormalizeGEOID(raw string, width int) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	// Strip a decimal tail left by float ingestion ("##.0", "##.00").
	if i := strings.IndexByte(s, '.'); i >= 0 {
		tail := s[i+1:]
		if tail == strings.Repeat("0", len(tail)) {
			s = s[:i]
		}
	}

	for len(s) < width {
		s = "0" + s
	}
	return s
}

// NormalizeFIPSState normalizes a state FIPS code to 2 digits with zero-padding.
func NormalizeFIPSState(code string) string {
	return NormalizeGEOID(code, GEOIDLenState)
}

// NormalizeFIPSCounty normalizes a county FIPS code to 3 digits with zero-padding.
func NormalizeFIPSCounty(code string) string {
	return NormalizeGEOID(code, 3)
}

// CombineFIPS combines state and county FIPS codes into a 5-digit code.
func CombineFIPS(state, county string) string {
	s := NormalizeFIPSState(state)
	c := NormalizeFIPSCounty(county)
	if s == "" || c == "" {
		return ""
	}
	return s + c
}

// FormatFIPS formats a numeric FIPS code with proper zero-padding.
func FormatFIPS(code int, digits int) string {
	return fmt.Sprintf("%0*d", digits, code)
}
