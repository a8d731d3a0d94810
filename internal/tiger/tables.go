// Package tiger downloads Census cartographic boundary shapefiles and
// converts them into GEOID-keyed geometries for mapping.
package tiger

import (
	"fmt"
	"sort"
	"strings"
)

// Layer describes a cartographic boundary layer published under GENZ{year}/shp.
type Layer struct {
	Name       string // geography level, e.g. "tract"
	FileCode   string // layer token in the cb_* file name, e.g. "tract", "zcta520"
	National   bool   // true = single national file, false = per-state
	GEOIDField string // DBF attribute holding the unit key
}

// Layers lists the boundary layers the fetcher knows how to download.
var Layers = []Layer{
	{Name: "state", FileCode: "state", National: true, GEOIDField: "GEOID"},
	{Name: "county", FileCode: "county", National: true, GEOIDField: "GEOID"},
	{Name: "tract", FileCode: "tract", National: false, GEOIDField: "GEOID"},
	{Name: "block group", FileCode: "bg", National: false, GEOIDField: "GEOID"},
	{Name: "place", FileCode: "place", National: false, GEOIDField: "GEOID"},
	{Name: "zcta", FileCode: "zcta520", National: true, GEOIDField: "GEOID20"},
}

// LayerByName looks up a boundary layer by geography level. Accepts the same
// aliases the ACS client accepts ("blockgroup", "cbg", "zip code tabulation area").
func LayerByName(name string) (Layer, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	switch key {
	case "blockgroup", "block_group", "cbg":
		key = "block group"
	case "zip code tabulation area", "zip_code_tabulation_area":
		key = "zcta"
	}
	for _, l := range Layers {
		if l.Name == key {
			return l, true
		}
	}
	return Layer{}, false
}

// DefaultResolution is the generalization level used when the caller does not
// pick one. 500k is the most detailed level the Bureau publishes.
const DefaultResolution = "500k"

// DefaultBaseURL is the Bureau's boundary file server prefix;
// DefaultFTPHost is the anonymous FTP mirror carrying the same tree
// under /geo/tiger.
const (
	DefaultBaseURL = "https://www2.census.gov/geo/tiger"
	DefaultFTPHost = "ftp2.census.gov:21"
)

// BoundaryURL builds the download URL for a cartographic boundary
// shapefile under base (DefaultBaseURL when empty). National layers use
// cb_{year}_us_{layer}_{res}.zip; per-state layers substitute the state
// FIPS code for "us".
func BoundaryURL(base string, layer Layer, year int, stateFIPS, resolution string) string {
	if base == "" {
		base = DefaultBaseURL
	}
	return strings.TrimSuffix(base, "/") + boundaryPath(layer, year, stateFIPS, resolution)
}

// BoundaryFTPURL builds the same path on an FTP mirror host
// (DefaultFTPHost when empty).
func BoundaryFTPURL(host string, layer Layer, year int, stateFIPS, resolution string) string {
	if host == "" {
		host = DefaultFTPHost
	}
	return "ftp://" + host + "/geo/tiger" + boundaryPath(layer, year, stateFIPS, resolution)
}

func boundaryPath(layer Layer, year int, stateFIPS, resolution string) string {
	if resolution == "" {
		resolution = DefaultResolution
	}
	scope := "us"
	if !layer.National {
		scope = stateFIPS
	}
	return fmt.Sprintf("/GENZ%d/shp/cb_%d_%s_%s_%s.zip",
		year, year, scope, layer.FileCode, resolution)
}

// FIPSCodes maps state abbreviation to 2-digit FIPS code for all 50 states + DC.
var FIPSCodes = map[string]string{
	"AL": "01", "AK": "02", "AZ": "04", "AR": "05", "CA": "06",
	"CO": "08", "CT": "09", "DE": "10", "DC": "11", "FL": "12",
	"GA": "13", "HI": "15", "ID": "16", "IL": "17", "IN": "18",
	"IA": "19", "KS": "20", "KY": "21", "LA": "22", "ME": "23",
	"MD": "24", "MA": "25", "MI": "26", "MN": "27", "MS": "28",
	"MO": "29", "MT": "30", "NE": "31", "NV": "32", "NH": "33",
	"NJ": "34", "NM": "35", "NY": "36", "NC": "37", "ND": "38",
	"OH": "39", "OK": "40", "OR": "41", "PA": "42", "RI": "44",
	"SC": "45", "SD": "46", "TN": "47", "TX": "48", "UT": "49",
	"VT": "50", "VA": "51", "WA": "53", "WV": "54", "WI": "55",
	"WY": "56",
}

// abbrByFIPS is a reverse lookup from FIPS code to state abbreviation.
var abbrByFIPS map[string]string

func init() {
	abbrByFIPS = make(map[string]string, len(FIPSCodes))
	for abbr, fips := range FIPSCodes {
		abbrByFIPS[fips] = abbr
	}
}

// AbbrFromFIPS returns the state abbreviation for a FIPS code.
func AbbrFromFIPS(fips string) (string, bool) {
	abbr, ok := abbrByFIPS[fips]
	return abbr, ok
}

// AllStateFIPS returns a sorted list of all state FIPS codes.
func AllStateFIPS() []string {
	codes := make([]string, 0, len(FIPSCodes))
	for _, fips := range FIPSCodes {
		codes = append(codes, fips)
	}
	sort.Strings(codes)
	return codes
}

// AllStateAbbrs returns a sorted list of state abbreviations (50 states + DC).
func AllStateAbbrs() []string {
	abbrs := make([]string, 0, len(FIPSCodes))
	for abbr := range FIPSCodes {
		abbrs = append(abbrs, abbr)
	}
	sort.Strings(abbrs)
	return abbrs
}
