package census

import (
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
)

// geographyInfo describes one supported summary level: its name in API
// for-clauses, the parent clauses it requires, and the component columns
// the API returns, in GEOID assembly order.
type geographyInfo struct {
	apiName       string
	requiresState bool
	allowsCounty  bool
	components    []string
}

var geographies = map[string]geographyInfo{
	"state": {
		apiName:    "state",
		components: []string{"state"},
	},
	"county": {
		apiName:    "county",
		components: []string{"state", "county"},
	},
	"tract": {
		apiName:       "tract",
		requiresState: true,
		allowsCounty:  true,
		components:    []string{"state", "county", "tract"},
	},
	"block group": {
		apiName:       "block group",
		requiresState: true,
		allowsCounty:  true,
		components:    []string{"state", "county", "tract", "block group"},
	},
	"place": {
		apiName:       "place",
		requiresState: true,
		components:    []string{"state", "place"},
	},
	"zcta": {
		apiName:    "zip code tabulation area",
		components: []string{"zip code tabulation area"},
	},
}

// normalizeGeography maps caller spellings onto the canonical level names.
func normalizeGeography(level string) (string, error) {
	l := strings.ToLower(strings.TrimSpace(level))
	switch l {
	case "blockgroup", "block_group", "cbg":
		l = "block group"
	case "zip code tabulation area", "zip_code_tabulation_area":
		l = "zcta"
	}
	if _, ok := geographies[l]; !ok {
		return "", eris.Errorf("census: unsupported geography level %q", level)
	}
	return l, nil
}

// geoClauses builds the for= and in= URL parameters for a request.
func geoClauses(level, stateFIPS, countyFIPS string) (url.Values, error) {
	info := geographies[level]

	if info.requiresState && stateFIPS == "" {
		return nil, eris.Errorf("census: geography %q requires a state filter", level)
	}
	if countyFIPS != "" && !info.allowsCounty {
		return nil, eris.Errorf("census: geography %q does not accept a county filter", level)
	}

	v := url.Values{}
	switch {
	case level == "state" && stateFIPS != "":
		v.Set("for", "state:"+stateFIPS)
	case level == "county" && stateFIPS != "":
		v.Set("for", "county:*")
		v.Add("in", "state:"+stateFIPS)
	default:
		v.Set("for", info.apiName+":*")
		if stateFIPS != "" {
			v.Add("in", "state:"+stateFIPS)
		}
		if countyFIPS != "" {
			v.Add("in", "county:"+countyFIPS)
		}
	}
	return v, nil
}
