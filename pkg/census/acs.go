package census

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/censusmap/internal/resilience"
)

// sentinelCeiling marks ACS jam values: the API fills unpublishable cells
// with large negative sentinels (-222222222, -666666666, and friends).
const sentinelCeiling = -111111111

// GetACSRequest parameterizes one tabular fetch. Geometry is retrieved
// separately (see internal/tiger) and joined by GEOID.
type GetACSRequest struct {
	// Geography is the summary level: tract, county, state, place,
	// block group, or zcta.
	Geography string

	// StateFIPS filters to one state (two-digit FIPS). Required for
	// sub-state geographies.
	StateFIPS string

	// CountyFIPS optionally narrows tract and block group queries
	// (three-digit FIPS).
	CountyFIPS string

	// Variables lists the alias to code pairs to fetch.
	Variables []VariableSpec

	Year int

	// Dataset defaults to "acs/acs5".
	Dataset string
}

func (r *GetACSRequest) validate() error {
	if r.Year <= 0 {
		return eris.New("census: year is required")
	}
	if len(r.Variables) == 0 {
		return eris.New("census: at least one variable is required")
	}
	seen := make(map[string]bool, len(r.Variables))
	for _, v := range r.Variables {
		if v.Alias == "" || v.Code == "" {
			return eris.Errorf("census: variable spec needs alias and code, got (%q, %q)", v.Alias, v.Code)
		}
		if seen[v.Alias] {
			return eris.Errorf("census: duplicate variable alias %q", v.Alias)
		}
		seen[v.Alias] = true
	}
	return nil
}

// GetACS fetches estimates and margins of error for every geographic unit
// matching the request. An empty result for a valid query returns an empty
// slice, not an error.
func (c *client) GetACS(ctx context.Context, req GetACSRequest) ([]Unit, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	level, err := normalizeGeography(req.Geography)
	if err != nil {
		return nil, err
	}

	dataset := req.Dataset
	if dataset == "" {
		dataset = "acs/acs5"
	}

	params, err := geoClauses(level, req.StateFIPS, req.CountyFIPS)
	if err != nil {
		return nil, err
	}

	columns := make([]string, 0, 1+2*len(req.Variables))
	columns = append(columns, "NAME")
	for _, v := range req.Variables {
		columns = append(columns, v.Code+"E", v.Code+"M")
	}
	params.Set("get", strings.Join(columns, ","))
	if c.apiKey != "" {
		params.Set("key", c.apiKey)
	}

	rawURL := fmt.Sprintf("%s/%d/%s?%s", c.baseURL, req.Year, dataset, params.Encode())
	body, err := c.doGet(ctx, rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "census: get acs year=%d state=%q geography=%q", req.Year, req.StateFIPS, level)
	}

	units, err := parseACSResponse(body, level, req.Variables)
	if err != nil {
		return nil, err
	}

	zap.L().Info("fetched acs data",
		zap.Int("year", req.Year),
		zap.String("geography", level),
		zap.String("state", req.StateFIPS),
		zap.Int("units", len(units)),
	)
	return units, nil
}

// parseACSResponse decodes the API's array-of-arrays JSON into Units.
// The first row is the header; the GEOID is assembled from the geography
// component columns, which the API returns zero padded.
func parseACSResponse(data []byte, level string, specs []VariableSpec) ([]Unit, error) {
	var raw [][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, eris.Wrap(err, "census: unmarshal response")
	}

	if len(raw) < 2 {
		return []Unit{}, nil
	}

	header := raw[0]
	colIdx := make(map[string]int, len(header))
	for i, col := range header {
		colIdx[col] = i
	}

	for _, spec := range specs {
		if _, ok := colIdx[spec.Code+"E"]; !ok {
			return nil, &UnknownVariableError{Code: spec.Code}
		}
	}

	components := geographies[level].components
	for _, comp := range components {
		if _, ok := colIdx[comp]; !ok {
			return nil, eris.Errorf("census: response missing geography column %q", comp)
		}
	}

	units := make([]Unit, 0, len(raw)-1)
	for _, record := range raw[1:] {
		var geoid strings.Builder
		for _, comp := range components {
			geoid.WriteString(getCol(record, colIdx, comp))
		}

		u := Unit{
			GEOID:  geoid.String(),
			Name:   getCol(record, colIdx, "NAME"),
			Values: make(map[string]Value, len(specs)),
		}
		for _, spec := range specs {
			est, okE := parseACSValue(getCol(record, colIdx, spec.Code+"E"))
			moe, okM := parseACSValue(getCol(record, colIdx, spec.Code+"M"))
			u.Values[spec.Alias] = Value{Estimate: est, MOE: moe, Valid: okE, HasMOE: okM}
		}
		units = append(units, u)
	}

	return units, nil
}

// parseACSValue parses one cell, reporting jam values and non-numeric
// placeholders as missing.
func parseACSValue(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	switch s {
	case "", "null", "-", "N", "(X)", "*":
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if v <= sentinelCeiling {
		return 0, false
	}
	return v, true
}

// getCol gets a value from a record by column name.
func getCol(record []string, colIdx map[string]int, name string) string {
	idx, ok := colIdx[name]
	if !ok || idx >= len(record) {
		return ""
	}
	return record[idx]
}

// doGet performs one rate-limited GET, retrying once on transient failure.
func (c *client) doGet(ctx context.Context, rawURL string) ([]byte, error) {
	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "census: rate limit")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "census: build request")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, eris.Wrap(err, "census: request")
		}
		defer resp.Body.Close() //nolint:errcheck

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrap(err, "census: read body")
		}

		if resp.StatusCode != http.StatusOK {
			if code, ok := extractUnknownVariable(string(body)); ok {
				return nil, &UnknownVariableError{Code: code}
			}
			statusErr := eris.Errorf("census: status %d", resp.StatusCode)
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return nil, resilience.NewTransientError(statusErr, resp.StatusCode)
			}
			return nil, statusErr
		}

		return body, nil
	})
}
