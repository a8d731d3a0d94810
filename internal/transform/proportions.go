package transform

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/censusmap/pkg/census"
)

// Ratio names a derived proportion metric: the numerator alias divided by
// the denominator alias, stored under Alias.
type Ratio struct {
	Alias       string
	Numerator   string
	Denominator string
}

// DeriveProportions returns a copy of units with one proportion metric per
// ratio added to each unit. A proportion is missing (not zero, not an
// error) wherever its numerator or denominator is missing or the
// denominator is zero. Input units are never mutated or dropped.
func DeriveProportions(units []census.Unit, ratios []Ratio) ([]census.Unit, error) {
	if err := validateRatios(units, ratios); err != nil {
		return nil, err
	}

	out := make([]census.Unit, len(units))
	for i, u := range units {
		values := make(map[string]census.Value, len(u.Values)+len(ratios))
		for alias, v := range u.Values {
			values[alias] = v
		}

		for _, r := range ratios {
			values[r.Alias] = deriveOne(u.Values[r.Numerator], u.Values[r.Denominator])
		}

		out[i] = census.Unit{GEOID: u.GEOID, Name: u.Name, Values: values, Geometry: u.Geometry}
	}
	return out, nil
}

func deriveOne(num, den census.Value) census.Value {
	if !num.Valid || !den.Valid || den.Estimate == 0 {
		return census.Value{}
	}

	p := num.Estimate / den.Estimate
	derived := census.Value{Estimate: p, Valid: true}

	if moe, ok := proportionMOE(num, den, p); ok {
		derived.MOE = moe
		derived.HasMOE = true
	}
	return derived
}

// proportionMOE propagates margins of error into a derived proportion using
// the Census Bureau approximation: sqrt(moeNum^2 - p^2*moeDen^2) / den,
// flipping the sign under the radical when it goes negative.
func proportionMOE(num, den census.Value, p float64) (float64, bool) {
	if !num.HasMOE || !den.HasMOE {
		return 0, false
	}

	radicand := num.MOE*num.MOE - p*p*den.MOE*den.MOE
	if radicand < 0 {
		radicand = num.MOE*num.MOE + p*p*den.MOE*den.MOE
	}
	return math.Sqrt(radicand) / den.Estimate, true
}

func validateRatios(units []census.Unit, ratios []Ratio) error {
	if len(ratios) == 0 {
		return eris.New("transform: at least one ratio is required")
	}

	seen := make(map[string]bool, len(ratios))
	for _, r := range ratios {
		if r.Alias == "" || r.Numerator == "" || r.Denominator == "" {
			return eris.Errorf("transform: ratio needs alias, numerator, and denominator, got (%q, %q, %q)",
				r.Alias, r.Numerator, r.Denominator)
		}
		if seen[r.Alias] {
			return eris.Errorf("transform: duplicate ratio alias %q", r.Alias)
		}
		seen[r.Alias] = true
	}

	if len(units) == 0 {
		return nil
	}

	// Aliases are uniform across units, so checking one suffices.
	for _, r := range ratios {
		if _, ok := units[0].Values[r.Numerator]; !ok {
			return eris.Errorf("transform: ratio %q references unknown numerator alias %q", r.Alias, r.Numerator)
		}
		if _, ok := units[0].Values[r.Denominator]; !ok {
			return eris.Errorf("transform: ratio %q references unknown denominator alias %q", r.Alias, r.Denominator)
		}
		if _, ok := units[0].Values[r.Alias]; ok {
			return eris.Errorf("transform: ratio alias %q collides with a fetched metric", r.Alias)
		}
	}
	return nil
}
