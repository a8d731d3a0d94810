package pipeline

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/censusmap/internal/transform"
	"github.com/sells-group/censusmap/pkg/census"
)

// VarsFile is the YAML document naming the variables to fetch and the
// proportions to derive from them:
//
//	variables:
//	  - alias: income
//	    code: B06011_001
//	  - alias: no_school_n
//	    code: B06009_002
//	  - alias: pop_25up
//	    code: B06009_001
//	ratios:
//	  - alias: no_school
//	    numerator: no_school_n
//	    denominator: pop_25up
type VarsFile struct {
	Variables []VariableEntry `yaml:"variables"`
	Ratios    []RatioEntry    `yaml:"ratios"`
}

// VariableEntry maps an alias to a source variable code.
type VariableEntry struct {
	Alias string `yaml:"alias"`
	Code  string `yaml:"code"`
}

// RatioEntry names a derived proportion over two variable aliases.
type RatioEntry struct {
	Alias       string `yaml:"alias"`
	Numerator   string `yaml:"numerator"`
	Denominator string `yaml:"denominator"`
}

// LoadVars reads a variable spec file.
func LoadVars(path string) (*VarsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: read variables file %s", path)
	}

	var vf VarsFile
	if err := yaml.Unmarshal(data, &vf); err != nil {
		return nil, eris.Wrap(err, "pipeline: parse variables file")
	}

	if len(vf.Variables) == 0 {
		return nil, eris.Errorf("pipeline: %s names no variables", path)
	}

	declared := make(map[string]bool, len(vf.Variables))
	for _, v := range vf.Variables {
		if v.Alias == "" || v.Code == "" {
			return nil, eris.Errorf("pipeline: variable entry needs alias and code, got (%q, %q)", v.Alias, v.Code)
		}
		declared[v.Alias] = true
	}
	for _, r := range vf.Ratios {
		if r.Alias == "" {
			return nil, eris.New("pipeline: ratio entry needs an alias")
		}
		if !declared[r.Numerator] {
			return nil, eris.Errorf("pipeline: ratio %q references unknown variable %q", r.Alias, r.Numerator)
		}
		if !declared[r.Denominator] {
			return nil, eris.Errorf("pipeline: ratio %q references unknown variable %q", r.Alias, r.Denominator)
		}
	}

	return &vf, nil
}

// Specs converts the file's variable entries to request specs.
func (vf *VarsFile) Specs() []census.VariableSpec {
	out := make([]census.VariableSpec, len(vf.Variables))
	for i, v := range vf.Variables {
		out[i] = census.VariableSpec{Alias: v.Alias, Code: v.Code}
	}
	return out
}

// RatioSpecs converts the file's ratio entries to transform ratios.
func (vf *VarsFile) RatioSpecs() []transform.Ratio {
	out := make([]transform.Ratio, len(vf.Ratios))
	for i, r := range vf.Ratios {
		out[i] = transform.Ratio{Alias: r.Alias, Numerator: r.Numerator, Denominator: r.Denominator}
	}
	return out
}
