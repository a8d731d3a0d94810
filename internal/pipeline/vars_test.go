package pipeline

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/censusmap/internal/transform"
	"github.com/sells-group/censusmap/pkg/census"
)

const varsYAML = `variables:
  - alias: income
    code: B06011_001
  - alias: no_school_n
    code: B06009_002
  - alias: pop_25up
    code: B06009_001
ratios:
  - alias: no_school
    numerator: no_school_n
    denominator: pop_25up
`

func TestLoadVars(t *testing.T) {
	vf, err := LoadVars(writeTempFile(t, "vars.yaml", varsYAML))
	require.NoError(t, err)

	require.Len(t, vf.Variables, 3)
	require.Len(t, vf.Ratios, 1)

	specs := vf.Specs()
	assert.Equal(t, census.VariableSpec{Alias: "income", Code: "B06011_001"}, specs[0])
	assert.Equal(t, census.VariableSpec{Alias: "pop_25up", Code: "B06009_001"}, specs[2])

	ratios := vf.RatioSpecs()
	assert.Equal(t, transform.Ratio{
		Alias:       "no_school",
		Numerator:   "no_school_n",
		Denominator: "pop_25up",
	}, ratios[0])
}

func TestLoadVars_MissingFile(t *testing.T) {
	_, err := LoadVars(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read variables file")
}

func TestLoadVars_BadYAML(t *testing.T) {
	_, err := LoadVars(writeTempFile(t, "vars.yaml", "variables: [{{"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse variables file")
}

func TestLoadVars_NoVariables(t *testing.T) {
	_, err := LoadVars(writeTempFile(t, "vars.yaml", "ratios: []\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "names no variables")
}

func TestLoadVars_IncompleteVariable(t *testing.T) {
	_, err := LoadVars(writeTempFile(t, "vars.yaml", "variables:\n  - alias: income\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "alias and code")
}

func TestLoadVars_UnknownRatioReference(t *testing.T) {
	const doc = `variables:
  - alias: income
    code: B06011_001
ratios:
  - alias: bad
    numerator: income
    denominator: missing
`
	_, err := LoadVars(writeTempFile(t, "vars.yaml", doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"missing"`)
}
