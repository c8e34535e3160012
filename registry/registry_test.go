package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbxark/draftagent/types"
)

func TestDefault_LoadsBuiltinTypes(t *testing.T) {
	r, err := Default()
	require.NoError(t, err)

	assert.Equal(t, []string{"nda", "employment_agreement", "residential_lease", "service_agreement"}, r.Types())

	params, ok := r.Lookup("nda")
	require.True(t, ok)
	assert.Equal(t, []string{"party1_name", "party2_name", "effective_date", "term_months", "governing_law"}, Keys(params))
	assert.Equal(t, types.ParameterDate, params[2].Type)
}

func TestLookup_ReturnsCopy(t *testing.T) {
	r, err := Default()
	require.NoError(t, err)

	params, _ := r.Lookup("nda")
	params[0].Key = "changed"

	again, _ := r.Lookup("nda")
	assert.Equal(t, "party1_name", again[0].Key)
}

func TestResolve_Aliases(t *testing.T) {
	r, err := Default()
	require.NoError(t, err)

	cases := map[string]string{
		"nda":                      "nda",
		"NDA":                      "nda",
		"Non-Disclosure Agreement": "nda",
		"employment contract":      "employment_agreement",
		"Residential Lease":        "residential_lease",
		"rental agreement":         "residential_lease",
	}
	for in, want := range cases {
		got, ok := r.Resolve(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	_, ok := r.Resolve("last will and testament")
	assert.False(t, ok)
	_, ok = r.Resolve("  ")
	assert.False(t, ok)
}

func TestComputeMissing_PreservesRegistryOrder(t *testing.T) {
	required := []types.ParameterDescriptor{
		{Key: "c", Required: true},
		{Key: "a", Required: true},
		{Key: "optional", Required: false},
		{Key: "b", Required: true},
	}

	assert.Equal(t, []string{"c", "a", "b"}, ComputeMissing(required, nil))
	assert.Equal(t, []string{"c", "b"}, ComputeMissing(required, map[string]string{"a": "1"}))
	assert.Equal(t, []string{"b"}, ComputeMissing(required, map[string]string{"a": "1", "c": ""}))
	assert.Empty(t, ComputeMissing(required, map[string]string{"a": "1", "b": "2", "c": "3"}))
}

func TestAdd_RejectsDuplicateKeys(t *testing.T) {
	_, err := New(Definition{
		Type: "memo",
		Parameters: []types.ParameterDescriptor{
			{Key: "to"},
			{Key: "to"},
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate parameter key")
}

func TestAdd_RejectsInvalidKey(t *testing.T) {
	_, err := New(Definition{Type: "memo", Parameters: []types.ParameterDescriptor{{Key: "to whom"}}})
	require.Error(t, err)
}

func TestAdd_RejectsUnknownPatternGroup(t *testing.T) {
	_, err := New(Definition{
		Type:            "memo",
		MentionPatterns: []string{`to (?P<recipient>\w+)`},
		Parameters:      []types.ParameterDescriptor{{Key: "to"}},
	})
	require.Error(t, err)
}

func TestAdd_ReplacesAndDefaults(t *testing.T) {
	r, err := New(Definition{Type: "Board Resolution", Parameters: []types.ParameterDescriptor{{Key: "company"}}})
	require.NoError(t, err)

	def, ok := r.Definition("board_resolution")
	require.True(t, ok)
	assert.Equal(t, "board_resolution", def.Title)
	assert.Equal(t, types.ParameterText, def.Parameters[0].Type)
	assert.Equal(t, "company", def.Parameters[0].Label)

	require.NoError(t, r.Add(Definition{Type: "board_resolution", Title: "Board Resolution"}))
	assert.Equal(t, []string{"board_resolution"}, r.Types())
	def, _ = r.Definition("board_resolution")
	assert.Equal(t, "Board Resolution", def.Title)
}

func TestParse_CustomDefinitions(t *testing.T) {
	defs, err := Parse([]byte(`
document_types:
  - type: promissory_note
    title: Promissory Note
    parameters:
      - key: principal
        type: number
        required: true
        validation_rules:
          min: 1
`))
	require.NoError(t, err)
	require.Len(t, defs, 1)
	require.NotNil(t, defs[0].Parameters[0].Rules.Min)
	assert.Equal(t, 1.0, *defs[0].Parameters[0].Rules.Min)
}
