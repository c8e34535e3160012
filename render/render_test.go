package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbxark/draftagent/types"
)

func TestHTML(t *testing.T) {
	out, err := HTML("# NDA\n\n| a | b |\n|---|---|\n| 1 | 2 |\n")
	require.NoError(t, err)
	assert.Contains(t, string(out), "<h1>NDA</h1>")
	assert.Contains(t, string(out), "<table>")
}

func TestPage_EscapesFieldValues(t *testing.T) {
	var sb strings.Builder
	err := Page(&sb, "", "Between Acme and <Bob>.", []types.FieldMarker{
		{FieldName: "party2_name", CurrentValue: "<Bob>", DisplayName: "Party2 Name"},
	})
	require.NoError(t, err)
	out := sb.String()
	assert.Contains(t, out, "<title>Draft</title>")
	assert.Contains(t, out, "<td>&lt;Bob&gt;</td>")
	assert.Contains(t, out, "<td>Party2 Name</td>")
}
