package validate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbxark/draftagent/internal/testutil"
	"github.com/tbxark/draftagent/types"
)

func ptr(f float64) *float64 { return &f }

func TestCheck(t *testing.T) {
	term := types.ParameterDescriptor{Key: "term_months", Label: "Term", Type: types.ParameterNumber,
		Rules: types.ValidationRules{Min: ptr(1), Max: ptr(120)}}
	salary := types.ParameterDescriptor{Key: "annual_salary", Label: "Salary", Type: types.ParameterNumber,
		Rules: types.ValidationRules{Min: ptr(0)}}
	name := types.ParameterDescriptor{Key: "party1_name", Label: "Disclosing Party", Type: types.ParameterText,
		Rules: types.ValidationRules{MinLength: 2, MaxLength: 10}}
	date := types.ParameterDescriptor{Key: "effective_date", Label: "Effective Date", Type: types.ParameterDate}
	email := types.ParameterDescriptor{Key: "employee_email", Label: "Email", Type: types.ParameterEmail}
	kind := types.ParameterDescriptor{Key: "employment_type", Label: "Employment Type", Type: types.ParameterSelect,
		Options: []string{"full-time", "part-time"}}
	zip := types.ParameterDescriptor{Key: "zip", Label: "ZIP", Type: types.ParameterText,
		Rules: types.ValidationRules{Pattern: `^\d{5}$`}}

	cases := []struct {
		name  string
		d     types.ParameterDescriptor
		raw   string
		valid bool
		value string
	}{
		{"number ok", term, " 24 ", true, "24"},
		{"number with noise", term, "$1,2", true, "12"},
		{"number too big", term, "240", false, ""},
		{"number too small", term, "0", false, ""},
		{"not a number", term, "two years", false, ""},
		{"decimal", salary, "52000.50", true, "52000.5"},
		{"exponent", salary, "5e4", true, "50000"},
		{"nan", salary, "NaN", false, ""},
		{"inf", salary, "inf", false, ""},
		{"infinity", salary, "-Infinity", false, ""},
		{"hex float", salary, "0x1p4", false, ""},
		{"overflow", salary, "1e400", false, ""},
		{"text ok", name, "  Acme  ", true, "Acme"},
		{"text too short", name, "A", false, ""},
		{"text too long", name, "Acme Corporation International", false, ""},
		{"empty", name, "   ", false, ""},
		{"marker delimiters", name, "A{{b}}", false, ""},
		{"iso date", date, "2024-06-03", true, "2024-06-03"},
		{"long date", date, "June 3, 2024", true, "2024-06-03"},
		{"bad date", date, "next week", false, ""},
		{"email", email, "Jane <jane@example.com>", true, "jane@example.com"},
		{"bad email", email, "jane at example", false, ""},
		{"select", kind, "Full-Time", true, "full-time"},
		{"bad select", kind, "contract", false, ""},
		{"pattern ok", zip, "12345", true, "12345"},
		{"pattern bad", zip, "1234", false, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := Check(tc.d, tc.raw)
			assert.Equal(t, tc.valid, res.Valid)
			if tc.valid {
				assert.Equal(t, tc.value, res.Value)
				assert.Empty(t, res.Error)
			} else {
				assert.NotEmpty(t, res.Error)
			}
		})
	}
}

func TestToolBasedValidator(t *testing.T) {
	d := types.ParameterDescriptor{Key: "effective_date", Label: "Effective Date", Type: types.ParameterDate}
	fake := testutil.NewScriptedChatModel(
		testutil.ToolCall(extractToolName, map[string]any{"found": true, "value": "June 3, 2024"}),
		testutil.ToolCall(extractToolName, map[string]any{"found": false, "reason": "the user asked a question instead"}),
		testutil.ToolCall(extractToolName, map[string]any{"found": true, "value": "soon"}),
	)
	v, err := NewToolBasedValidator(fake)
	require.NoError(t, err)
	ctx := context.Background()
	req := &Request{Descriptor: d, Input: "let's say the third of June 2024", Question: "When does it take effect?"}

	res, err := v.Validate(ctx, req)
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, "2024-06-03", res.Value)
	assert.Contains(t, fake.Calls()[0][1].Content, "When does it take effect?")

	res, err = v.Validate(ctx, req)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, "the user asked a question instead", res.Error)

	res, err = v.Validate(ctx, req)
	require.NoError(t, err)
	assert.False(t, res.Valid)
}

func TestFailbackValidator(t *testing.T) {
	fake := testutil.NewScriptedChatModel()
	fake.FailNext(errors.New("unavailable"))
	tool, err := NewToolBasedValidator(fake)
	require.NoError(t, err)

	v := NewFailbackValidator(tool, NewLocalValidator())
	res, err := v.Validate(context.Background(), &Request{
		Descriptor: types.ParameterDescriptor{Key: "party1_name", Label: "Party", Type: types.ParameterText},
		Input:      "Acme",
	})
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, "Acme", res.Value)
}
