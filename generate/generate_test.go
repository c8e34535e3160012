package generate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbxark/draftagent/internal/testutil"
	"github.com/tbxark/draftagent/marker"
	"github.com/tbxark/draftagent/registry"
	"github.com/tbxark/draftagent/retrieve"
	"github.com/tbxark/draftagent/types"
)

func ndaRequest(t *testing.T, params map[string]string) *Request {
	t.Helper()
	reg, err := registry.Default()
	require.NoError(t, err)
	def, ok := reg.Definition("nda")
	require.True(t, ok)
	refs, err := retrieve.NewRegistryRetriever(reg).Retrieve(context.Background(), "nda", []string{"party1_name"})
	require.NoError(t, err)
	return &Request{
		DocumentType:    "nda",
		Title:           def.Title,
		Parameters:      params,
		Descriptors:     def.Parameters,
		References:      refs,
		OriginalRequest: "NDA between Acme and Bob",
	}
}

func TestTemplateGenerator_FillsMarkers(t *testing.T) {
	req := ndaRequest(t, map[string]string{
		"party1_name":    "Acme",
		"party2_name":    "Bob",
		"effective_date": "2024-06-03",
	})
	draft, err := NewTemplateGenerator().Generate(context.Background(), req)
	require.NoError(t, err)

	d := marker.Decode(draft.Text)
	assert.Empty(t, d.Malformed)
	assert.Contains(t, d.Document, "as of 3rd day of June, 2024 by and between Acme")
	assert.Contains(t, d.Document, "laws of [Governing Law]")
	assert.Contains(t, d.Document, "## Return of Materials")
	assert.NotContains(t, d.Document, "{{")

	names := make([]string, 0, len(d.Markers))
	for _, m := range d.Markers {
		names = append(names, m.FieldName)
	}
	assert.Equal(t, []string{"effective_date", "party1_name", "party2_name", "term_months", "governing_law"}, names)
	assert.Equal(t, "3rd day of June, 2024", d.Markers[0].CurrentValue)
}

func TestTemplateGenerator_OutlineWithoutTemplate(t *testing.T) {
	draft, err := NewTemplateGenerator().Generate(context.Background(), &Request{
		DocumentType: "board_resolution",
		Descriptors:  []types.ParameterDescriptor{{Key: "company", Label: "Company"}},
		Parameters:   map[string]string{"company": "Acme"},
	})
	require.NoError(t, err)
	d := marker.Decode(draft.Text)
	assert.True(t, strings.HasPrefix(d.Document, "# BOARD RESOLUTION"))
	assert.Contains(t, d.Document, "- Company: Acme")
}

func TestToolBasedGenerator_SideChannel(t *testing.T) {
	fake := testutil.NewScriptedChatModel(testutil.ToolCall(draftToolName, map[string]any{
		"document": "# NDA\n\nBetween Acme and Bob.",
		"fields": []map[string]string{
			{"path": "party1_name", "value": "Acme"},
			{"path": "party2_name", "value": "Bob"},
		},
	}))
	g, err := NewToolBasedGenerator(fake)
	require.NoError(t, err)

	draft, err := g.Generate(context.Background(), ndaRequest(t, map[string]string{"party1_name": "Acme", "party2_name": "Bob"}))
	require.NoError(t, err)
	assert.Len(t, draft.Fields, 2)

	prompt := fake.Calls()[0][1].Content
	assert.Contains(t, prompt, "Reference template")
	assert.Contains(t, prompt, "NDA between Acme and Bob")

	d := marker.Resolve(draft.Text, draft.Fields)
	require.Len(t, d.Markers, 2)
	assert.Equal(t, "party1_name", d.Markers[0].FieldName)
}

type scriptedCompleter struct {
	out    string
	err    error
	prompt Prompt
}

func (s *scriptedCompleter) Complete(ctx context.Context, prompt Prompt) (string, error) {
	s.prompt = prompt
	return s.out, s.err
}

func TestCompletionGenerator(t *testing.T) {
	c := &scriptedCompleter{out: "```markdown\n# NDA\n\nBetween {{party1_name|Acme}} and {{party2_name|Bob}}.\n```"}
	draft, err := NewCompletionGenerator(c).Generate(context.Background(), ndaRequest(t, map[string]string{"party1_name": "Acme"}))
	require.NoError(t, err)
	assert.Equal(t, "# NDA\n\nBetween {{party1_name|Acme}} and {{party2_name|Bob}}.", draft.Text)
	assert.Contains(t, c.prompt.System, "{{party1_name|Acme Corporation}}")

	_, err = NewCompletionGenerator(&scriptedCompleter{out: "  "}).Generate(context.Background(), ndaRequest(t, nil))
	require.Error(t, err)
}

func TestChatModelCompleter(t *testing.T) {
	fake := testutil.NewScriptedChatModel(testutil.Text("# Draft"))
	out, err := NewChatModelCompleter(fake).Complete(context.Background(), Prompt{System: "s", User: "u"})
	require.NoError(t, err)
	assert.Equal(t, "# Draft", out)
}

func TestFailbackGenerator(t *testing.T) {
	failing := NewCompletionGenerator(&scriptedCompleter{err: errors.New("503")})
	g := NewFailbackGenerator(failing, NewTemplateGenerator())
	draft, err := g.Generate(context.Background(), ndaRequest(t, map[string]string{"party1_name": "Acme", "party2_name": "Bob"}))
	require.NoError(t, err)
	assert.Contains(t, draft.Text, "{{party1_name|Acme}}")

	_, err = NewFailbackGenerator(failing).Generate(context.Background(), ndaRequest(t, nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestNewOpenAICompleter_RequiresKey(t *testing.T) {
	_, err := NewOpenAICompleter("", "", "gpt-4o")
	require.Error(t, err)
	c, err := NewOpenAICompleter("sk-test", "https://example.invalid/v1", "gpt-4o")
	require.NoError(t, err)
	assert.Len(t, c.Opts, 2)
}
