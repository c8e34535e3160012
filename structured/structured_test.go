package structured

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbxark/draftagent/internal/testutil"
)

type clauseInput struct {
	Text string
}

type clauseSummary struct {
	Title    string   `json:"title" jsonschema:"description=Clause title,required"`
	Parties  []string `json:"parties" jsonschema:"description=Parties named in the clause"`
	Duration int      `json:"duration_months" jsonschema:"description=Duration in months,minimum=0"`
}

func buildClausePrompt(ctx context.Context, in clauseInput) ([]*schema.Message, error) {
	return []*schema.Message{
		schema.SystemMessage("Summarize the clause by calling summarize_clause."),
		schema.UserMessage(in.Text),
	}, nil
}

func TestChain_InvokeDecodesToolCall(t *testing.T) {
	fake := testutil.NewScriptedChatModel(testutil.ToolCall("summarize_clause", map[string]any{
		"title":           "Term",
		"parties":         []string{"Acme", "Bob"},
		"duration_months": 24,
	}))
	chain, err := NewChain[clauseInput, clauseSummary](fake, buildClausePrompt, "summarize_clause", "Summarize a clause")
	require.NoError(t, err)
	assert.Equal(t, "summarize_clause", chain.GetToolInfo().Name)

	out, err := chain.Invoke(context.Background(), clauseInput{Text: "This agreement between Acme and Bob lasts 24 months."})
	require.NoError(t, err)
	assert.Equal(t, "Term", out.Title)
	assert.Equal(t, []string{"Acme", "Bob"}, out.Parties)
	assert.Equal(t, 24, out.Duration)
	require.Len(t, fake.Calls(), 1)
}

func TestChain_Errors(t *testing.T) {
	_, err := NewChain[clauseInput, clauseSummary](nil, buildClausePrompt, "summarize_clause", "")
	require.Error(t, err)

	fake := testutil.NewScriptedChatModel(testutil.Text("I cannot call tools."))
	chain, err := NewChain[clauseInput, clauseSummary](fake, buildClausePrompt, "summarize_clause", "")
	require.NoError(t, err)
	_, err = chain.Invoke(context.Background(), clauseInput{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no ToolCall")

	fake.FailNext(errors.New("rate limited"))
	_, err = chain.Invoke(context.Background(), clauseInput{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestChain_InvokeLive(t *testing.T) {
	chatModel := testutil.InitChatModel(t)
	chain, err := NewChain[clauseInput, clauseSummary](chatModel, buildClausePrompt, "summarize_clause", "Summarize a clause")
	require.NoError(t, err)

	out, err := chain.Invoke(context.Background(), clauseInput{
		Text: "Term. This Agreement between Acme Corporation and Bob Smith remains in effect for 24 months.",
	})
	require.NoError(t, err)
	t.Logf("summary: %+v", out)
	assert.NotEmpty(t, out.Title)
}
