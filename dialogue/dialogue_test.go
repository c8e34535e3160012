package dialogue

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbxark/draftagent/internal/testutil"
	"github.com/tbxark/draftagent/types"
)

var governingLaw = &types.ParameterDescriptor{
	Key:      "governing_law",
	Label:    "Governing Law",
	Type:     types.ParameterSelect,
	HelpText: "The jurisdiction whose laws apply.",
	Options:  []string{"Delaware", "New York"},
}

func TestLocalDialogueGenerator(t *testing.T) {
	g := NewLocalDialogueGenerator()
	ctx := context.Background()

	q, err := g.GenerateDialogue(ctx, &types.ToolRequest{Purpose: types.PurposeAskParameter, Pending: governingLaw})
	require.NoError(t, err)
	assert.Equal(t, "Please provide Governing Law. The jurisdiction whose laws apply. Options: Delaware, New York.", q)

	q, err = g.GenerateDialogue(ctx, &types.ToolRequest{
		Purpose:         types.PurposeReask,
		Pending:         governingLaw,
		ValidationError: "must be one of Delaware, New York.",
	})
	require.NoError(t, err)
	assert.Equal(t, "That didn't work: must be one of Delaware, New York. Please provide Governing Law. The jurisdiction whose laws apply. Options: Delaware, New York.", q)

	q, err = g.GenerateDialogue(ctx, &types.ToolRequest{
		Purpose:        types.PurposeClarify,
		SupportedTypes: []types.DocumentTypeInfo{{Type: "nda", Title: "Non-Disclosure Agreement"}},
	})
	require.NoError(t, err)
	assert.Contains(t, q, "- Non-Disclosure Agreement")

	_, err = g.GenerateDialogue(ctx, &types.ToolRequest{Purpose: types.PurposeAskParameter})
	require.Error(t, err)
}

func TestLocalDialogueGenerator_Stream(t *testing.T) {
	stream, err := NewLocalDialogueGenerator().GenerateDialogueStream(context.Background(), &types.ToolRequest{Purpose: types.PurposeAskRequest})
	require.NoError(t, err)
	defer stream.Close()
	chunk, err := stream.Recv()
	require.NoError(t, err)
	assert.Contains(t, chunk, "What document")
	_, err = stream.Recv()
	assert.ErrorIs(t, err, io.EOF)
}

func TestToolBasedDialogueGenerator(t *testing.T) {
	fake := testutil.NewScriptedChatModel(testutil.Text("  Which state's law should govern?  "))
	g := NewToolBasedDialogueGenerator(fake, WithDialogueLang("French"))

	q, err := g.GenerateDialogue(context.Background(), &types.ToolRequest{Purpose: types.PurposeAskParameter, Pending: governingLaw})
	require.NoError(t, err)
	assert.Equal(t, "Which state's law should govern?", q)

	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0][0].Content, "Reply in French.")
	assert.Contains(t, calls[0][1].Content, "governing_law")
}

func TestFailbackDialogueGenerator(t *testing.T) {
	fake := testutil.NewScriptedChatModel()
	fake.FailNext(errors.New("timeout"))
	g := NewFailbackDialogueGenerator(NewToolBasedDialogueGenerator(fake), NewLocalDialogueGenerator())

	q, err := g.GenerateDialogue(context.Background(), &types.ToolRequest{Purpose: types.PurposeAskParameter, Pending: governingLaw})
	require.NoError(t, err)
	assert.Contains(t, q, "Please provide Governing Law.")

	_, err = NewFailbackDialogueGenerator().GenerateDialogue(context.Background(), &types.ToolRequest{Purpose: types.PurposeAskRequest})
	require.Error(t, err)
}
