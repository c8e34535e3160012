package classify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbxark/draftagent/internal/testutil"
	"github.com/tbxark/draftagent/registry"
)

func newRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	r, err := registry.Default()
	require.NoError(t, err)
	return r
}

func TestLocalClassifier_NDAScenario(t *testing.T) {
	c := NewLocalClassifier(newRegistry(t))
	ctx := context.Background()

	res, err := c.Classify(ctx, &Request{Text: "I need an NDA"})
	require.NoError(t, err)
	assert.Equal(t, "nda", res.DocumentType)
	assert.Equal(t, 0.5, res.Confidence)
	assert.Empty(t, res.MentionedParameters)

	res, err = c.Classify(ctx, &Request{Text: "I need an NDA\nnon-disclosure agreement between Acme and Bob"})
	require.NoError(t, err)
	assert.Equal(t, "nda", res.DocumentType)
	assert.Equal(t, 0.9, res.Confidence)
	assert.Equal(t, map[string]string{"party1_name": "Acme", "party2_name": "Bob"}, res.MentionedParameters)
}

func TestLocalClassifier_StrongAlias(t *testing.T) {
	c := NewLocalClassifier(newRegistry(t))
	res, err := c.Classify(context.Background(), &Request{Text: "Please draft an employment contract for our new hire."})
	require.NoError(t, err)
	assert.Equal(t, "employment_agreement", res.DocumentType)
	assert.Equal(t, 0.8, res.Confidence)
}

func TestLocalClassifier_NoMatch(t *testing.T) {
	c := NewLocalClassifier(newRegistry(t))
	res, err := c.Classify(context.Background(), &Request{Text: "hello there"})
	require.NoError(t, err)
	assert.Empty(t, res.DocumentType)
	assert.Zero(t, res.Confidence)
}

func TestLocalClassifier_TieIsAmbiguous(t *testing.T) {
	c := NewLocalClassifier(newRegistry(t))
	res, err := c.Classify(context.Background(), &Request{Text: "either a lease agreement or a service agreement"})
	require.NoError(t, err)
	assert.Equal(t, "residential_lease", res.DocumentType)
	assert.Equal(t, 0.5, res.Confidence)
}

func TestToolBasedClassifier(t *testing.T) {
	fake := testutil.NewScriptedChatModel(testutil.ToolCall(classifyToolName, map[string]any{
		"document_type": "Non-Disclosure Agreement",
		"confidence":    0.92,
		"mentioned_parameters": []map[string]string{
			{"key": "party1_name", "value": " Acme "},
			{"key": "salary", "value": "1"},
			{"key": "party2_name", "value": ""},
		},
	}))
	c, err := NewToolBasedClassifier(fake, newRegistry(t))
	require.NoError(t, err)

	res, err := c.Classify(context.Background(), &Request{Text: "NDA with Acme"})
	require.NoError(t, err)
	assert.Equal(t, "nda", res.DocumentType)
	assert.Equal(t, 0.92, res.Confidence)
	assert.Equal(t, map[string]string{"party1_name": "Acme"}, res.MentionedParameters)

	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0][1].Content, "employment_agreement")
	assert.Contains(t, calls[0][1].Content, "NDA with Acme")
}

func TestToolBasedClassifier_UnknownType(t *testing.T) {
	fake := testutil.NewScriptedChatModel(testutil.ToolCall(classifyToolName, map[string]any{
		"document_type": "last will",
		"confidence":    1.4,
	}))
	c, err := NewToolBasedClassifier(fake, newRegistry(t))
	require.NoError(t, err)

	res, err := c.Classify(context.Background(), &Request{Text: "my will"})
	require.NoError(t, err)
	assert.Empty(t, res.DocumentType)
	assert.Equal(t, 1.0, res.Confidence)
}

func TestFailbackClassifier(t *testing.T) {
	reg := newRegistry(t)
	fake := testutil.NewScriptedChatModel()
	fake.FailNext(errors.New("timeout"))
	tool, err := NewToolBasedClassifier(fake, reg)
	require.NoError(t, err)

	c := NewFailbackClassifier(tool, NewLocalClassifier(reg))
	res, err := c.Classify(context.Background(), &Request{Text: "a residential lease please"})
	require.NoError(t, err)
	assert.Equal(t, "residential_lease", res.DocumentType)

	fake.FailNext(errors.New("timeout"))
	_, err = NewFailbackClassifier(tool).Classify(context.Background(), &Request{Text: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}
