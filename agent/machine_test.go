package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbxark/draftagent/classify"
	drafterrors "github.com/tbxark/draftagent/errors"
	"github.com/tbxark/draftagent/generate"
	"github.com/tbxark/draftagent/registry"
	"github.com/tbxark/draftagent/types"
	"github.com/tbxark/draftagent/validate"
)

type classifierFunc func(ctx context.Context, req *classify.Request) (*classify.Result, error)

func (f classifierFunc) Classify(ctx context.Context, req *classify.Request) (*classify.Result, error) {
	return f(ctx, req)
}

type generatorFunc func(ctx context.Context, req *generate.Request) (*generate.Draft, error)

func (f generatorFunc) Generate(ctx context.Context, req *generate.Request) (*generate.Draft, error) {
	return f(ctx, req)
}

func defaultRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.Default()
	require.NoError(t, err)
	return reg
}

func ptr(f float64) *float64 { return &f }

// leaseRegistry holds one type with three required parameters and one optional.
func leaseRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.New(registry.Definition{
		Type:  "lease",
		Title: "Residential Lease",
		Parameters: []types.ParameterDescriptor{
			{Key: "landlord", Label: "Landlord", Type: types.ParameterText, Required: true, Rules: types.ValidationRules{MinLength: 2}},
			{Key: "tenant", Label: "Tenant", Type: types.ParameterText, Required: true, Rules: types.ValidationRules{MinLength: 2}},
			{Key: "monthly_rent", Label: "Monthly Rent", Type: types.ParameterNumber, Required: true, Rules: types.ValidationRules{Min: ptr(1)}},
			{Key: "start_date", Label: "Start Date", Type: types.ParameterDate},
		},
	})
	require.NoError(t, err)
	return reg
}

func withInbox(s *types.DraftSession, msg string) *types.DraftSession {
	s.Inbox = &msg
	return s
}

func TestMachine_StepNeverMutatesInput(t *testing.T) {
	m, err := NewLocalMachine(defaultRegistry(t))
	require.NoError(t, err)

	s := withInbox(types.NewDraftSession("s1"), "I need an NDA")
	before := s.Clone()
	res, err := m.Step(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, before, s)
	assert.Equal(t, OutcomeContinue, res.Outcome)
	assert.Equal(t, types.StatusClarifyRequest, res.Session.Status)
	assert.Equal(t, "I need an NDA", res.Session.RequestText)
	assert.Nil(t, res.Session.Inbox)
}

func TestMachine_ClarifySuspendsThenRestartsAnalysis(t *testing.T) {
	m, err := NewLocalMachine(defaultRegistry(t))
	require.NoError(t, err)
	ctx := context.Background()

	s := types.NewDraftSession("s1")
	s.Status = types.StatusClarifyRequest
	s.RequestText = "I need an NDA"

	res, err := m.Step(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuspend, res.Outcome)
	assert.Equal(t, types.StatusClarifyRequest, res.Session.Status)
	assert.Contains(t, res.Question, "Non-Disclosure Agreement")
	assert.Equal(t, 1, res.Session.ClarifyAttempts)

	res, err = m.Step(ctx, withInbox(res.Session, "the NDA please"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeContinue, res.Outcome)
	assert.Equal(t, types.StatusAnalyzeRequest, res.Session.Status)
	require.NotNil(t, res.Session.Inbox, "the message is consumed by the analysis step")
}

func TestMachine_UnknownDocumentTypeIsAmbiguous(t *testing.T) {
	reg := defaultRegistry(t)
	classifier := classifierFunc(func(ctx context.Context, req *classify.Request) (*classify.Result, error) {
		return &classify.Result{DocumentType: "moon_lease", Confidence: 0.99}, nil
	})
	m, err := NewMachine(reg, classifier, validate.NewLocalValidator(), generate.NewTemplateGenerator())
	require.NoError(t, err)

	res, err := m.Step(context.Background(), withInbox(types.NewDraftSession("s1"), "a lease on the moon"))
	require.NoError(t, err)
	assert.Equal(t, types.StatusClarifyRequest, res.Session.Status)
	assert.Empty(t, res.Session.DocumentType)
}

func TestMachine_InvalidMentionsAreDropped(t *testing.T) {
	reg := leaseRegistry(t)
	classifier := classifierFunc(func(ctx context.Context, req *classify.Request) (*classify.Result, error) {
		return &classify.Result{
			DocumentType:        "lease",
			Confidence:          0.9,
			MentionedParameters: map[string]string{"landlord": "Jane", "monthly_rent": "lots", "pet": "cat"},
		}, nil
	})
	m, err := NewMachine(reg, classifier, validate.NewLocalValidator(), generate.NewTemplateGenerator())
	require.NoError(t, err)

	res, err := m.Step(context.Background(), withInbox(types.NewDraftSession("s1"), "lease from Jane, rent lots"))
	require.NoError(t, err)
	assert.Equal(t, types.StatusCollectParameters, res.Session.Status)
	assert.Equal(t, map[string]string{"landlord": "Jane"}, res.Session.CollectedParameters)
	assert.Equal(t, []string{"tenant", "monthly_rent"}, res.Session.MissingParameterKeys)
}

func TestMachine_FailuresAreRetryableAndLeaveInputUntouched(t *testing.T) {
	reg := defaultRegistry(t)
	classifier := classifierFunc(func(ctx context.Context, req *classify.Request) (*classify.Result, error) {
		return nil, errors.New("classifier timeout")
	})
	m, err := NewMachine(reg, classifier, validate.NewLocalValidator(), generate.NewTemplateGenerator())
	require.NoError(t, err)

	s := withInbox(types.NewDraftSession("s1"), "I need an NDA")
	before := s.Clone()
	_, err = m.Step(context.Background(), s)
	require.Error(t, err)
	assert.True(t, drafterrors.Is(err, drafterrors.ErrClassificationFailed))
	assert.True(t, drafterrors.IsRetryable(err))
	assert.Equal(t, before, s)
}

func TestMachine_GenerateDecodesMarkers(t *testing.T) {
	reg := defaultRegistry(t)
	gen := generatorFunc(func(ctx context.Context, req *generate.Request) (*generate.Draft, error) {
		assert.Equal(t, "NDA between Acme and Bob", req.OriginalRequest)
		return &generate.Draft{Text: "Between {{party1_name|Acme}} and {{party2_name|Bob}}. {{broken"}, nil
	})
	m, err := NewMachine(reg, classify.NewLocalClassifier(reg), validate.NewLocalValidator(), gen)
	require.NoError(t, err)

	s := types.NewDraftSession("s1")
	s.Status = types.StatusGenerateDocument
	s.DocumentType = "nda"
	s.RequestText = "NDA between Acme and Bob"
	s.RequiredParameters, _ = reg.Lookup("nda")
	s.CollectedParameters = map[string]string{"party1_name": "Acme", "party2_name": "Bob"}

	res, err := m.Step(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDone, res.Outcome)
	assert.Equal(t, types.StatusComplete, res.Session.Status)
	assert.Equal(t, "Between Acme and Bob. {{broken", res.Document)
	require.Len(t, res.FieldMarkers, 2)
	assert.Equal(t, "Party1 Name", res.FieldMarkers[0].DisplayName)
	assert.Len(t, res.Malformed, 1)
	require.NotNil(t, res.Session.GeneratedDocument)
	assert.Equal(t, res.Document, *res.Session.GeneratedDocument)
}

func TestMachine_TerminalSessionsAreClosed(t *testing.T) {
	m, err := NewLocalMachine(defaultRegistry(t))
	require.NoError(t, err)
	s := types.NewDraftSession("s1")
	s.Status = types.StatusAbandoned
	_, err = m.Step(context.Background(), s)
	assert.True(t, drafterrors.Is(err, drafterrors.ErrSessionClosed))
}
