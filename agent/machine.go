package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tbxark/draftagent/classify"
	"github.com/tbxark/draftagent/dialogue"
	"github.com/tbxark/draftagent/errors"
	"github.com/tbxark/draftagent/generate"
	"github.com/tbxark/draftagent/marker"
	"github.com/tbxark/draftagent/patch"
	"github.com/tbxark/draftagent/registry"
	"github.com/tbxark/draftagent/retrieve"
	"github.com/tbxark/draftagent/types"
	"github.com/tbxark/draftagent/validate"
)

const DefaultConfidenceThreshold = 0.7

const completionMessage = "Your document is ready."

// Machine is the dialogue state machine. Step is a pure function of the session it is
// given and the component calls it makes; it holds no per-session state.
type Machine struct {
	registry   *registry.Registry
	classifier classify.Classifier
	validator  validate.Validator
	retriever  retrieve.Retriever
	generator  generate.Generator
	dialogue   dialogue.Generator
	trimmer    Trimmer
	threshold  float64
	now        func() time.Time
	logger     *slog.Logger
}

type MachineOption func(*Machine)

func WithConfidenceThreshold(threshold float64) MachineOption {
	return func(m *Machine) {
		if threshold > 0 {
			m.threshold = threshold
		}
	}
}

func WithRetriever(r retrieve.Retriever) MachineOption {
	return func(m *Machine) {
		if r != nil {
			m.retriever = r
		}
	}
}

func WithDialogueGenerator(g dialogue.Generator) MachineOption {
	return func(m *Machine) {
		if g != nil {
			m.dialogue = g
		}
	}
}

// WithHistoryTrimmer limits the conversation history forwarded to components.
func WithHistoryTrimmer(t Trimmer) MachineOption {
	return func(m *Machine) {
		m.trimmer = t
	}
}

func WithClock(now func() time.Time) MachineOption {
	return func(m *Machine) {
		if now != nil {
			m.now = now
		}
	}
}

func WithMachineLogger(logger *slog.Logger) MachineOption {
	return func(m *Machine) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func NewMachine(
	reg *registry.Registry,
	classifier classify.Classifier,
	validator validate.Validator,
	generator generate.Generator,
	opts ...MachineOption,
) (*Machine, error) {
	if reg == nil || classifier == nil || validator == nil || generator == nil {
		return nil, fmt.Errorf("registry, classifier, validator and generator are required")
	}
	m := &Machine{
		registry:   reg,
		classifier: classifier,
		validator:  validator,
		generator:  generator,
		retriever:  retrieve.NewRegistryRetriever(reg),
		dialogue:   dialogue.NewLocalDialogueGenerator(),
		threshold:  DefaultConfidenceThreshold,
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m, nil
}

// NewLocalMachine builds a machine that needs no model: keyword classification,
// local validation and template generation.
func NewLocalMachine(reg *registry.Registry, opts ...MachineOption) (*Machine, error) {
	return NewMachine(
		reg,
		classify.NewLocalClassifier(reg),
		validate.NewLocalValidator(),
		generate.NewTemplateGenerator(),
		opts...,
	)
}

// Registry returns the parameter registry the machine drafts from.
func (m *Machine) Registry() *registry.Registry {
	return m.registry
}

// Step advances a copy of session by exactly one state. An error leaves nothing
// changed; the caller keeps its session as it was.
func (m *Machine) Step(ctx context.Context, session *types.DraftSession) (*StepResult, error) {
	if session == nil {
		return nil, errors.NewInvalidRequest("nil session")
	}
	s := session.Clone()
	switch s.Status {
	case "", types.StatusAnalyzeRequest:
		return m.analyzeRequest(ctx, s)
	case types.StatusClarifyRequest:
		return m.clarifyRequest(ctx, s)
	case types.StatusCollectParameters:
		return m.collectParameters(ctx, s)
	case types.StatusAwaitParameterInput:
		return m.awaitParameterInput(s)
	case types.StatusExtractAndValidateParameter:
		return m.extractAndValidate(ctx, s)
	case types.StatusGenerateDocument:
		return m.generateDocument(ctx, s)
	case types.StatusComplete, types.StatusAbandoned:
		return nil, errors.NewSessionClosed(s.ID, string(s.Status))
	default:
		return nil, errors.NewInternal(fmt.Errorf("unknown session status %q", s.Status))
	}
}

func (m *Machine) analyzeRequest(ctx context.Context, s *types.DraftSession) (*StepResult, error) {
	s.Status = types.StatusAnalyzeRequest
	if msg, ok := takeInbox(s); ok {
		if s.RequestText == "" {
			s.RequestText = msg
		} else {
			s.RequestText += "\n" + msg
		}
	}
	if strings.TrimSpace(s.RequestText) == "" {
		return m.suspend(ctx, s, &types.ToolRequest{Purpose: types.PurposeAskRequest}, nil)
	}

	m.logger.Debug("Classifying request", "session", s.ID)
	res, err := m.classifier.Classify(ctx, &classify.Request{Text: s.RequestText, History: m.history(s)})
	if err != nil {
		return nil, errors.NewClassificationFailed(err)
	}
	documentType := ""
	if res != nil {
		s.Confidence = res.Confidence
		documentType, _ = m.registry.Resolve(res.DocumentType)
	}
	m.logger.Debug("Classified request", "session", s.ID, "type", documentType, "confidence", s.Confidence)

	if documentType == "" || s.Confidence < m.threshold {
		s.Status = types.StatusClarifyRequest
		return continueWith(s), nil
	}
	descriptors, _ := m.registry.Lookup(documentType)
	s.DocumentType = documentType
	s.RequiredParameters = descriptors
	s.CollectedParameters = m.mergeMentions(s, res.MentionedParameters)
	s.MissingParameterKeys = registry.ComputeMissing(s.RequiredParameters, s.CollectedParameters)
	s.Status = types.StatusCollectParameters
	return continueWith(s), nil
}

// mergeMentions stores the mentioned values that pass validation. Values already
// collected are never overwritten; invalid mentions are dropped and asked for later.
func (m *Machine) mergeMentions(s *types.DraftSession, mentions map[string]string) map[string]string {
	valid := map[string]string{}
	for key, raw := range mentions {
		if s.Collected(key) {
			continue
		}
		d, ok := s.Descriptor(key)
		if !ok {
			continue
		}
		res := validate.Check(d, raw)
		if !res.Valid {
			m.logger.Debug("Dropping invalid mention", "session", s.ID, "key", key, "reason", res.Error)
			continue
		}
		valid[key] = res.Value
	}
	if len(valid) == 0 {
		return s.CollectedParameters
	}
	merged, err := patch.MergeParameters(s.CollectedParameters, valid, registry.Keys(s.RequiredParameters))
	if err != nil {
		m.logger.Warn("Failed to merge mentioned parameters", "session", s.ID, "error", err)
		return s.CollectedParameters
	}
	return merged
}

func (m *Machine) clarifyRequest(ctx context.Context, s *types.DraftSession) (*StepResult, error) {
	if _, ok := peekInbox(s); ok {
		s.Status = types.StatusAnalyzeRequest
		return continueWith(s), nil
	}
	s.ClarifyAttempts++
	return m.suspend(ctx, s, &types.ToolRequest{
		Purpose:        types.PurposeClarify,
		SupportedTypes: m.registry.Infos(),
		MessagePair:    types.MessagePair{Answer: s.RequestText},
	}, errors.NewClassificationAmbiguous(s.DocumentType, s.Confidence))
}

func (m *Machine) collectParameters(ctx context.Context, s *types.DraftSession) (*StepResult, error) {
	s.MissingParameterKeys = registry.ComputeMissing(s.RequiredParameters, s.CollectedParameters)
	if len(s.MissingParameterKeys) == 0 {
		s.PendingKey = ""
		s.Status = types.StatusGenerateDocument
		return continueWith(s), nil
	}
	key := s.MissingParameterKeys[0]
	d, _ := s.Descriptor(key)
	s.PendingKey = key
	s.LastError = ""
	s.Status = types.StatusAwaitParameterInput
	return m.suspend(ctx, s, &types.ToolRequest{Purpose: types.PurposeAskParameter, Pending: &d}, errors.NewMissingRequiredParameter(key))
}

func (m *Machine) awaitParameterInput(s *types.DraftSession) (*StepResult, error) {
	if _, ok := peekInbox(s); ok {
		s.Status = types.StatusExtractAndValidateParameter
		return continueWith(s), nil
	}
	return &StepResult{Outcome: OutcomeSuspend, Session: s, Question: s.LastQuestion}, nil
}

func (m *Machine) extractAndValidate(ctx context.Context, s *types.DraftSession) (*StepResult, error) {
	input, ok := takeInbox(s)
	if !ok {
		s.Status = types.StatusAwaitParameterInput
		return &StepResult{Outcome: OutcomeSuspend, Session: s, Question: s.LastQuestion}, nil
	}
	if s.PendingKey == "" || s.Collected(s.PendingKey) {
		s.Status = types.StatusCollectParameters
		return continueWith(s), nil
	}
	d, found := s.Descriptor(s.PendingKey)
	if !found {
		return nil, errors.NewInternal(fmt.Errorf("pending key %q is not a parameter of %s", s.PendingKey, s.DocumentType))
	}

	m.logger.Debug("Validating parameter", "session", s.ID, "key", d.Key)
	res, err := m.validator.Validate(ctx, &validate.Request{
		Descriptor: d,
		Input:      input,
		Question:   s.LastQuestion,
		History:    m.history(s),
	})
	if err != nil {
		return nil, errors.NewValidationUnavailable(d.Key, err)
	}
	if res == nil || !res.Valid {
		reason := "the answer could not be used"
		if res != nil && res.Error != "" {
			reason = res.Error
		}
		m.logger.Debug("Parameter rejected", "session", s.ID, "key", d.Key, "reason", reason)
		s.LastError = reason
		s.Status = types.StatusAwaitParameterInput
		return m.suspend(ctx, s, &types.ToolRequest{Purpose: types.PurposeReask, Pending: &d, ValidationError: reason},
			errors.NewParameterValidationFailed(d.Key, reason))
	}

	merged, err := patch.MergeParameters(s.CollectedParameters, map[string]string{d.Key: res.Value}, registry.Keys(s.RequiredParameters))
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("merge parameter %s: %w", d.Key, err))
	}
	s.CollectedParameters = merged
	s.MissingParameterKeys = registry.ComputeMissing(s.RequiredParameters, s.CollectedParameters)
	s.PendingKey = ""
	s.LastError = ""
	s.Status = types.StatusCollectParameters
	return continueWith(s), nil
}

func (m *Machine) generateDocument(ctx context.Context, s *types.DraftSession) (*StepResult, error) {
	if s.GeneratedDocument != nil {
		s.Status = types.StatusComplete
		return &StepResult{Outcome: OutcomeDone, Session: s, Document: *s.GeneratedDocument, FieldMarkers: s.FieldMarkers}, nil
	}
	known := make([]string, 0, len(s.CollectedParameters))
	for _, key := range registry.Keys(s.RequiredParameters) {
		if s.Collected(key) {
			known = append(known, key)
		}
	}
	m.logger.Debug("Retrieving references", "session", s.ID, "type", s.DocumentType)
	refs, err := m.retriever.Retrieve(ctx, s.DocumentType, known)
	if err != nil {
		return nil, errors.NewRetrievalFailed(s.DocumentType, err)
	}
	title := s.DocumentType
	if def, ok := m.registry.Definition(s.DocumentType); ok {
		title = def.Title
	}
	m.logger.Debug("Generating document", "session", s.ID, "type", s.DocumentType)
	draft, err := m.generator.Generate(ctx, &generate.Request{
		DocumentType:    s.DocumentType,
		Title:           title,
		Parameters:      s.CollectedParameters,
		Descriptors:     s.RequiredParameters,
		References:      refs,
		OriginalRequest: s.RequestText,
	})
	if err != nil {
		return nil, errors.NewGenerationFailed(s.DocumentType, err)
	}
	if draft == nil {
		return nil, errors.NewGenerationFailed(s.DocumentType, fmt.Errorf("empty draft"))
	}

	decoded := marker.Resolve(draft.Text, draft.Fields)
	document := decoded.Document
	s.GeneratedDocument = &document
	s.FieldMarkers = decoded.Markers
	s.Status = types.StatusComplete
	s.LastQuestion = ""
	s.ConversationHistory = append(s.ConversationHistory, types.Turn{Role: types.RoleAssistant, Content: completionMessage, At: m.now()})
	m.logger.Info("Document generated", "session", s.ID, "type", s.DocumentType, "markers", len(decoded.Markers), "malformed", len(decoded.Malformed))
	return &StepResult{
		Outcome:      OutcomeDone,
		Session:      s,
		Document:     document,
		FieldMarkers: decoded.Markers,
		Malformed:    decoded.Malformed,
	}, nil
}

// suspend phrases the next question, records it and returns control to the caller.
// reason says why the question is asked and may be nil.
func (m *Machine) suspend(ctx context.Context, s *types.DraftSession, req *types.ToolRequest, reason *errors.DraftError) (*StepResult, error) {
	req.Status = s.Status
	req.DocumentType = s.DocumentType
	if def, ok := m.registry.Definition(s.DocumentType); ok {
		req.DocumentTitle = def.Title
	}
	req.Collected = s.CollectedParameters
	req.Missing = m.missingDescriptors(s)
	req.History = m.history(s)
	if req.MessagePair.Question == "" {
		req.MessagePair.Question = s.LastQuestion
	}

	question, err := m.dialogue.GenerateDialogue(ctx, req)
	if err != nil {
		return nil, errors.NewQuestionFailed(err)
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, errors.NewQuestionFailed(fmt.Errorf("empty question"))
	}
	s.LastQuestion = question
	s.ConversationHistory = append(s.ConversationHistory, types.Turn{Role: types.RoleAssistant, Content: question, At: m.now()})
	return &StepResult{Outcome: OutcomeSuspend, Session: s, Question: question, Reason: reason}, nil
}

func (m *Machine) missingDescriptors(s *types.DraftSession) []types.ParameterDescriptor {
	out := make([]types.ParameterDescriptor, 0, len(s.MissingParameterKeys))
	for _, key := range s.MissingParameterKeys {
		if d, ok := s.Descriptor(key); ok {
			out = append(out, d)
		}
	}
	return out
}

func (m *Machine) history(s *types.DraftSession) []types.Turn {
	if m.trimmer == nil {
		return s.ConversationHistory
	}
	return m.trimmer.Trim(s.ConversationHistory)
}

func continueWith(s *types.DraftSession) *StepResult {
	return &StepResult{Outcome: OutcomeContinue, Session: s}
}

func peekInbox(s *types.DraftSession) (string, bool) {
	if s.Inbox == nil {
		return "", false
	}
	return *s.Inbox, true
}

func takeInbox(s *types.DraftSession) (string, bool) {
	msg, ok := peekInbox(s)
	s.Inbox = nil
	return msg, ok
}
