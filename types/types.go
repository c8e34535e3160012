package types

import (
	"maps"
	"slices"
	"time"
)

// Status is the dialogue controller state of a draft session.
type Status string

const (
	StatusAnalyzeRequest              Status = "analyze_request"
	StatusClarifyRequest              Status = "clarify_request"
	StatusCollectParameters           Status = "collect_parameters"
	StatusAwaitParameterInput         Status = "await_parameter_input"
	StatusExtractAndValidateParameter Status = "extract_and_validate_parameter"
	StatusGenerateDocument            Status = "generate_document"
	StatusComplete                    Status = "complete"
	StatusAbandoned                   Status = "abandoned"
)

// Terminal reports whether no further turns are accepted in this status.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusAbandoned
}

type ParameterType string

const (
	ParameterText   ParameterType = "text"
	ParameterNumber ParameterType = "number"
	ParameterDate   ParameterType = "date"
	ParameterEmail  ParameterType = "email"
	ParameterSelect ParameterType = "select"
)

type ValidationRules struct {
	MinLength int      `json:"min_length,omitempty" yaml:"min_length,omitempty"`
	MaxLength int      `json:"max_length,omitempty" yaml:"max_length,omitempty"`
	Pattern   string   `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Min       *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max       *float64 `json:"max,omitempty" yaml:"max,omitempty"`
}

// ParameterDescriptor is the static definition of one collectible field of a document type.
type ParameterDescriptor struct {
	Key      string          `json:"key" yaml:"key"`
	Label    string          `json:"label" yaml:"label"`
	Type     ParameterType   `json:"type" yaml:"type"`
	Required bool            `json:"required" yaml:"required"`
	Rules    ValidationRules `json:"validation_rules,omitempty" yaml:"validation_rules,omitempty"`
	HelpText string          `json:"help_text,omitempty" yaml:"help_text,omitempty"`
	Example  string          `json:"example,omitempty" yaml:"example,omitempty"`
	Options  []string        `json:"options,omitempty" yaml:"options,omitempty"`
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Turn struct {
	Role    Role      `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// Position is a half-open byte range into one document snapshot.
type Position struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

type Occurrence struct {
	Text           string    `json:"text"`
	ContextSnippet string    `json:"context_snippet,omitempty"`
	Position       *Position `json:"position,omitempty"`
}

// NamedValue is a user-supplied value together with the places in a document it fills.
type NamedValue struct {
	ID          string        `json:"id"`
	Label       string        `json:"label"`
	UserInput   string        `json:"user_input"`
	FieldType   ParameterType `json:"field_type"`
	Occurrences []Occurrence  `json:"occurrences"`
}

type ReplacementOp struct {
	Start        int    `json:"start"`
	End          int    `json:"end"`
	OriginalText string `json:"original_text"`
	NewText      string `json:"new_text"`
	ValueID      string `json:"value_id,omitempty"`
	Strategy     string `json:"strategy,omitempty"`
}

type FieldMarker struct {
	FieldName    string       `json:"field_name"`
	CurrentValue string       `json:"current_value"`
	DisplayName  string       `json:"display_name"`
	Occurrences  []Occurrence `json:"occurrences,omitempty"`
}

// FieldValue is one entry of the structured field side channel emitted by a generator.
type FieldValue struct {
	Path  string `json:"path" jsonschema:"required,description=Parameter key or field name the value fills"`
	Value string `json:"value" jsonschema:"required,description=Exact text of the value as it appears in the document"`
}

type Template struct {
	Name string `json:"name" yaml:"name"`
	Body string `json:"body" yaml:"body"`
}

type Clause struct {
	Title string `json:"title" yaml:"title"`
	Body  string `json:"body" yaml:"body"`
	// RequiresKey limits the clause to sessions where this parameter is known.
	RequiresKey string `json:"requires_key,omitempty" yaml:"requires_key,omitempty"`
}

type References struct {
	Templates []Template `json:"templates,omitempty"`
	Clauses   []Clause   `json:"clauses,omitempty"`
}

// DraftSession is the per-conversation state owned by the dialogue controller.
type DraftSession struct {
	ID                   string                `json:"id"`
	Status               Status                `json:"status"`
	RequestText          string                `json:"request_text"`
	DocumentType         string                `json:"document_type,omitempty"`
	Confidence           float64               `json:"confidence"`
	RequiredParameters   []ParameterDescriptor `json:"required_parameters,omitempty"`
	CollectedParameters  map[string]string     `json:"collected_parameters"`
	MissingParameterKeys []string              `json:"missing_parameter_keys"`
	ConversationHistory  []Turn                `json:"conversation_history"`
	GeneratedDocument    *string               `json:"generated_document,omitempty"`
	FieldMarkers         []FieldMarker         `json:"field_markers,omitempty"`

	PendingKey      string    `json:"pending_key,omitempty"`
	LastQuestion    string    `json:"last_question,omitempty"`
	LastError       string    `json:"last_error,omitempty"`
	Inbox           *string   `json:"inbox,omitempty"`
	ClarifyAttempts int       `json:"clarify_attempts,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func NewDraftSession(id string) *DraftSession {
	now := time.Now()
	return &DraftSession{
		ID:                  id,
		Status:              StatusAnalyzeRequest,
		CollectedParameters: map[string]string{},
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

// Clone returns a deep copy so that a step can never mutate its caller's session.
func (s *DraftSession) Clone() *DraftSession {
	if s == nil {
		return nil
	}
	out := *s
	out.RequiredParameters = slices.Clone(s.RequiredParameters)
	for i := range out.RequiredParameters {
		out.RequiredParameters[i].Options = slices.Clone(out.RequiredParameters[i].Options)
	}
	out.CollectedParameters = maps.Clone(s.CollectedParameters)
	if out.CollectedParameters == nil {
		out.CollectedParameters = map[string]string{}
	}
	out.MissingParameterKeys = slices.Clone(s.MissingParameterKeys)
	out.ConversationHistory = slices.Clone(s.ConversationHistory)
	if s.GeneratedDocument != nil {
		doc := *s.GeneratedDocument
		out.GeneratedDocument = &doc
	}
	out.FieldMarkers = make([]FieldMarker, len(s.FieldMarkers))
	for i, m := range s.FieldMarkers {
		m.Occurrences = slices.Clone(m.Occurrences)
		out.FieldMarkers[i] = m
	}
	if s.Inbox != nil {
		msg := *s.Inbox
		out.Inbox = &msg
	}
	return &out
}

// Descriptor returns the required-parameter descriptor for key.
func (s *DraftSession) Descriptor(key string) (ParameterDescriptor, bool) {
	for _, d := range s.RequiredParameters {
		if d.Key == key {
			return d, true
		}
	}
	return ParameterDescriptor{}, false
}

// Collected reports whether key has a collected value.
func (s *DraftSession) Collected(key string) bool {
	_, ok := s.CollectedParameters[key]
	return ok
}
