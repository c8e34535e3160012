package agent

import (
	"github.com/tbxark/draftagent/errors"
	"github.com/tbxark/draftagent/marker"
	"github.com/tbxark/draftagent/types"
)

// Outcome is the closed set of results of one controller step.
type Outcome string

const (
	// OutcomeContinue means the session advanced and the next step may run right away.
	OutcomeContinue Outcome = "continue"
	// OutcomeSuspend means the session waits for the next user message.
	OutcomeSuspend Outcome = "suspend"
	// OutcomeDone means the document was generated.
	OutcomeDone Outcome = "done"
)

// StepResult is what Machine.Step returns. Session is always the next session value;
// the input session is never modified.
type StepResult struct {
	Outcome  Outcome
	Session  *types.DraftSession
	Question string
	Document string

	FieldMarkers []types.FieldMarker
	Malformed    []marker.Malformed

	// Reason explains why a suspended step needs user input.
	Reason *errors.DraftError
}

// Reply is the answer to one submitted user message.
type Reply struct {
	SessionID string       `json:"session_id"`
	Status    types.Status `json:"status"`
	// Message is the text to show the user: the question, or a completion or cancellation note.
	Message      string              `json:"message"`
	Question     string              `json:"question,omitempty"`
	Document     *string             `json:"document,omitempty"`
	FieldMarkers []types.FieldMarker `json:"field_markers,omitempty"`
	Malformed    []marker.Malformed  `json:"malformed_markers,omitempty"`
	// Reason is set on questions: CLASSIFICATION_AMBIGUOUS, MISSING_REQUIRED_PARAMETER
	// or PARAMETER_VALIDATION_FAILED.
	Reason *errors.DraftError `json:"reason,omitempty"`
}
