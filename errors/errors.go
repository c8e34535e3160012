package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode identifies a kind of drafting error.
type ErrorCode string

const (
	ErrClassificationAmbiguous   ErrorCode = "CLASSIFICATION_AMBIGUOUS"
	ErrMissingRequiredParameter  ErrorCode = "MISSING_REQUIRED_PARAMETER"
	ErrParameterValidationFailed ErrorCode = "PARAMETER_VALIDATION_FAILED"
	ErrClassificationFailed      ErrorCode = "CLASSIFICATION_FAILED"   // retryable
	ErrValidationUnavailable     ErrorCode = "VALIDATION_UNAVAILABLE"  // retryable
	ErrRetrievalFailed           ErrorCode = "RETRIEVAL_FAILED"        // retryable
	ErrGenerationFailed          ErrorCode = "GENERATION_FAILED"       // retryable
	ErrQuestionFailed            ErrorCode = "QUESTION_FAILED"         // retryable
	ErrOccurrenceUnresolved      ErrorCode = "OCCURRENCE_UNRESOLVED"   // per item
	ErrMalformedFieldMarker      ErrorCode = "MALFORMED_FIELD_MARKER"  // per item
	ErrSessionNotFound           ErrorCode = "SESSION_NOT_FOUND"
	ErrSessionClosed             ErrorCode = "SESSION_CLOSED"
	ErrStepLimitExceeded         ErrorCode = "STEP_LIMIT_EXCEEDED"
	ErrNoProgress                ErrorCode = "NO_PROGRESS"
	ErrInvalidRequest            ErrorCode = "INVALID_REQUEST"
	ErrInternal                  ErrorCode = "INTERNAL"
)

// DraftError is a structured error with a code and a retry hint.
type DraftError struct {
	Code      ErrorCode      `json:"code"`
	Message   string         `json:"message"`
	Retryable bool           `json:"retryable"`
	Details   map[string]any `json:"details,omitempty"`
	Err       error          `json:"-"`
}

func (e *DraftError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DraftError) Unwrap() error {
	return e.Err
}

func NewClassificationAmbiguous(documentType string, confidence float64) *DraftError {
	message := fmt.Sprintf("document type %q classified with confidence %.2f", documentType, confidence)
	if documentType == "" {
		message = fmt.Sprintf("no document type reached the threshold (confidence %.2f)", confidence)
	}
	return &DraftError{
		Code:    ErrClassificationAmbiguous,
		Message: message,
		Details: map[string]any{"document_type": documentType, "confidence": confidence},
	}
}

func NewMissingRequiredParameter(key string) *DraftError {
	return &DraftError{
		Code:    ErrMissingRequiredParameter,
		Message: fmt.Sprintf("required parameter %q is missing", key),
		Details: map[string]any{"key": key},
	}
}

func NewParameterValidationFailed(key, reason string) *DraftError {
	return &DraftError{
		Code:    ErrParameterValidationFailed,
		Message: fmt.Sprintf("parameter %q: %s", key, reason),
		Details: map[string]any{"key": key, "reason": reason},
	}
}

func NewClassificationFailed(err error) *DraftError {
	return &DraftError{Code: ErrClassificationFailed, Message: "request classification failed", Retryable: true, Err: err}
}

func NewValidationUnavailable(key string, err error) *DraftError {
	return &DraftError{
		Code:      ErrValidationUnavailable,
		Message:   fmt.Sprintf("could not validate parameter %q", key),
		Retryable: true,
		Details:   map[string]any{"key": key},
		Err:       err,
	}
}

func NewRetrievalFailed(documentType string, err error) *DraftError {
	return &DraftError{
		Code:      ErrRetrievalFailed,
		Message:   fmt.Sprintf("reference retrieval for %q failed", documentType),
		Retryable: true,
		Details:   map[string]any{"document_type": documentType},
		Err:       err,
	}
}

func NewGenerationFailed(documentType string, err error) *DraftError {
	return &DraftError{
		Code:      ErrGenerationFailed,
		Message:   fmt.Sprintf("document generation for %q failed", documentType),
		Retryable: true,
		Details:   map[string]any{"document_type": documentType},
		Err:       err,
	}
}

func NewQuestionFailed(err error) *DraftError {
	return &DraftError{Code: ErrQuestionFailed, Message: "could not phrase the next question", Retryable: true, Err: err}
}

func NewOccurrenceUnresolved(label, text, reason string) *DraftError {
	return &DraftError{
		Code:    ErrOccurrenceUnresolved,
		Message: fmt.Sprintf("occurrence %q of %q unresolved: %s", text, label, reason),
		Details: map[string]any{"label": label, "text": text, "reason": reason},
	}
}

func NewMalformedFieldMarker(offset int, reason string) *DraftError {
	return &DraftError{
		Code:    ErrMalformedFieldMarker,
		Message: fmt.Sprintf("malformed field marker at offset %d: %s", offset, reason),
		Details: map[string]any{"offset": offset, "reason": reason},
	}
}

func NewSessionNotFound(id string) *DraftError {
	return &DraftError{
		Code:    ErrSessionNotFound,
		Message: fmt.Sprintf("session not found: %s", id),
		Details: map[string]any{"session_id": id},
	}
}

func NewSessionClosed(id string, status string) *DraftError {
	return &DraftError{
		Code:    ErrSessionClosed,
		Message: fmt.Sprintf("session %s is %s; start a new session", id, status),
		Details: map[string]any{"session_id": id, "status": status},
	}
}

func NewStepLimitExceeded(limit int) *DraftError {
	return &DraftError{
		Code:    ErrStepLimitExceeded,
		Message: fmt.Sprintf("controller did not suspend within %d steps", limit),
		Details: map[string]any{"limit": limit},
	}
}

func NewNoProgress(status string) *DraftError {
	return &DraftError{
		Code:    ErrNoProgress,
		Message: fmt.Sprintf("step in status %s made no progress", status),
		Details: map[string]any{"status": status},
	}
}

func NewInvalidRequest(msg string) *DraftError {
	return &DraftError{Code: ErrInvalidRequest, Message: msg}
}

func NewInternal(err error) *DraftError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &DraftError{Code: ErrInternal, Message: msg, Err: err}
}

// Is reports whether err wraps a DraftError with the given code.
func Is(err error, code ErrorCode) bool {
	var dErr *DraftError
	if stderrors.As(err, &dErr) {
		return dErr.Code == code
	}
	return false
}

// IsRetryable reports whether err wraps a DraftError marked retryable.
func IsRetryable(err error) bool {
	var dErr *DraftError
	if stderrors.As(err, &dErr) {
		return dErr.Retryable
	}
	return false
}

// As extracts the DraftError from err, if any.
func As(err error) (*DraftError, bool) {
	var dErr *DraftError
	ok := stderrors.As(err, &dErr)
	return dErr, ok
}
