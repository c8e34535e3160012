package validate

import (
	"context"

	"github.com/tbxark/draftagent/types"
)

type Request struct {
	Descriptor types.ParameterDescriptor
	Input      string
	// Question is the assistant message the input answers, when there is one.
	Question string
	History  []types.Turn
}

// Result of validating one raw answer. Value holds the normalized value when Valid.
type Result struct {
	Valid bool   `json:"valid"`
	Value string `json:"value,omitempty"`
	Error string `json:"error,omitempty"`
}

func invalid(reason string) *Result {
	return &Result{Error: reason}
}

type Validator interface {
	Validate(ctx context.Context, req *Request) (*Result, error)
}
