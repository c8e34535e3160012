package classify

import (
	"context"

	"github.com/tbxark/draftagent/types"
)

type Request struct {
	// Text is the request text gathered so far, one user message per line.
	Text    string
	History []types.Turn
}

// Result is the classifier output. An empty DocumentType means no type was recognized.
type Result struct {
	DocumentType        string            `json:"document_type"`
	Confidence          float64           `json:"confidence"`
	MentionedParameters map[string]string `json:"mentioned_parameters,omitempty"`
}

type Classifier interface {
	Classify(ctx context.Context, req *Request) (*Result, error)
}
