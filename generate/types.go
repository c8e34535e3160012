package generate

import (
	"context"

	"github.com/tbxark/draftagent/types"
)

type Request struct {
	DocumentType    string
	Title           string
	Parameters      map[string]string
	Descriptors     []types.ParameterDescriptor
	References      *types.References
	OriginalRequest string
}

// Draft is raw generator output. Text may carry inline field markers; when Fields is
// non-empty it is the authoritative list of filled values and Text is plain.
type Draft struct {
	Text   string             `json:"text"`
	Fields []types.FieldValue `json:"fields,omitempty"`
}

type Generator interface {
	Generate(ctx context.Context, req *Request) (*Draft, error)
}
