package retrieve

import (
	"context"

	"github.com/tbxark/draftagent/registry"
	"github.com/tbxark/draftagent/types"
)

// Retriever fetches templates and clauses relevant to a document type.
// knownKeys are the parameter keys already collected; clauses that require a key
// outside that set are left out.
type Retriever interface {
	Retrieve(ctx context.Context, documentType string, knownKeys []string) (*types.References, error)
}

// NopRetriever returns no references.
type NopRetriever struct{}

func (NopRetriever) Retrieve(ctx context.Context, documentType string, knownKeys []string) (*types.References, error) {
	return &types.References{}, nil
}

// RegistryRetriever serves the templates and clauses declared in registry definitions.
type RegistryRetriever struct {
	registry *registry.Registry
}

func NewRegistryRetriever(reg *registry.Registry) *RegistryRetriever {
	return &RegistryRetriever{registry: reg}
}

func (r *RegistryRetriever) Retrieve(ctx context.Context, documentType string, knownKeys []string) (*types.References, error) {
	def, ok := r.registry.Definition(documentType)
	if !ok {
		return &types.References{}, nil
	}
	refs := &types.References{Templates: append([]types.Template(nil), def.Templates...)}
	refs.Clauses = FilterClauses(def.Clauses, knownKeys)
	return refs, nil
}

// FilterClauses keeps clauses without a required key or whose key is known.
func FilterClauses(clauses []types.Clause, knownKeys []string) []types.Clause {
	known := make(map[string]bool, len(knownKeys))
	for _, k := range knownKeys {
		known[k] = true
	}
	var out []types.Clause
	for _, c := range clauses {
		if c.RequiresKey != "" && !known[c.RequiresKey] {
			continue
		}
		out = append(out, c)
	}
	return out
}

// MultiRetriever concatenates the references of several retrievers in order.
type MultiRetriever struct {
	retrievers []Retriever
}

func NewMultiRetriever(retrievers ...Retriever) *MultiRetriever {
	return &MultiRetriever{retrievers: retrievers}
}

func (m *MultiRetriever) Retrieve(ctx context.Context, documentType string, knownKeys []string) (*types.References, error) {
	out := &types.References{}
	for _, r := range m.retrievers {
		refs, err := r.Retrieve(ctx, documentType, knownKeys)
		if err != nil {
			return nil, err
		}
		out.Templates = append(out.Templates, refs.Templates...)
		out.Clauses = append(out.Clauses, refs.Clauses...)
	}
	return out, nil
}
