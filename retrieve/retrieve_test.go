package retrieve

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbxark/draftagent/registry"
	"github.com/tbxark/draftagent/types"
)

func TestRegistryRetriever_FiltersClausesByKnownKeys(t *testing.T) {
	reg, err := registry.Default()
	require.NoError(t, err)
	r := NewRegistryRetriever(reg)

	refs, err := r.Retrieve(context.Background(), "nda", []string{"party1_name", "party2_name"})
	require.NoError(t, err)
	require.Len(t, refs.Templates, 1)
	require.Len(t, refs.Clauses, 1)
	assert.Equal(t, "Return of Materials", refs.Clauses[0].Title)

	refs, err = r.Retrieve(context.Background(), "nda", []string{"term_months"})
	require.NoError(t, err)
	assert.Len(t, refs.Clauses, 2)

	refs, err = r.Retrieve(context.Background(), "unknown", nil)
	require.NoError(t, err)
	assert.Empty(t, refs.Templates)
}

func TestSQLiteLibrary(t *testing.T) {
	ctx := context.Background()
	lib, err := OpenSQLiteLibrary(filepath.Join(t.TempDir(), "library.db"))
	require.NoError(t, err)
	defer lib.Close()

	require.NoError(t, lib.AddTemplate(ctx, "NDA", types.Template{Name: "short", Body: "v1"}))
	require.NoError(t, lib.AddTemplate(ctx, "nda", types.Template{Name: "short", Body: "v2"}))
	require.NoError(t, lib.AddClause(ctx, "nda", types.Clause{Title: "Remedies", Body: "Injunctive relief."}))
	require.NoError(t, lib.AddClause(ctx, "nda", types.Clause{Title: "Term", Body: "Term clause.", RequiresKey: "term_months"}))
	require.NoError(t, lib.AddClause(ctx, "nda", types.Clause{Title: "Notices", Body: "In writing."}))
	require.Error(t, lib.AddClause(ctx, "", types.Clause{Title: "x"}))

	refs, err := lib.Retrieve(ctx, "nda", nil)
	require.NoError(t, err)
	require.Len(t, refs.Templates, 1)
	assert.Equal(t, "v2", refs.Templates[0].Body)
	require.Len(t, refs.Clauses, 2)
	assert.Equal(t, "Remedies", refs.Clauses[0].Title)
	assert.Equal(t, "Notices", refs.Clauses[1].Title)

	refs, err = lib.Retrieve(ctx, "nda", []string{"term_months"})
	require.NoError(t, err)
	require.Len(t, refs.Clauses, 3)
	assert.Equal(t, "Term", refs.Clauses[1].Title)
}

func TestSQLiteLibrary_Import(t *testing.T) {
	ctx := context.Background()
	reg, err := registry.Default()
	require.NoError(t, err)
	lib, err := OpenSQLiteLibrary(filepath.Join(t.TempDir(), "library.db"))
	require.NoError(t, err)
	defer lib.Close()

	require.NoError(t, lib.Import(ctx, reg.Definitions()))
	refs, err := lib.Retrieve(ctx, "employment_agreement", nil)
	require.NoError(t, err)
	assert.Len(t, refs.Templates, 1)
	assert.Len(t, refs.Clauses, 1)
}

type failingRetriever struct{}

func (failingRetriever) Retrieve(ctx context.Context, documentType string, knownKeys []string) (*types.References, error) {
	return nil, errors.New("library offline")
}

func TestMultiRetriever(t *testing.T) {
	reg, err := registry.Default()
	require.NoError(t, err)

	m := NewMultiRetriever(NewRegistryRetriever(reg), NopRetriever{})
	refs, err := m.Retrieve(context.Background(), "nda", nil)
	require.NoError(t, err)
	assert.Len(t, refs.Templates, 1)

	_, err = NewMultiRetriever(NopRetriever{}, failingRetriever{}).Retrieve(context.Background(), "nda", nil)
	require.Error(t, err)
}
