package retrieve

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/tbxark/draftagent/internal/sqlitedb"
	"github.com/tbxark/draftagent/registry"
	"github.com/tbxark/draftagent/types"
)

// SQLiteLibrary is a reference library of templates and clauses kept in SQLite.
type SQLiteLibrary struct {
	db *sql.DB
}

func OpenSQLiteLibrary(path string) (*SQLiteLibrary, error) {
	db, err := sqlitedb.Open(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteLibrary{db: db}, nil
}

func NewSQLiteLibrary(db *sql.DB) *SQLiteLibrary {
	return &SQLiteLibrary{db: db}
}

func (l *SQLiteLibrary) Close() error {
	return l.db.Close()
}

// AddTemplate stores a template, replacing one of the same name for the type.
func (l *SQLiteLibrary) AddTemplate(ctx context.Context, documentType string, tpl types.Template) error {
	documentType = registry.NormalizeType(documentType)
	if documentType == "" || strings.TrimSpace(tpl.Name) == "" {
		return fmt.Errorf("document type and template name are required")
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO templates (id, document_type, name, body, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(document_type, name) DO UPDATE SET body = excluded.body
	`, ulid.Make().String(), documentType, tpl.Name, tpl.Body, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("insert template: %w", err)
	}
	return nil
}

// AddClause appends a clause to the type's clause list.
func (l *SQLiteLibrary) AddClause(ctx context.Context, documentType string, clause types.Clause) error {
	documentType = registry.NormalizeType(documentType)
	if documentType == "" || strings.TrimSpace(clause.Title) == "" {
		return fmt.Errorf("document type and clause title are required")
	}
	var requiresKey sql.NullString
	if clause.RequiresKey != "" {
		requiresKey = sql.NullString{String: clause.RequiresKey, Valid: true}
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO clauses (id, document_type, title, body, requires_key, position, created_at)
		VALUES (?, ?, ?, ?, ?, (SELECT COALESCE(MAX(position), 0) + 1 FROM clauses WHERE document_type = ?), ?)
	`, ulid.Make().String(), documentType, clause.Title, clause.Body, requiresKey, documentType, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("insert clause: %w", err)
	}
	return nil
}

// Import copies the templates and clauses of registry definitions into the library.
func (l *SQLiteLibrary) Import(ctx context.Context, defs []*registry.Definition) error {
	for _, def := range defs {
		for _, tpl := range def.Templates {
			if err := l.AddTemplate(ctx, def.Type, tpl); err != nil {
				return err
			}
		}
		for _, c := range def.Clauses {
			if err := l.AddClause(ctx, def.Type, c); err != nil {
				return err
			}
		}
	}
	return nil
}

func (l *SQLiteLibrary) Retrieve(ctx context.Context, documentType string, knownKeys []string) (*types.References, error) {
	documentType = registry.NormalizeType(documentType)
	refs := &types.References{}

	rows, err := l.db.QueryContext(ctx, `SELECT name, body FROM templates WHERE document_type = ? ORDER BY name`, documentType)
	if err != nil {
		return nil, fmt.Errorf("query templates: %w", err)
	}
	for rows.Next() {
		var tpl types.Template
		if err := rows.Scan(&tpl.Name, &tpl.Body); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan template: %w", err)
		}
		refs.Templates = append(refs.Templates, tpl)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	rows, err = l.db.QueryContext(ctx, `SELECT title, body, requires_key FROM clauses WHERE document_type = ? ORDER BY position`, documentType)
	if err != nil {
		return nil, fmt.Errorf("query clauses: %w", err)
	}
	defer rows.Close()
	var clauses []types.Clause
	for rows.Next() {
		var (
			c           types.Clause
			requiresKey sql.NullString
		)
		if err := rows.Scan(&c.Title, &c.Body, &requiresKey); err != nil {
			return nil, fmt.Errorf("scan clause: %w", err)
		}
		c.RequiresKey = requiresKey.String
		clauses = append(clauses, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	refs.Clauses = FilterClauses(clauses, knownKeys)
	return refs, nil
}
