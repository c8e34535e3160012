package agent

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"

	"github.com/tbxark/draftagent/internal/sqlitedb"
	"github.com/tbxark/draftagent/types"
)

// SQLiteStateReadWriter keeps sessions in the sessions table as JSON.
type SQLiteStateReadWriter struct {
	db *sql.DB
}

func OpenSQLiteStateReadWriter(path string) (*SQLiteStateReadWriter, error) {
	db, err := sqlitedb.Open(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteStateReadWriter{db: db}, nil
}

// NewSQLiteStateReadWriter uses an already migrated database.
func NewSQLiteStateReadWriter(db *sql.DB) *SQLiteStateReadWriter {
	return &SQLiteStateReadWriter{db: db}
}

func (s *SQLiteStateReadWriter) Close() error {
	return s.db.Close()
}

func (s *SQLiteStateReadWriter) Read(ctx context.Context, id string) (*types.DraftSession, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT state_json FROM sessions WHERE id = ?`, id).Scan(&raw)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read session: %w", err)
	}
	var session types.DraftSession
	if err := sonic.UnmarshalString(raw, &session); err != nil {
		return nil, false, fmt.Errorf("decode session %s: %w", id, err)
	}
	if session.CollectedParameters == nil {
		session.CollectedParameters = map[string]string{}
	}
	return &session, true, nil
}

func (s *SQLiteStateReadWriter) Write(ctx context.Context, session *types.DraftSession) error {
	raw, err := sonic.MarshalString(session)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", session.ID, err)
	}
	created := session.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	updated := session.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, status, state_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		  status = excluded.status,
		  state_json = excluded.state_json,
		  updated_at = excluded.updated_at
	`, session.ID, string(session.Status), raw, created.Unix(), updated.Unix())
	if err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

func (s *SQLiteStateReadWriter) Remove(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}

// SessionSummary is one row of List.
type SessionSummary struct {
	ID        string       `json:"id"`
	Status    types.Status `json:"status"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// List returns the most recently updated sessions first.
func (s *SQLiteStateReadWriter) List(ctx context.Context, limit int) ([]SessionSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, status, updated_at FROM sessions ORDER BY updated_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()
	var out []SessionSummary
	for rows.Next() {
		var (
			sum     SessionSummary
			status  string
			updated int64
		)
		if err := rows.Scan(&sum.ID, &status, &updated); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sum.Status = types.Status(status)
		sum.UpdatedAt = time.Unix(updated, 0)
		out = append(out, sum)
	}
	return out, rows.Err()
}

var _ StateReadWriter = (*SQLiteStateReadWriter)(nil)
