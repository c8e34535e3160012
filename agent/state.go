package agent

import (
	"context"

	"github.com/tbxark/draftagent/types"
)

// StateReadWriter persists draft sessions by id.
type StateReadWriter interface {
	Read(ctx context.Context, id string) (*types.DraftSession, bool, error)
	Write(ctx context.Context, session *types.DraftSession) error
	Remove(ctx context.Context, id string) error
}

type sessionKeyContext struct{}

const defaultSessionKey = "default"

// WithSessionID sets the session routing key used by DraftAgent.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionKeyContext{}, id)
}

// SessionIDFromContext gets the session routing key from the context.
func SessionIDFromContext(ctx context.Context) (string, bool) {
	value := ctx.Value(sessionKeyContext{})
	if value == nil {
		return "", false
	}
	key, ok := value.(string)
	return key, ok
}

func sessionIDOrDefault(ctx context.Context) string {
	key, ok := SessionIDFromContext(ctx)
	if ok && key != "" {
		return key
	}
	return defaultSessionKey
}

// CacheStateReadWriter stores sessions in a Cache. Sessions are cloned on the way in
// and out, so callers never share state with the store.
type CacheStateReadWriter struct {
	sessions Store[*types.DraftSession]
}

func NewCacheStateReadWriter(core Cache[*types.DraftSession]) *CacheStateReadWriter {
	return &CacheStateReadWriter{sessions: NewStore(core, "draft:session")}
}

// NewMemoryStateReadWriter is an in-memory implementation for testing and local usage.
func NewMemoryStateReadWriter(opts ...MemoryCacheOption) *CacheStateReadWriter {
	return NewCacheStateReadWriter(NewMemoryCache[*types.DraftSession](opts...))
}

func (m *CacheStateReadWriter) Read(ctx context.Context, id string) (*types.DraftSession, bool, error) {
	s, ok, err := m.sessions.Get(ctx, id)
	if err != nil || !ok {
		return nil, false, err
	}
	return s.Clone(), true, nil
}

func (m *CacheStateReadWriter) Write(ctx context.Context, session *types.DraftSession) error {
	return m.sessions.Set(ctx, session.ID, session.Clone())
}

func (m *CacheStateReadWriter) Remove(ctx context.Context, id string) error {
	return m.sessions.Del(ctx, id)
}

var _ StateReadWriter = (*CacheStateReadWriter)(nil)
