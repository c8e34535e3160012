package agent

import (
	"context"
	"errors"
)

// Store prefixes every key of a Cache with a namespace so several kinds of values
// can share one cache.
type Store[S any] struct {
	core      Cache[S]
	namespace string
}

func NewStore[S any](core Cache[S], namespace string) Store[S] {
	return Store[S]{
		core:      core,
		namespace: namespace,
	}
}

func (c Store[S]) key(id string) (string, error) {
	if id == "" {
		return "", errors.New("empty key")
	}
	return c.namespace + ":" + id, nil
}

func (c Store[S]) Set(ctx context.Context, id string, val S) error {
	key, err := c.key(id)
	if err != nil {
		return err
	}
	return c.core.Set(ctx, key, val)
}

func (c Store[S]) Get(ctx context.Context, id string) (S, bool, error) {
	key, err := c.key(id)
	if err != nil {
		var zero S
		return zero, false, err
	}
	return c.core.Get(ctx, key)
}

func (c Store[S]) Del(ctx context.Context, id string) error {
	key, err := c.key(id)
	if err != nil {
		return err
	}
	return c.core.Del(ctx, key)
}

func (c Store[S]) Exists(ctx context.Context, id string) (bool, error) {
	key, err := c.key(id)
	if err != nil {
		return false, err
	}
	return c.core.Exists(ctx, key)
}
