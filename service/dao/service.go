package dao

import (
	"context"
)

// Matcher narrows a List call; a record is returned when every supplied
// matcher accepts it.
type Matcher[T any] func(*T) bool

// Service is a minimal generic persistence contract shared by the engine's
// record stores (cascade requests, decisions, audit events).
type Service[K comparable, T any] interface {
	Save(ctx context.Context, t *T) error

	Load(ctx context.Context, id K) (*T, error)

	Delete(ctx context.Context, id K) error

	List(ctx context.Context, matchers ...Matcher[T]) ([]*T, error)
}
