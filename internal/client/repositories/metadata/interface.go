// Package metadata persists small named values (the session slots) in the
// local SQLite database.
package metadata

import "context"

// Repository reads and writes named values. A key that was never written,
// or was deleted, is simply absent: Get returns (nil, nil) and GetMany omits it.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	GetMany(ctx context.Context, keys ...string) (map[string][]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error
}
