package repository

import "context"

// KeyValueStore is the persistence port for small client state such as the learned
// user name. Read returns domain.ErrNotFound for a missing key.
type KeyValueStore interface {
	Read(ctx context.Context, key string) (string, error)
	Write(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
