package repository

import (
	"context"
	"errors"
)

// ErrSkipWrite is returned by an Update callback to leave the stored value untouched.
// Update itself then returns nil.
var ErrSkipWrite = errors.New("skip write")

// Repository is the key-value local storage the bank document and the session live in.
// Values are opaque text addressed by fixed keys.
type Repository interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Put(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error

	// Update replaces the value under key with the one fn returns, with no other writer able to
	// change the key between the read handed to fn and the write.
	Update(ctx context.Context, key string, fn func(current string, found bool) (string, error)) error
}
