package repository

import (
	"context"
	"errors"
	"sync"
)

// MemoryRepository keeps values in a map. It is the store used by tests and by the memory driver.
type MemoryRepository struct {
	mu     sync.Mutex
	values map[string]string
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{values: make(map[string]string)}
}

func (r *MemoryRepository) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.values[key]
	return v, ok, nil
}

func (r *MemoryRepository) Put(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[key] = value
	return nil
}

func (r *MemoryRepository) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.values, key)
	return nil
}

func (r *MemoryRepository) Update(ctx context.Context, key string, fn func(string, bool) (string, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.values[key]
	next, err := fn(cur, ok)
	if err != nil {
		if errors.Is(err, ErrSkipWrite) {
			return nil
		}
		return err
	}
	r.values[key] = next
	return nil
}
