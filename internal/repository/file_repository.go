package repository

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// FileRepository stores each key as one file inside a directory.
// Writes go to a temporary file that is renamed over the old one, so readers see either the old
// or the new value. Writers of a key also hold an OS file lock on <key>.lock, so Update is
// exclusive across processes sharing the directory.
type FileRepository struct {
	mu  sync.Mutex
	dir string
}

// lockRetryDelay is how often a blocked writer retries the file lock
const lockRetryDelay = 10 * time.Millisecond

// NewFileRepository creates the directory if needed
func NewFileRepository(dir string) (*FileRepository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &FileRepository{dir: dir}, nil
}

func (r *FileRepository) path(key string) string {
	return filepath.Join(r.dir, url.PathEscape(key))
}

func (r *FileRepository) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.read(key)
}

func (r *FileRepository) Put(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	unlock, err := r.lock(ctx, key)
	if err != nil {
		return err
	}
	defer unlock()
	return r.write(key, value)
}

func (r *FileRepository) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	unlock, err := r.lock(ctx, key)
	if err != nil {
		return err
	}
	defer unlock()
	if err := os.Remove(r.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (r *FileRepository) Update(ctx context.Context, key string, fn func(string, bool) (string, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	unlock, err := r.lock(ctx, key)
	if err != nil {
		return err
	}
	defer unlock()

	cur, ok, err := r.read(key)
	if err != nil {
		return err
	}
	next, err := fn(cur, ok)
	if err != nil {
		if errors.Is(err, ErrSkipWrite) {
			return nil
		}
		return err
	}
	return r.write(key, next)
}

// lock takes the cross-process lock for key, waiting until ctx is done
func (r *FileRepository) lock(ctx context.Context, key string) (func(), error) {
	fl := flock.New(r.path(key) + ".lock")
	locked, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", key, err)
	}
	if !locked {
		return nil, fmt.Errorf("lock %s: not acquired", key)
	}
	return func() { fl.Unlock() }, nil
}

func (r *FileRepository) read(key string) (string, bool, error) {
	b, err := os.ReadFile(r.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read %s: %w", key, err)
	}
	return string(b), true, nil
}

func (r *FileRepository) write(key, value string) error {
	target := r.path(key)
	tmp := target + ".tmp"

	if err := os.WriteFile(tmp, []byte(value), 0o600); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", key, err)
	}
	return nil
}
