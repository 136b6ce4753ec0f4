package repository_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rongwang/xmlbank/internal/config"
	"github.com/rongwang/xmlbank/internal/repository"
)

// backends returns a fresh instance of every repository implementation
func backends(t *testing.T) map[string]repository.Repository {
	t.Helper()

	fileRepo, err := repository.NewFileRepository(t.TempDir())
	require.NoError(t, err)

	db, err := config.SetupDatabase(&config.Config{
		Storage: config.StorageConfig{Driver: config.DriverSQLite, SQLitePath: ":memory:"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return map[string]repository.Repository{
		"memory": repository.NewMemoryRepository(),
		"file":   fileRepo,
		"sqlite": repository.NewSQLRepository(db),
	}
}

func TestRepositoryGetPutDelete(t *testing.T) {
	ctx := context.Background()
	for name, repo := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, found, err := repo.Get(ctx, "bankData")
			require.NoError(t, err)
			assert.False(t, found)

			require.NoError(t, repo.Put(ctx, "bankData", "<bank></bank>"))
			v, found, err := repo.Get(ctx, "bankData")
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, "<bank></bank>", v)

			require.NoError(t, repo.Put(ctx, "bankData", "<bank><users></users></bank>"))
			v, _, err = repo.Get(ctx, "bankData")
			require.NoError(t, err)
			assert.Equal(t, "<bank><users></users></bank>", v)

			require.NoError(t, repo.Delete(ctx, "bankData"))
			_, found, err = repo.Get(ctx, "bankData")
			require.NoError(t, err)
			assert.False(t, found)

			// deleting a missing key is not an error
			assert.NoError(t, repo.Delete(ctx, "bankData"))
		})
	}
}

func TestRepositoryKeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	for name, repo := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, repo.Put(ctx, "bankData", "doc"))
			require.NoError(t, repo.Put(ctx, "currentUser", `{"id":"1"}`))
			require.NoError(t, repo.Delete(ctx, "currentUser"))

			v, found, err := repo.Get(ctx, "bankData")
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, "doc", v)
		})
	}
}

func TestRepositoryUpdate(t *testing.T) {
	ctx := context.Background()
	for name, repo := range backends(t) {
		t.Run(name, func(t *testing.T) {
			// first write of a key takes the insert-if-absent path
			err := repo.Update(ctx, "counter", func(cur string, found bool) (string, error) {
				assert.False(t, found)
				assert.Equal(t, "", cur)
				return "1", nil
			})
			require.NoError(t, err)

			err = repo.Update(ctx, "counter", func(cur string, found bool) (string, error) {
				assert.True(t, found)
				assert.Equal(t, "1", cur)
				return "2", nil
			})
			require.NoError(t, err)

			v, _, err := repo.Get(ctx, "counter")
			require.NoError(t, err)
			assert.Equal(t, "2", v)
		})
	}
}

func TestRepositoryUpdateAbort(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	for name, repo := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, repo.Put(ctx, "k", "v1"))

			err := repo.Update(ctx, "k", func(string, bool) (string, error) { return "v2", boom })
			assert.ErrorIs(t, err, boom)

			err = repo.Update(ctx, "k", func(string, bool) (string, error) { return "v3", repository.ErrSkipWrite })
			assert.NoError(t, err)

			v, _, err := repo.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, "v1", v)
		})
	}
}

func TestRepositoryConcurrentUpdates(t *testing.T) {
	ctx := context.Background()
	for name, repo := range backends(t) {
		t.Run(name, func(t *testing.T) {
			const workers = 20
			var wg sync.WaitGroup
			wg.Add(workers)
			for i := 0; i < workers; i++ {
				go func() {
					defer wg.Done()
					err := repo.Update(ctx, "log", func(cur string, _ bool) (string, error) {
						return cur + "x", nil
					})
					assert.NoError(t, err)
				}()
			}
			wg.Wait()

			v, _, err := repo.Get(ctx, "log")
			require.NoError(t, err)
			assert.Len(t, v, workers)
		})
	}
}

func TestRepositoryHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, repo := range []repository.Repository{repository.NewMemoryRepository()} {
		_, _, err := repo.Get(ctx, "k")
		assert.ErrorIs(t, err, context.Canceled)
		assert.ErrorIs(t, repo.Put(ctx, "k", "v"), context.Canceled)
	}
}

func TestFileRepositoryEscapesKeys(t *testing.T) {
	ctx := context.Background()
	repo, err := repository.NewFileRepository(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, repo.Put(ctx, "../escape/key", "v"))
	v, found, err := repo.Get(ctx, "../escape/key")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v", v)
}

func TestFileRepositoryLocksAcrossInstances(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	// two repositories on one directory stand in for two CLI processes
	first, err := repository.NewFileRepository(dir)
	require.NoError(t, err)
	second, err := repository.NewFileRepository(dir)
	require.NoError(t, err)

	const workers = 20
	var wg sync.WaitGroup
	wg.Add(2 * workers)
	for i := 0; i < workers; i++ {
		for _, repo := range []*repository.FileRepository{first, second} {
			repo := repo
			go func() {
				defer wg.Done()
				err := repo.Update(ctx, "bankData", func(cur string, _ bool) (string, error) {
					return cur + "x", nil
				})
				assert.NoError(t, err)
			}()
		}
	}
	wg.Wait()

	v, _, err := first.Get(ctx, "bankData")
	require.NoError(t, err)
	assert.Len(t, v, 2*workers)
}

func TestFileRepositoryLockHonoursContext(t *testing.T) {
	dir := t.TempDir()
	repo, err := repository.NewFileRepository(dir)
	require.NoError(t, err)

	held := flock.New(filepath.Join(dir, "bankData.lock"))
	locked, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	defer held.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = repo.Update(ctx, "bankData", func(string, bool) (string, error) { return "v", nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	_, found, err := repo.Get(context.Background(), "bankData")
	require.NoError(t, err)
	assert.False(t, found)
}
