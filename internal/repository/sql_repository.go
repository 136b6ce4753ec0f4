package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// SQLRepository implements the Repository interface on top of the kv_store table.
// It works with both the postgres and the sqlite drivers.
type SQLRepository struct {
	db *sqlx.DB
}

// NewSQLRepository creates a new SQL-backed repository
func NewSQLRepository(db *sqlx.DB) *SQLRepository {
	return &SQLRepository{
		db: db,
	}
}

const upsertQuery = `
	INSERT INTO kv_store (store_key, value, updated_at)
	VALUES (?, ?, ?)
	ON CONFLICT (store_key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
`

const insertIfAbsentQuery = `
	INSERT INTO kv_store (store_key, value, updated_at)
	VALUES (?, ?, ?)
	ON CONFLICT (store_key) DO NOTHING
`

const updateQuery = `UPDATE kv_store SET value = ?, updated_at = ? WHERE store_key = ?`

// maxUpdateAttempts bounds how often Update restarts after losing a race to create the key
const maxUpdateAttempts = 3

func (r *SQLRepository) Get(ctx context.Context, key string) (string, bool, error) {
	query := r.db.Rebind(`SELECT value FROM kv_store WHERE store_key = ?`)

	var value string
	err := r.db.GetContext(ctx, &value, query, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil // Key not set
		}
		return "", false, err
	}

	return value, true, nil
}

func (r *SQLRepository) Put(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(upsertQuery), key, value, time.Now().UTC())
	return err
}

func (r *SQLRepository) Delete(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM kv_store WHERE store_key = ?`), key)
	return err
}

// Update reads and rewrites the key inside one database transaction. On Postgres an existing row
// is locked with FOR UPDATE; sqlite serializes writers at the database level.
//
// FOR UPDATE locks nothing when the row does not exist yet, so two first writers could both see
// an absent key. The first write of a key therefore uses ON CONFLICT DO NOTHING, and the loser
// starts over and sees the winner's value.
func (r *SQLRepository) Update(ctx context.Context, key string, fn func(string, bool) (string, error)) error {
	for attempt := 1; ; attempt++ {
		retry, err := r.update(ctx, key, fn)
		if err != nil || !retry {
			return err
		}
		if attempt == maxUpdateAttempts {
			return fmt.Errorf("update %s: key kept changing while being created", key)
		}
	}
}

func (r *SQLRepository) update(ctx context.Context, key string, fn func(string, bool) (string, error)) (retry bool, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}

	defer func() {
		if err != nil || retry {
			tx.Rollback()
		}
	}()

	query := `SELECT value FROM kv_store WHERE store_key = ?`
	if r.db.DriverName() == "postgres" {
		query += ` FOR UPDATE`
	}

	var current string
	found := true
	err = tx.GetContext(ctx, &current, tx.Rebind(query), key)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return false, err
		}
		err = nil
		found = false
	}

	var next string
	next, err = fn(current, found)
	if err != nil {
		if errors.Is(err, ErrSkipWrite) {
			tx.Rollback()
			return false, nil
		}
		return false, err
	}

	now := time.Now().UTC()
	if found {
		_, err = tx.ExecContext(ctx, tx.Rebind(updateQuery), next, now, key)
		if err != nil {
			return false, err
		}
		return false, tx.Commit()
	}

	res, err := tx.ExecContext(ctx, tx.Rebind(insertIfAbsentQuery), key, next, now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		// another writer created the key after our read
		return true, nil
	}
	return false, tx.Commit()
}
