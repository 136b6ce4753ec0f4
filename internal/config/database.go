package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	_ "modernc.org/sqlite" // SQLite driver
)

// SetupDatabase opens the SQL backend selected by the storage driver and makes sure the
// key-value table exists.
func SetupDatabase(cfg *Config) (*sqlx.DB, error) {
	var (
		db  *sqlx.DB
		err error
	)

	switch cfg.Storage.Driver {
	case DriverPostgres:
		db, err = sqlx.Connect("postgres", cfg.Database.GetDSN())
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
	case DriverSQLite:
		sqlx.BindDriver("sqlite", sqlx.QUESTION)
		if dir := filepath.Dir(cfg.Storage.SQLitePath); cfg.Storage.SQLitePath != ":memory:" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		db, err = sqlx.Connect("sqlite", cfg.Storage.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		// One connection keeps :memory: databases shared and serializes writers.
		db.SetMaxOpenConns(1)
	default:
		return nil, fmt.Errorf("storage driver %q is not backed by a database", cfg.Storage.Driver)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return db, nil
}

// createTables creates the key-value table used as the bank's local storage
func createTables(db *sqlx.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS kv_store (
			store_key VARCHAR(255) PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	return err
}
