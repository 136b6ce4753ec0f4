package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Storage drivers understood by SetupRepository in cmd/bankdemo
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Corrupt document policies
const (
	CorruptReject = "reject"
	CorruptReseed = "reseed"
)

// Config holds all configuration for the application
type Config struct {
	Storage  StorageConfig
	Database DatabaseConfig
	Ledger   LedgerConfig
	Log      LogConfig
}

// StorageConfig describes the key-value store that holds the bank document and the session
type StorageConfig struct {
	Driver     string `env:"BANK_STORAGE_DRIVER" envDefault:"file"`
	Dir        string `env:"BANK_STORAGE_DIR" envDefault:"data"`
	SQLitePath string `env:"BANK_SQLITE_PATH" envDefault:"data/bank.db"`
	DataKey    string `env:"BANK_DATA_KEY" envDefault:"bankData"`
	SessionKey string `env:"BANK_SESSION_KEY" envDefault:"currentUser"`
}

// DatabaseConfig holds the Postgres configuration
type DatabaseConfig struct {
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     int    `env:"DB_PORT" envDefault:"5432"`
	Username string `env:"DB_USERNAME" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD" envDefault:"password"`
	DBName   string `env:"DB_NAME" envDefault:"xmlbank"`
	SSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`
}

// LedgerConfig holds ledger behaviour switches
type LedgerConfig struct {
	RecentLimit   int    `env:"BANK_RECENT_LIMIT" envDefault:"5"`
	CorruptPolicy string `env:"LEDGER_CORRUPT_POLICY" envDefault:"reject"`
}

// LogConfig controls informational output
type LogConfig struct {
	Quiet bool `env:"BANK_LOG_QUIET" envDefault:"true"`
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.Username, c.Password, c.DBName, c.SSLMode,
	)
}

// LoadConfig loads the configuration from environment variables
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the rest of the program cannot work with
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverMemory, DriverFile, DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Storage.DataKey == "" || c.Storage.SessionKey == "" {
		return fmt.Errorf("storage keys must not be empty")
	}
	if c.Storage.DataKey == c.Storage.SessionKey {
		return fmt.Errorf("data key and session key must differ")
	}
	if c.Ledger.RecentLimit < 0 {
		return fmt.Errorf("recent limit must not be negative, got %d", c.Ledger.RecentLimit)
	}
	switch c.Ledger.CorruptPolicy {
	case CorruptReject, CorruptReseed:
	default:
		return fmt.Errorf("unknown corrupt document policy %q", c.Ledger.CorruptPolicy)
	}
	return nil
}
