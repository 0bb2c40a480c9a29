package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver "pgx"
	_ "github.com/mattn/go-sqlite3"    // SQLite driver "sqlite3"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // SQLite driver "sqlite" (cgo-free)
)

// Supported backends.
const (
	BackendSQLite     = "sqlite"      // SerializedStore on one SQLite connection
	BackendSQLitePool = "sqlite-pool" // DirectStore on a pool of SQLite connections (WAL)
	BackendPostgres   = "postgres"    // DirectStore on a PostgreSQL pool
	BackendMemory     = "memory"      // MemoryStore
	BackendJSON       = "json"        // JsonFileStore
)

// SQLite drivers.
const (
	DriverMattn   = "sqlite3"
	DriverModernc = "sqlite"
)

// sqliteFile is the database file name inside Config.DataDir.
const sqliteFile = "tinybase.db"

// jsonFile is the snapshot file name inside Config.DataDir.
const jsonFile = "tinybase.json"

// Config selects and configures a backend.
type Config struct {
	Backend      string `env:"STORE_BACKEND" envDefault:"sqlite"`
	DataDir      string `env:"DATA_DIR" envDefault:"./data"`
	SQLiteDriver string `env:"SQLITE_DRIVER" envDefault:"sqlite3"`
	InMemory     bool   `env:"SQLITE_IN_MEMORY" envDefault:"false"`
	DatabaseURL  string `env:"DATABASE_URL"`
	MaxOpenConns int    `env:"STORE_MAX_OPEN_CONNS" envDefault:"8"`
}

// Validate reports configuration errors that New would hit.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendSQLite, BackendSQLitePool:
		if c.SQLiteDriver != DriverMattn && c.SQLiteDriver != DriverModernc {
			return fmt.Errorf("unknown SQLite driver: %q (supported: %s, %s)", c.SQLiteDriver, DriverMattn, DriverModernc)
		}
		if c.Backend == BackendSQLitePool && c.InMemory {
			return fmt.Errorf("backend %q needs a database file: each pooled connection would see its own in-memory database", c.Backend)
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("backend %q requires DATABASE_URL", c.Backend)
		}
	case BackendMemory, BackendJSON:
	default:
		return fmt.Errorf("unknown store backend: %q (supported: %s, %s, %s, %s, %s)",
			c.Backend, BackendSQLite, BackendSQLitePool, BackendPostgres, BackendMemory, BackendJSON)
	}
	return nil
}

// New creates a Store based on the backend name.
//
// Supported backends:
//
//	"sqlite"      - one SQLite connection at DataDir/tinybase.db, serialized (default)
//	"sqlite-pool" - pooled SQLite connections at DataDir/tinybase.db in WAL mode
//	"postgres"    - pooled PostgreSQL connections to DatabaseURL
//	"memory"      - In-memory (ephemeral, for testing)
//	"json"        - In-memory with a JSON snapshot at DataDir/tinybase.json
func New(ctx context.Context, cfg Config, l *zap.Logger) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	l = l.Named(cfg.Backend)

	switch cfg.Backend {
	case BackendSQLite:
		db, err := openSQLite(cfg, false)
		if err != nil {
			return nil, err
		}
		s, err := NewSerializedStore(ctx, db, SQLite, l)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		return s, nil

	case BackendSQLitePool:
		db, err := openSQLite(cfg, true)
		if err != nil {
			return nil, err
		}
		s, err := NewDirectStore(ctx, db, SQLite, l)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		return s, nil

	case BackendPostgres:
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			return nil, &EngineError{Op: "open postgres", Err: err}
		}
		if cfg.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, &EngineError{Op: "open postgres", Err: err}
		}
		s, err := NewDirectStore(ctx, db, Postgres, l)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		return s, nil

	case BackendMemory:
		return NewMemoryStore(l), nil

	default:
		s, err := NewJsonFileStore(filepath.Join(cfg.DataDir, jsonFile), l)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// openSQLite opens a SQLite database for the configured driver.
// Pooled databases get WAL mode and a busy timeout on every connection.
func openSQLite(cfg Config, pooled bool) (*sql.DB, error) {
	dsn := ":memory:"
	if !cfg.InMemory {
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, &EngineError{Op: "open sqlite", Err: err}
		}
		dsn = sqliteDSN(cfg.SQLiteDriver, filepath.Join(cfg.DataDir, sqliteFile))
	}

	db, err := sql.Open(cfg.SQLiteDriver, dsn)
	if err != nil {
		return nil, &EngineError{Op: "open sqlite", Err: err}
	}
	if pooled && cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	return db, nil
}

// sqliteDSN returns a file DSN with per-connection pragmas in the syntax
// of the given driver.
func sqliteDSN(driver, path string) string {
	if driver == DriverModernc {
		return "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	return "file:" + path + "?_busy_timeout=5000&_journal_mode=WAL"
}
