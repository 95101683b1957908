package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/microsoft/go-mssqldb"
	_ "modernc.org/sqlite"

	"github.com/larry311012/ai-news-hub-sub002/infrastructure/configuration"
	"github.com/larry311012/ai-news-hub-sub002/infrastructure/logger"
)

// Dialect selects the SQL flavour a repository speaks.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
	DialectMSSQL    Dialect = "mssql"
)

func init() {
	// modernc registers itself as "sqlite", which sqlx does not know.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// DriverName is the database/sql driver behind the dialect. sqlx picks the
// placeholder style from it.
func (d Dialect) DriverName() string {
	switch d {
	case DialectPostgres:
		return "postgres"
	case DialectMSSQL:
		return "sqlserver"
	}
	return "sqlite"
}

// Wrap adopts an existing handle, e.g. a sqlmock connection.
func Wrap(db *sql.DB, d Dialect) *sqlx.DB {
	return sqlx.NewDb(db, d.DriverName())
}

// OpenDatabase connects to the configured vendor and makes sure the schema exists.
func OpenDatabase(ctx context.Context, cfg configuration.Database, dataDir string) (*sqlx.DB, Dialect, error) {
	var (
		db      *sqlx.DB
		dialect Dialect
		err     error
	)
	switch strings.ToLower(cfg.Vendor) {
	case "postgres", "postgresql", "psql":
		dialect = DialectPostgres
		db, err = NewPostgreSQLDB(cfg.Psql)
	case "mssql", "sqlserver":
		dialect = DialectMSSQL
		db, err = NewMSSQLDB(cfg.Mssql)
	case "", "sqlite":
		dialect = DialectSQLite
		path := cfg.Sqlite.Path
		if path == "" {
			path = filepath.Join(dataDir, "ai-news-hub.db")
		}
		db, err = NewSQLiteDB(path)
	default:
		return nil, "", fmt.Errorf("unsupported database vendor %q", cfg.Vendor)
	}
	if err != nil {
		return nil, "", err
	}
	if err := EnsureSchema(ctx, db, dialect); err != nil {
		_ = db.Close()
		return nil, "", err
	}
	logger.GetLogger().WithField("vendor", dialect).Info("Database ready")
	return db, dialect, nil
}

// NewSQLiteDB opens a local database file (or ":memory:"). SQLite allows a single writer,
// so the pool is capped at one connection.
func NewSQLiteDB(path string) (*sqlx.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return db, nil
}

func NewPostgreSQLDB(cfg configuration.Db) (*sqlx.DB, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("postgres host is not configured")
	}
	u := &url.URL{Scheme: "postgres", Host: fmt.Sprintf("%s:%s", cfg.Host, cfg.Port), Path: "/" + cfg.Name}
	if cfg.User != "" {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	}
	q := url.Values{}
	q.Set("sslmode", cfg.SSLMode)
	u.RawQuery = q.Encode()

	db, err := sqlx.Open("postgres", u.String())
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// NewMSSQLDB creates a handle for Azure SQL / SQL Server.
func NewMSSQLDB(cfg configuration.Db) (*sqlx.DB, error) {
	q := url.Values{}
	if cfg.Name != "" {
		q.Set("database", cfg.Name)
	}
	// Azure SQL requires encrypt=true
	q.Set("encrypt", "true")
	if cfg.Host == "localhost" || cfg.Host == "127.0.0.1" {
		q.Set("TrustServerCertificate", "true")
	}

	u := &url.URL{Scheme: "sqlserver", Host: fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)}
	if cfg.User != "" {
		if cfg.Password != "" {
			u.User = url.UserPassword(cfg.User, cfg.Password)
		} else {
			u.User = url.User(cfg.User)
		}
	}
	u.RawQuery = q.Encode()

	db, err := sqlx.Open("sqlserver", u.String())
	if err != nil {
		return nil, err
	}
	db.SetConnMaxIdleTime(time.Minute)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
