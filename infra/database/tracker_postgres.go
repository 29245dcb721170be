package database

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Supported database/sql driver names.
const (
	DriverPgx      = "pgx"
	DriverPostgres = "postgres"
)

// PostgresConfig holds pool settings for the sqlx handle.
type PostgresConfig struct {
	Driver          string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultPostgresConfig returns the pool defaults. DB_MAX_CONNS overrides the open limit.
func DefaultPostgresConfig() *PostgresConfig {
	maxConns := 25
	if envMax := os.Getenv("DB_MAX_CONNS"); envMax != "" {
		if v, err := strconv.Atoi(envMax); err == nil && v > 0 {
			maxConns = v
		}
	}

	return &PostgresConfig{
		Driver:          DriverPgx,
		MaxOpenConns:    maxConns,
		MaxIdleConns:    10,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
	}
}

// NewPostgresWithConfig connects through pgx's database/sql driver or lib/pq.
// The pgx connection uses the simple protocol so it works behind PgBouncer.
func NewPostgresWithConfig(ctx context.Context, databaseURL string, cfg *PostgresConfig) (*sqlx.DB, error) {
	if cfg == nil {
		cfg = DefaultPostgresConfig()
	}
	if databaseURL == "" {
		return nil, fmt.Errorf("database url is empty")
	}

	driver := cfg.Driver
	if driver == "" {
		driver = DriverPgx
	}
	dsn := databaseURL
	switch driver {
	case DriverPgx:
		dsn = withQueryParam(databaseURL, "default_query_exec_mode=simple_protocol")
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	return db, nil
}

func withQueryParam(url, param string) string {
	if strings.Contains(url, param) {
		return url
	}
	if strings.Contains(url, "?") {
		return url + "&" + param
	}
	return url + "?" + param
}
