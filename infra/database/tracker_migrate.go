package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"tracker_server/pkg/logger"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	migratepq "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// migrationLogger adapts the package logger to migrate.Logger.
type migrationLogger struct{}

func (migrationLogger) Printf(format string, v ...any) {
	logger.Debug("[Migrate] "+format, v...)
}

func (migrationLogger) Verbose() bool { return false }

// Migrate applies the embedded schema migrations using the driver the
// connection was opened with. Already up to date is not an error.
func Migrate(db *sql.DB, driver string) error {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	var (
		instance migratedb.Driver
		dbName   string
	)
	switch driver {
	case DriverPostgres:
		instance, err = migratepq.WithInstance(db, &migratepq.Config{})
		dbName = "postgres"
	default:
		instance, err = migratepgx.WithInstance(db, &migratepgx.Config{})
		dbName = "pgx5"
	}
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, dbName, instance)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	m.Log = migrationLogger{}

	start := time.Now()
	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info("[Migrate] schema is up to date")
		return nil
	}
	if err != nil {
		version, dirty, verr := m.Version()
		if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
			logger.WithError(verr).Error("[Migrate] failed to read schema version")
		}
		return fmt.Errorf("migrate up (version %d, dirty %t): %w", version, dirty, err)
	}

	version, _, _ := m.Version()
	logger.Info("[Migrate] schema migrated to version %d in %v", version, time.Since(start))
	return nil
}
