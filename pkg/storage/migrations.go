package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"sync"

	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const migrationDir = "migrations"

// goose keeps its dialect, base FS and logger in package globals
var migrateMu sync.Mutex

// Migrate applies every pending migration to db
func Migrate(ctx context.Context, db *sql.DB, log logrus.FieldLogger) error {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	if log == nil {
		log = logrus.StandardLogger()
	}
	goose.SetBaseFS(migrationFS)
	goose.SetLogger(log)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, migrationDir); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	log.WithField("version", version).Info("database schema up to date")
	return nil
}

// MigrationVersions lists the versions shipped with this binary, in order
func MigrationVersions() ([]int64, error) {
	names, err := fs.Glob(migrationFS, migrationDir+"/*.sql")
	if err != nil {
		return nil, fmt.Errorf("failed to list migrations: %w", err)
	}
	sort.Strings(names)
	versions := make([]int64, 0, len(names))
	for _, name := range names {
		v, err := goose.NumericComponent(name)
		if err != nil {
			return nil, fmt.Errorf("failed to parse migration %s: %w", name, err)
		}
		versions = append(versions, v)
	}
	return versions, nil
}
