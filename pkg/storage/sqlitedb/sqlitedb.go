// Package sqlitedb opens in-memory SQLite databases for store tests and teaches
// the storage package to classify SQLite constraint errors.
package sqlitedb

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/platinummonkey/identity/pkg/storage"
)

func init() {
	storage.RegisterClassifier(classify)
}

// Open returns a private in-memory database with the given schema applied.
// The pool is limited to one connection since every new connection to
// ":memory:" would see an empty database.
func Open(schema ...string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return db, nil
}

func classify(err error) (storage.ErrorClass, bool) {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return storage.ClassOther, false
	}
	if sqliteErr.Code != sqlite3.ErrConstraint {
		return storage.ClassOther, true
	}
	switch sqliteErr.ExtendedCode {
	case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
		return storage.ClassUnique, true
	case sqlite3.ErrConstraintForeignKey:
		return storage.ClassForeignKey, true
	case sqlite3.ErrConstraintNotNull:
		return storage.ClassNotNull, true
	case sqlite3.ErrConstraintCheck:
		return storage.ClassCheck, true
	default:
		return storage.ClassOther, true
	}
}
