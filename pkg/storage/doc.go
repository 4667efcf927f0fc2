// Package storage holds the persistence plumbing shared by the domain packages.
//
// # Overview
//
// Every domain store (agents, organizations, teams, invitations, sessions,
// client apps) talks to PostgreSQL through database/sql. This package provides
// what they have in common:
//
//   - Querier: the subset of *sql.DB and *sql.Tx the stores need, so a single
//     method can run inside or outside a transaction
//   - WithTx: run a function in a transaction, rolling back on error
//   - Classify, IsUniqueViolation, IsForeignKeyViolation: driver independent
//     constraint error classification
//   - Migrate: apply the embedded goose migrations
//
// # Error Classification
//
// PostgreSQL errors are recognised out of the box by their SQLSTATE code.
// Other drivers register a Classifier; the in-memory SQLite driver used by the
// test suites does so from package sqlitedb:
//
//	storage.RegisterClassifier(func(err error) (storage.ErrorClass, bool) { ... })
//
// # Migrations
//
// Schema changes live in migrations/*.sql and are embedded into the binary.
// They are applied at startup:
//
//	if err := storage.Migrate(ctx, db, logrus.StandardLogger()); err != nil {
//		return err
//	}
//
// Connection pooling and the Redis client live in the postgres subpackage.
package storage
