package store

import (
	"context"
	"database/sql"
	"strings"
)

// DB exposes the internal *sql.DB for test helpers in store_test.
// This file only compiles during `go test`.
func (s *Store) DB() *sql.DB {
	return s.db
}

// ApplyMigration runs a single ad-hoc migration through the regular
// migration path.
func (s *Store) ApplyMigration(id, sqlText string) error {
	return s.migrate(context.Background(), []migration{{id: id, sql: sqlText}})
}

// FailExec makes every statement containing substr fail with err.
func (s *Store) FailExec(substr string, err error) {
	s.hooks.exec = func(ctx context.Context, db execer, query string, args ...any) (sql.Result, error) {
		if strings.Contains(query, substr) {
			return nil, err
		}
		return db.ExecContext(ctx, query, args...)
	}
}

// FailCommit makes every commit fail with err.
func (s *Store) FailCommit(err error) {
	s.hooks.commit = func(*sql.Tx) error { return err }
}
