package sqlstore

import (
	"context"
	"fmt"
)

var kvSchema = []string{
	`CREATE TABLE IF NOT EXISTS kv_object (
		_key TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		expire_at BIGINT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_kv_object_expire_at ON kv_object (expire_at)`,
	`CREATE TABLE IF NOT EXISTS kv_string (
		_key TEXT PRIMARY KEY,
		data TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS kv_set (
		_key TEXT NOT NULL,
		member TEXT NOT NULL,
		PRIMARY KEY (_key, member)
	)`,
	`CREATE TABLE IF NOT EXISTS kv_hash (
		_key TEXT NOT NULL,
		field TEXT NOT NULL,
		data TEXT NOT NULL,
		PRIMARY KEY (_key, field)
	)`,
	`CREATE TABLE IF NOT EXISTS group_members (
		group_name TEXT NOT NULL,
		uid INTEGER NOT NULL,
		joined_on BIGINT NOT NULL,
		PRIMARY KEY (group_name, uid)
	)`,
}

func usersTable(d Dialect) string {
	id := "uid SERIAL PRIMARY KEY"
	if d == SQLite {
		id = "uid INTEGER PRIMARY KEY AUTOINCREMENT"
	}
	return `CREATE TABLE IF NOT EXISTS users (
		` + id + `,
		username TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL UNIQUE,
		email_confirmed BOOLEAN NOT NULL DEFAULT FALSE,
		created_on TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`
}

// Migrate creates the tables this service reads and writes
func (s *Store) Migrate(ctx context.Context) error {
	stmts := append([]string{usersTable(s.dialect)}, kvSchema...)
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
