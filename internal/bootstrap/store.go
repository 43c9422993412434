// Package bootstrap opens the storage backends selected by configuration.
// It is shared by the API server and the cronjob runner.
package bootstrap

import (
	"context"
	"fmt"

	"forum-invitations/internal/config"
	"forum-invitations/internal/logger"
	"forum-invitations/internal/repository"
	"forum-invitations/internal/repository/memory"
	"forum-invitations/internal/repository/sqlstore"
)

// memoryAccountsDSN backs users and groups when invitations live in memory
const memoryAccountsDSN = "file::memory:"

// Stores holds the repositories the services are built from
type Stores struct {
	KV     repository.KVStore
	Purger repository.KeyPurger
	Users  repository.UserRepository
	Groups repository.GroupRepository

	sql *sqlstore.Store
}

// OpenStores connects to the configured backend and applies the schema
func OpenStores(ctx context.Context, cfg *config.Config) (*Stores, error) {
	if cfg.Database.Driver == "memory" {
		logger.Warn("Using in-memory invitation store; data is lost on restart")
		accounts, err := openSQL(ctx, sqlstore.SQLite, memoryAccountsDSN)
		if err != nil {
			return nil, err
		}
		kv := memory.NewStore()
		return &Stores{
			KV:     kv,
			Purger: kv,
			Users:  accounts.Users,
			Groups: accounts.Groups,
			sql:    accounts,
		}, nil
	}

	dialect, err := sqlstore.ParseDialect(cfg.Database.Driver)
	if err != nil {
		return nil, err
	}
	logger.Info("Connecting to database...", "driver", cfg.Database.Driver, "host", cfg.Database.Host, "port", cfg.Database.Port)
	store, err := openSQL(ctx, dialect, cfg.GetDatabaseConnectionString())
	if err != nil {
		return nil, err
	}
	logger.Info("Database connection established")

	return &Stores{
		KV:     store.KV,
		Purger: store.KV,
		Users:  store.Users,
		Groups: store.Groups,
		sql:    store,
	}, nil
}

func openSQL(ctx context.Context, dialect sqlstore.Dialect, dsn string) (*sqlstore.Store, error) {
	store, err := sqlstore.Open(ctx, dialect, dsn)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to migrate %s database: %w", dialect, err)
	}
	return store, nil
}

func (s *Stores) Close() error {
	if s.sql == nil {
		return nil
	}
	return s.sql.Close()
}
