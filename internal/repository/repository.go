package repository

import (
	"context"
	"time"
)

// KVStore is a key-value store with string, set and hash values and
// per-key expiry. Missing keys read as empty values, never as errors.
type KVStore interface {
	// Strings
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error

	// Keys of any type
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	DeleteAll(ctx context.Context, keys []string) error
	PExpireAt(ctx context.Context, key string, at time.Time) error

	// Sets
	SetAdd(ctx context.Context, key, member string) error
	SetRemove(ctx context.Context, key, member string) error
	SetCount(ctx context.Context, key string) (int, error)
	GetSetMembers(ctx context.Context, key string) ([]string, error)

	// Hashes. GetObject returns nil for a missing key.
	SetObject(ctx context.Context, key string, fields map[string]string) error
	GetObject(ctx context.Context, key string) (map[string]string, error)
	GetObjectField(ctx context.Context, key, field string) (string, error)
}

// KeyPurger physically removes expired keys from stores that expire lazily
type KeyPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// UserRepository resolves and updates registered accounts. Lookups that find
// nothing return a zero uid and no error.
type UserRepository interface {
	Exists(ctx context.Context, uid int32) (bool, error)
	GetUIDByUsername(ctx context.Context, username string) (int32, error)
	GetUIDByEmail(ctx context.Context, email string) (int32, error)
	GetUserField(ctx context.Context, uid int32, field string) (string, error)
	ConfirmEmail(ctx context.Context, uid int32) error
}

type GroupRepository interface {
	Join(ctx context.Context, groupNames []string, uid int32) error
}
