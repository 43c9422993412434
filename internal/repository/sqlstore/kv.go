package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"github.com/lib/pq"

	"forum-invitations/internal/logger"
	"forum-invitations/internal/repository"
)

const (
	typeString = "string"
	typeSet    = "set"
	typeHash   = "hash"
)

// live restricts a query joined on kv_object o to unexpired keys
const live = `(o.expire_at IS NULL OR o.expire_at > ?)`

var childTables = []string{"kv_string", "kv_set", "kv_hash"}

// KVStore keeps every key in kv_object (type and expiry) with its value in
// one of kv_string, kv_set or kv_hash. Expired keys are invisible to reads
// and removed by PurgeExpired.
type KVStore struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

var (
	_ repository.KVStore   = (*KVStore)(nil)
	_ repository.KeyPurger = (*KVStore)(nil)
)

func NewKVStore(db *sql.DB, dialect Dialect) *KVStore {
	return &KVStore{db: db, dialect: dialect, now: time.Now}
}

// WithClock replaces time.Now for expiry checks
func (s *KVStore) WithClock(now func() time.Time) *KVStore {
	s.now = now
	return s
}

func (s *KVStore) nowMillis() int64 {
	return s.now().UnixMilli()
}

func (s *KVStore) upsertObject(ctx context.Context, tx *sql.Tx, key, typ string) error {
	query := `INSERT INTO kv_object (_key, type) VALUES (?, ?)
	          ON CONFLICT (_key) DO UPDATE SET type = excluded.type`
	_, err := tx.ExecContext(ctx, s.dialect.rebind(query), key, typ)
	return err
}

func (s *KVStore) Get(ctx context.Context, key string) (string, error) {
	query := `SELECT s.data FROM kv_string s JOIN kv_object o ON o._key = s._key
	          WHERE s._key = ? AND ` + live
	var data string
	err := s.db.QueryRowContext(ctx, s.dialect.rebind(query), key, s.nowMillis()).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return data, nil
}

func (s *KVStore) Set(ctx context.Context, key, value string) error {
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.upsertObject(ctx, tx, key, typeString); err != nil {
			return err
		}
		query := `INSERT INTO kv_string (_key, data) VALUES (?, ?)
		          ON CONFLICT (_key) DO UPDATE SET data = excluded.data`
		_, err := tx.ExecContext(ctx, s.dialect.rebind(query), key, value)
		return err
	})
}

func (s *KVStore) Exists(ctx context.Context, key string) (bool, error) {
	query := `SELECT COUNT(*) FROM kv_object o WHERE o._key = ? AND ` + live
	var n int
	if err := s.db.QueryRowContext(ctx, s.dialect.rebind(query), key, s.nowMillis()).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *KVStore) Delete(ctx context.Context, key string) error {
	return s.DeleteAll(ctx, []string{key})
}

func (s *KVStore) DeleteAll(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	logger.StoreCall("DeleteAll", keys[0], "count", len(keys))
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		tables := append(append([]string{}, childTables...), "kv_object")
		for _, table := range tables {
			if s.dialect == Postgres {
				if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE _key = ANY($1)`, pq.Array(keys)); err != nil {
					return err
				}
				continue
			}
			for _, key := range keys {
				if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE _key = ?`, key); err != nil {
					return err
				}
			}
		}
		return nil
	})
	logger.StoreResult("DeleteAll", keys[0], err)
	return err
}

func (s *KVStore) PExpireAt(ctx context.Context, key string, at time.Time) error {
	query := `UPDATE kv_object SET expire_at = ? WHERE _key = ?`
	_, err := s.db.ExecContext(ctx, s.dialect.rebind(query), at.UnixMilli(), key)
	return err
}

func (s *KVStore) SetAdd(ctx context.Context, key, member string) error {
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.upsertObject(ctx, tx, key, typeSet); err != nil {
			return err
		}
		query := `INSERT INTO kv_set (_key, member) VALUES (?, ?)
		          ON CONFLICT (_key, member) DO NOTHING`
		_, err := tx.ExecContext(ctx, s.dialect.rebind(query), key, member)
		return err
	})
}

func (s *KVStore) SetRemove(ctx context.Context, key, member string) error {
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		query := `DELETE FROM kv_set WHERE _key = ? AND member = ?`
		if _, err := tx.ExecContext(ctx, s.dialect.rebind(query), key, member); err != nil {
			return err
		}
		// An emptied set stops existing
		query = `DELETE FROM kv_object WHERE _key = ? AND type = 'set'
		         AND NOT EXISTS (SELECT 1 FROM kv_set WHERE _key = ?)`
		_, err := tx.ExecContext(ctx, s.dialect.rebind(query), key, key)
		return err
	})
}

func (s *KVStore) SetCount(ctx context.Context, key string) (int, error) {
	query := `SELECT COUNT(*) FROM kv_set s JOIN kv_object o ON o._key = s._key
	          WHERE s._key = ? AND ` + live
	var n int
	if err := s.db.QueryRowContext(ctx, s.dialect.rebind(query), key, s.nowMillis()).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *KVStore) GetSetMembers(ctx context.Context, key string) ([]string, error) {
	query := `SELECT s.member FROM kv_set s JOIN kv_object o ON o._key = s._key
	          WHERE s._key = ? AND ` + live + ` ORDER BY s.member`
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), key, s.nowMillis())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := []string{}
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (s *KVStore) SetObject(ctx context.Context, key string, fields map[string]string) error {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.upsertObject(ctx, tx, key, typeHash); err != nil {
			return err
		}
		query := s.dialect.rebind(`INSERT INTO kv_hash (_key, field, data) VALUES (?, ?, ?)
		          ON CONFLICT (_key, field) DO UPDATE SET data = excluded.data`)
		for _, name := range names {
			if _, err := tx.ExecContext(ctx, query, key, name, fields[name]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *KVStore) GetObject(ctx context.Context, key string) (map[string]string, error) {
	query := `SELECT h.field, h.data FROM kv_hash h JOIN kv_object o ON o._key = h._key
	          WHERE h._key = ? AND ` + live
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), key, s.nowMillis())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var obj map[string]string
	for rows.Next() {
		var field, data string
		if err := rows.Scan(&field, &data); err != nil {
			return nil, err
		}
		if obj == nil {
			obj = make(map[string]string)
		}
		obj[field] = data
	}
	return obj, rows.Err()
}

func (s *KVStore) GetObjectField(ctx context.Context, key, field string) (string, error) {
	query := `SELECT h.data FROM kv_hash h JOIN kv_object o ON o._key = h._key
	          WHERE h._key = ? AND h.field = ? AND ` + live
	var data string
	err := s.db.QueryRowContext(ctx, s.dialect.rebind(query), key, field, s.nowMillis()).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return data, nil
}

// PurgeExpired deletes every expired key and reports how many were removed
func (s *KVStore) PurgeExpired(ctx context.Context) (int64, error) {
	now := s.nowMillis()
	var purged int64
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, table := range childTables {
			query := `DELETE FROM ` + table + ` WHERE _key IN
			          (SELECT _key FROM kv_object WHERE expire_at IS NOT NULL AND expire_at <= ?)`
			if _, err := tx.ExecContext(ctx, s.dialect.rebind(query), now); err != nil {
				return err
			}
		}
		query := `DELETE FROM kv_object WHERE expire_at IS NOT NULL AND expire_at <= ?`
		res, err := tx.ExecContext(ctx, s.dialect.rebind(query), now)
		if err != nil {
			return err
		}
		purged, err = res.RowsAffected()
		return err
	})
	return purged, err
}
