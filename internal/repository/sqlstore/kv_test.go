package sqlstore

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openSQLite(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	s := NewStore(db, SQLite)
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestDialect_Rebind(t *testing.T) {
	q := `SELECT a FROM t WHERE x = ? AND y = ?`
	assert.Equal(t, `SELECT a FROM t WHERE x = $1 AND y = $2`, Postgres.rebind(q))
	assert.Equal(t, q, SQLite.rebind(q))

	d, err := ParseDialect("sqlite")
	require.NoError(t, err)
	assert.Equal(t, SQLite, d)
	_, err = ParseDialect("mysql")
	assert.Error(t, err)
}

func TestKVStore_Postgres(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewKVStore(db, Postgres).WithClock(func() time.Time { return now })
	ctx := context.Background()

	t.Run("SetAdd", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO kv_object \(_key, type\) VALUES \(\$1, \$2\)`).
			WithArgs("invitation:uids", "set").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO kv_set \(_key, member\) VALUES \(\$1, \$2\) ON CONFLICT \(_key, member\) DO NOTHING`).
			WithArgs("invitation:uids", "1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		assert.NoError(t, store.SetAdd(ctx, "invitation:uids", "1"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("GetMissing", func(t *testing.T) {
		mock.ExpectQuery(`SELECT s.data FROM kv_string s JOIN kv_object o`).
			WithArgs("missing", now.UnixMilli()).
			WillReturnError(sql.ErrNoRows)

		v, err := store.Get(ctx, "missing")
		assert.NoError(t, err)
		assert.Equal(t, "", v)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("GetError", func(t *testing.T) {
		mock.ExpectQuery(`SELECT s.data FROM kv_string s`).
			WithArgs("k", now.UnixMilli()).
			WillReturnError(assert.AnError)

		_, err := store.Get(ctx, "k")
		assert.ErrorIs(t, err, assert.AnError)
	})

	t.Run("DeleteAllUsesArray", func(t *testing.T) {
		keys := []string{"invitation:invited:a@b.c", "invitation:token:t1"}
		mock.ExpectBegin()
		for _, table := range []string{"kv_string", "kv_set", "kv_hash", "kv_object"} {
			mock.ExpectExec(`DELETE FROM ` + table + ` WHERE _key = ANY\(\$1\)`).
				WithArgs(pq.Array(keys)).
				WillReturnResult(sqlmock.NewResult(0, 1))
		}
		mock.ExpectCommit()

		assert.NoError(t, store.DeleteAll(ctx, keys))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DeleteAllRollsBack", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM kv_string`).WillReturnError(assert.AnError)
		mock.ExpectRollback()

		assert.Error(t, store.DeleteAll(ctx, []string{"k"}))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("PExpireAt", func(t *testing.T) {
		at := now.Add(7 * 24 * time.Hour)
		mock.ExpectExec(`UPDATE kv_object SET expire_at = \$1 WHERE _key = \$2`).
			WithArgs(at.UnixMilli(), "invitation:token:t1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, store.PExpireAt(ctx, "invitation:token:t1", at))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("GetObject", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"field", "data"}).
			AddRow("email", "a@b.c").
			AddRow("token", "t1")
		mock.ExpectQuery(`SELECT h.field, h.data FROM kv_hash h`).
			WithArgs("invitation:token:t1", now.UnixMilli()).
			WillReturnRows(rows)

		obj, err := store.GetObject(ctx, "invitation:token:t1")
		assert.NoError(t, err)
		assert.Equal(t, map[string]string{"email": "a@b.c", "token": "t1"}, obj)
	})
}

func TestKVStore_SQLite(t *testing.T) {
	s := openSQLite(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	kv := s.KV.WithClock(func() time.Time { return now })
	ctx := context.Background()

	t.Run("Strings", func(t *testing.T) {
		require.NoError(t, kv.Set(ctx, "k", `{"token":"t"}`))
		require.NoError(t, kv.Set(ctx, "k", `{"token":"u"}`))
		v, err := kv.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, `{"token":"u"}`, v)

		ok, err := kv.Exists(ctx, "k")
		require.NoError(t, err)
		assert.True(t, ok)

		require.NoError(t, kv.Delete(ctx, "k"))
		ok, err = kv.Exists(ctx, "k")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Sets", func(t *testing.T) {
		require.NoError(t, kv.SetAdd(ctx, "s", "b@x.y"))
		require.NoError(t, kv.SetAdd(ctx, "s", "a@x.y"))
		require.NoError(t, kv.SetAdd(ctx, "s", "a@x.y"))

		n, err := kv.SetCount(ctx, "s")
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		members, err := kv.GetSetMembers(ctx, "s")
		require.NoError(t, err)
		assert.Equal(t, []string{"a@x.y", "b@x.y"}, members)

		require.NoError(t, kv.SetRemove(ctx, "s", "a@x.y"))
		require.NoError(t, kv.SetRemove(ctx, "s", "b@x.y"))
		ok, err := kv.Exists(ctx, "s")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("ObjectsAndExpiry", func(t *testing.T) {
		require.NoError(t, kv.SetObject(ctx, "h", map[string]string{"email": "a@x.y", "groupsToJoin": `["g1"]`}))
		require.NoError(t, kv.PExpireAt(ctx, "h", now.Add(time.Hour)))

		f, err := kv.GetObjectField(ctx, "h", "groupsToJoin")
		require.NoError(t, err)
		assert.Equal(t, `["g1"]`, f)

		later := s.KV.WithClock(func() time.Time { return now.Add(2 * time.Hour) })
		obj, err := later.GetObject(ctx, "h")
		require.NoError(t, err)
		assert.Nil(t, obj)

		purged, err := later.PurgeExpired(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), purged)

		// restore the original clock for later subtests
		s.KV.WithClock(func() time.Time { return now })
	})

	t.Run("DeleteAll", func(t *testing.T) {
		require.NoError(t, kv.SetAdd(ctx, "invitation:invited:a@x.y", "t1"))
		require.NoError(t, kv.SetObject(ctx, "invitation:token:t1", map[string]string{"token": "t1"}))
		require.NoError(t, kv.DeleteAll(ctx, []string{"invitation:invited:a@x.y", "invitation:token:t1"}))

		members, err := kv.GetSetMembers(ctx, "invitation:invited:a@x.y")
		require.NoError(t, err)
		assert.Empty(t, members)
		f, err := kv.GetObjectField(ctx, "invitation:token:t1", "token")
		require.NoError(t, err)
		assert.Equal(t, "", f)
	})
}
