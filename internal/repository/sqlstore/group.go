package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"forum-invitations/internal/repository"
)

type groupRepository struct {
	db      *sql.DB
	dialect Dialect
}

func NewGroupRepository(db *sql.DB, dialect Dialect) repository.GroupRepository {
	return &groupRepository{db: db, dialect: dialect}
}

// Join adds uid to every named group; existing memberships are left alone
func (r *groupRepository) Join(ctx context.Context, groupNames []string, uid int32) error {
	if len(groupNames) == 0 {
		return nil
	}
	joinedOn := time.Now().UnixMilli()
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		query := r.dialect.rebind(`INSERT INTO group_members (group_name, uid, joined_on) VALUES (?, ?, ?)
		          ON CONFLICT (group_name, uid) DO NOTHING`)
		for _, name := range groupNames {
			if _, err := tx.ExecContext(ctx, query, name, uid, joinedOn); err != nil {
				return err
			}
		}
		return nil
	})
}
