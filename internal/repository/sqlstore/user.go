package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"forum-invitations/internal/repository"
)

var ErrUnknownUserField = errors.New("unknown user field")

// userFields whitelists the columns GetUserField may read
var userFields = map[string]string{
	"username":        "username",
	"email":           "email",
	"email:confirmed": "email_confirmed",
}

type userRepository struct {
	db      *sql.DB
	dialect Dialect
}

func NewUserRepository(db *sql.DB, dialect Dialect) repository.UserRepository {
	return &userRepository{db: db, dialect: dialect}
}

func (r *userRepository) Exists(ctx context.Context, uid int32) (bool, error) {
	query := `SELECT COUNT(*) FROM users WHERE uid = ?`
	var n int
	if err := r.db.QueryRowContext(ctx, r.dialect.rebind(query), uid).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *userRepository) lookupUID(ctx context.Context, query string, arg string) (int32, error) {
	var uid int32
	err := r.db.QueryRowContext(ctx, r.dialect.rebind(query), arg).Scan(&uid)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return uid, nil
}

func (r *userRepository) GetUIDByUsername(ctx context.Context, username string) (int32, error) {
	return r.lookupUID(ctx, `SELECT uid FROM users WHERE username = ?`, username)
}

func (r *userRepository) GetUIDByEmail(ctx context.Context, email string) (int32, error) {
	return r.lookupUID(ctx, `SELECT uid FROM users WHERE LOWER(email) = LOWER(?)`, email)
}

func (r *userRepository) GetUserField(ctx context.Context, uid int32, field string) (string, error) {
	column, ok := userFields[field]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownUserField, field)
	}

	query := `SELECT ` + column + ` FROM users WHERE uid = ?`
	row := r.db.QueryRowContext(ctx, r.dialect.rebind(query), uid)

	var err error
	var value string
	if column == "email_confirmed" {
		var confirmed bool
		err = row.Scan(&confirmed)
		value = strconv.FormatBool(confirmed)
	} else {
		err = row.Scan(&value)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (r *userRepository) ConfirmEmail(ctx context.Context, uid int32) error {
	query := `UPDATE users SET email_confirmed = TRUE WHERE uid = ?`
	_, err := r.db.ExecContext(ctx, r.dialect.rebind(query), uid)
	return err
}
