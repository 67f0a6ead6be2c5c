package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/homepage/internal/apperror"
	"github.com/sakif/homepage/internal/model"
	"github.com/sakif/homepage/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, username, password_hash, email, display_name, avatar_url, is_admin, created_at`

// CreateUser inserts a new account.
//
// The UNIQUE constraint on username is the final word on duplicates: the
// service checks first for a friendly error, but two concurrent registrations
// can both pass that check, and only one INSERT will win.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	user.ID = xid.New().String()
	user.CreatedAt = time.Now().UnixMilli()

	_, err := db.conn.ExecContext(ctx, db.q(
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		user.ID,
		user.Username,
		user.PasswordHash,
		user.Email,
		user.DisplayName,
		user.AvatarURL,
		user.IsAdmin,
		user.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("Username already taken")
		}
		return fmt.Errorf("sqldb: inserting user %q: %w", user.Username, err)
	}
	return nil
}

// GetUserByID retrieves a user by their internal ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	err := db.conn.GetContext(ctx, &u, db.q(`SELECT `+userColumns+` FROM users WHERE id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqldb: getting user %s: %w", id, err)
	}
	return &u, nil
}

// GetUserByUsername is an exact, case-sensitive match.
func (db *DB) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	var u model.User
	err := db.conn.GetContext(ctx, &u, db.q(`SELECT `+userColumns+` FROM users WHERE username = ?`), username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", username)
		}
		return nil, fmt.Errorf("sqldb: getting user %q: %w", username, err)
	}
	return &u, nil
}

func (db *DB) SetAdmin(ctx context.Context, id string, isAdmin bool) error {
	return db.updateUser(ctx, id, `UPDATE users SET is_admin = ? WHERE id = ?`, isAdmin, id)
}

func (db *DB) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	return db.updateUser(ctx, id, `UPDATE users SET password_hash = ? WHERE id = ?`, hash, id)
}

func (db *DB) updateUser(ctx context.Context, id, query string, args ...any) error {
	res, err := db.conn.ExecContext(ctx, db.q(query), args...)
	if err != nil {
		return fmt.Errorf("sqldb: updating user %s: %w", id, err)
	}
	return requireAffected(res, "user", id)
}

// requireAffected turns "zero rows touched" into apperror.ErrNotFound.
func requireAffected(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqldb: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}
