package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sakif/homepage/internal/apperror"
	"github.com/sakif/homepage/internal/model"
	"github.com/sakif/homepage/internal/repository"
)

var _ repository.SessionRepository = (*DB)(nil)

func (db *DB) CreateSession(ctx context.Context, s *model.Session) error {
	_, err := db.conn.ExecContext(ctx, db.q(
		`INSERT INTO sessions (token, user_id, expires_at, created_at) VALUES (?, ?, ?, ?)`),
		s.Token, s.UserID, s.ExpiresAt, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqldb: inserting session for user %s: %w", s.UserID, err)
	}
	return nil
}

// GetSession returns the row whether or not it has expired; expiry is the
// caller's decision because only the caller knows "now".
func (db *DB) GetSession(ctx context.Context, token string) (*model.Session, error) {
	var s model.Session
	err := db.conn.GetContext(ctx, &s, db.q(
		`SELECT token, user_id, expires_at, created_at FROM sessions WHERE token = ?`), token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("session", "(redacted)")
		}
		return nil, fmt.Errorf("sqldb: getting session: %w", err)
	}
	return &s, nil
}

// DeleteSession is idempotent: logging out twice is not an error.
func (db *DB) DeleteSession(ctx context.Context, token string) error {
	if _, err := db.conn.ExecContext(ctx, db.q(`DELETE FROM sessions WHERE token = ?`), token); err != nil {
		return fmt.Errorf("sqldb: deleting session: %w", err)
	}
	return nil
}

func (db *DB) DeleteExpiredSessions(ctx context.Context, nowMs int64) (int64, error) {
	res, err := db.conn.ExecContext(ctx, db.q(`DELETE FROM sessions WHERE expires_at <= ?`), nowMs)
	if err != nil {
		return 0, fmt.Errorf("sqldb: pruning sessions: %w", err)
	}
	return res.RowsAffected()
}
