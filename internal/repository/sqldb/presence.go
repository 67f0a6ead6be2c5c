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

var _ repository.PresenceRepository = (*DB)(nil)

const presenceColumns = `sid, name, status, last_seen`

func (db *DB) UpsertPresence(ctx context.Context, p *model.PresenceRecord) error {
	_, err := db.conn.ExecContext(ctx, db.q(
		`INSERT INTO basement_users (`+presenceColumns+`) VALUES (?, ?, ?, ?)
		 ON CONFLICT (sid) DO UPDATE SET
			name = excluded.name, status = excluded.status, last_seen = excluded.last_seen`),
		p.SID, p.Name, p.Status, p.LastSeen,
	)
	if err != nil {
		return fmt.Errorf("sqldb: upserting presence %s: %w", p.SID, err)
	}
	return nil
}

func (db *DB) GetPresence(ctx context.Context, sid string) (*model.PresenceRecord, error) {
	var p model.PresenceRecord
	err := db.conn.GetContext(ctx, &p, db.q(`SELECT `+presenceColumns+` FROM basement_users WHERE sid = ?`), sid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("presence", sid)
		}
		return nil, fmt.Errorf("sqldb: getting presence %s: %w", sid, err)
	}
	return &p, nil
}

func (db *DB) ListActivePresence(ctx context.Context, sinceMs int64) ([]model.PresenceRecord, error) {
	recs := []model.PresenceRecord{}
	if err := db.conn.SelectContext(ctx, &recs, db.q(
		`SELECT `+presenceColumns+` FROM basement_users WHERE last_seen >= ? ORDER BY last_seen DESC`), sinceMs); err != nil {
		return nil, fmt.Errorf("sqldb: listing presence: %w", err)
	}
	return recs, nil
}

func (db *DB) FindActiveByName(ctx context.Context, name string, sinceMs int64) ([]model.PresenceRecord, error) {
	recs := []model.PresenceRecord{}
	if err := db.conn.SelectContext(ctx, &recs, db.q(
		`SELECT `+presenceColumns+` FROM basement_users WHERE name = ? AND last_seen >= ? ORDER BY last_seen DESC`),
		name, sinceMs); err != nil {
		return nil, fmt.Errorf("sqldb: finding presence by name: %w", err)
	}
	return recs, nil
}

// DeletePresence is idempotent; kicking someone who already left is fine.
func (db *DB) DeletePresence(ctx context.Context, sid string) error {
	if _, err := db.conn.ExecContext(ctx, db.q(`DELETE FROM basement_users WHERE sid = ?`), sid); err != nil {
		return fmt.Errorf("sqldb: deleting presence %s: %w", sid, err)
	}
	return nil
}

func (db *DB) DeleteStalePresence(ctx context.Context, beforeMs int64) (int64, error) {
	res, err := db.conn.ExecContext(ctx, db.q(`DELETE FROM basement_users WHERE last_seen < ?`), beforeMs)
	if err != nil {
		return 0, fmt.Errorf("sqldb: pruning presence: %w", err)
	}
	return res.RowsAffected()
}
