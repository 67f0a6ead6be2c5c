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

var _ repository.ModerationRepository = (*DB)(nil)

// Bans and mutes are keyed by sid: banning an already-banned sid replaces
// the reason instead of stacking a second row.

const (
	banColumns  = `sid, name, reason, banned_by, banned_at`
	muteColumns = `sid, name, reason, muted_by, muted_until, muted_at`
)

func (db *DB) GetBan(ctx context.Context, sid string) (*model.BannedUser, error) {
	var b model.BannedUser
	err := db.conn.GetContext(ctx, &b, db.q(`SELECT `+banColumns+` FROM basement_banned_users WHERE sid = ?`), sid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("ban", sid)
		}
		return nil, fmt.Errorf("sqldb: getting ban %s: %w", sid, err)
	}
	return &b, nil
}

func (db *DB) UpsertBan(ctx context.Context, b *model.BannedUser) error {
	_, err := db.conn.ExecContext(ctx, db.q(
		`INSERT INTO basement_banned_users (`+banColumns+`) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (sid) DO UPDATE SET
			name = excluded.name, reason = excluded.reason,
			banned_by = excluded.banned_by, banned_at = excluded.banned_at`),
		b.SID, b.Name, b.Reason, b.BannedBy, b.BannedAt,
	)
	if err != nil {
		return fmt.Errorf("sqldb: upserting ban %s: %w", b.SID, err)
	}
	return nil
}

func (db *DB) DeleteBan(ctx context.Context, sid string) error {
	res, err := db.conn.ExecContext(ctx, db.q(`DELETE FROM basement_banned_users WHERE sid = ?`), sid)
	if err != nil {
		return fmt.Errorf("sqldb: deleting ban %s: %w", sid, err)
	}
	return requireAffected(res, "ban", sid)
}

func (db *DB) ListBans(ctx context.Context) ([]model.BannedUser, error) {
	bans := []model.BannedUser{}
	if err := db.conn.SelectContext(ctx, &bans,
		`SELECT `+banColumns+` FROM basement_banned_users ORDER BY banned_at DESC`); err != nil {
		return nil, fmt.Errorf("sqldb: listing bans: %w", err)
	}
	return bans, nil
}

// GetMute returns the row even if it has expired; the gate decides.
func (db *DB) GetMute(ctx context.Context, sid string) (*model.MutedUser, error) {
	var m model.MutedUser
	err := db.conn.GetContext(ctx, &m, db.q(`SELECT `+muteColumns+` FROM basement_muted_users WHERE sid = ?`), sid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("mute", sid)
		}
		return nil, fmt.Errorf("sqldb: getting mute %s: %w", sid, err)
	}
	return &m, nil
}

func (db *DB) UpsertMute(ctx context.Context, m *model.MutedUser) error {
	_, err := db.conn.ExecContext(ctx, db.q(
		`INSERT INTO basement_muted_users (`+muteColumns+`) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (sid) DO UPDATE SET
			name = excluded.name, reason = excluded.reason, muted_by = excluded.muted_by,
			muted_until = excluded.muted_until, muted_at = excluded.muted_at`),
		m.SID, m.Name, m.Reason, m.MutedBy, m.MutedUntil, m.MutedAt,
	)
	if err != nil {
		return fmt.Errorf("sqldb: upserting mute %s: %w", m.SID, err)
	}
	return nil
}

func (db *DB) DeleteMute(ctx context.Context, sid string) error {
	res, err := db.conn.ExecContext(ctx, db.q(`DELETE FROM basement_muted_users WHERE sid = ?`), sid)
	if err != nil {
		return fmt.Errorf("sqldb: deleting mute %s: %w", sid, err)
	}
	return requireAffected(res, "mute", sid)
}

func (db *DB) ListActiveMutes(ctx context.Context, nowMs int64) ([]model.MutedUser, error) {
	mutes := []model.MutedUser{}
	if err := db.conn.SelectContext(ctx, &mutes, db.q(
		`SELECT `+muteColumns+` FROM basement_muted_users WHERE muted_until > ? ORDER BY muted_at DESC`), nowMs); err != nil {
		return nil, fmt.Errorf("sqldb: listing mutes: %w", err)
	}
	return mutes, nil
}

func (db *DB) DeleteExpiredMutes(ctx context.Context, nowMs int64) (int64, error) {
	res, err := db.conn.ExecContext(ctx, db.q(`DELETE FROM basement_muted_users WHERE muted_until <= ?`), nowMs)
	if err != nil {
		return 0, fmt.Errorf("sqldb: pruning mutes: %w", err)
	}
	return res.RowsAffected()
}

// GetChatSettings reads the singleton. Migrations seed the row, so NotFound
// only happens if someone deleted it by hand.
func (db *DB) GetChatSettings(ctx context.Context) (*model.ChatSettings, error) {
	var s model.ChatSettings
	err := db.conn.GetContext(ctx, &s, db.q(
		`SELECT id, slow_mode_seconds, lockdown_mode, motd FROM basement_chat_settings WHERE id = ?`),
		model.ChatSettingsID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("chat settings", "1")
		}
		return nil, fmt.Errorf("sqldb: getting chat settings: %w", err)
	}
	return &s, nil
}

func (db *DB) SaveChatSettings(ctx context.Context, s *model.ChatSettings) error {
	s.ID = model.ChatSettingsID
	_, err := db.conn.ExecContext(ctx, db.q(
		`INSERT INTO basement_chat_settings (id, slow_mode_seconds, lockdown_mode, motd) VALUES (?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
			slow_mode_seconds = excluded.slow_mode_seconds,
			lockdown_mode = excluded.lockdown_mode,
			motd = excluded.motd`),
		s.ID, s.SlowModeSeconds, s.LockdownMode, s.MOTD,
	)
	if err != nil {
		return fmt.Errorf("sqldb: saving chat settings: %w", err)
	}
	return nil
}
