package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rs/xid"

	"github.com/sakif/homepage/internal/apperror"
	"github.com/sakif/homepage/internal/model"
	"github.com/sakif/homepage/internal/repository"
)

var _ repository.ChatRepository = (*DB)(nil)

const chatColumns = `id, author, message, timestamp, created_at_ms, sid, is_pinned`

// deleteBatchSize bounds the IN (...) list of DeleteMessagesByID. SQLite's
// default host-parameter limit is far above this; the batches mostly keep any
// single statement short.
const deleteBatchSize = 100

func (db *DB) CreateMessage(ctx context.Context, m *model.ChatMessage) error {
	if m.ID == "" {
		m.ID = xid.New().String()
	}
	_, err := db.conn.ExecContext(ctx, db.q(
		`INSERT INTO basement_chat (`+chatColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`),
		m.ID, m.Author, m.Message, m.Timestamp, m.CreatedAtMs, m.SID, m.IsPinned,
	)
	if err != nil {
		return fmt.Errorf("sqldb: inserting chat message: %w", err)
	}
	return nil
}

func (db *DB) ListRecentMessages(ctx context.Context, limit int) ([]model.ChatMessage, error) {
	msgs := []model.ChatMessage{}
	err := db.conn.SelectContext(ctx, &msgs, db.q(
		`SELECT `+chatColumns+` FROM basement_chat ORDER BY created_at_ms DESC, id DESC LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("sqldb: listing chat messages: %w", err)
	}
	return msgs, nil
}

func (db *DB) LatestMessageBySID(ctx context.Context, sid string) (*model.ChatMessage, error) {
	var m model.ChatMessage
	err := db.conn.GetContext(ctx, &m, db.q(
		`SELECT `+chatColumns+` FROM basement_chat WHERE sid = ? ORDER BY created_at_ms DESC LIMIT 1`), sid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("message for sid", sid)
		}
		return nil, fmt.Errorf("sqldb: latest message for %s: %w", sid, err)
	}
	return &m, nil
}

func (db *DB) DeleteMessage(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, db.q(`DELETE FROM basement_chat WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("sqldb: deleting message %s: %w", id, err)
	}
	return requireAffected(res, "message", id)
}

// DeleteAllMessages is the bulk strategy of a chat clear.
func (db *DB) DeleteAllMessages(ctx context.Context) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM basement_chat`)
	if err != nil {
		return 0, fmt.Errorf("sqldb: bulk deleting messages: %w", err)
	}
	return res.RowsAffected()
}

func (db *DB) ListMessageIDs(ctx context.Context) ([]string, error) {
	ids := []string{}
	if err := db.conn.SelectContext(ctx, &ids, `SELECT id FROM basement_chat`); err != nil {
		return nil, fmt.Errorf("sqldb: listing message ids: %w", err)
	}
	return ids, nil
}

// DeleteMessagesByID deletes in fixed-size batches and returns the total removed.
func (db *DB) DeleteMessagesByID(ctx context.Context, ids []string) (int64, error) {
	var total int64
	for start := 0; start < len(ids); start += deleteBatchSize {
		end := min(start+deleteBatchSize, len(ids))

		query, args, err := sqlx.In(`DELETE FROM basement_chat WHERE id IN (?)`, ids[start:end])
		if err != nil {
			return total, fmt.Errorf("sqldb: building delete batch: %w", err)
		}
		res, err := db.conn.ExecContext(ctx, db.q(query), args...)
		if err != nil {
			return total, fmt.Errorf("sqldb: deleting message batch at %d: %w", start, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("sqldb: checking rows affected: %w", err)
		}
		total += n
	}
	return total, nil
}

// PinMessage keeps "at most one pinned message" true even under concurrent
// pins: both UPDATEs commit together or not at all.
func (db *DB) PinMessage(ctx context.Context, id string) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqldb: beginning pin transaction: %w", err)
	}
	defer tx.Rollback() // no-op after Commit

	if _, err := tx.ExecContext(ctx, `UPDATE basement_chat SET is_pinned = FALSE WHERE is_pinned = TRUE`); err != nil {
		return fmt.Errorf("sqldb: unpinning messages: %w", err)
	}
	res, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE basement_chat SET is_pinned = TRUE WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("sqldb: pinning message %s: %w", id, err)
	}
	if err := requireAffected(res, "message", id); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqldb: committing pin: %w", err)
	}
	return nil
}

func (db *DB) UnpinMessage(ctx context.Context, id string) error {
	if id == "" {
		if _, err := db.conn.ExecContext(ctx, `UPDATE basement_chat SET is_pinned = FALSE WHERE is_pinned = TRUE`); err != nil {
			return fmt.Errorf("sqldb: unpinning all messages: %w", err)
		}
		return nil
	}
	res, err := db.conn.ExecContext(ctx, db.q(`UPDATE basement_chat SET is_pinned = FALSE WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("sqldb: unpinning message %s: %w", id, err)
	}
	return requireAffected(res, "message", id)
}
