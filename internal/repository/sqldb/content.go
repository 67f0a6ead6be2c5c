package sqldb

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/xid"

	"github.com/sakif/homepage/internal/model"
	"github.com/sakif/homepage/internal/repository"
)

// Table is a plain multi-row content table: insert, list in a fixed order,
// delete by id. The five content types differ only in columns and ordering,
// so one generic type serves all of them.
type Table[T any] struct {
	db       *DB
	name     string
	resource string // singular noun used in not-found errors
	columns  []string
	orderBy  string
	setID    func(row *T, id string)
}

var (
	_ repository.ContentRepository[model.Quote]      = (*Table[model.Quote])(nil)
	_ repository.ContentRepository[model.Suggestion] = (*Table[model.Suggestion])(nil)
	_ repository.ContentRepository[model.DevLogPost] = (*Table[model.DevLogPost])(nil)
	_ repository.ContentRepository[model.ForumPost]  = (*Table[model.ForumPost])(nil)
	_ repository.ContentRepository[model.Track]      = (*Table[model.Track])(nil)
)

// Create inserts row with a fresh xid. Columns are bound by their db tags
// (":quote", ":author", ...), so they must match the model's tags exactly.
func (t *Table[T]) Create(ctx context.Context, row *T) error {
	t.setID(row, xid.New().String())

	named := make([]string, len(t.columns))
	for i, c := range t.columns {
		named[i] = ":" + c
	}
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
		t.name, strings.Join(t.columns, ", "), strings.Join(named, ", "))

	if _, err := t.db.conn.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("sqldb: inserting into %s: %w", t.name, err)
	}
	return nil
}

func (t *Table[T]) List(ctx context.Context) ([]T, error) {
	rows := []T{}
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY %s`, strings.Join(t.columns, ", "), t.name, t.orderBy)
	if err := t.db.conn.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("sqldb: listing %s: %w", t.name, err)
	}
	return rows, nil
}

func (t *Table[T]) Delete(ctx context.Context, id string) error {
	res, err := t.db.conn.ExecContext(ctx, t.db.q(fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, t.name)), id)
	if err != nil {
		return fmt.Errorf("sqldb: deleting from %s: %w", t.name, err)
	}
	return requireAffected(res, t.resource, id)
}

func (db *DB) Quotes() *Table[model.Quote] {
	return &Table[model.Quote]{
		db:       db,
		name:     "quotes",
		resource: "quote",
		columns:  []string{"id", "quote", "author", "date_added", "created_at"},
		orderBy:  "created_at DESC",
		setID:    func(r *model.Quote, id string) { r.ID = id },
	}
}

func (db *DB) Suggestions() *Table[model.Suggestion] {
	return &Table[model.Suggestion]{
		db:       db,
		name:     "suggestions",
		resource: "suggestion",
		columns:  []string{"id", "name", "suggestion", "timestamp", "created_at"},
		orderBy:  "created_at DESC",
		setID:    func(r *model.Suggestion, id string) { r.ID = id },
	}
}

func (db *DB) DevLog() *Table[model.DevLogPost] {
	return &Table[model.DevLogPost]{
		db:       db,
		name:     "dev_log_posts",
		resource: "dev log post",
		columns:  []string{"id", "content", "date", "hour", "timestamp", "created_at"},
		orderBy:  "created_at DESC",
		setID:    func(r *model.DevLogPost, id string) { r.ID = id },
	}
}

// Forum posts sort newest first by creation time in milliseconds. The id
// breaks ties within one millisecond, since xids grow with time.
func (db *DB) Forum() *Table[model.ForumPost] {
	return &Table[model.ForumPost]{
		db:       db,
		name:     "forum_posts",
		resource: "forum post",
		columns:  []string{"id", "message", "author", "timestamp", "date", "time", "created_at"},
		orderBy:  "created_at DESC, id DESC",
		setID:    func(r *model.ForumPost, id string) { r.ID = id },
	}
}

// Playlist plays in the order tracks were added.
func (db *DB) Playlist() *Table[model.Track] {
	return &Table[model.Track]{
		db:       db,
		name:     "basement_playlist",
		resource: "track",
		columns:  []string{"id", "name", "src", "type", "created_at"},
		orderBy:  "created_at ASC",
		setID:    func(r *model.Track, id string) { r.ID = id },
	}
}
