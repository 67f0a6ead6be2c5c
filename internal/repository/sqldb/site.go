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

var _ repository.SiteRepository = (*DB)(nil)

func (db *DB) GetStats(ctx context.Context) (*model.SiteStats, error) {
	var s model.SiteStats
	err := db.conn.GetContext(ctx, &s, db.q(
		`SELECT visitor_count, first_visit, last_updated FROM site_stats WHERE id = ?`), model.SingletonID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("site stats", "1")
		}
		return nil, fmt.Errorf("sqldb: getting site stats: %w", err)
	}
	return &s, nil
}

// SaveStats is last-write-wins; two concurrent increments may collapse into one.
func (db *DB) SaveStats(ctx context.Context, s *model.SiteStats) error {
	_, err := db.conn.ExecContext(ctx, db.q(
		`INSERT INTO site_stats (id, visitor_count, first_visit, last_updated) VALUES (?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
			visitor_count = excluded.visitor_count,
			first_visit = excluded.first_visit,
			last_updated = excluded.last_updated`),
		model.SingletonID, s.VisitorCount, s.FirstVisit, s.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("sqldb: saving site stats: %w", err)
	}
	return nil
}

func (db *DB) GetAdminSettings(ctx context.Context) (*model.AdminSettings, error) {
	var s model.AdminSettings
	err := db.conn.GetContext(ctx, &s, db.q(
		`SELECT mood_description, home_thread, image_path, image_alt FROM admin_settings WHERE id = ?`),
		model.SingletonID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("admin settings", "1")
		}
		return nil, fmt.Errorf("sqldb: getting admin settings: %w", err)
	}
	return &s, nil
}

func (db *DB) SaveAdminSettings(ctx context.Context, s *model.AdminSettings) error {
	_, err := db.conn.ExecContext(ctx, db.q(
		`INSERT INTO admin_settings (id, mood_description, home_thread, image_path, image_alt) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
			mood_description = excluded.mood_description,
			home_thread = excluded.home_thread,
			image_path = excluded.image_path,
			image_alt = excluded.image_alt`),
		model.SingletonID, s.MoodDescription, s.HomeThread, s.ImagePath, s.ImageAlt,
	)
	if err != nil {
		return fmt.Errorf("sqldb: saving admin settings: %w", err)
	}
	return nil
}
