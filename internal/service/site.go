package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/homepage/internal/apperror"
	"github.com/sakif/homepage/internal/auth"
	"github.com/sakif/homepage/internal/model"
	"github.com/sakif/homepage/internal/repository"
)

// SiteService owns the two singleton rows: the visit counter and the
// editable home page settings.
type SiteService struct {
	repo   repository.SiteRepository
	logger *slog.Logger
	now    func() time.Time
}

func NewSiteService(repo repository.SiteRepository, logger *slog.Logger) *SiteService {
	return &SiteService{repo: repo, logger: logger, now: time.Now}
}

// StatsUpdate overrides parts of the counter. Nil fields keep the default
// behaviour (increment, keep first visit). FirstVisit is Unix milliseconds.
type StatsUpdate struct {
	VisitorCount *int64 `json:"visitorCount"`
	FirstVisit   *int64 `json:"firstVisit"`
}

// Stats returns the counter, or a zero counter stamped now if none exists yet.
func (s *SiteService) Stats(ctx context.Context) (*model.SiteStats, error) {
	stats, err := s.repo.GetStats(ctx)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			now := s.now().UnixMilli()
			return &model.SiteStats{FirstVisit: now, LastUpdated: now}, nil
		}
		return nil, fmt.Errorf("service/site: loading stats: %w", err)
	}
	return stats, nil
}

// RecordVisit bumps the counter, or writes the values in u when given.
//
// The read and the write are separate statements, so two simultaneous
// visits can both read N and both write N+1. A visit counter can live with that.
func (s *SiteService) RecordVisit(ctx context.Context, u StatsUpdate) (*model.SiteStats, error) {
	now := s.now().UnixMilli()

	current, err := s.repo.GetStats(ctx)
	if err != nil && !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/site: loading stats: %w", err)
	}

	next := model.SiteStats{LastUpdated: now, FirstVisit: now}
	if current != nil {
		next.VisitorCount = current.VisitorCount + 1
		if current.FirstVisit > 0 {
			next.FirstVisit = current.FirstVisit
		}
	} else {
		next.VisitorCount = 1
	}
	if u.VisitorCount != nil {
		if *u.VisitorCount < 0 {
			return nil, apperror.ValidationFailed("visitorCount", "visitorCount must not be negative")
		}
		next.VisitorCount = *u.VisitorCount
	}
	if u.FirstVisit != nil {
		if *u.FirstVisit < 0 {
			return nil, apperror.ValidationFailed("firstVisit", "firstVisit must not be negative")
		}
		next.FirstVisit = *u.FirstVisit
	}

	if err := s.repo.SaveStats(ctx, &next); err != nil {
		return nil, fmt.Errorf("service/site: saving stats: %w", err)
	}
	return &next, nil
}

// AdminSettings returns the stored settings or model.DefaultAdminSettings.
func (s *SiteService) AdminSettings(ctx context.Context) (*model.AdminSettings, error) {
	settings, err := s.repo.GetAdminSettings(ctx)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			d := model.DefaultAdminSettings()
			return &d, nil
		}
		return nil, fmt.Errorf("service/site: loading admin settings: %w", err)
	}
	return settings, nil
}

// SaveAdminSettings replaces the settings row. Empty image fields fall back
// to their defaults.
func (s *SiteService) SaveAdminSettings(ctx context.Context, actor auth.Identity, in model.AdminSettings) (*model.AdminSettings, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}
	if in.ImagePath == "" {
		in.ImagePath = model.DefaultImagePath
	}
	if in.ImageAlt == "" {
		in.ImageAlt = model.DefaultImageAlt
	}
	if err := s.repo.SaveAdminSettings(ctx, &in); err != nil {
		return nil, fmt.Errorf("service/site: saving admin settings: %w", err)
	}
	s.logger.Info("admin settings updated", slog.String("by", actor.User.Username))
	return &in, nil
}
