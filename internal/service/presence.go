package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sakif/homepage/internal/apperror"
	"github.com/sakif/homepage/internal/model"
	"github.com/sakif/homepage/internal/repository"
)

const (
	// DefaultPresenceWindow is how long after its last heartbeat a record
	// still counts as online.
	DefaultPresenceWindow = 30 * time.Second

	MaxPresenceNameLength = 24
	DefaultPresenceStatus = "online"
)

// PresenceService is the "who's online" directory. The active window is a
// parameter so one implementation serves any deployment's notion of "online".
type PresenceService struct {
	repo   repository.PresenceRepository
	window time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// NewPresenceService builds the directory. A non-positive window means
// DefaultPresenceWindow.
func NewPresenceService(repo repository.PresenceRepository, window time.Duration, logger *slog.Logger) *PresenceService {
	if window <= 0 {
		window = DefaultPresenceWindow
	}
	return &PresenceService{repo: repo, window: window, logger: logger, now: time.Now}
}

// Window reports the active window.
func (s *PresenceService) Window() time.Duration {
	return s.window
}

func (s *PresenceService) cutoff() int64 {
	return s.now().Add(-s.window).UnixMilli()
}

// Heartbeat claims name for sid and marks it seen now.
//
// A name is free if no OTHER sid has used it within the window. The same sid
// may send the same name forever (that's what a heartbeat is), and a name left
// stale by someone who closed their tab becomes claimable again.
func (s *PresenceService) Heartbeat(ctx context.Context, sid, name, status string) (*model.PresenceRecord, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperror.ValidationFailed("name", "Name is required")
	}
	if utf8.RuneCountInString(name) > MaxPresenceNameLength {
		return nil, apperror.ValidationFailed("name",
			fmt.Sprintf("Name must be %d characters or fewer", MaxPresenceNameLength))
	}
	if status = strings.TrimSpace(status); status == "" {
		status = DefaultPresenceStatus
	}

	holders, err := s.repo.FindActiveByName(ctx, name, s.cutoff())
	if err != nil {
		return nil, fmt.Errorf("service/presence: checking name: %w", err)
	}
	for _, h := range holders {
		if h.SID != sid {
			return nil, apperror.Conflict("Name is taken")
		}
	}

	rec := &model.PresenceRecord{
		SID:      sid,
		Name:     name,
		Status:   status,
		LastSeen: s.now().UnixMilli(),
	}
	if err := s.repo.UpsertPresence(ctx, rec); err != nil {
		return nil, fmt.Errorf("service/presence: saving: %w", err)
	}
	return rec, nil
}

// Active lists records seen within the window, most recent first.
func (s *PresenceService) Active(ctx context.Context) ([]model.PresenceRecord, error) {
	recs, err := s.repo.ListActivePresence(ctx, s.cutoff())
	if err != nil {
		return nil, fmt.Errorf("service/presence: listing: %w", err)
	}
	return recs, nil
}

// Leave removes sid from the directory straight away.
func (s *PresenceService) Leave(ctx context.Context, sid string) error {
	if err := s.repo.DeletePresence(ctx, sid); err != nil {
		return fmt.Errorf("service/presence: leaving: %w", err)
	}
	return nil
}

// NameFor returns the last name sid claimed, stale or not, or "" if none.
func (s *PresenceService) NameFor(ctx context.Context, sid string) (string, error) {
	rec, err := s.repo.GetPresence(ctx, sid)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("service/presence: %w", err)
	}
	return rec.Name, nil
}
