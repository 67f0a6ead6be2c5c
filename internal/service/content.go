package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/homepage/internal/apperror"
	"github.com/sakif/homepage/internal/model"
	"github.com/sakif/homepage/internal/repository"
)

// Content defaults.
const (
	AnonymousAuthor  = "Anonymous"
	DefaultTrackType = "audio/mpeg"

	quoteDateLayout      = "2006-01-02"
	devLogDateLayout     = "January 2, 2006"
	devLogHourLayout     = "3:04 PM"
	forumDateLayout      = "1/2/2006"
	forumTimeLayout      = "3:04:05 PM"
	forumTimestampLayout = "2006-01-02T15:04:05.000Z07:00"
)

// PrepareFunc validates a row a client submitted and fills in its defaults.
// The returned error should be an apperror.ValidationFailed.
type PrepareFunc[T any] func(row *T, now time.Time) error

// ContentService is the list/create/delete logic shared by every plain
// content table. What differs per table is only the PrepareFunc.
type ContentService[T any] struct {
	name    string
	repo    repository.ContentRepository[T]
	prepare PrepareFunc[T]
	logger  *slog.Logger
	now     func() time.Time
}

func NewContentService[T any](name string, repo repository.ContentRepository[T], prepare PrepareFunc[T], logger *slog.Logger) *ContentService[T] {
	return &ContentService[T]{name: name, repo: repo, prepare: prepare, logger: logger, now: time.Now}
}

func (s *ContentService[T]) List(ctx context.Context) ([]T, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/%s: listing: %w", s.name, err)
	}
	return rows, nil
}

func (s *ContentService[T]) Create(ctx context.Context, row *T) (*T, error) {
	if err := s.prepare(row, s.now()); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, row); err != nil {
		return nil, fmt.Errorf("service/%s: creating: %w", s.name, err)
	}
	return row, nil
}

func (s *ContentService[T]) Delete(ctx context.Context, id string) error {
	if id == "" {
		return apperror.ValidationFailed("id", "ID is required")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return err
		}
		return fmt.Errorf("service/%s: deleting: %w", s.name, err)
	}
	s.logger.Info("content deleted", slog.String("table", s.name), slog.String("id", id))
	return nil
}

func PrepareQuote(q *model.Quote, now time.Time) error {
	q.Quote = strings.TrimSpace(q.Quote)
	q.Author = strings.TrimSpace(q.Author)
	if q.Quote == "" || q.Author == "" {
		return apperror.ValidationFailed("quote", "Quote and author are required")
	}
	if q.DateAdded == "" {
		q.DateAdded = now.Format(quoteDateLayout)
	} else if _, err := time.Parse(quoteDateLayout, q.DateAdded); err != nil {
		return apperror.ValidationFailed("date_added", "date_added must be YYYY-MM-DD")
	}
	q.CreatedAt = now.UnixMilli()
	return nil
}

func PrepareSuggestion(sg *model.Suggestion, now time.Time) error {
	sg.Suggestion = strings.TrimSpace(sg.Suggestion)
	if sg.Suggestion == "" {
		return apperror.ValidationFailed("suggestion", "Suggestion is required")
	}
	if sg.Name = strings.TrimSpace(sg.Name); sg.Name == "" {
		sg.Name = AnonymousAuthor
	}
	sg.Timestamp = now.UTC().Format(time.RFC3339)
	sg.CreatedAt = now.UnixMilli()
	return nil
}

// PrepareDevLogPost stamps the post with server time; client dates are ignored.
func PrepareDevLogPost(p *model.DevLogPost, now time.Time) error {
	p.Content = strings.TrimSpace(p.Content)
	if p.Content == "" {
		return apperror.ValidationFailed("content", "Content is required")
	}
	p.Date = now.Format(devLogDateLayout)
	p.Hour = now.Format(devLogHourLayout)
	p.Timestamp = now.UnixMilli()
	p.CreatedAt = p.Timestamp
	return nil
}

func PrepareForumPost(p *model.ForumPost, now time.Time) error {
	p.Message = strings.TrimSpace(p.Message)
	if p.Message == "" {
		return apperror.ValidationFailed("message", "Message is required")
	}
	if p.Author = strings.TrimSpace(p.Author); p.Author == "" {
		p.Author = AnonymousAuthor
	}
	p.Timestamp = now.UTC().Format(forumTimestampLayout)
	p.Date = now.Format(forumDateLayout)
	p.Time = now.Format(forumTimeLayout)
	p.CreatedAt = now.UnixMilli()
	return nil
}

func PrepareTrack(t *model.Track, now time.Time) error {
	t.Name = strings.TrimSpace(t.Name)
	t.Src = strings.TrimSpace(t.Src)
	if t.Name == "" || t.Src == "" {
		return apperror.ValidationFailed("name", "Name and src are required")
	}
	if t.Type = strings.TrimSpace(t.Type); t.Type == "" {
		t.Type = DefaultTrackType
	}
	t.CreatedAt = now.UnixMilli()
	return nil
}
