package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sakif/homepage/internal/apperror"
	"github.com/sakif/homepage/internal/auth"
	"github.com/sakif/homepage/internal/metrics"
	"github.com/sakif/homepage/internal/model"
	"github.com/sakif/homepage/internal/repository"
)

const (
	ChatHistoryLimit = 100
	MaxMessageLength = 500

	// AnonymousName is shown for visitors with neither an account nor a presence name.
	AnonymousName = "Anonymous"

	chatTimeLayout = "3:04:05 PM"
)

// ChatService is the basement chat log.
type ChatService struct {
	chat     repository.ChatRepository
	presence *PresenceService
	gate     *Gate
	logger   *slog.Logger
	now      func() time.Time
}

func NewChatService(chat repository.ChatRepository, presence *PresenceService, gate *Gate, logger *slog.Logger) *ChatService {
	return &ChatService{chat: chat, presence: presence, gate: gate, logger: logger, now: time.Now}
}

// History returns the latest ChatHistoryLimit messages in chronological
// order. A positive since keeps only messages created strictly after it,
// which is how clients poll for new lines.
func (s *ChatService) History(ctx context.Context, since int64) ([]model.ChatMessage, error) {
	msgs, err := s.chat.ListRecentMessages(ctx, ChatHistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("service/chat: listing: %w", err)
	}
	slices.Reverse(msgs)

	if since > 0 {
		msgs = slices.DeleteFunc(msgs, func(m model.ChatMessage) bool { return m.CreatedAtMs <= since })
	}
	return msgs, nil
}

// Post admits text through the moderation gate and appends it to the log.
func (s *ChatService) Post(ctx context.Context, id auth.Identity, text string) (*model.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperror.ValidationFailed("message", "Message is required")
	}
	if utf8.RuneCountInString(text) > MaxMessageLength {
		return nil, apperror.ValidationFailed("message",
			fmt.Sprintf("Message must be %d characters or fewer", MaxMessageLength))
	}

	if err := s.gate.Admit(ctx, id.AnonymousID); err != nil {
		return nil, err
	}

	author, err := s.DisplayName(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	msg := &model.ChatMessage{
		Author:      author,
		Message:     text,
		Timestamp:   now.Format(chatTimeLayout),
		CreatedAtMs: now.UnixMilli(),
		SID:         id.AnonymousID,
	}
	if err := s.chat.CreateMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("service/chat: saving: %w", err)
	}

	metrics.ChatMessagesTotal.Inc()
	return msg, nil
}

// DisplayName resolves the name shown next to a post: the account's display
// name, then the presence name claimed by the sid, then AnonymousName.
func (s *ChatService) DisplayName(ctx context.Context, id auth.Identity) (string, error) {
	if id.User != nil {
		return id.User.Name(), nil
	}
	name, err := s.presence.NameFor(ctx, id.AnonymousID)
	if err != nil {
		return "", fmt.Errorf("service/chat: resolving author: %w", err)
	}
	if name != "" {
		return name, nil
	}
	return AnonymousName, nil
}

// Delete removes a single message. Admin only.
func (s *ChatService) Delete(ctx context.Context, actor auth.Identity, messageID string) error {
	if err := actor.RequireAdmin(); err != nil {
		return err
	}
	if messageID == "" {
		return apperror.ValidationFailed("id", "Message ID is required")
	}
	if err := s.chat.DeleteMessage(ctx, messageID); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return err
		}
		return fmt.Errorf("service/chat: deleting: %w", err)
	}
	s.logger.Info("chat message deleted", slog.String("id", messageID), slog.String("by", actor.User.Username))
	return nil
}
