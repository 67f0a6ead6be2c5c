package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/homepage/internal/apperror"
	"github.com/sakif/homepage/internal/auth"
	"github.com/sakif/homepage/internal/model"
	"github.com/sakif/homepage/internal/repository"
)

const (
	DefaultBanReason   = "No reason provided"
	DefaultMuteMinutes = 10
	MaxMuteMinutes     = 30 * 24 * 60
	MaxSlowModeSeconds = 3600
	MaxMOTDLength      = 280
)

// Clear strategies, reported back to the moderator.
const (
	ClearStrategyBulk = "bulk"
	ClearStrategyByID = "by_id"
)

// ModerationService carries out moderator actions. Every mutating method
// takes the acting Identity and refuses non-admins.
type ModerationService struct {
	moderation repository.ModerationRepository
	chat       repository.ChatRepository
	presence   *PresenceService
	logger     *slog.Logger
	now        func() time.Time
}

func NewModerationService(
	moderation repository.ModerationRepository,
	chat repository.ChatRepository,
	presence *PresenceService,
	logger *slog.Logger,
) *ModerationService {
	return &ModerationService{
		moderation: moderation,
		chat:       chat,
		presence:   presence,
		logger:     logger,
		now:        time.Now,
	}
}

// BanRequest names the sid to ban. Name is looked up from presence if empty.
type BanRequest struct {
	SID    string `json:"sid"`
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// MuteRequest is a BanRequest with a duration in minutes (0 = default).
type MuteRequest struct {
	SID      string `json:"sid"`
	Name     string `json:"name"`
	Reason   string `json:"reason"`
	Duration int    `json:"duration"`
}

// ClearResult reports how a chat clear was carried out.
type ClearResult struct {
	Strategy string `json:"strategy"`
	Removed  int64  `json:"removed"`
}

func (s *ModerationService) Ban(ctx context.Context, actor auth.Identity, req BanRequest) (*model.BannedUser, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}
	if req.SID == "" {
		return nil, apperror.ValidationFailed("sid", "SID is required")
	}
	name, err := s.nameOrPresence(ctx, req.SID, req.Name)
	if err != nil {
		return nil, err
	}

	ban := &model.BannedUser{
		SID:      req.SID,
		Name:     name,
		Reason:   orDefault(req.Reason, DefaultBanReason),
		BannedBy: actor.User.Username,
		BannedAt: s.now().UnixMilli(),
	}
	if err := s.moderation.UpsertBan(ctx, ban); err != nil {
		return nil, fmt.Errorf("service/moderation: banning: %w", err)
	}

	s.logger.Info("sid banned", slog.String("sid", ban.SID), slog.String("by", ban.BannedBy), slog.String("reason", ban.Reason))
	return ban, nil
}

func (s *ModerationService) Unban(ctx context.Context, actor auth.Identity, sid string) error {
	if err := actor.RequireAdmin(); err != nil {
		return err
	}
	if sid == "" {
		return apperror.ValidationFailed("sid", "SID is required")
	}
	if err := s.moderation.DeleteBan(ctx, sid); err != nil {
		return wrapUnlessNotFound("service/moderation: unbanning", err)
	}
	s.logger.Info("sid unbanned", slog.String("sid", sid), slog.String("by", actor.User.Username))
	return nil
}

func (s *ModerationService) Mute(ctx context.Context, actor auth.Identity, req MuteRequest) (*model.MutedUser, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}
	if req.SID == "" {
		return nil, apperror.ValidationFailed("sid", "SID is required")
	}
	duration := req.Duration
	if duration == 0 {
		duration = DefaultMuteMinutes
	}
	if duration < 0 || duration > MaxMuteMinutes {
		return nil, apperror.ValidationFailed("duration",
			fmt.Sprintf("Duration must be between 1 and %d minutes", MaxMuteMinutes))
	}
	name, err := s.nameOrPresence(ctx, req.SID, req.Name)
	if err != nil {
		return nil, err
	}

	now := s.now()
	mute := &model.MutedUser{
		SID:        req.SID,
		Name:       name,
		Reason:     orDefault(req.Reason, DefaultBanReason),
		MutedBy:    actor.User.Username,
		MutedUntil: now.Add(time.Duration(duration) * time.Minute).UnixMilli(),
		MutedAt:    now.UnixMilli(),
	}
	if err := s.moderation.UpsertMute(ctx, mute); err != nil {
		return nil, fmt.Errorf("service/moderation: muting: %w", err)
	}

	s.logger.Info("sid muted", slog.String("sid", mute.SID), slog.Int("minutes", duration), slog.String("by", mute.MutedBy))
	return mute, nil
}

func (s *ModerationService) Unmute(ctx context.Context, actor auth.Identity, sid string) error {
	if err := actor.RequireAdmin(); err != nil {
		return err
	}
	if sid == "" {
		return apperror.ValidationFailed("sid", "SID is required")
	}
	if err := s.moderation.DeleteMute(ctx, sid); err != nil {
		return wrapUnlessNotFound("service/moderation: unmuting", err)
	}
	s.logger.Info("sid unmuted", slog.String("sid", sid), slog.String("by", actor.User.Username))
	return nil
}

// Kick drops sid from the presence directory. It does not stop them posting;
// that is what ban and mute are for.
func (s *ModerationService) Kick(ctx context.Context, actor auth.Identity, sid string) error {
	if err := actor.RequireAdmin(); err != nil {
		return err
	}
	if sid == "" {
		return apperror.ValidationFailed("sid", "SID is required")
	}
	if err := s.presence.Leave(ctx, sid); err != nil {
		return fmt.Errorf("service/moderation: kicking: %w", err)
	}
	s.logger.Info("sid kicked", slog.String("sid", sid), slog.String("by", actor.User.Username))
	return nil
}

// Clear empties the chat log.
//
//	precondition:  actor is an admin
//	step 1:        one bulk DELETE
//	step 2:        only if step 1 failed, list every id and delete in batches
//	postcondition: on success, every message that existed when step 2 listed
//	               ids is gone
//
// The result says which step did the work.
func (s *ModerationService) Clear(ctx context.Context, actor auth.Identity) (*ClearResult, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}

	n, bulkErr := s.chat.DeleteAllMessages(ctx)
	if bulkErr == nil {
		s.logger.Info("chat cleared", slog.String("strategy", ClearStrategyBulk), slog.Int64("removed", n))
		return &ClearResult{Strategy: ClearStrategyBulk, Removed: n}, nil
	}
	s.logger.Warn("bulk chat clear failed, deleting by id", slog.String("error", bulkErr.Error()))

	ids, err := s.chat.ListMessageIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/moderation: clearing chat: %w", errors.Join(bulkErr, err))
	}
	n, err = s.chat.DeleteMessagesByID(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("service/moderation: clearing chat by id (%d removed): %w", n, errors.Join(bulkErr, err))
	}

	s.logger.Info("chat cleared", slog.String("strategy", ClearStrategyByID), slog.Int64("removed", n))
	return &ClearResult{Strategy: ClearStrategyByID, Removed: n}, nil
}

// Settings is public: the chat UI shows the MOTD and slow-mode interval.
func (s *ModerationService) Settings(ctx context.Context) (*model.ChatSettings, error) {
	settings, err := s.moderation.GetChatSettings(ctx)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return &model.ChatSettings{ID: model.ChatSettingsID}, nil
		}
		return nil, fmt.Errorf("service/moderation: loading settings: %w", err)
	}
	return settings, nil
}

// UpdateSettings applies a partial update and returns the stored result.
func (s *ModerationService) UpdateSettings(ctx context.Context, actor auth.Identity, patch model.ChatSettingsPatch) (*model.ChatSettings, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}
	if v := patch.SlowModeSeconds; v != nil && (*v < 0 || *v > MaxSlowModeSeconds) {
		return nil, apperror.ValidationFailed("slow_mode_seconds",
			fmt.Sprintf("Slow mode must be between 0 and %d seconds", MaxSlowModeSeconds))
	}
	if v := patch.MOTD; v != nil && len([]rune(*v)) > MaxMOTDLength {
		return nil, apperror.ValidationFailed("motd",
			fmt.Sprintf("Message of the day must be %d characters or fewer", MaxMOTDLength))
	}

	current, err := s.Settings(ctx)
	if err != nil {
		return nil, err
	}
	next := patch.Apply(*current)
	if err := s.moderation.SaveChatSettings(ctx, &next); err != nil {
		return nil, fmt.Errorf("service/moderation: saving settings: %w", err)
	}

	s.logger.Info("chat settings updated",
		slog.Int("slowModeSeconds", next.SlowModeSeconds),
		slog.Bool("lockdown", next.LockdownMode),
		slog.String("by", actor.User.Username),
	)
	return &next, nil
}

// Pin makes messageID the single pinned message.
func (s *ModerationService) Pin(ctx context.Context, actor auth.Identity, messageID string) error {
	if err := actor.RequireAdmin(); err != nil {
		return err
	}
	if messageID == "" {
		return apperror.ValidationFailed("messageId", "Message ID is required")
	}
	if err := s.chat.PinMessage(ctx, messageID); err != nil {
		return wrapUnlessNotFound("service/moderation: pinning", err)
	}
	return nil
}

// Unpin unpins messageID, or whatever is pinned if messageID is empty.
func (s *ModerationService) Unpin(ctx context.Context, actor auth.Identity, messageID string) error {
	if err := actor.RequireAdmin(); err != nil {
		return err
	}
	if err := s.chat.UnpinMessage(ctx, messageID); err != nil {
		return wrapUnlessNotFound("service/moderation: unpinning", err)
	}
	return nil
}

func (s *ModerationService) Banned(ctx context.Context, actor auth.Identity) ([]model.BannedUser, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}
	bans, err := s.moderation.ListBans(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/moderation: listing bans: %w", err)
	}
	return bans, nil
}

// Muted lists only mutes that are still in force.
func (s *ModerationService) Muted(ctx context.Context, actor auth.Identity) ([]model.MutedUser, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}
	mutes, err := s.moderation.ListActiveMutes(ctx, s.now().UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("service/moderation: listing mutes: %w", err)
	}
	return mutes, nil
}

func (s *ModerationService) nameOrPresence(ctx context.Context, sid, name string) (string, error) {
	if name = strings.TrimSpace(name); name != "" {
		return name, nil
	}
	name, err := s.presence.NameFor(ctx, sid)
	if err != nil {
		return "", fmt.Errorf("service/moderation: %w", err)
	}
	return name, nil
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v == "" {
		return def
	}
	return v
}

// wrapUnlessNotFound keeps NotFound bare so the handler can still map it to 404.
func wrapUnlessNotFound(msg string, err error) error {
	if errors.Is(err, apperror.ErrNotFound) {
		return err
	}
	return fmt.Errorf("%s: %w", msg, err)
}
