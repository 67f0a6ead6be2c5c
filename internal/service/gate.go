package service

// THE MODERATION GATE:
// Every chat post passes four checks, in this order, and the first one that
// fails decides the response:
//
//	1. ban        → 403 "You are banned from the chat" (+ reason)
//	2. mute       → 403 "You are muted for N more minutes"
//	3. lockdown   → 403 "Chat is in lockdown mode - admin only"
//	4. slow mode  → 429 "Slow mode: wait N more seconds"
//
// Ban comes before mute on purpose: a sid that is both banned and muted must
// be told it is banned, the stronger and permanent state.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/homepage/internal/apperror"
	"github.com/sakif/homepage/internal/metrics"
	"github.com/sakif/homepage/internal/model"
	"github.com/sakif/homepage/internal/repository"
)

// Gate decides whether a sid may post right now.
type Gate struct {
	moderation repository.ModerationRepository
	chat       repository.ChatRepository
	logger     *slog.Logger
	now        func() time.Time
}

func NewGate(moderation repository.ModerationRepository, chat repository.ChatRepository, logger *slog.Logger) *Gate {
	return &Gate{moderation: moderation, chat: chat, logger: logger, now: time.Now}
}

// Admit returns nil if sid may post, otherwise the rejection of the first
// failing check. Store failures are returned wrapped and map to 500.
func (g *Gate) Admit(ctx context.Context, sid string) error {
	nowMs := g.now().UnixMilli()

	// 1. ban
	ban, err := g.moderation.GetBan(ctx, sid)
	if err == nil {
		return g.reject(sid, "banned",
			apperror.Forbidden("You are banned from the chat").WithDetail("reason", ban.Reason))
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return fmt.Errorf("service/gate: checking ban: %w", err)
	}

	// 2. mute, expired rows are cleaned up as they are found
	mute, err := g.moderation.GetMute(ctx, sid)
	switch {
	case err == nil && mute.Active(nowMs):
		minutes := ceilDiv(mute.MutedUntil-nowMs, int64(time.Minute/time.Millisecond))
		return g.reject(sid, "muted",
			apperror.Forbidden(fmt.Sprintf("You are muted for %d more minutes", minutes)).
				WithDetail("reason", mute.Reason).
				WithDetail("muted_until", mute.MutedUntil))
	case err == nil:
		if err := g.moderation.DeleteMute(ctx, sid); err != nil && !errors.Is(err, apperror.ErrNotFound) {
			g.logger.Warn("failed to delete expired mute", slog.String("sid", sid), slog.String("error", err.Error()))
		}
	case !errors.Is(err, apperror.ErrNotFound):
		return fmt.Errorf("service/gate: checking mute: %w", err)
	}

	settings, err := g.settings(ctx)
	if err != nil {
		return err
	}

	// 3. lockdown
	if settings.LockdownMode {
		return g.reject(sid, "lockdown", apperror.Forbidden("Chat is in lockdown mode - admin only"))
	}

	// 4. slow mode
	if settings.SlowModeSeconds > 0 {
		last, err := g.chat.LatestMessageBySID(ctx, sid)
		if err != nil && !errors.Is(err, apperror.ErrNotFound) {
			return fmt.Errorf("service/gate: checking slow mode: %w", err)
		}
		if last != nil {
			interval := int64(settings.SlowModeSeconds) * 1000
			elapsed := nowMs - last.CreatedAtMs
			if elapsed < interval {
				wait := ceilDiv(interval-elapsed, 1000)
				wait = max(1, min(wait, int64(settings.SlowModeSeconds)))
				return g.reject(sid, "slow_mode",
					apperror.RateLimited(fmt.Sprintf("Slow mode: wait %d more seconds", wait)).
						WithDetail("retry_after", wait))
			}
		}
	}

	return nil
}

func (g *Gate) settings(ctx context.Context) (*model.ChatSettings, error) {
	s, err := g.moderation.GetChatSettings(ctx)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return &model.ChatSettings{ID: model.ChatSettingsID}, nil
		}
		return nil, fmt.Errorf("service/gate: loading settings: %w", err)
	}
	return s, nil
}

func (g *Gate) reject(sid, reason string, err *apperror.AppError) error {
	metrics.ChatPostRejections.WithLabelValues(reason).Inc()
	g.logger.Debug("chat post rejected", slog.String("sid", sid), slog.String("reason", reason))
	return err
}

// ceilDiv is ceil(a/b) for positive a and b.
func ceilDiv(a, b int64) int64 {
	return (a + b - 1) / b
}
