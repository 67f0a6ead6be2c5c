// Package repository declares the storage contracts the services depend on.
//
// Services only ever see these interfaces. The concrete store (sqldb.DB) is
// built once in the server's composition root and injected, which is also
// what lets the service tests swap in in-memory fakes.
//
// Lookups of a single row return apperror.ErrNotFound when nothing matches.
package repository

import (
	"context"

	"github.com/sakif/homepage/internal/model"
)

type UserRepository interface {
	// CreateUser assigns ID and CreatedAt. A taken username yields apperror.ErrConflict.
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	SetAdmin(ctx context.Context, id string, isAdmin bool) error
	UpdatePasswordHash(ctx context.Context, id, hash string) error
}

type SessionRepository interface {
	CreateSession(ctx context.Context, session *model.Session) error
	GetSession(ctx context.Context, token string) (*model.Session, error)
	DeleteSession(ctx context.Context, token string) error
	DeleteExpiredSessions(ctx context.Context, nowMs int64) (int64, error)
}

type ChatRepository interface {
	CreateMessage(ctx context.Context, msg *model.ChatMessage) error
	// ListRecentMessages returns up to limit messages, newest first.
	ListRecentMessages(ctx context.Context, limit int) ([]model.ChatMessage, error)
	LatestMessageBySID(ctx context.Context, sid string) (*model.ChatMessage, error)
	DeleteMessage(ctx context.Context, id string) error
	DeleteAllMessages(ctx context.Context) (int64, error)
	ListMessageIDs(ctx context.Context) ([]string, error)
	DeleteMessagesByID(ctx context.Context, ids []string) (int64, error)
	// PinMessage unpins everything and pins id, atomically.
	PinMessage(ctx context.Context, id string) error
	// UnpinMessage unpins id, or every message when id is empty.
	UnpinMessage(ctx context.Context, id string) error
}

type ModerationRepository interface {
	GetBan(ctx context.Context, sid string) (*model.BannedUser, error)
	UpsertBan(ctx context.Context, ban *model.BannedUser) error
	DeleteBan(ctx context.Context, sid string) error
	ListBans(ctx context.Context) ([]model.BannedUser, error)

	GetMute(ctx context.Context, sid string) (*model.MutedUser, error)
	UpsertMute(ctx context.Context, mute *model.MutedUser) error
	DeleteMute(ctx context.Context, sid string) error
	ListActiveMutes(ctx context.Context, nowMs int64) ([]model.MutedUser, error)
	DeleteExpiredMutes(ctx context.Context, nowMs int64) (int64, error)

	GetChatSettings(ctx context.Context) (*model.ChatSettings, error)
	SaveChatSettings(ctx context.Context, settings *model.ChatSettings) error
}

type PresenceRepository interface {
	UpsertPresence(ctx context.Context, rec *model.PresenceRecord) error
	GetPresence(ctx context.Context, sid string) (*model.PresenceRecord, error)
	// ListActivePresence returns records seen at or after sinceMs, most recent first.
	ListActivePresence(ctx context.Context, sinceMs int64) ([]model.PresenceRecord, error)
	// FindActiveByName is ListActivePresence narrowed to one display name.
	FindActiveByName(ctx context.Context, name string, sinceMs int64) ([]model.PresenceRecord, error)
	DeletePresence(ctx context.Context, sid string) error
	DeleteStalePresence(ctx context.Context, beforeMs int64) (int64, error)
}

// ContentRepository is the uniform list/create/delete surface of the
// plain multi-row content tables (quotes, suggestions, dev log, forum, playlist).
type ContentRepository[T any] interface {
	// Create assigns the row ID.
	Create(ctx context.Context, row *T) error
	List(ctx context.Context) ([]T, error)
	Delete(ctx context.Context, id string) error
}

type SiteRepository interface {
	GetStats(ctx context.Context) (*model.SiteStats, error)
	SaveStats(ctx context.Context, stats *model.SiteStats) error
	GetAdminSettings(ctx context.Context) (*model.AdminSettings, error)
	SaveAdminSettings(ctx context.Context, settings *model.AdminSettings) error
}
