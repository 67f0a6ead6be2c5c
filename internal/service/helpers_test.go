package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/sakif/homepage/internal/auth"
	"github.com/sakif/homepage/internal/model"
	"github.com/sakif/homepage/internal/repository/sqldb"
)

// =========================================================================
// SHARED TEST HELPERS
// =========================================================================

// The service tests run against a real in-memory SQLite store rather than
// hand-written fakes: the SQL is part of the behaviour under test (ordering,
// upserts, expiry comparisons). Fakes are only used to inject failures.

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestStore(t *testing.T) *sqldb.DB {
	t.Helper()
	db, err := sqldb.New(sqldb.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("sqldb.New() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// clock is a settable time source handed to the services' now field.
type clock struct{ t time.Time }

func newClock() *clock {
	return &clock{t: time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)}
}

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

var (
	adminIdentity = auth.Identity{
		AnonymousID: "sid_admin",
		User:        &model.User{ID: "u-admin", Username: "root", DisplayName: "Sakif", IsAdmin: true},
	}
	memberIdentity = auth.Identity{
		AnonymousID: "sid_member",
		User:        &model.User{ID: "u-member", Username: "alice"},
	}
	visitorIdentity = auth.Identity{AnonymousID: "sid_visitor"}
)

func assertErrIs(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("error = %v, want errors.Is(..., %v)", err, target)
	}
}

// chatStack wires presence, gate and chat on one store and one clock.
type chatStack struct {
	db       *sqldb.DB
	clock    *clock
	presence *PresenceService
	gate     *Gate
	chat     *ChatService
	mod      *ModerationService
}

func newChatStack(t *testing.T) *chatStack {
	t.Helper()
	db := newTestStore(t)
	c := newClock()

	presence := NewPresenceService(db, DefaultPresenceWindow, testLogger)
	presence.now = c.Now
	gate := NewGate(db, db, testLogger)
	gate.now = c.Now
	chat := NewChatService(db, presence, gate, testLogger)
	chat.now = c.Now
	mod := NewModerationService(db, db, presence, testLogger)
	mod.now = c.Now

	return &chatStack{db: db, clock: c, presence: presence, gate: gate, chat: chat, mod: mod}
}

func (s *chatStack) setSlowMode(t *testing.T, seconds int) {
	t.Helper()
	if _, err := s.mod.UpdateSettings(context.Background(), adminIdentity,
		model.ChatSettingsPatch{SlowModeSeconds: &seconds}); err != nil {
		t.Fatalf("UpdateSettings() error = %v", err)
	}
}
