package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sakif/homepage/internal/apperror"
	"github.com/sakif/homepage/internal/model"
)

func TestJanitor_RunOnce(t *testing.T) {
	s := newChatStack(t)
	ctx := context.Background()
	now := s.clock.Now()

	user := &model.User{Username: "alice", PasswordHash: "x"}
	if err := s.db.CreateUser(ctx, user); err != nil {
		t.Fatal(err)
	}
	for token, exp := range map[string]time.Duration{"live": time.Hour, "dead": -time.Hour} {
		if err := s.db.CreateSession(ctx, &model.Session{
			Token: token, UserID: user.ID, ExpiresAt: now.Add(exp).UnixMilli(), CreatedAt: now.UnixMilli(),
		}); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := s.mod.Mute(ctx, adminIdentity, MuteRequest{SID: "sid_short", Duration: 1}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.mod.Mute(ctx, adminIdentity, MuteRequest{SID: "sid_long", Duration: 600}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.presence.Heartbeat(ctx, "sid_gone", "ghost", ""); err != nil {
		t.Fatal(err)
	}

	s.clock.Advance(PresenceRetention + time.Minute)
	if _, err := s.presence.Heartbeat(ctx, "sid_here", "neo", ""); err != nil {
		t.Fatal(err)
	}

	j := NewJanitor(s.db, s.db, s.db, testLogger)
	j.now = s.clock.Now

	res, err := j.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	// "live" expired too once the clock moved a day forward.
	want := PruneResult{Sessions: 2, Mutes: 2, Presence: 1}
	if res != want {
		t.Errorf("RunOnce() = %+v, want %+v", res, want)
	}

	if _, err := s.db.GetPresence(ctx, "sid_here"); err != nil {
		t.Errorf("fresh presence pruned: %v", err)
	}
	if _, err := s.db.GetPresence(ctx, "sid_gone"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("stale presence kept, GetPresence() error = %v", err)
	}
}

func TestJanitor_Start(t *testing.T) {
	db := newTestStore(t)
	j := NewJanitor(db, db, db, testLogger)

	if err := j.Start("not a schedule"); err == nil {
		t.Error("Start(invalid) error = nil, want error")
	}
	if err := j.Start(""); err != nil {
		t.Fatalf("Start(default) error = %v", err)
	}
	j.Stop()

	// Stop on a janitor that never started is a no-op.
	NewJanitor(db, db, db, testLogger).Stop()
}
