package sqldb

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/homepage/internal/apperror"
	"github.com/sakif/homepage/internal/model"
)

// newTestDB opens a fresh in-memory SQLite database per test. New pins the
// pool to one connection, so every query in the test sees the same database.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestUser(t *testing.T, db *DB, username string) *model.User {
	t.Helper()
	u := &model.User{Username: username, PasswordHash: "hash", DisplayName: username}
	if err := db.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return u
}

func TestNew_UnsupportedDriver(t *testing.T) {
	if _, err := New("mysql", "whatever"); err == nil {
		t.Fatal("New() with unknown driver should fail")
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	db := newTestDB(t)

	// Running the schema a second time must not fail or reseed settings.
	if err := db.migrate(); err != nil {
		t.Fatalf("second migrate() error = %v", err)
	}

	settings, err := db.GetChatSettings(context.Background())
	if err != nil {
		t.Fatalf("GetChatSettings() error = %v", err)
	}
	if settings.SlowModeSeconds != 0 || settings.LockdownMode || settings.MOTD != "" {
		t.Errorf("seeded settings = %+v, want zero values", settings)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	createTestUser(t, db, "alice")
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, created_at) VALUES ('x', 'alice', 'h', 0)`)
	if err == nil {
		t.Fatal("expected a UNIQUE violation")
	}
	if !isUniqueViolation(err) {
		t.Errorf("isUniqueViolation(%v) = false, want true", err)
	}
	if isUniqueViolation(errors.New("connection refused")) {
		t.Error("isUniqueViolation() matched an unrelated error")
	}
}

// =========================================================================
// USERS
// =========================================================================

func TestCreateUser(t *testing.T) {
	db := newTestDB(t)
	u := createTestUser(t, db, "alice")

	if u.ID == "" {
		t.Error("CreateUser() did not set ID")
	}
	if u.CreatedAt == 0 {
		t.Error("CreateUser() did not set CreatedAt")
	}

	got, err := db.GetUserByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetUserByUsername() error = %v", err)
	}
	if got.ID != u.ID || got.PasswordHash != "hash" || got.IsAdmin {
		t.Errorf("GetUserByUsername() = %+v, want the created user", got)
	}
}

func TestCreateUser_DuplicateUsername(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "alice")

	err := db.CreateUser(context.Background(), &model.User{Username: "alice", PasswordHash: "other"})
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("CreateUser() duplicate error = %v, want ErrConflict", err)
	}
}

func TestGetUserByUsername_CaseSensitive(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "alice")

	_, err := db.GetUserByUsername(context.Background(), "Alice")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUserByUsername(Alice) error = %v, want ErrNotFound", err)
	}
}

func TestSetAdmin(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := createTestUser(t, db, "alice")

	if err := db.SetAdmin(ctx, u.ID, true); err != nil {
		t.Fatalf("SetAdmin() error = %v", err)
	}
	got, _ := db.GetUserByID(ctx, u.ID)
	if !got.IsAdmin {
		t.Error("IsAdmin = false after SetAdmin(true)")
	}

	if err := db.SetAdmin(ctx, "missing", true); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("SetAdmin(missing) error = %v, want ErrNotFound", err)
	}
}

func TestUpdatePasswordHash(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := createTestUser(t, db, "alice")

	if err := db.UpdatePasswordHash(ctx, u.ID, "new-hash"); err != nil {
		t.Fatalf("UpdatePasswordHash() error = %v", err)
	}
	got, _ := db.GetUserByID(ctx, u.ID)
	if got.PasswordHash != "new-hash" {
		t.Errorf("PasswordHash = %q, want %q", got.PasswordHash, "new-hash")
	}
}

// =========================================================================
// SESSIONS
// =========================================================================

func TestSessionLifecycle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := createTestUser(t, db, "alice")

	s := &model.Session{Token: "tok", UserID: u.ID, ExpiresAt: 2000, CreatedAt: 1000}
	if err := db.CreateSession(ctx, s); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	got, err := db.GetSession(ctx, "tok")
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if got.UserID != u.ID || got.ExpiresAt != 2000 {
		t.Errorf("GetSession() = %+v", got)
	}

	if err := db.DeleteSession(ctx, "tok"); err != nil {
		t.Fatalf("DeleteSession() error = %v", err)
	}
	if _, err := db.GetSession(ctx, "tok"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetSession() after delete error = %v, want ErrNotFound", err)
	}
	// Deleting again is not an error.
	if err := db.DeleteSession(ctx, "tok"); err != nil {
		t.Errorf("second DeleteSession() error = %v", err)
	}
}

func TestDeleteExpiredSessions(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := createTestUser(t, db, "alice")

	for _, s := range []model.Session{
		{Token: "old", UserID: u.ID, ExpiresAt: 100},
		{Token: "edge", UserID: u.ID, ExpiresAt: 500},
		{Token: "live", UserID: u.ID, ExpiresAt: 900},
	} {
		if err := db.CreateSession(ctx, &s); err != nil {
			t.Fatalf("CreateSession(%s) error = %v", s.Token, err)
		}
	}

	n, err := db.DeleteExpiredSessions(ctx, 500)
	if err != nil {
		t.Fatalf("DeleteExpiredSessions() error = %v", err)
	}
	if n != 2 {
		t.Errorf("DeleteExpiredSessions() = %d, want 2", n)
	}
	if _, err := db.GetSession(ctx, "live"); err != nil {
		t.Errorf("live session was pruned: %v", err)
	}
}
