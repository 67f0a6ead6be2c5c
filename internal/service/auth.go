// Package service holds the business logic that sits between handlers and repositories.
//
//	AuthHandler (HTTP) → AuthService → UserRepository / SessionRepository
//	                                 ↘ auth.PasswordService (bcrypt)
//	                                 ↘ auth.Resolver (token → user)
//
// The service never touches cookies: it hands back the session and the
// handler decides how to put it on the wire.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/sakif/homepage/internal/apperror"
	"github.com/sakif/homepage/internal/auth"
	"github.com/sakif/homepage/internal/model"
	"github.com/sakif/homepage/internal/repository"
)

// Account policy.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 20
	MinPasswordLength = 6

	DefaultSessionTTL = 30 * 24 * time.Hour
)

// AuthService handles registration, login, logout and session verification.
type AuthService struct {
	users     repository.UserRepository
	sessions  repository.SessionRepository
	passwords *auth.PasswordService
	resolver  *auth.Resolver
	ttl       time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewAuthService wires the service. A non-positive ttl means DefaultSessionTTL.
func NewAuthService(
	users repository.UserRepository,
	sessions repository.SessionRepository,
	passwords *auth.PasswordService,
	resolver *auth.Resolver,
	ttl time.Duration,
	logger *slog.Logger,
) *AuthService {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &AuthService{
		users:     users,
		sessions:  sessions,
		passwords: passwords,
		resolver:  resolver,
		ttl:       ttl,
		logger:    logger,
		now:       time.Now,
	}
}

// AuthResult bundles the user and the session just issued for them.
type AuthResult struct {
	User    *model.User
	Session *model.Session
}

// RegisterInput is the data a visitor submits to create an account.
type RegisterInput struct {
	Username    string
	Password    string
	Email       string
	DisplayName string
}

// Register creates an account and logs it in.
//
// The uniqueness check is exact and case-sensitive ("Alice" and "alice" are
// different accounts). The store's UNIQUE constraint backs it up, so a race
// between two registrations still yields exactly one row and one 409.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	if in.Username == "" || in.Password == "" {
		return nil, apperror.ValidationFailed("username", "Username and password are required")
	}
	if n := utf8.RuneCountInString(in.Username); n < MinUsernameLength || n > MaxUsernameLength {
		return nil, apperror.ValidationFailed("username",
			fmt.Sprintf("Username must be %d-%d characters", MinUsernameLength, MaxUsernameLength))
	}
	if utf8.RuneCountInString(in.Password) < MinPasswordLength {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("Password must be at least %d characters", MinPasswordLength))
	}
	if len(in.Password) > auth.MaxPasswordBytes {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("Password must be at most %d bytes", auth.MaxPasswordBytes))
	}

	_, err := s.users.GetUserByUsername(ctx, in.Username)
	switch {
	case err == nil:
		return nil, apperror.Conflict("Username already taken")
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, fmt.Errorf("service/auth: checking username: %w", err)
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: %w", err)
	}

	displayName := in.DisplayName
	if displayName == "" {
		displayName = in.Username
	}
	user := &model.User{
		Username:     in.Username,
		PasswordHash: hash,
		Email:        in.Email,
		DisplayName:  displayName,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("service/auth: creating user: %w", err)
	}

	session, err := s.issueSession(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user registered", slog.String("userID", user.ID), slog.String("username", user.Username))
	return &AuthResult{User: user, Session: session}, nil
}

// Login checks credentials and issues a new session. Unknown usernames and
// wrong passwords produce the same error so the response does not reveal
// which usernames exist.
func (s *AuthService) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	if username == "" || password == "" {
		return nil, apperror.ValidationFailed("username", "Username and password are required")
	}

	invalid := apperror.Unauthorized("Invalid username or password")

	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, invalid
		}
		return nil, fmt.Errorf("service/auth: loading user: %w", err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.Error("stored password hash is unreadable",
				slog.String("userID", user.ID), slog.String("error", err.Error()))
		}
		return nil, invalid
	}

	session, err := s.issueSession(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user logged in", slog.String("userID", user.ID))
	return &AuthResult{User: user, Session: session}, nil
}

// Logout revokes the session. An empty or unknown token is not an error.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.sessions.DeleteSession(ctx, token); err != nil {
		return fmt.Errorf("service/auth: deleting session: %w", err)
	}
	return nil
}

// Verify returns the user behind token, or a 401-mapped error.
func (s *AuthService) Verify(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, apperror.Unauthorized("Not authenticated")
	}
	user, err := s.resolver.Authenticate(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("service/auth: %w", err)
	}
	if user == nil {
		return nil, apperror.Unauthorized("Invalid or expired session")
	}
	return user, nil
}

// EnsureAdmin creates an admin account, or promotes an existing one and
// resets its password. Used by the sitectl CLI to bootstrap a fresh database.
func (s *AuthService) EnsureAdmin(ctx context.Context, username, password, displayName string) (*model.User, error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil && !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/auth: loading user: %w", err)
	}

	if user == nil {
		res, err := s.Register(ctx, RegisterInput{Username: username, Password: password, DisplayName: displayName})
		if err != nil {
			return nil, err
		}
		user = res.User
	} else {
		if len(password) < MinPasswordLength {
			return nil, apperror.ValidationFailed("password",
				fmt.Sprintf("Password must be at least %d characters", MinPasswordLength))
		}
		hash, err := s.passwords.Hash(password)
		if err != nil {
			return nil, fmt.Errorf("service/auth: %w", err)
		}
		if err := s.users.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
			return nil, fmt.Errorf("service/auth: updating password: %w", err)
		}
	}

	if err := s.users.SetAdmin(ctx, user.ID, true); err != nil {
		return nil, fmt.Errorf("service/auth: promoting user: %w", err)
	}
	user.IsAdmin = true

	s.logger.Info("admin ensured", slog.String("userID", user.ID), slog.String("username", user.Username))
	return user, nil
}

func (s *AuthService) issueSession(ctx context.Context, userID string) (*model.Session, error) {
	token, err := auth.NewSessionToken()
	if err != nil {
		return nil, fmt.Errorf("service/auth: %w", err)
	}
	now := s.now()
	session := &model.Session{
		Token:     token,
		UserID:    userID,
		ExpiresAt: now.Add(s.ttl).UnixMilli(),
		CreatedAt: now.UnixMilli(),
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("service/auth: creating session: %w", err)
	}
	return session, nil
}
