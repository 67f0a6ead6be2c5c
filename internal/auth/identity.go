package auth

// IDENTITY RESOLUTION IN TWO STAGES:
//
//	Stage 1  ReadCredentials(request)   → Credentials{SID, SessionToken}
//	         pure parsing: cookies in, strings out, no I/O
//	Stage 2  Resolver.Resolve(creds)    → Identity{AnonymousID, User?}
//	         one session lookup + one user lookup
//
// The Identify middleware runs both stages once per request and stores the
// Identity in the context. Handlers and services take the Identity as a value
// instead of re-reading cookies.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/homepage/internal/apperror"
	"github.com/sakif/homepage/internal/model"
	"github.com/sakif/homepage/internal/repository"
)

// Cookie names.
const (
	SIDCookie     = "sid"
	SessionCookie = "sessionToken"
)

// Credentials are the raw, unverified identity claims of a request.
type Credentials struct {
	SID          string // verified sid, or "" if the cookie is missing or forged
	SessionToken string // opaque, not yet looked up
}

// ReadCredentials is stage 1. The sid signature check happens here because
// it needs no store access; the session token is only extracted.
func ReadCredentials(r *http.Request, signer *SIDSigner) Credentials {
	var c Credentials
	if ck, err := r.Cookie(SIDCookie); err == nil && ck.Value != "" {
		if sid, err := signer.Verify(ck.Value); err == nil {
			c.SID = sid
		}
	}
	c.SessionToken = SessionTokenFromRequest(r)
	return c
}

// SessionTokenFromRequest returns the sessionToken cookie value, or "".
func SessionTokenFromRequest(r *http.Request) string {
	ck, err := r.Cookie(SessionCookie)
	if err != nil {
		return ""
	}
	return ck.Value
}

// Identity is who is making a request. AnonymousID is always set once the
// Identify middleware has run; User is nil for visitors without a session.
type Identity struct {
	AnonymousID string
	User        *model.User
}

func (id Identity) Authenticated() bool {
	return id.User != nil
}

func (id Identity) IsAdmin() bool {
	return id.User != nil && id.User.IsAdmin
}

// RequireAdmin returns a 403-mapped error unless the caller is an admin.
func (id Identity) RequireAdmin() error {
	if !id.IsAdmin() {
		return apperror.Forbidden("Admin access required")
	}
	return nil
}

// Resolver is stage 2: it turns a session token into a user.
type Resolver struct {
	sessions repository.SessionRepository
	users    repository.UserRepository
	logger   *slog.Logger
	now      func() time.Time
}

func NewResolver(sessions repository.SessionRepository, users repository.UserRepository, logger *slog.Logger) *Resolver {
	return &Resolver{sessions: sessions, users: users, logger: logger, now: time.Now}
}

// Resolve never fails for a bad token: unknown, expired or orphaned sessions
// simply produce an anonymous Identity. Only store failures are returned.
func (r *Resolver) Resolve(ctx context.Context, c Credentials) (Identity, error) {
	id := Identity{AnonymousID: c.SID}
	if c.SessionToken == "" {
		return id, nil
	}

	user, err := r.Authenticate(ctx, c.SessionToken)
	if err != nil {
		return id, err
	}
	id.User = user
	return id, nil
}

// Authenticate looks a token up. It returns (nil, nil) when the token does
// not identify a live session. Expired rows are deleted on the way out.
func (r *Resolver) Authenticate(ctx context.Context, token string) (*model.User, error) {
	session, err := r.sessions.GetSession(ctx, token)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("auth: looking up session: %w", err)
	}

	if !session.Valid(r.now().UnixMilli()) {
		if err := r.sessions.DeleteSession(ctx, token); err != nil {
			r.logger.Warn("failed to delete expired session", slog.String("error", err.Error()))
		}
		return nil, nil
	}

	user, err := r.users.GetUserByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("auth: loading session user: %w", err)
	}
	return user, nil
}
