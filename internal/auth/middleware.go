package auth

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// contextKey is unexported so no other package can read or shadow our values.
type contextKey string

const identityKey contextKey = "identity"

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the Identity stored by Identify. Outside the
// middleware (e.g. in a unit test) it returns the zero Identity.
func IdentityFromContext(ctx context.Context) Identity {
	id, _ := ctx.Value(identityKey).(Identity)
	return id
}

// CookieOptions control the attributes of the cookies this package sets.
type CookieOptions struct {
	Secure     bool
	SessionTTL time.Duration
}

// Identify resolves every request's identity and mints a sid for first-time
// visitors. It never rejects a request: a store failure while resolving the
// session degrades to an anonymous identity and is logged.
func Identify(resolver *Resolver, signer *SIDSigner, opts CookieOptions, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			creds := ReadCredentials(r, signer)

			if creds.SID == "" {
				sid := NewSID()
				signed, err := signer.Sign(sid)
				if err != nil {
					logger.Error("failed to sign new sid", slog.String("error", err.Error()))
				} else {
					http.SetCookie(w, &http.Cookie{
						Name:     SIDCookie,
						Value:    signed,
						Path:     "/",
						MaxAge:   int(SIDLifetime / time.Second),
						HttpOnly: true,
						Secure:   opts.Secure,
						SameSite: http.SameSiteLaxMode,
					})
				}
				creds.SID = sid
			}

			id, err := resolver.Resolve(r.Context(), creds)
			if err != nil {
				logger.Error("identity resolution failed",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// SetSessionCookie stores token as the HttpOnly session cookie.
func SetSessionCookie(w http.ResponseWriter, token string, opts CookieOptions) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(opts.SessionTTL / time.Second),
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie expires the session cookie (Max-Age=0 on the wire).
func ClearSessionCookie(w http.ResponseWriter, opts CookieOptions) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
