package auth

// SIGNED SID COOKIES:
// The sid is the anonymous identity every moderation decision hangs off:
// bans, mutes and slow mode are all keyed by it. If the cookie carried the
// bare sid, anyone could paste another visitor's sid into their browser and
// post (or get banned) as them. So the cookie carries a JWT instead:
//
//	sid cookie = HS256( {"sub":"sid_0190...","iss":"homepage-sid","exp":...} )
//
// The server verifies the signature with SID_SECRET and uses "sub" as the sid.
// A cookie that fails verification is treated as absent and replaced.

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	sidIssuer = "homepage-sid"
	sidPrefix = "sid_"

	// SIDLifetime matches the cookie's Max-Age of one year.
	SIDLifetime = 365 * 24 * time.Hour
)

// NewSID mints an anonymous id: "sid_" followed by a UUIDv7, which sorts by
// creation time and so keeps the presence table's primary key index tidy.
func NewSID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails if the system random source is broken.
		id = uuid.New()
	}
	return sidPrefix + id.String()
}

// ValidSID reports whether s has the shape produced by NewSID.
func ValidSID(s string) bool {
	rest, ok := strings.CutPrefix(s, sidPrefix)
	if !ok {
		return false
	}
	_, err := uuid.Parse(rest)
	return err == nil
}

// SIDSigner signs and verifies sid cookies.
type SIDSigner struct {
	secret []byte
	now    func() time.Time
}

// NewSIDSigner creates a signer. The secret should be at least 32 bytes of
// random data in production, e.g. SID_SECRET=$(openssl rand -hex 32).
func NewSIDSigner(secret string) (*SIDSigner, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: sid secret must be at least 16 characters")
	}
	return &SIDSigner{secret: []byte(secret), now: time.Now}, nil
}

// Sign wraps sid in a token valid for SIDLifetime.
func (s *SIDSigner) Sign(sid string) (string, error) {
	now := s.now()
	c := jwt.RegisteredClaims{
		Subject:   sid,
		Issuer:    sidIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(SIDLifetime)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing sid: %w", err)
	}
	return signed, nil
}

// Verify returns the sid inside a signed cookie value.
//
// WithValidMethods pins HS256, so a token claiming "alg":"none" or an
// asymmetric algorithm is rejected before the key is ever consulted.
func (s *SIDSigner) Verify(token string) (string, error) {
	var c jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &c,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sidIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("auth: sid expired")
		}
		return "", fmt.Errorf("auth: invalid sid token: %w", err)
	}

	if !ValidSID(c.Subject) {
		return "", fmt.Errorf("auth: malformed sid %q", c.Subject)
	}
	return c.Subject, nil
}
