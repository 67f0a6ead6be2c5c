package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newTestSIDSigner(t *testing.T) *SIDSigner {
	t.Helper()
	s, err := NewSIDSigner("test-secret-at-least-16-chars!!")
	if err != nil {
		t.Fatalf("NewSIDSigner: %v", err)
	}
	return s
}

func TestNewSIDSigner_ShortSecret(t *testing.T) {
	if _, err := NewSIDSigner("short"); err == nil {
		t.Fatal("NewSIDSigner() should reject secrets shorter than 16 chars")
	}
}

func TestNewSID(t *testing.T) {
	a, b := NewSID(), NewSID()
	if !strings.HasPrefix(a, "sid_") {
		t.Errorf("NewSID() = %q, want sid_ prefix", a)
	}
	if !ValidSID(a) {
		t.Errorf("ValidSID(%q) = false", a)
	}
	if a == b {
		t.Error("NewSID() returned the same id twice")
	}
}

func TestValidSID(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"sid_01902b4c-7a3e-7cc2-9a55-3a1c2b7d9e10", true},
		{"01902b4c-7a3e-7cc2-9a55-3a1c2b7d9e10", false},
		{"sid_abc", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ValidSID(tt.in); got != tt.want {
			t.Errorf("ValidSID(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSIDSigner_RoundTrip(t *testing.T) {
	s := newTestSIDSigner(t)
	sid := NewSID()

	token, err := s.Sign(sid)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	if strings.Count(token, ".") != 2 {
		t.Errorf("Sign() = %q, does not look like a JWT", token)
	}

	got, err := s.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if got != sid {
		t.Errorf("Verify() = %q, want %q", got, sid)
	}
}

func TestSIDSigner_Rejects(t *testing.T) {
	s := newTestSIDSigner(t)
	good, _ := s.Sign(NewSID())

	other, _ := NewSIDSigner("a-completely-different-secret")
	forged, _ := other.Sign(NewSID())

	expiredSigner := newTestSIDSigner(t)
	expiredSigner.now = func() time.Time { return time.Now().Add(-2 * SIDLifetime) }
	expired, _ := expiredSigner.Sign(NewSID())

	bareSID := NewSID()

	noneToken, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   NewSID(),
		Issuer:    sidIssuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	malformedSubject, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "admin",
		Issuer:    sidIssuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(s.secret)

	tests := []struct {
		name  string
		token string
	}{
		{"tampered signature", good[:len(good)-2] + "xx"},
		{"signed with another secret", forged},
		{"expired", expired},
		{"bare sid without signature", bareSID},
		{"alg none", noneToken},
		{"subject is not a sid", malformedSubject},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if sid, err := s.Verify(tt.token); err == nil {
				t.Errorf("Verify() = %q, want an error", sid)
			}
		})
	}
}

func TestNewSessionToken_Distinct(t *testing.T) {
	a, err := NewSessionToken()
	if err != nil {
		t.Fatalf("NewSessionToken() error = %v", err)
	}
	b, _ := NewSessionToken()

	if len(a) != 64 {
		t.Errorf("len(token) = %d, want 64 hex chars", len(a))
	}
	if a == b {
		t.Error("NewSessionToken() returned the same token twice")
	}
}
