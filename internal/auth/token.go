package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// sessionTokenBytes of randomness give a 64-character hex token.
const sessionTokenBytes = 32

// NewSessionToken returns an opaque, unguessable bearer token. Unlike the sid
// it carries no claims: all meaning lives in the sessions table, which is what
// lets logout revoke it.
func NewSessionToken() (string, error) {
	b := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("auth: generating session token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
