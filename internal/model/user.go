// Package model defines the data structures used throughout the application.
//
// Timestamps that are stored are Unix milliseconds (int64). Both SQLite and
// Postgres compare BIGINT columns identically, which keeps every expiry check
// ("expires_at > now") the same SQL on either driver.
package model

// User represents a registered account.
//
// PasswordHash carries json:"-" so a User can never leak its hash, even if a
// handler accidentally encodes the full struct instead of Public().
type User struct {
	ID           string `json:"id"           db:"id"`
	Username     string `json:"username"     db:"username"`
	PasswordHash string `json:"-"            db:"password_hash"`
	Email        string `json:"email"        db:"email"`
	DisplayName  string `json:"display_name" db:"display_name"`
	AvatarURL    string `json:"avatar_url"   db:"avatar_url"`
	IsAdmin      bool   `json:"is_admin"     db:"is_admin"`
	CreatedAt    int64  `json:"created_at"   db:"created_at"`
}

// PublicUser is the shape returned by the auth endpoints.
type PublicUser struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
	IsAdmin     bool   `json:"is_admin"`
}

// Public strips everything the client should not see.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
		IsAdmin:     u.IsAdmin,
	}
}

// Name is what other people see: the display name, or the username if none is set.
func (u *User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}

// Session maps an opaque bearer token to a user until ExpiresAt.
type Session struct {
	Token     string `json:"token"      db:"token"`
	UserID    string `json:"-"          db:"user_id"`
	ExpiresAt int64  `json:"expires_at" db:"expires_at"`
	CreatedAt int64  `json:"-"          db:"created_at"`
}

// Valid reports whether the session is still usable at nowMs.
func (s *Session) Valid(nowMs int64) bool {
	return s.ExpiresAt > nowMs
}
