package model

// ChatMessage is one line of the basement chat.
type ChatMessage struct {
	ID          string `json:"id"            db:"id"`
	Author      string `json:"author"        db:"author"`
	Message     string `json:"message"       db:"message"`
	Timestamp   string `json:"timestamp"     db:"timestamp"` // display time, e.g. "3:04:05 PM"
	CreatedAtMs int64  `json:"created_at_ms" db:"created_at_ms"`
	SID         string `json:"sid"           db:"sid"`
	IsPinned    bool   `json:"is_pinned"     db:"is_pinned"`
}

// BannedUser blocks a sid from posting until a moderator unbans it.
type BannedUser struct {
	SID      string `json:"sid"       db:"sid"`
	Name     string `json:"name"      db:"name"`
	Reason   string `json:"reason"    db:"reason"`
	BannedBy string `json:"banned_by" db:"banned_by"`
	BannedAt int64  `json:"banned_at" db:"banned_at"`
}

// MutedUser blocks a sid from posting until MutedUntil.
type MutedUser struct {
	SID        string `json:"sid"         db:"sid"`
	Name       string `json:"name"        db:"name"`
	Reason     string `json:"reason"      db:"reason"`
	MutedBy    string `json:"muted_by"    db:"muted_by"`
	MutedUntil int64  `json:"muted_until" db:"muted_until"`
	MutedAt    int64  `json:"muted_at"    db:"muted_at"`
}

// Active reports whether the mute still applies at nowMs.
func (m *MutedUser) Active(nowMs int64) bool {
	return nowMs < m.MutedUntil
}

// ChatSettingsID is the fixed primary key of the settings singleton.
const ChatSettingsID = 1

// ChatSettings is the chat-wide configuration row.
type ChatSettings struct {
	ID              int    `json:"-"                 db:"id"`
	SlowModeSeconds int    `json:"slow_mode_seconds" db:"slow_mode_seconds"`
	LockdownMode    bool   `json:"lockdown_mode"     db:"lockdown_mode"`
	MOTD            string `json:"motd"              db:"motd"`
}

// ChatSettingsPatch is a partial update; nil fields are left unchanged.
type ChatSettingsPatch struct {
	SlowModeSeconds *int    `json:"slow_mode_seconds"`
	LockdownMode    *bool   `json:"lockdown_mode"`
	MOTD            *string `json:"motd"`
}

// Apply returns a copy of s with the non-nil fields of p written over it.
func (p ChatSettingsPatch) Apply(s ChatSettings) ChatSettings {
	if p.SlowModeSeconds != nil {
		s.SlowModeSeconds = *p.SlowModeSeconds
	}
	if p.LockdownMode != nil {
		s.LockdownMode = *p.LockdownMode
	}
	if p.MOTD != nil {
		s.MOTD = *p.MOTD
	}
	return s
}
