package model

// PresenceRecord is a heartbeat row: who is in the basement right now.
// A stale record stops showing up once it falls outside the presence window;
// the janitor deletes it after 24 hours.
type PresenceRecord struct {
	SID      string `json:"sid"       db:"sid"`
	Name     string `json:"name"      db:"name"`
	Status   string `json:"status"    db:"status"`
	LastSeen int64  `json:"last_seen" db:"last_seen"`
}
