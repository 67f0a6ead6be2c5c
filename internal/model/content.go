package model

// Quote is a saved quotation shown on the home page.
type Quote struct {
	ID        string `json:"id"         db:"id"`
	Quote     string `json:"quote"      db:"quote"`
	Author    string `json:"author"     db:"author"`
	DateAdded string `json:"date_added" db:"date_added"` // YYYY-MM-DD
	CreatedAt int64  `json:"created_at" db:"created_at"`
}

// Suggestion is a visitor's note left through the suggestion box.
type Suggestion struct {
	ID         string `json:"id"         db:"id"`
	Name       string `json:"name"       db:"name"`
	Suggestion string `json:"suggestion" db:"suggestion"`
	Timestamp  string `json:"timestamp"  db:"timestamp"` // RFC 3339
	CreatedAt  int64  `json:"created_at" db:"created_at"`
}

// DevLogPost is a dated development diary entry.
type DevLogPost struct {
	ID        string `json:"id"         db:"id"`
	Content   string `json:"content"    db:"content"`
	Date      string `json:"date"       db:"date"` // "January 2, 2006"
	Hour      string `json:"hour"       db:"hour"` // "3:04 PM"
	Timestamp int64  `json:"timestamp"  db:"timestamp"`
	CreatedAt int64  `json:"created_at" db:"created_at"`
}

// ForumPost is a guestbook-style public message.
type ForumPost struct {
	ID        string `json:"id"         db:"id"`
	Message   string `json:"message"    db:"message"`
	Author    string `json:"author"     db:"author"`
	Timestamp string `json:"timestamp"  db:"timestamp"` // RFC 3339, millisecond precision
	Date      string `json:"date"       db:"date"`
	Time      string `json:"time"       db:"time"`
	CreatedAt int64  `json:"created_at" db:"created_at"`
}

// Track is one entry of the basement music player.
type Track struct {
	ID        string `json:"id"         db:"id"`
	Name      string `json:"name"       db:"name"`
	Src       string `json:"src"        db:"src"`
	Type      string `json:"type"       db:"type"`
	CreatedAt int64  `json:"created_at" db:"created_at"`
}
