package model

// SingletonID is the fixed key of the site-stats and admin-settings rows.
const SingletonID = 1

// SiteStats is the visit counter singleton. Both times are Unix milliseconds,
// which is what the front end sends and expects back.
type SiteStats struct {
	VisitorCount int64 `json:"visitorCount" db:"visitor_count"`
	FirstVisit   int64 `json:"firstVisit"   db:"first_visit"`
	LastUpdated  int64 `json:"lastUpdated"  db:"last_updated"`
}

// Defaults for the admin settings singleton when the row has never been written.
const (
	DefaultImagePath = "images/avatar.JPG"
	DefaultImageAlt  = "Untitled"
)

// AdminSettings holds the editable bits of the home page.
type AdminSettings struct {
	MoodDescription string `json:"mood_description" db:"mood_description"`
	HomeThread      string `json:"home_thread"      db:"home_thread"`
	ImagePath       string `json:"image_path"       db:"image_path"`
	ImageAlt        string `json:"image_alt"        db:"image_alt"`
}

// DefaultAdminSettings is what GET returns before anything was saved.
func DefaultAdminSettings() AdminSettings {
	return AdminSettings{
		ImagePath: DefaultImagePath,
		ImageAlt:  DefaultImageAlt,
	}
}
