package versions

import "time"

// Record is an immutable snapshot of one row at one point in time. Only the
// Active flag changes after the record has been stored.
type Record struct {
	ID          int64          `json:"id"`
	Table       string         `json:"table"`
	RecordID    int64          `json:"record_id"`
	Version     int            `json:"version"`
	CreatedAt   time.Time      `json:"created_at"`
	Username    string         `json:"username"`
	UserID      int64          `json:"user_id"`
	Description string         `json:"description"`
	EditURL     string         `json:"edit_url,omitempty"`
	Active      bool           `json:"active"`
	Payload     map[string]any `json:"payload,omitempty"`
}

// Summary describes a version for listings.
type Summary struct {
	Table       string    `json:"table"`
	ShortTable  string    `json:"short_table,omitempty"`
	RecordID    int64     `json:"record_id"`
	Version     int       `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	Date        string    `json:"date"`
	Username    string    `json:"username"`
	UserID      int64     `json:"user_id"`
	Description string    `json:"description"`
	EditURL     string    `json:"edit_url,omitempty"`
	Active      bool      `json:"active"`
	From        int       `json:"from,omitempty"`
	To          int       `json:"to,omitempty"`
	Deleted     bool      `json:"deleted"`
}

// Page is one page of the audit listing.
type Page struct {
	Items    []Summary `json:"items"`
	Total    int       `json:"total"`
	Page     int       `json:"page"`
	PageSize int       `json:"page_size"`
	LastPage int       `json:"last_page"`
}

// Comparison is the result of comparing two versions of a record.
type Comparison struct {
	From     int       `json:"from"`
	To       int       `json:"to"`
	Versions []Summary `json:"versions"`
	Content  string    `json:"content"`
}

// CompareInput carries the requested version numbers. Zero means not given.
// Form values take precedence over query values; numbers that do not exist
// in the group are ignored.
type CompareInput struct {
	FormFrom  int
	FormTo    int
	QueryFrom int
	QueryTo   int
}

// AuditFilter restricts the audit listing at the repository level.
type AuditFilter struct {
	// UserID limits the listing to versions authored by this user.
	// Nil lists the versions of all users.
	UserID *int64
}
