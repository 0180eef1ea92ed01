package model

import "time"

// ScanResult is the answer to a "perform scan" request.
type ScanResult struct {
	// SessionID identifies the page session that was scanned.
	SessionID string `json:"session_id"`

	// URL of the scanned page, if known.
	URL string `json:"url,omitempty"`

	// Patterns is the finalized, deduplicated pattern set.
	Patterns []Pattern `json:"patterns"`

	// Skipped is true when another scan was already in flight and the
	// current pattern set was returned unchanged.
	Skipped bool `json:"skipped,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Count is the number of patterns in the result.
func (r ScanResult) Count() int {
	return len(r.Patterns)
}

// Notification is emitted when monitoring finds patterns that were not in
// the previous snapshot.
type Notification struct {
	Type     string    `json:"type"`
	Count    int       `json:"count"`
	Patterns []Pattern `json:"patterns"`
}

// NotificationNewPatterns is the Type of monitoring notifications.
const NotificationNewPatterns = "NEW_PATTERNS_DETECTED"
