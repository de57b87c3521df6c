package model

import "time"

// ActivityType classifies an entry in a user's activity log.
type ActivityType string

const (
	ActivityLogin          ActivityType = "login"
	ActivityListingCreated ActivityType = "listing_created"
	ActivityListingSaved   ActivityType = "listing_saved"
	ActivityListingClosed  ActivityType = "listing_closed"
)

// Activity is an append-only audit entry.
type Activity struct {
	ID          string       `json:"id"          db:"id"`
	UserID      string       `json:"userId"      db:"user_id"`
	Type        ActivityType `json:"type"        db:"activity_type"`
	Description string       `json:"description" db:"description"`
	CreatedAt   time.Time    `json:"createdAt"   db:"created_at"`
}
