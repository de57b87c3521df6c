package model

import "time"

// ListingImage is one photo of a listing.
//
// At most one image per listing has IsPrimary set, and a listing with any
// images always has exactly one primary. Data is only loaded when the
// binary itself is requested; metadata listings leave it nil.
type ListingImage struct {
	ID        string    `json:"id"        db:"id"`
	ListingID string    `json:"listingId" db:"listing_id"`
	Data      []byte    `json:"-"         db:"data"`
	MimeType  string    `json:"mimeType"  db:"mime_type"`
	IsPrimary bool      `json:"isPrimary" db:"is_primary"`
	Position  int       `json:"position"  db:"position"`
	Size      int64     `json:"size"      db:"size"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
