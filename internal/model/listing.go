package model

import (
	"encoding/json"
	"time"
)

// ListingStatus is the lifecycle state of a listing.
//
//	active ⇄ inactive   (SetStatus)
//	active|inactive → closed   (Close; terminal)
type ListingStatus string

const (
	StatusActive   ListingStatus = "active"
	StatusInactive ListingStatus = "inactive"
	StatusClosed   ListingStatus = "closed"
)

// PropertyType is the kind of property being sold.
type PropertyType string

const (
	PropertyHouse     PropertyType = "house"
	PropertyCondo     PropertyType = "condo"
	PropertyTownhouse PropertyType = "townhouse"
	PropertyApartment PropertyType = "apartment"
)

// Valid reports whether p is one of the known property types.
func (p PropertyType) Valid() bool {
	switch p {
	case PropertyHouse, PropertyCondo, PropertyTownhouse, PropertyApartment:
		return true
	}
	return false
}

// MaxImagesPerListing caps how many photos a listing can carry.
const MaxImagesPerListing = 5

// Listing is a property-for-sale record.
//
// Price and Sqft are stored as whole numbers; the formatted strings the
// front end displays ("$549,000", "1,850") are added when the listing is
// marshalled to JSON.
type Listing struct {
	ID           string        `json:"id"           db:"id"`
	Title        string        `json:"title"        db:"title"`
	Price        int64         `json:"price"        db:"price"`
	Address      string        `json:"address"      db:"address"`
	Beds         int           `json:"beds"         db:"beds"`
	Baths        float64       `json:"baths"        db:"baths"`
	Sqft         int64         `json:"sqft"         db:"sqft"`
	PropertyType PropertyType  `json:"propertyType" db:"property_type"`
	Description  string        `json:"description"  db:"description"`
	Status       ListingStatus `json:"status"       db:"status"`
	UserID       string        `json:"userId"       db:"user_id"`
	CreatedAt    time.Time     `json:"createdAt"    db:"created_at"`
	UpdatedAt    time.Time     `json:"updatedAt"    db:"updated_at"`
}

// MarshalJSON adds the presentation fields priceFormatted and sqftFormatted.
func (l Listing) MarshalJSON() ([]byte, error) {
	type plain Listing // drops the method set, avoiding recursion
	return json.Marshal(struct {
		plain
		PriceFormatted string `json:"priceFormatted"`
		SqftFormatted  string `json:"sqftFormatted"`
	}{
		plain:          plain(l),
		PriceFormatted: FormatPrice(l.Price),
		SqftFormatted:  FormatSqft(l.Sqft),
	})
}

// ListingUpdate is a partial update. Nil fields keep their stored value.
type ListingUpdate struct {
	Title        *string
	Price        *int64
	Address      *string
	Beds         *int
	Baths        *float64
	Sqft         *int64
	PropertyType *PropertyType
	Description  *string
}

// SavedListing is a user's bookmark on a listing.
type SavedListing struct {
	ID        string    `json:"id"        db:"id"`
	UserID    string    `json:"userId"    db:"user_id"`
	ListingID string    `json:"listingId" db:"listing_id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// SavedListingEntry is a bookmarked listing as shown on the dashboard.
type SavedListingEntry struct {
	SavedID string    `json:"savedId" db:"saved_id"`
	SavedAt time.Time `json:"savedAt" db:"saved_at"`
	Listing `json:"listing"`
}

// MarshalJSON keeps the nested listing under "listing" instead of letting
// the embedded Listing.MarshalJSON take over the whole object.
func (e SavedListingEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		SavedID string    `json:"savedId"`
		SavedAt time.Time `json:"savedAt"`
		Listing Listing   `json:"listing"`
	}{e.SavedID, e.SavedAt, e.Listing})
}
