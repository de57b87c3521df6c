// Package repository declares the storage interfaces the services depend on.
// internal/repository/sqlite is the only implementation; service tests
// substitute hand-written fakes.
package repository

import (
	"context"

	"github.com/sakif/listings-portal/internal/model"
)

// ListingFilter narrows List results. Nil and empty fields are ignored.
type ListingFilter struct {
	MinPrice     *float64
	MaxPrice     *float64
	MinBeds      *int
	MinBaths     *float64
	PropertyType model.PropertyType
	Status       model.ListingStatus // exact match
	NotStatus    model.ListingStatus // exclude
}

type UserRepository interface {
	// Create inserts u, assigning its ID and CreatedAt. A duplicate email
	// returns apperror.ErrConflict.
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	// GetByEmail looks up a user by (lower-cased) email, password hash included.
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	List(ctx context.Context) ([]model.User, error)
	ListByRoles(ctx context.Context, roles ...model.Role) ([]model.User, error)
	UpdateProfile(ctx context.Context, id string, firstName, lastName *string) (*model.User, error)
	UpdateRole(ctx context.Context, id string, role model.Role) (*model.User, error)
}

type ListingRepository interface {
	// CreateWithImages inserts the listing and its images in one
	// transaction. The first image becomes primary. Any failure leaves no
	// rows behind.
	CreateWithImages(ctx context.Context, l *model.Listing, images []model.ListingImage) error
	GetByID(ctx context.Context, id string) (*model.Listing, error)
	List(ctx context.Context, f ListingFilter) ([]model.Listing, error)
	Update(ctx context.Context, id string, u model.ListingUpdate) (*model.Listing, error)
	SetStatus(ctx context.Context, id string, status model.ListingStatus) (*model.Listing, error)
	Delete(ctx context.Context, id string) error
	// Close records the sale and moves the listing to StatusClosed atomically.
	Close(ctx context.Context, c *model.Closing) error
	GetClosing(ctx context.Context, listingID string) (*model.Closing, error)
}

// ImageRepository keeps the one-primary-per-listing invariant on every
// mutation.
type ImageRepository interface {
	// ListImages returns metadata only (no Data), ordered by position.
	ListImages(ctx context.Context, listingID string) ([]model.ListingImage, error)
	GetImage(ctx context.Context, listingID, imageID string) (*model.ListingImage, error)
	PrimaryImage(ctx context.Context, listingID string) (*model.ListingImage, error)
	// AddImage appends img, enforcing max. It becomes primary when it is
	// the listing's first image.
	AddImage(ctx context.Context, img *model.ListingImage, max int) error
	SetPrimary(ctx context.Context, listingID, imageID string) error
	// DeleteImage refuses to remove a listing's last image and promotes the
	// lowest-position survivor when the primary goes.
	DeleteImage(ctx context.Context, listingID, imageID string) error
}

type SavedListingRepository interface {
	// Save inserts the bookmark and the activity row in one transaction.
	// A duplicate bookmark returns apperror.ErrConflict.
	Save(ctx context.Context, s *model.SavedListing, a *model.Activity) error
	ListByUser(ctx context.Context, userID string) ([]model.SavedListingEntry, error)
}

type ActivityRepository interface {
	Record(ctx context.Context, a *model.Activity) error
	ListByUser(ctx context.Context, userID string, limit int) ([]model.Activity, error)
}
