package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/sakif/listings-portal/internal/apperror"
	"github.com/sakif/listings-portal/internal/model"
	"github.com/sakif/listings-portal/internal/repository"
)

const (
	DefaultActivityLimit = 10
	MaxActivityLimit     = 100
)

// UserService covers profiles, bookmarks, the activity log and the
// manager-only user administration.
type UserService struct {
	users    repository.UserRepository
	listings repository.ListingRepository
	saved    repository.SavedListingRepository
	activity repository.ActivityRepository
	logger   *slog.Logger
}

func NewUserService(
	users repository.UserRepository,
	listings repository.ListingRepository,
	saved repository.SavedListingRepository,
	activity repository.ActivityRepository,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		users:    users,
		listings: listings,
		saved:    saved,
		activity: activity,
		logger:   logger,
	}
}

// ProfileUpdate changes display names. Nil keeps the current value.
type ProfileUpdate struct {
	FirstName *string `json:"firstName" validate:"omitempty,max=100"`
	LastName  *string `json:"lastName"  validate:"omitempty,max=100"`
}

func (s *UserService) GetProfile(ctx context.Context, id *model.Identity) (*model.User, error) {
	if id == nil {
		return nil, apperror.Unauthorized("User not authenticated")
	}
	return s.users.GetByID(ctx, id.UserID)
}

func (s *UserService) UpdateProfile(ctx context.Context, id *model.Identity, p ProfileUpdate) (*model.User, error) {
	if id == nil {
		return nil, apperror.Unauthorized("User not authenticated")
	}
	if p.FirstName != nil {
		v := strings.TrimSpace(*p.FirstName)
		p.FirstName = &v
	}
	if p.LastName != nil {
		v := strings.TrimSpace(*p.LastName)
		p.LastName = &v
	}
	if err := validateStruct(p); err != nil {
		return nil, err
	}
	return s.users.UpdateProfile(ctx, id.UserID, p.FirstName, p.LastName)
}

// SaveListing bookmarks a listing for the caller and returns the bookmark.
func (s *UserService) SaveListing(ctx context.Context, id *model.Identity, listingID string) (*model.SavedListing, error) {
	if id == nil {
		return nil, apperror.Unauthorized("User not authenticated")
	}
	listingID = strings.TrimSpace(listingID)
	if listingID == "" {
		return nil, apperror.ValidationFailed("listingId", "listingId is required")
	}

	l, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		return nil, err
	}

	sl := &model.SavedListing{UserID: id.UserID, ListingID: listingID}
	act := &model.Activity{
		UserID:      id.UserID,
		Type:        model.ActivityListingSaved,
		Description: "Saved listing: " + l.Address,
	}
	if err := s.saved.Save(ctx, sl, act); err != nil {
		return nil, err
	}

	s.logger.Info("listing saved", slog.String("userID", id.UserID), slog.String("listingID", listingID))
	return sl, nil
}

func (s *UserService) ListSavedListings(ctx context.Context, id *model.Identity) ([]model.SavedListingEntry, error) {
	if id == nil {
		return nil, apperror.Unauthorized("User not authenticated")
	}
	return s.saved.ListByUser(ctx, id.UserID)
}

// ListActivity returns the caller's newest activity. limit <= 0 means the
// default; larger values are capped.
func (s *UserService) ListActivity(ctx context.Context, id *model.Identity, limit int) ([]model.Activity, error) {
	if id == nil {
		return nil, apperror.Unauthorized("User not authenticated")
	}
	if limit <= 0 {
		limit = DefaultActivityLimit
	}
	if limit > MaxActivityLimit {
		limit = MaxActivityLimit
	}
	return s.activity.ListByUser(ctx, id.UserID, limit)
}

// ListUsers returns every account. The route is manager-only.
func (s *UserService) ListUsers(ctx context.Context) ([]model.User, error) {
	return s.users.List(ctx)
}

// ListAgents returns the accounts that can be named on a closing.
func (s *UserService) ListAgents(ctx context.Context) ([]model.User, error) {
	return s.users.ListByRoles(ctx, model.RoleAgent, model.RoleManager)
}

// UpdateUserRole changes a user's role. The route is manager-only.
func (s *UserService) UpdateUserRole(ctx context.Context, by *model.Identity, userID, role string) (*model.User, error) {
	r := model.Role(strings.TrimSpace(role))
	if !r.Valid() {
		return nil, apperror.ValidationFailed("role", "Invalid role")
	}

	u, err := s.users.UpdateRole(ctx, userID, r)
	if err != nil {
		return nil, err
	}

	actor := ""
	if by != nil {
		actor = by.UserID
	}
	s.logger.Info("user role updated",
		slog.String("userID", userID),
		slog.String("role", string(r)),
		slog.String("by", actor),
	)
	return u, nil
}

