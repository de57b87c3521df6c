package service

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/listings-portal/internal/apperror"
	"github.com/sakif/listings-portal/internal/model"
)

func newTestUserService(f *listingFixture) *UserService {
	return NewUserService(f.db.Users(), f.db.Listings(), f.db.Saved(), f.db.Activity(), discardLogger())
}

// =========================================================================
// PROFILE
// =========================================================================

func TestUpdateProfile(t *testing.T) {
	f := newListingFixture(t)
	svc := newTestUserService(f)
	ctx := context.Background()

	first := "  Bea "
	u, err := svc.UpdateProfile(ctx, f.buyer, ProfileUpdate{FirstName: &first})
	require.NoError(t, err)
	assert.Equal(t, "Bea", u.FirstName)
	assert.Equal(t, f.buyer.Email, u.Email)

	long := strings.Repeat("x", 101)
	_, err = svc.UpdateProfile(ctx, f.buyer, ProfileUpdate{LastName: &long})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = svc.UpdateProfile(ctx, nil, ProfileUpdate{})
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}

// =========================================================================
// SAVED LISTINGS
// =========================================================================

func TestSaveListing(t *testing.T) {
	f := newListingFixture(t)
	svc := newTestUserService(f)
	ctx := context.Background()
	l := f.create(t)

	saved, err := svc.SaveListing(ctx, f.buyer, l.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)

	_, err = svc.SaveListing(ctx, f.buyer, l.ID)
	assert.ErrorIs(t, err, apperror.ErrConflict)

	entries, err := svc.ListSavedListings(ctx, f.buyer)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, saved.ID, entries[0].SavedID)
	assert.Equal(t, l.Address, entries[0].Listing.Address)

	acts, err := svc.ListActivity(ctx, f.buyer, 0)
	require.NoError(t, err)
	require.Len(t, acts, 1)
	assert.Equal(t, model.ActivityListingSaved, acts[0].Type)
	assert.Equal(t, "Saved listing: "+l.Address, acts[0].Description)
}

func TestSaveListing_Errors(t *testing.T) {
	f := newListingFixture(t)
	svc := newTestUserService(f)
	ctx := context.Background()

	_, err := svc.SaveListing(ctx, f.buyer, " ")
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = svc.SaveListing(ctx, f.buyer, "missing")
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = svc.SaveListing(ctx, nil, "x")
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)

	entries, err := svc.ListSavedListings(ctx, f.buyer)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// =========================================================================
// ACTIVITY
// =========================================================================

func TestListActivity_Limit(t *testing.T) {
	f := newListingFixture(t)
	svc := newTestUserService(f)
	ctx := context.Background()

	for i := 0; i < MaxActivityLimit+5; i++ {
		require.NoError(t, f.db.Activity().Record(ctx, &model.Activity{
			UserID:      f.buyer.UserID,
			Type:        model.ActivityLogin,
			Description: fmt.Sprintf("login %d", i),
		}))
	}

	tests := []struct {
		limit int
		want  int
	}{
		{0, DefaultActivityLimit},
		{-3, DefaultActivityLimit},
		{3, 3},
		{MaxActivityLimit + 50, MaxActivityLimit},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.limit), func(t *testing.T) {
			acts, err := svc.ListActivity(ctx, f.buyer, tt.limit)
			require.NoError(t, err)
			assert.Len(t, acts, tt.want)
		})
	}

	other, err := svc.ListActivity(ctx, f.other, 0)
	require.NoError(t, err)
	assert.Empty(t, other, "activity is scoped to its owner")
}

// =========================================================================
// ADMINISTRATION
// =========================================================================

func TestListAgents(t *testing.T) {
	f := newListingFixture(t)
	svc := newTestUserService(f)

	agents, err := svc.ListAgents(context.Background())
	require.NoError(t, err)

	emails := make([]string, len(agents))
	for i, u := range agents {
		emails[i] = u.Email
	}
	assert.ElementsMatch(t, []string{"owner@example.com", "other@example.com", "boss@example.com"}, emails)

	all, err := svc.ListUsers(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestUpdateUserRole(t *testing.T) {
	f := newListingFixture(t)
	svc := newTestUserService(f)
	ctx := context.Background()

	u, err := svc.UpdateUserRole(ctx, f.manager, f.buyer.UserID, "agent")
	require.NoError(t, err)
	assert.Equal(t, model.RoleAgent, u.Role)

	_, err = svc.UpdateUserRole(ctx, f.manager, f.buyer.UserID, "admin")
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = svc.UpdateUserRole(ctx, f.manager, "ghost", "agent")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}
