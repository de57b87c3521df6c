package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sakif/listings-portal/internal/apperror"
	"github.com/sakif/listings-portal/internal/model"
	"github.com/sakif/listings-portal/internal/repository"
)

func ptr[T any](v T) *T { return &v }

// =========================================================================
// CREATE / GET
// =========================================================================

func TestListingCreateWithImages(t *testing.T) {
	db := newTestDB(t)
	owner := createTestUser(t, db, "agent@example.com", model.RoleAgent)

	l := createTestListing(t, db, owner.ID, 549000, 3)

	if l.ID == "" || l.Status != model.StatusActive {
		t.Fatalf("CreateWithImages() listing = %+v", l)
	}

	images, err := db.Images().ListImages(context.Background(), l.ID)
	if err != nil {
		t.Fatalf("ListImages() error = %v", err)
	}
	if len(images) != 3 {
		t.Fatalf("got %d images, want 3", len(images))
	}
	for i, img := range images {
		if img.Position != i {
			t.Errorf("image %d position = %d", i, img.Position)
		}
		if img.IsPrimary != (i == 0) {
			t.Errorf("image %d IsPrimary = %v", i, img.IsPrimary)
		}
		if img.Data != nil {
			t.Errorf("ListImages() loaded data for image %d", i)
		}
		if img.Size != 4 {
			t.Errorf("image %d size = %d, want 4", i, img.Size)
		}
	}
}

func TestListingGetByID(t *testing.T) {
	db := newTestDB(t)
	owner := createTestUser(t, db, "agent@example.com", model.RoleAgent)
	created := createTestListing(t, db, owner.ID, 549000, 0)

	got, err := db.Listings().GetByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Price != 549000 || got.Baths != 2 || got.PropertyType != model.PropertyHouse || got.UserID != owner.ID {
		t.Errorf("GetByID() = %+v", got)
	}

	_, err = db.Listings().GetByID(context.Background(), "missing")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByID(missing) error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// LIST / FILTER
// =========================================================================

func TestListingList_Filters(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "agent@example.com", model.RoleAgent)

	cheap := createTestListing(t, db, owner.ID, 200000, 0)
	mid := createTestListing(t, db, owner.ID, 549000, 0)
	pricey := createTestListing(t, db, owner.ID, 1200000, 0)

	condo := model.PropertyCondo
	if _, err := db.Listings().Update(ctx, mid.ID, model.ListingUpdate{PropertyType: &condo, Beds: ptr(1)}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if _, err := db.Listings().SetStatus(ctx, pricey.ID, model.StatusInactive); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}

	tests := []struct {
		name   string
		filter repository.ListingFilter
		want   []string
	}{
		{"active newest first", repository.ListingFilter{Status: model.StatusActive}, []string{mid.ID, cheap.ID}},
		{"price range inclusive", repository.ListingFilter{MinPrice: ptr(200000.0), MaxPrice: ptr(549000.0)}, []string{mid.ID, cheap.ID}},
		{"min beds", repository.ListingFilter{MinBeds: ptr(2)}, []string{pricey.ID, cheap.ID}},
		{"property type", repository.ListingFilter{PropertyType: model.PropertyCondo}, []string{mid.ID}},
		{"not active", repository.ListingFilter{NotStatus: model.StatusActive}, []string{pricey.ID}},
		{"min baths excludes all", repository.ListingFilter{MinBaths: ptr(2.5)}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.Listings().List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("List() returned %d listings, want %d", len(got), len(tt.want))
			}
			for i, l := range got {
				if l.ID != tt.want[i] {
					t.Errorf("List()[%d] = %s, want %s", i, l.ID, tt.want[i])
				}
			}
		})
	}
}

// =========================================================================
// UPDATE / STATUS / DELETE
// =========================================================================

func TestListingUpdate_Partial(t *testing.T) {
	db := newTestDB(t)
	owner := createTestUser(t, db, "agent@example.com", model.RoleAgent)
	l := createTestListing(t, db, owner.ID, 549000, 0)

	time.Sleep(2 * time.Millisecond)
	got, err := db.Listings().Update(context.Background(), l.ID, model.ListingUpdate{Price: ptr(int64(525000))})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if got.Price != 525000 {
		t.Errorf("Price = %d, want 525000", got.Price)
	}
	if got.Address != l.Address || got.Beds != l.Beds {
		t.Errorf("Update() clobbered unchanged fields: %+v", got)
	}
	if !got.UpdatedAt.After(l.UpdatedAt) {
		t.Errorf("UpdatedAt not bumped: %v vs %v", got.UpdatedAt, l.UpdatedAt)
	}

	_, err = db.Listings().Update(context.Background(), "missing", model.ListingUpdate{})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Update(missing) error = %v, want ErrNotFound", err)
	}
}

func TestListingDelete_Cascades(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "agent@example.com", model.RoleAgent)
	buyer := createTestUser(t, db, "buyer@example.com", model.RoleDefault)
	l := createTestListing(t, db, owner.ID, 549000, 2)

	if err := db.Saved().Save(ctx, &model.SavedListing{UserID: buyer.ID, ListingID: l.ID}, nil); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if err := db.Listings().Delete(ctx, l.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	images, _ := db.Images().ListImages(ctx, l.ID)
	if len(images) != 0 {
		t.Errorf("%d images survived listing delete", len(images))
	}
	saved, _ := db.Saved().ListByUser(ctx, buyer.ID)
	if len(saved) != 0 {
		t.Errorf("%d bookmarks survived listing delete", len(saved))
	}

	if err := db.Listings().Delete(ctx, l.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// CLOSE
// =========================================================================

func TestListingClose(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "agent@example.com", model.RoleAgent)
	other := createTestUser(t, db, "other@example.com", model.RoleAgent)
	l := createTestListing(t, db, owner.ID, 549000, 1)

	c := &model.Closing{
		ListingID: l.ID, ClosingDate: "2026-03-01", SellingPrice: 540000,
		SellingAgentID: owner.ID, BuyingAgentID: other.ID,
		SellingAgentFee: 2.5, BuyingAgentFee: 2.5,
		SellingAgentCommission: 13500, BuyingAgentCommission: 13500,
		ClosedBy: owner.ID,
	}
	if err := db.Listings().Close(ctx, c); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	got, _ := db.Listings().GetByID(ctx, l.ID)
	if got.Status != model.StatusClosed {
		t.Errorf("status = %q, want closed", got.Status)
	}

	closing, err := db.Listings().GetClosing(ctx, l.ID)
	if err != nil {
		t.Fatalf("GetClosing() error = %v", err)
	}
	if closing.SellingPrice != 540000 || closing.BuyingAgentID != other.ID || closing.ClosingDate != "2026-03-01" {
		t.Errorf("GetClosing() = %+v", closing)
	}

	err = db.Listings().Close(ctx, c)
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("second Close() error = %v, want ErrValidation", err)
	}
}

func TestListingClose_UnknownAgentRollsBack(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "agent@example.com", model.RoleAgent)
	l := createTestListing(t, db, owner.ID, 549000, 1)

	err := db.Listings().Close(ctx, &model.Closing{
		ListingID: l.ID, ClosingDate: "2026-03-01", SellingPrice: 1,
		SellingAgentID: owner.ID, BuyingAgentID: "ghost", ClosedBy: owner.ID,
	})
	if err == nil {
		t.Fatal("Close() with unknown buying agent should fail the foreign key")
	}

	got, _ := db.Listings().GetByID(ctx, l.ID)
	if got.Status != model.StatusActive {
		t.Errorf("status = %q after failed close, want active", got.Status)
	}
	if _, err := db.Listings().GetClosing(ctx, l.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetClosing() error = %v, want ErrNotFound", err)
	}
}
