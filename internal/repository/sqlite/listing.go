package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/xid"

	"github.com/sakif/listings-portal/internal/apperror"
	"github.com/sakif/listings-portal/internal/model"
	"github.com/sakif/listings-portal/internal/repository"
)

var _ repository.ListingRepository = (*ListingStore)(nil)

// ListingStore covers the listings and listing_closings tables.
type ListingStore struct{ db *DB }

// Listings returns the listing repository.
func (db *DB) Listings() *ListingStore { return &ListingStore{db: db} }

const listingColumns = `id, title, price, address, beds, baths, sqft, property_type,
	description, status, user_id, created_at, updated_at`

// CreateWithImages inserts a listing and its images atomically.
//
// TRANSACTION FLOW:
//  1. BEGIN
//  2. INSERT listing
//  3. INSERT each image (first one primary, positions 0..n-1)
//  4. COMMIT, or ROLLBACK on the first failure so no orphan listing remains
func (s *ListingStore) CreateWithImages(ctx context.Context, l *model.Listing, images []model.ListingImage) error {
	now := time.Now().UTC()
	l.ID = xid.New().String()
	l.CreatedAt = now
	l.UpdatedAt = now
	if l.Status == "" {
		l.Status = model.StatusActive
	}

	return s.db.withTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO listings (`+listingColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			l.ID, l.Title, l.Price, l.Address, l.Beds, l.Baths, l.Sqft, l.PropertyType,
			l.Description, l.Status, l.UserID, l.CreatedAt, l.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("sqlite: inserting listing: %w", err)
		}

		for i := range images {
			img := &images[i]
			img.ListingID = l.ID
			img.IsPrimary = i == 0
			img.Position = i
			if err := insertImage(ctx, tx, img); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetByID retrieves a listing.
// Returns apperror.ErrNotFound if no listing exists with that ID.
func (s *ListingStore) GetByID(ctx context.Context, id string) (*model.Listing, error) {
	return getListing(ctx, s.db.conn, id)
}

func getListing(ctx context.Context, q sqlx.QueryerContext, id string) (*model.Listing, error) {
	var l model.Listing
	err := sqlx.GetContext(ctx, q, &l, `SELECT `+listingColumns+` FROM listings WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("listing", id)
		}
		return nil, fmt.Errorf("sqlite: getting listing %s: %w", id, err)
	}
	return &l, nil
}

// List returns listings matching f, newest first.
//
// The WHERE clause is assembled from whichever filters are set; values are
// always bound as parameters, never interpolated.
func (s *ListingStore) List(ctx context.Context, f repository.ListingFilter) ([]model.Listing, error) {
	var (
		where []string
		args  []any
	)

	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.NotStatus != "" {
		where = append(where, "status <> ?")
		args = append(args, f.NotStatus)
	}
	if f.MinPrice != nil {
		where = append(where, "price >= ?")
		args = append(args, *f.MinPrice)
	}
	if f.MaxPrice != nil {
		where = append(where, "price <= ?")
		args = append(args, *f.MaxPrice)
	}
	if f.MinBeds != nil {
		where = append(where, "beds >= ?")
		args = append(args, *f.MinBeds)
	}
	if f.MinBaths != nil {
		where = append(where, "baths >= ?")
		args = append(args, *f.MinBaths)
	}
	if f.PropertyType != "" {
		where = append(where, "property_type = ?")
		args = append(args, f.PropertyType)
	}

	query := `SELECT ` + listingColumns + ` FROM listings`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`

	listings := []model.Listing{}
	if err := s.db.conn.SelectContext(ctx, &listings, query, args...); err != nil {
		return nil, fmt.Errorf("sqlite: listing listings: %w", err)
	}
	return listings, nil
}

// Update applies a partial update. Nil fields keep their stored value
// (COALESCE). updated_at is always bumped.
func (s *ListingStore) Update(ctx context.Context, id string, u model.ListingUpdate) (*model.Listing, error) {
	res, err := s.db.conn.ExecContext(ctx,
		`UPDATE listings SET
			title         = COALESCE(?, title),
			price         = COALESCE(?, price),
			address       = COALESCE(?, address),
			beds          = COALESCE(?, beds),
			baths         = COALESCE(?, baths),
			sqft          = COALESCE(?, sqft),
			property_type = COALESCE(?, property_type),
			description   = COALESCE(?, description),
			updated_at    = ?
		 WHERE id = ?`,
		u.Title, u.Price, u.Address, u.Beds, u.Baths, u.Sqft, u.PropertyType, u.Description,
		time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: updating listing %s: %w", id, err)
	}
	if err := requireAffected(res, "listing", id); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

// SetStatus changes a listing's status.
func (s *ListingStore) SetStatus(ctx context.Context, id string, status model.ListingStatus) (*model.Listing, error) {
	res, err := s.db.conn.ExecContext(ctx,
		`UPDATE listings SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: setting status of listing %s: %w", id, err)
	}
	if err := requireAffected(res, "listing", id); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

// Delete removes a listing. Images, bookmarks and the closing row go with
// it through ON DELETE CASCADE.
func (s *ListingStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.conn.ExecContext(ctx, `DELETE FROM listings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting listing %s: %w", id, err)
	}
	return requireAffected(res, "listing", id)
}

const closingColumns = `listing_id, closing_date, selling_price, selling_agent_id, buying_agent_id,
	selling_agent_fee, buying_agent_fee, selling_agent_commission, buying_agent_commission,
	notes, closed_by, created_at`

// Close inserts the closing record and marks the listing closed in one
// transaction. A listing can only be closed once.
func (s *ListingStore) Close(ctx context.Context, c *model.Closing) error {
	c.CreatedAt = time.Now().UTC()

	return s.db.withTx(ctx, func(tx *sqlx.Tx) error {
		l, err := getListing(ctx, tx, c.ListingID)
		if err != nil {
			return err
		}
		if l.Status == model.StatusClosed {
			return apperror.ValidationFailed("status", "Listing is already closed")
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO listing_closings (`+closingColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ListingID, c.ClosingDate, c.SellingPrice, c.SellingAgentID, c.BuyingAgentID,
			c.SellingAgentFee, c.BuyingAgentFee, c.SellingAgentCommission, c.BuyingAgentCommission,
			c.Notes, c.ClosedBy, c.CreatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return apperror.Conflict("closing", c.ListingID)
			}
			return fmt.Errorf("sqlite: inserting closing for %s: %w", c.ListingID, err)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE listings SET status = ?, updated_at = ? WHERE id = ?`,
			model.StatusClosed, c.CreatedAt, c.ListingID,
		)
		if err != nil {
			return fmt.Errorf("sqlite: closing listing %s: %w", c.ListingID, err)
		}
		return nil
	})
}

// GetClosing returns the sale record of a closed listing.
func (s *ListingStore) GetClosing(ctx context.Context, listingID string) (*model.Closing, error) {
	var c model.Closing
	err := s.db.conn.GetContext(ctx, &c,
		`SELECT `+closingColumns+` FROM listing_closings WHERE listing_id = ?`, listingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("closing", listingID)
		}
		return nil, fmt.Errorf("sqlite: getting closing %s: %w", listingID, err)
	}
	return &c, nil
}
