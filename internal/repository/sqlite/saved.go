package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/xid"

	"github.com/sakif/listings-portal/internal/apperror"
	"github.com/sakif/listings-portal/internal/model"
	"github.com/sakif/listings-portal/internal/repository"
)

var (
	_ repository.SavedListingRepository = (*SavedStore)(nil)
	_ repository.ActivityRepository     = (*ActivityStore)(nil)
)

// SavedStore is the saved_listings table.
type SavedStore struct{ db *DB }

// Saved returns the bookmark repository.
func (db *DB) Saved() *SavedStore { return &SavedStore{db: db} }

// Save writes the bookmark and its activity entry together.
func (s *SavedStore) Save(ctx context.Context, sl *model.SavedListing, a *model.Activity) error {
	now := time.Now().UTC()
	sl.ID = xid.New().String()
	sl.CreatedAt = now

	return s.db.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := getListing(ctx, tx, sl.ListingID); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx,
			`INSERT INTO saved_listings (id, user_id, listing_id, created_at) VALUES (?, ?, ?, ?)`,
			sl.ID, sl.UserID, sl.ListingID, sl.CreatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return apperror.Conflict("saved listing", sl.ListingID)
			}
			return fmt.Errorf("sqlite: saving listing %s: %w", sl.ListingID, err)
		}

		if a != nil {
			return insertActivity(ctx, tx, a)
		}
		return nil
	})
}

// ListByUser returns the user's bookmarked listings, newest bookmark first.
func (s *SavedStore) ListByUser(ctx context.Context, userID string) ([]model.SavedListingEntry, error) {
	entries := []model.SavedListingEntry{}
	err := s.db.conn.SelectContext(ctx, &entries,
		`SELECT s.id AS saved_id, s.created_at AS saved_at,
		        l.id, l.title, l.price, l.address, l.beds, l.baths, l.sqft, l.property_type,
		        l.description, l.status, l.user_id, l.created_at, l.updated_at
		 FROM saved_listings s
		 JOIN listings l ON l.id = s.listing_id
		 WHERE s.user_id = ?
		 ORDER BY s.created_at DESC, s.id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing saved listings of %s: %w", userID, err)
	}
	return entries, nil
}

// ActivityStore is the user_activity table.
type ActivityStore struct{ db *DB }

// Activity returns the activity log repository.
func (db *DB) Activity() *ActivityStore { return &ActivityStore{db: db} }

// Record appends an activity entry.
func (s *ActivityStore) Record(ctx context.Context, a *model.Activity) error {
	return insertActivity(ctx, s.db.conn, a)
}

func insertActivity(ctx context.Context, e sqlx.ExecerContext, a *model.Activity) error {
	a.ID = xid.New().String()
	a.CreatedAt = time.Now().UTC()

	_, err := e.ExecContext(ctx,
		`INSERT INTO user_activity (id, user_id, activity_type, description, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.Type, a.Description, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: recording %s activity: %w", a.Type, err)
	}
	return nil
}

// ListByUser returns the newest limit entries for a user.
func (s *ActivityStore) ListByUser(ctx context.Context, userID string, limit int) ([]model.Activity, error) {
	out := []model.Activity{}
	err := s.db.conn.SelectContext(ctx, &out,
		`SELECT id, user_id, activity_type, description, created_at
		 FROM user_activity WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing activity of %s: %w", userID, err)
	}
	return out, nil
}
