package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/xid"

	"github.com/sakif/listings-portal/internal/apperror"
	"github.com/sakif/listings-portal/internal/model"
	"github.com/sakif/listings-portal/internal/repository"
)

var _ repository.ImageRepository = (*ImageStore)(nil)

// ImageStore is the listing_images table.
//
// PRIMARY IMAGE INVARIANT:
// A listing with at least one image has exactly one primary image. The
// partial unique index idx_listing_images_one_primary rules out two; the
// transactions below rule out zero.
type ImageStore struct{ db *DB }

// Images returns the image repository.
func (db *DB) Images() *ImageStore { return &ImageStore{db: db} }

// metadata only; length(data) avoids loading the blob
const imageMetaColumns = `id, listing_id, mime_type, is_primary, position, length(data) AS size, created_at`

func insertImage(ctx context.Context, tx *sqlx.Tx, img *model.ListingImage) error {
	img.ID = xid.New().String()
	img.CreatedAt = time.Now().UTC()
	img.Size = int64(len(img.Data))

	_, err := tx.ExecContext(ctx,
		`INSERT INTO listing_images (id, listing_id, data, mime_type, is_primary, position, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		img.ID, img.ListingID, img.Data, img.MimeType, img.IsPrimary, img.Position, img.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting image for listing %s: %w", img.ListingID, err)
	}
	return nil
}

// ListImages returns image metadata ordered by position.
func (s *ImageStore) ListImages(ctx context.Context, listingID string) ([]model.ListingImage, error) {
	images := []model.ListingImage{}
	err := s.db.conn.SelectContext(ctx, &images,
		`SELECT `+imageMetaColumns+` FROM listing_images WHERE listing_id = ? ORDER BY position, created_at`,
		listingID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing images of %s: %w", listingID, err)
	}
	return images, nil
}

// GetImage returns one image including its binary data.
func (s *ImageStore) GetImage(ctx context.Context, listingID, imageID string) (*model.ListingImage, error) {
	return s.getWithData(ctx, `listing_id = ? AND id = ?`, imageID, listingID, imageID)
}

// PrimaryImage returns the primary image of a listing including its data.
func (s *ImageStore) PrimaryImage(ctx context.Context, listingID string) (*model.ListingImage, error) {
	return s.getWithData(ctx, `listing_id = ? AND is_primary = 1`, listingID, listingID)
}

func (s *ImageStore) getWithData(ctx context.Context, where, notFoundID string, args ...any) (*model.ListingImage, error) {
	var img model.ListingImage
	err := s.db.conn.GetContext(ctx, &img,
		`SELECT id, listing_id, data, mime_type, is_primary, position, length(data) AS size, created_at
		 FROM listing_images WHERE `+where, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("image", notFoundID)
		}
		return nil, fmt.Errorf("sqlite: getting image %s: %w", notFoundID, err)
	}
	return &img, nil
}

// AddImage appends an image at the next position.
//
// The count check and the insert share one transaction so two concurrent
// uploads cannot both squeeze under max.
func (s *ImageStore) AddImage(ctx context.Context, img *model.ListingImage, max int) error {
	return s.db.withTx(ctx, func(tx *sqlx.Tx) error {
		var stats struct {
			Count   int `db:"n"`
			NextPos int `db:"next_pos"`
		}
		err := tx.GetContext(ctx, &stats,
			`SELECT COUNT(*) AS n, COALESCE(MAX(position) + 1, 0) AS next_pos
			 FROM listing_images WHERE listing_id = ?`, img.ListingID)
		if err != nil {
			return fmt.Errorf("sqlite: counting images of %s: %w", img.ListingID, err)
		}
		if stats.Count >= max {
			return apperror.ValidationFailed("image", fmt.Sprintf("Maximum of %d images allowed per listing", max))
		}

		img.IsPrimary = stats.Count == 0
		img.Position = stats.NextPos
		return insertImage(ctx, tx, img)
	})
}

// SetPrimary makes imageID the listing's primary image.
//
// Clear-then-set inside one transaction: the partial unique index would
// reject the opposite order.
func (s *ImageStore) SetPrimary(ctx context.Context, listingID, imageID string) error {
	return s.db.withTx(ctx, func(tx *sqlx.Tx) error {
		var exists int
		err := tx.GetContext(ctx, &exists,
			`SELECT COUNT(*) FROM listing_images WHERE listing_id = ? AND id = ?`, listingID, imageID)
		if err != nil {
			return fmt.Errorf("sqlite: checking image %s: %w", imageID, err)
		}
		if exists == 0 {
			return apperror.NotFound("image", imageID)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE listing_images SET is_primary = 0 WHERE listing_id = ? AND is_primary = 1`, listingID); err != nil {
			return fmt.Errorf("sqlite: clearing primary of %s: %w", listingID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE listing_images SET is_primary = 1 WHERE id = ?`, imageID); err != nil {
			return fmt.Errorf("sqlite: setting primary %s: %w", imageID, err)
		}
		return nil
	})
}

// DeleteImage removes an image. The last image of a listing cannot be
// deleted; deleting the primary promotes the lowest-position survivor.
func (s *ImageStore) DeleteImage(ctx context.Context, listingID, imageID string) error {
	return s.db.withTx(ctx, func(tx *sqlx.Tx) error {
		var target struct {
			IsPrimary bool `db:"is_primary"`
		}
		err := tx.GetContext(ctx, &target,
			`SELECT is_primary FROM listing_images WHERE listing_id = ? AND id = ?`, listingID, imageID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperror.NotFound("image", imageID)
			}
			return fmt.Errorf("sqlite: getting image %s: %w", imageID, err)
		}

		var count int
		if err := tx.GetContext(ctx, &count,
			`SELECT COUNT(*) FROM listing_images WHERE listing_id = ?`, listingID); err != nil {
			return fmt.Errorf("sqlite: counting images of %s: %w", listingID, err)
		}
		if count <= 1 {
			return apperror.ValidationFailed("image", "Cannot delete the only image of a listing")
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM listing_images WHERE id = ?`, imageID); err != nil {
			return fmt.Errorf("sqlite: deleting image %s: %w", imageID, err)
		}

		if target.IsPrimary {
			_, err := tx.ExecContext(ctx,
				`UPDATE listing_images SET is_primary = 1
				 WHERE id = (SELECT id FROM listing_images WHERE listing_id = ?
				             ORDER BY position, created_at LIMIT 1)`, listingID)
			if err != nil {
				return fmt.Errorf("sqlite: promoting primary of %s: %w", listingID, err)
			}
		}
		return nil
	})
}
