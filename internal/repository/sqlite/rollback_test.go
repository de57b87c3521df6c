package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/listings-portal/internal/model"
)

// A failing image INSERT must roll the whole create back: the listing row
// is never committed.
func TestCreateWithImages_ImageFailureRollsBack(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	db := newWithConn(conn, discardLogger())

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO listings").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO listing_images").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO listing_images").WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	l := &model.Listing{Price: 1, Address: "a", PropertyType: model.PropertyHouse, UserID: "u"}
	images := []model.ListingImage{
		{Data: []byte("a"), MimeType: "image/png"},
		{Data: []byte("b"), MimeType: "image/png"},
	}

	err = db.Listings().CreateWithImages(context.Background(), l, images)

	assert.ErrorContains(t, err, "disk I/O error")
	assert.NoError(t, mock.ExpectationsWereMet(), "expected BEGIN, two inserts, ROLLBACK and no COMMIT")
}

func TestClose_StatusUpdateFailureRollsBack(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	db := newWithConn(conn, discardLogger())

	cols := []string{"id", "title", "price", "address", "beds", "baths", "sqft", "property_type",
		"description", "status", "user_id", "created_at", "updated_at"}

	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)SELECT .+ FROM listings WHERE id = \?`).
		WithArgs("l1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("l1", "", 100, "a", 1, 1.0, 1, "house", "", "active", "u", now, now))
	mock.ExpectExec("INSERT INTO listing_closings").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE listings SET status").WillReturnError(errors.New("database is locked"))
	mock.ExpectRollback()

	err = db.Listings().Close(context.Background(), &model.Closing{ListingID: "l1"})

	assert.ErrorContains(t, err, "database is locked")
	assert.NoError(t, mock.ExpectationsWereMet())
}
