package model

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "$549,000", FormatPrice(549000))
	assert.Equal(t, "$0", FormatPrice(0))
	assert.Equal(t, "$1,250,000", FormatPrice(1250000))
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"549000", 549000, false},
		{"$549,000", 549000, false},
		{" 1,850 ", 1850, false},
		{"2.5", 2.5, false},
		{"", 0, true},
		{"$", 0, true},
		{"abc", 0, true},
		{"-5", 0, true},
		{"NaN", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrBadNumber)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseWhole_Rounds(t *testing.T) {
	got, err := ParseWhole("$549,999.50")
	require.NoError(t, err)
	assert.Equal(t, int64(550000), got)
}

func TestParseWhole_RejectsAmountsAboveMax(t *testing.T) {
	got, err := ParseWhole("$1,000,000,000,000")
	require.NoError(t, err)
	assert.Equal(t, int64(MaxAmount), got)

	for _, in := range []string{"1e30", "1e300", "1000000000001"} {
		_, err := ParseWhole(in)
		assert.ErrorIs(t, err, ErrTooLarge, in)
	}

	_, err = ParseWhole("lots")
	assert.ErrorIs(t, err, ErrBadNumber)
}

func TestListingJSON_IncludesFormattedFields(t *testing.T) {
	l := Listing{ID: "l1", Price: 549000, Sqft: 1850, Status: StatusActive}

	b, err := json.Marshal(l)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, "$549,000", got["priceFormatted"])
	assert.Equal(t, "1,850", got["sqftFormatted"])
	assert.Equal(t, float64(549000), got["price"])
	assert.Equal(t, "active", got["status"])
}

func TestUserJSON_NeverIncludesPasswordHash(t *testing.T) {
	u := User{ID: "u1", Email: "a@b.c", PasswordHash: "$2a$10$secret", Role: RoleAgent}

	b, err := json.Marshal(u)
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(b), "secret"), "hash leaked: %s", b)
	assert.False(t, strings.Contains(strings.ToLower(string(b)), "password"), "password field leaked: %s", b)
}

func TestSavedListingEntryJSON_NestsListing(t *testing.T) {
	e := SavedListingEntry{SavedID: "s1", Listing: Listing{ID: "l1", Price: 100}}

	b, err := json.Marshal(e)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, "s1", got["savedId"])
	nested, ok := got["listing"].(map[string]any)
	require.True(t, ok, "listing not nested: %s", b)
	assert.Equal(t, "$100", nested["priceFormatted"])
}

func TestRoleAndPropertyTypeValid(t *testing.T) {
	for _, r := range Roles {
		assert.True(t, r.Valid(), r)
	}
	assert.False(t, Role("admin").Valid())
	assert.True(t, PropertyCondo.Valid())
	assert.False(t, PropertyType("castle").Valid())
}

func TestCommission(t *testing.T) {
	assert.Equal(t, 13725.0, Commission(549000, 2.5))
	assert.Equal(t, 0.0, Commission(549000, 0))
}
