package model

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// MaxAmount is the largest whole amount (price, square footage) accepted.
const MaxAmount = 1e12

var (
	// ErrBadNumber is returned when a formatted amount cannot be parsed.
	ErrBadNumber = errors.New("not a number")
	// ErrTooLarge is returned when a whole amount exceeds MaxAmount.
	ErrTooLarge = errors.New("number too large")
)

// FormatPrice renders a whole-dollar price the way listings display it: "$549,000".
func FormatPrice(p int64) string {
	return "$" + humanize.Comma(p)
}

// FormatSqft renders square footage with thousands separators: "1,850".
func FormatSqft(s int64) string {
	return humanize.Comma(s)
}

// ParseAmount accepts a plain or formatted number ("549000", "$549,000",
// " 1,850 ") and returns its numeric value. Negative values, NaN and
// infinities are rejected.
func ParseAmount(s string) (float64, error) {
	clean := strings.NewReplacer("$", "", ",", "", " ", "").Replace(strings.TrimSpace(s))
	if clean == "" {
		return 0, ErrBadNumber
	}
	v, err := strconv.ParseFloat(clean, 64)
	if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrBadNumber
	}
	return v, nil
}

// ParseWhole is ParseAmount rounded to the nearest whole unit. Values above
// MaxAmount return ErrTooLarge so the int64 conversion cannot overflow.
func ParseWhole(s string) (int64, error) {
	v, err := ParseAmount(s)
	if err != nil {
		return 0, err
	}
	v = math.Round(v)
	if v > MaxAmount {
		return 0, ErrTooLarge
	}
	return int64(v), nil
}
