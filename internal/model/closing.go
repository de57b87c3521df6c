package model

import "time"

// Closing records the sale of a listing. Creating one moves the listing to
// StatusClosed.
type Closing struct {
	ListingID              string    `json:"listingId"              db:"listing_id"`
	ClosingDate            string    `json:"closingDate"            db:"closing_date"` // YYYY-MM-DD
	SellingPrice           int64     `json:"sellingPrice"           db:"selling_price"`
	SellingAgentID         string    `json:"sellingAgentId"         db:"selling_agent_id"`
	BuyingAgentID          string    `json:"buyingAgentId"          db:"buying_agent_id"`
	SellingAgentFee        float64   `json:"sellingAgentFee"        db:"selling_agent_fee"` // percent
	BuyingAgentFee         float64   `json:"buyingAgentFee"         db:"buying_agent_fee"`  // percent
	SellingAgentCommission float64   `json:"sellingAgentCommission" db:"selling_agent_commission"`
	BuyingAgentCommission  float64   `json:"buyingAgentCommission"  db:"buying_agent_commission"`
	Notes                  string    `json:"notes"                  db:"notes"`
	ClosedBy               string    `json:"closedBy"               db:"closed_by"`
	CreatedAt              time.Time `json:"createdAt"              db:"created_at"`
}

// Commission returns the fee share of price, rounded to cents.
func Commission(price int64, feePercent float64) float64 {
	cents := float64(price) * feePercent // price * fee/100 * 100
	return float64(int64(cents+0.5)) / 100
}
