package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceLevel is a single price+size entry on one side of an order book.
type PriceLevel struct {
	Price decimal.Decimal `json:"price"`
	Size  decimal.Decimal `json:"size"`
}

// OrderBook is one token's book snapshot. Asks are ordered price ascending,
// bids price descending.
type OrderBook struct {
	TokenID   string       `json:"token_id"`
	Asks      []PriceLevel `json:"asks"`
	Bids      []PriceLevel `json:"bids"`
	Timestamp time.Time    `json:"timestamp"`
}

// MarketInfo is the metadata of one recurring market window as reported by
// the metadata service.
type MarketInfo struct {
	Slug        string
	ConditionID string
	StartDate   time.Time
	EndDate     time.Time
	UpTokenID   string
	DownTokenID string
}

// Quotes carries the per-side signal VWAPs computed for one poll cycle.
type Quotes struct {
	Up   decimal.Decimal
	Down decimal.Decimal
}

// For returns the VWAP for the requested side.
func (q Quotes) For(side OutcomeSide) decimal.Decimal {
	if side == SideUp {
		return q.Up
	}
	return q.Down
}
