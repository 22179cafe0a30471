package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// FillRole classifies why a fill was taken.
type FillRole string

const (
	RoleEntry FillRole = "ENTRY"
	RoleDCA   FillRole = "DCA"
	RoleHedge FillRole = "HEDGE"
)

// Fill is an immutable record of one confirmed execution.
// Price and Shares reflect what was actually filled, not what was requested.
type Fill struct {
	Side   OutcomeSide     `json:"side"`
	Role   FillRole        `json:"role"`
	Price  decimal.Decimal `json:"price"`  // average fill price per share, dollars
	Shares decimal.Decimal `json:"shares"` // shares actually received
	Cost   decimal.Decimal `json:"cost"`   // notional actually spent (USD)
	Time   time.Time       `json:"time"`
}

// FillConfirmation is what the execution sink reports back after an order.
type FillConfirmation struct {
	Cost     decimal.Decimal // USD actually spent
	Shares   decimal.Decimal // shares actually received
	AvgPrice decimal.Decimal // Cost / Shares
	Time     time.Time
}
