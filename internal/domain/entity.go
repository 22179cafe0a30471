package domain

import (
	"time"
)

// FillRecord is the journal row for one confirmed fill.
type FillRecord struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	MarketID string    `gorm:"index" json:"market_id"`
	Side     string    `json:"side"`
	Role     string    `gorm:"index" json:"role"`
	Price    string    `json:"price"`  // decimal string, not float
	Shares   string    `json:"shares"`
	Cost     string    `json:"cost"`
	FilledAt time.Time `json:"filled_at"`
	CreatedAt time.Time `json:"created_at"`
}

// WindowRecord is the journal row for one archived market window.
type WindowRecord struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	MarketID    string    `gorm:"index" json:"market_id"`
	Slug        string    `gorm:"index" json:"slug"`
	MainSide    string    `json:"main_side"`
	FinalStatus string    `json:"final_status"`
	TotalStake  string    `json:"total_stake"`
	AvgEntry    string    `json:"avg_entry"`
	DCACount    int       `json:"dca_count"`
	Hedged      bool      `json:"hedged"`
	CloseReason string    `json:"close_reason"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
	CreatedAt   time.Time `json:"created_at"`
}
