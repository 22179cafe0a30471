package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// StateSchemaVersion tags persisted state files for forward-compatible reads.
const StateSchemaVersion = 1

// Status is the lifecycle phase of a position within one market window.
type Status string

const (
	StatusFlat   Status = "FLAT"
	StatusOpen   Status = "OPEN"
	StatusHedged Status = "HEDGED"
	StatusClosed Status = "CLOSED"
)

// PositionState is the durable aggregate for one market window.
// The ledger is its sole owner; everything else reads it as a value.
type PositionState struct {
	SchemaVersion int    `json:"schema_version"`
	MarketID      string `json:"market_id"`
	Slug          string `json:"slug"`

	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`

	UpTokenID   string `json:"up_token_id"`
	DownTokenID string `json:"down_token_id"`

	Status   Status      `json:"status"`
	MainSide OutcomeSide `json:"main_side,omitempty"` // set once on first entry

	Fills     []Fill `json:"fills"`
	HedgeFill *Fill  `json:"hedge_fill,omitempty"` // present iff Status == HEDGED (or CLOSED after a hedge)

	// Derived from Fills, recomputed on every mutation.
	AvgEntryPrice decimal.Decimal `json:"avg_entry_price"`
	TotalStake    decimal.Decimal `json:"total_stake"`
	TotalShares   decimal.Decimal `json:"total_shares"`
	DCACount      int             `json:"dca_count"`

	LastOrderAt time.Time `json:"last_order_at,omitempty"`
}

// NewPositionState creates a fresh FLAT state for a newly observed window.
func NewPositionState(m MarketInfo) *PositionState {
	return &PositionState{
		SchemaVersion: StateSchemaVersion,
		MarketID:      m.ConditionID,
		Slug:          m.Slug,
		WindowStart:   m.StartDate,
		WindowEnd:     m.EndDate,
		UpTokenID:     m.UpTokenID,
		DownTokenID:   m.DownTokenID,
		Status:        StatusFlat,
		AvgEntryPrice: decimal.Zero,
		TotalStake:    decimal.Zero,
		TotalShares:   decimal.Zero,
	}
}

// TokenFor maps an outcome side to its CLOB token ID.
func (p *PositionState) TokenFor(side OutcomeSide) string {
	if side == SideUp {
		return p.UpTokenID
	}
	return p.DownTokenID
}

// RecomputeDerived rebuilds the derived fields from the fill set.
// The average is the size-weighted mean of ENTRY and DCA fills on the main
// side; order of fills does not matter.
func (p *PositionState) RecomputeDerived() {
	stake := decimal.Zero
	shares := decimal.Zero
	dca := 0
	for _, f := range p.Fills {
		if f.Side != p.MainSide {
			continue
		}
		switch f.Role {
		case RoleEntry:
			stake = stake.Add(f.Cost)
			shares = shares.Add(f.Shares)
		case RoleDCA:
			stake = stake.Add(f.Cost)
			shares = shares.Add(f.Shares)
			dca++
		}
	}
	p.TotalStake = stake
	p.TotalShares = shares
	p.DCACount = dca
	if shares.IsPositive() {
		p.AvgEntryPrice = stake.Div(shares)
	} else {
		p.AvgEntryPrice = decimal.Zero
	}
}

// Clone returns a deep copy, used by the ledger to stage a mutation that can
// be discarded if the checkpoint fails.
func (p *PositionState) Clone() *PositionState {
	cp := *p
	cp.Fills = make([]Fill, len(p.Fills))
	copy(cp.Fills, p.Fills)
	if p.HedgeFill != nil {
		hf := *p.HedgeFill
		cp.HedgeFill = &hf
	}
	return &cp
}

// Expired reports whether the window has resolved at the given time.
func (p *PositionState) Expired(now time.Time) bool {
	return !p.WindowEnd.IsZero() && !now.Before(p.WindowEnd)
}
