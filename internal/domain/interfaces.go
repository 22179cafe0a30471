package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// MarketSource provides the currently active market window's metadata.
type MarketSource interface {
	ActiveMarket(ctx context.Context) (*MarketInfo, error)
}

// BookSource returns the current order book for a token.
type BookSource interface {
	Book(ctx context.Context, tokenID string) (*OrderBook, error)
}

// ExecutionSink accepts a market buy intent and reports what actually
// filled. Implementations never fabricate a full fill; partial results are
// reported as-is.
type ExecutionSink interface {
	MarketBuy(ctx context.Context, tokenID string, notional decimal.Decimal) (*FillConfirmation, error)
}

// Journal records confirmed fills and archived windows for reporting.
// Journal failures must never block trading; the state file is the sole
// recovery source.
type Journal interface {
	RecordFill(marketID string, fill Fill) error
	RecordWindow(state *PositionState, reason string) error
}
