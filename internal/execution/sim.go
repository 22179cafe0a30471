// Package execution provides the dry-run execution sink. The live sink
// lives in infra/clob; both satisfy domain.ExecutionSink.
package execution

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"updown_go/internal/book"
	"updown_go/internal/domain"
)

// SimExecution simulates order placement by filling fully at the book VWAP
// for the requested notional. It never talks to the exchange's order
// endpoint and is paired with a separate state file path, so a dry session
// can never disturb live state.
type SimExecution struct {
	books domain.BookSource
	now   func() time.Time
}

// NewSimExecution creates a simulator quoting against the given book source.
func NewSimExecution(books domain.BookSource) *SimExecution {
	return &SimExecution{books: books, now: time.Now}
}

// MarketBuy quotes the ask book and reports a complete fill at that VWAP.
func (s *SimExecution) MarketBuy(ctx context.Context, tokenID string, notional decimal.Decimal) (*domain.FillConfirmation, error) {
	ob, err := s.books.Book(ctx, tokenID)
	if err != nil {
		return nil, fmt.Errorf("sim quote failed: %w", err)
	}

	avg, err := book.VWAPForNotional(ob.Asks, notional)
	if err != nil {
		return nil, fmt.Errorf("%w: sim fill for %s", domain.ErrOrderFailed, tokenID)
	}

	shares := notional.Div(avg)
	slog.Info("Simulated fill",
		slog.String("token_id", tokenID),
		slog.String("cost", notional.String()),
		slog.String("shares", shares.String()),
		slog.String("avg_price", avg.String()),
	)

	return &domain.FillConfirmation{
		Cost:     notional,
		Shares:   shares,
		AvgPrice: avg,
		Time:     s.now().UTC(),
	}, nil
}
