package book

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"updown_go/internal/domain"
)

func levels(pairs ...string) []domain.PriceLevel {
	if len(pairs)%2 != 0 {
		panic("levels: price/size pairs required")
	}
	out := make([]domain.PriceLevel, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, domain.PriceLevel{
			Price: decimal.RequireFromString(pairs[i]),
			Size:  decimal.RequireFromString(pairs[i+1]),
		})
	}
	return out
}

func TestVWAPForShares_SingleLevel(t *testing.T) {
	asks := levels("0.38", "100")

	px, err := VWAPForShares(asks, decimal.NewFromInt(10))
	if err != nil {
		t.Fatalf("VWAPForShares failed: %v", err)
	}
	if !px.Equal(decimal.RequireFromString("0.38")) {
		t.Errorf("expected 0.38, got %s", px)
	}
}

func TestVWAPForShares_SpansLevels(t *testing.T) {
	// 10 shares at 0.30, then 10 at 0.40. Buying 15 shares consumes the
	// first level and half of the second: (10*0.30 + 5*0.40) / 15 = 1/3.
	asks := levels("0.30", "10", "0.40", "10")

	px, err := VWAPForShares(asks, decimal.NewFromInt(15))
	if err != nil {
		t.Fatalf("VWAPForShares failed: %v", err)
	}
	want := decimal.NewFromInt(5).Div(decimal.NewFromInt(15))
	if !px.Equal(want) {
		t.Errorf("expected %s, got %s", want, px)
	}
}

func TestVWAPForShares_InsufficientDepth(t *testing.T) {
	asks := levels("0.30", "10", "0.40", "10")

	_, err := VWAPForShares(asks, decimal.NewFromInt(25))
	if !errors.Is(err, domain.ErrInsufficientDepth) {
		t.Fatalf("expected ErrInsufficientDepth, got %v", err)
	}
}

func TestVWAPForShares_EmptyBook(t *testing.T) {
	_, err := VWAPForShares(nil, decimal.NewFromInt(1))
	if !errors.Is(err, domain.ErrInsufficientDepth) {
		t.Fatalf("expected ErrInsufficientDepth, got %v", err)
	}
}

func TestVWAPForShares_ZeroSizeLevelsSkipped(t *testing.T) {
	asks := levels("0.10", "0", "0.20", "10")

	px, err := VWAPForShares(asks, decimal.NewFromInt(5))
	if err != nil {
		t.Fatalf("VWAPForShares failed: %v", err)
	}
	if !px.Equal(decimal.RequireFromString("0.20")) {
		t.Errorf("expected 0.20, got %s", px)
	}
}

func TestVWAPForNotional_ExactLevel(t *testing.T) {
	// Spending $5 at 0.50 buys exactly the 10-share level.
	asks := levels("0.50", "10")

	px, err := VWAPForNotional(asks, decimal.NewFromInt(5))
	if err != nil {
		t.Fatalf("VWAPForNotional failed: %v", err)
	}
	if !px.Equal(decimal.RequireFromString("0.5")) {
		t.Errorf("expected 0.5, got %s", px)
	}
}

func TestVWAPForNotional_PartialLastLevel(t *testing.T) {
	// $3 at 0.30 consumes the first level ($3 of $3), then $2 more at 0.50.
	// Shares: 10 + 4 = 14; VWAP = 5/14.
	asks := levels("0.30", "10", "0.50", "100")

	px, err := VWAPForNotional(asks, decimal.NewFromInt(5))
	if err != nil {
		t.Fatalf("VWAPForNotional failed: %v", err)
	}
	want := decimal.NewFromInt(5).Div(decimal.NewFromInt(14))
	if !px.Equal(want) {
		t.Errorf("expected %s, got %s", want, px)
	}
}

func TestVWAPForNotional_InsufficientDepth(t *testing.T) {
	asks := levels("0.50", "4") // only $2 of depth

	_, err := VWAPForNotional(asks, decimal.NewFromInt(5))
	if !errors.Is(err, domain.ErrInsufficientDepth) {
		t.Fatalf("expected ErrInsufficientDepth, got %v", err)
	}
}

func TestVWAPForNotional_NonPositiveBudget(t *testing.T) {
	asks := levels("0.50", "10")

	_, err := VWAPForNotional(asks, decimal.Zero)
	if !errors.Is(err, domain.ErrInsufficientDepth) {
		t.Fatalf("expected ErrInsufficientDepth, got %v", err)
	}
}
