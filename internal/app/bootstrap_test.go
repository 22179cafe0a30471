package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"updown_go/internal/domain"
	"updown_go/internal/infra/clob"
)

type stubBooks struct {
	book  *domain.OrderBook
	calls int
}

func (s *stubBooks) Book(context.Context, string) (*domain.OrderBook, error) {
	s.calls++
	return s.book, nil
}

type stubMarkets struct {
	market *domain.MarketInfo
	err    error
}

func (s *stubMarkets) ActiveMarket(context.Context) (*domain.MarketInfo, error) {
	return s.market, s.err
}

func TestStreamFallbackBooks_UsesRESTWithoutSnapshot(t *testing.T) {
	stream := clob.NewBookStream("wss://example.invalid/ws", nil)
	rest := &stubBooks{book: &domain.OrderBook{
		TokenID: "tok-up",
		Asks:    []domain.PriceLevel{{Price: decimal.RequireFromString("0.40"), Size: decimal.RequireFromString("10")}},
	}}
	books := &streamFallbackBooks{stream: stream, rest: rest, now: time.Now}

	ob, err := books.Book(context.Background(), "tok-up")
	if err != nil {
		t.Fatalf("expected REST fallback, got: %v", err)
	}
	if ob.TokenID != "tok-up" || rest.calls != 1 {
		t.Errorf("expected one REST call serving the book, got %d calls", rest.calls)
	}
}

func TestWatchingMarkets_PassesThroughMarketAndError(t *testing.T) {
	stream := clob.NewBookStream("wss://example.invalid/ws", nil)
	inner := &stubMarkets{market: &domain.MarketInfo{
		Slug: "btc-updown-15m-100", UpTokenID: "tok-up", DownTokenID: "tok-down",
	}}
	markets := &watchingMarkets{inner: inner, stream: stream}

	m, err := markets.ActiveMarket(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Slug != "btc-updown-15m-100" || markets.lastSlug != m.Slug {
		t.Errorf("expected window tracked, got lastSlug %q", markets.lastSlug)
	}

	inner.market, inner.err = nil, errors.New("gamma down")
	if _, err := markets.ActiveMarket(context.Background()); err == nil {
		t.Fatal("expected error passthrough")
	}
}
