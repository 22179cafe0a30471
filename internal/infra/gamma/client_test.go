package gamma

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"updown_go/internal/domain"
)

func fixedNow() time.Time {
	return time.Date(2026, 8, 30, 10, 5, 0, 0, time.UTC)
}

func marketJSON(slug, condID, start, end, outcomes, tokens string) string {
	return fmt.Sprintf(`{"slug":%q,"conditionId":%q,"startDate":%q,"endDate":%q,"outcomes":%s,"clobTokenIds":%s}`,
		slug, condID, start, end, outcomes, tokens)
}

func newTestClient(t *testing.T, payload string) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, payload)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, []string{"btc-updown-15m-"}, "", 5*time.Second)
	c.now = fixedNow
	return c
}

func TestActiveMarket_PicksCurrentWindow(t *testing.T) {
	payload := "[" +
		marketJSON("btc-updown-15m-0945", "0xold", "2026-08-30T09:45:00Z", "2026-08-30T10:00:00Z",
			`["Up","Down"]`, `["u-old","d-old"]`) + "," +
		marketJSON("btc-updown-15m-1000", "0xcur", "2026-08-30T10:00:00Z", "2026-08-30T10:15:00Z",
			`["Up","Down"]`, `["u-cur","d-cur"]`) +
		"]"

	m, err := newTestClient(t, payload).ActiveMarket(context.Background())
	if err != nil {
		t.Fatalf("ActiveMarket failed: %v", err)
	}
	if m.ConditionID != "0xcur" {
		t.Errorf("expected current window 0xcur, got %s", m.ConditionID)
	}
	if m.UpTokenID != "u-cur" || m.DownTokenID != "d-cur" {
		t.Errorf("token mapping wrong: up=%s down=%s", m.UpTokenID, m.DownTokenID)
	}
}

func TestActiveMarket_DecodesJSONEncodedArrays(t *testing.T) {
	// Gamma sometimes returns the arrays as JSON-encoded strings.
	payload := "[" + marketJSON("btc-updown-15m-1000", "0xcur",
		"2026-08-30T10:00:00Z", "2026-08-30T10:15:00Z",
		`"[\"Down\",\"Up\"]"`, `"[\"d-tok\",\"u-tok\"]"`) + "]"

	m, err := newTestClient(t, payload).ActiveMarket(context.Background())
	if err != nil {
		t.Fatalf("ActiveMarket failed: %v", err)
	}
	if m.UpTokenID != "u-tok" || m.DownTokenID != "d-tok" {
		t.Errorf("token mapping wrong: up=%s down=%s", m.UpTokenID, m.DownTokenID)
	}
}

func TestActiveMarket_IgnoresForeignSlugs(t *testing.T) {
	payload := "[" + marketJSON("eth-updown-15m-1000", "0xeth",
		"2026-08-30T10:00:00Z", "2026-08-30T10:15:00Z",
		`["Up","Down"]`, `["u","d"]`) + "]"

	_, err := newTestClient(t, payload).ActiveMarket(context.Background())
	if !errors.Is(err, domain.ErrNoActiveMarket) {
		t.Fatalf("expected ErrNoActiveMarket, got %v", err)
	}
}

func TestActiveMarket_SkipsMalformedMarket(t *testing.T) {
	// First match has mismatched arrays, second is valid.
	payload := "[" +
		marketJSON("btc-updown-15m-1000", "0xbad", "2026-08-30T10:00:00Z", "2026-08-30T10:15:00Z",
			`["Up","Down"]`, `["only-one"]`) + "," +
		marketJSON("btc-updown-15m-1000b", "0xgood", "2026-08-30T10:00:00Z", "2026-08-30T10:15:00Z",
			`["Up","Down"]`, `["u","d"]`) +
		"]"

	m, err := newTestClient(t, payload).ActiveMarket(context.Background())
	if err != nil {
		t.Fatalf("ActiveMarket failed: %v", err)
	}
	if m.ConditionID != "0xgood" {
		t.Errorf("expected 0xgood, got %s", m.ConditionID)
	}
}

func TestActiveMarket_ServerErrorAbortsCycle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, []string{"btc-updown-15m-"}, "", time.Second)
	c.now = fixedNow

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := c.ActiveMarket(ctx)
	if err == nil {
		t.Fatal("expected error from failing server")
	}
}
