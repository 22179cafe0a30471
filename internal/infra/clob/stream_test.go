package clob

import (
	"context"
	"testing"

	"updown_go/internal/domain"
)

func TestHandleMessage_CachesSortedSnapshot(t *testing.T) {
	s := NewBookStream("wss://example.invalid/ws", []string{"tok-up"})

	msg := []byte(`{
		"event_type": "book",
		"asset_id": "tok-up",
		"asks": [{"price": "0.40", "size": "10"}, {"price": "0.38", "size": "5"}],
		"bids": [{"price": "0.30", "size": "3"}, {"price": "0.35", "size": "2"}]
	}`)
	s.handleMessage(msg)

	ob, err := s.Book(context.Background(), "tok-up")
	if err != nil {
		t.Fatalf("expected cached snapshot, got: %v", err)
	}
	if !ob.Asks[0].Price.Equal(dec("0.38")) {
		t.Errorf("asks not ascending: best ask %s", ob.Asks[0].Price)
	}
	if !ob.Bids[0].Price.Equal(dec("0.35")) {
		t.Errorf("bids not descending: best bid %s", ob.Bids[0].Price)
	}
}

func TestHandleMessage_IgnoresNonBookEvents(t *testing.T) {
	s := NewBookStream("wss://example.invalid/ws", []string{"tok-up"})

	s.handleMessage([]byte(`{"event_type": "price_change", "asset_id": "tok-up"}`))
	s.handleMessage([]byte(`not json`))

	if _, err := s.Book(context.Background(), "tok-up"); err == nil {
		t.Fatal("expected no snapshot")
	}
}

func TestBook_NoSnapshotIsRetriable(t *testing.T) {
	s := NewBookStream("wss://example.invalid/ws", []string{"tok-up"})

	_, err := s.Book(context.Background(), "tok-up")
	if err == nil {
		t.Fatal("expected error before first snapshot")
	}
	if !domain.IsRetriable(err) {
		t.Errorf("missing snapshot should be retriable, got: %v", err)
	}
}

func TestWatch_DropsStaleSnapshots(t *testing.T) {
	s := NewBookStream("wss://example.invalid/ws", []string{"old-up", "old-down"})

	s.handleMessage([]byte(`{"event_type": "book", "asset_id": "old-up", "asks": [{"price": "0.40", "size": "1"}], "bids": []}`))
	if _, err := s.Book(context.Background(), "old-up"); err != nil {
		t.Fatalf("snapshot expected before rotation: %v", err)
	}

	s.Watch([]string{"new-up", "new-down"})

	if _, err := s.Book(context.Background(), "old-up"); err == nil {
		t.Error("rotated-out token should have no snapshot")
	}
}
