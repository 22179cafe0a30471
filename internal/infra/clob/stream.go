package clob

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"updown_go/internal/domain"
	"updown_go/internal/infra"
)

const (
	maxRetries   = 10
	pingInterval = 30 * time.Second
	readTimeout  = 60 * time.Second
)

// BookStream maintains a live book cache from the exchange's market
// channel. It is a drop-in BookSource: Book serves the last snapshot seen
// for a token, so the poll loop can run without a REST round-trip per side.
type BookStream struct {
	wsURL   string
	tokens  []string
	conn    *websocket.Conn
	books   map[string]*domain.OrderBook
	mu      sync.RWMutex
	writeMu sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewBookStream creates a streaming book cache for the given token IDs.
func NewBookStream(wsURL string, tokens []string) *BookStream {
	return &BookStream{
		wsURL:  wsURL,
		tokens: tokens,
		books:  make(map[string]*domain.OrderBook),
	}
}

// Connect starts the connection loop in the background.
func (s *BookStream) Connect(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.connectionLoop(ctx)
	return nil
}

func (s *BookStream) connectionLoop(ctx context.Context) {
	defer s.wg.Done()
	retryCount := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := s.connect(ctx); err != nil {
			slog.Warn("Book stream connection failed", slog.Any("error", err), slog.Int("retry", retryCount))
			retryCount++
			if retryCount > maxRetries {
				retryCount = 0
			}
			time.Sleep(infra.CalculateBackoff(retryCount))
		} else {
			retryCount = 0
			s.readLoop(ctx)
		}
	}
}

func (s *BookStream) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.wsURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrConnectionFailed, err)
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	if err := s.subscribe(); err != nil {
		s.closeConnection()
		return err
	}

	go s.pingLoop(ctx)
	s.mu.RLock()
	watched := len(s.tokens)
	s.mu.RUnlock()
	slog.Info("Book stream connected", slog.Int("tokens", watched))
	return nil
}

func (s *BookStream) subscribe() error {
	s.mu.RLock()
	tokens := make([]string, len(s.tokens))
	copy(tokens, s.tokens)
	s.mu.RUnlock()

	if len(tokens) == 0 {
		return nil
	}

	req := struct {
		AssetIDs []string `json:"assets_ids"`
		Type     string   `json:"type"`
	}{AssetIDs: tokens, Type: "market"}

	b, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return s.threadSafeWrite(websocket.TextMessage, b)
}

// Watch replaces the watched token set, drops snapshots for tokens that
// fell out of it, and resubscribes if a connection is up. Called on every
// window rotation.
func (s *BookStream) Watch(tokens []string) {
	s.mu.Lock()
	s.tokens = make([]string, len(tokens))
	copy(s.tokens, tokens)
	keep := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		keep[t] = true
	}
	for id := range s.books {
		if !keep[id] {
			delete(s.books, id)
		}
	}
	connected := s.conn != nil
	s.mu.Unlock()

	if connected {
		if err := s.subscribe(); err != nil {
			slog.Warn("Failed to resubscribe book stream", slog.Any("error", err))
		}
	}
}

func (s *BookStream) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.threadSafeWrite(websocket.TextMessage, []byte("PING"))
		}
	}
}

func (s *BookStream) threadSafeWrite(msgType int, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.conn == nil {
		return fmt.Errorf("no conn")
	}
	return s.conn.WriteMessage(msgType, data)
}

func (s *BookStream) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		s.mu.RLock()
		if s.conn == nil {
			s.mu.RUnlock()
			return
		}
		s.conn.SetReadDeadline(time.Now().Add(readTimeout))
		s.mu.RUnlock()

		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			s.closeConnection()
			return
		}
		if string(msg) == "PONG" {
			continue
		}
		s.handleMessage(msg)
	}
}

// bookEvent is the market channel's book snapshot message.
type bookEvent struct {
	EventType string      `json:"event_type"`
	AssetID   string      `json:"asset_id"`
	Asks      []wireLevel `json:"asks"`
	Bids      []wireLevel `json:"bids"`
}

func (s *BookStream) handleMessage(msg []byte) {
	var ev bookEvent
	if err := json.Unmarshal(msg, &ev); err != nil {
		return
	}
	if ev.EventType != "book" || ev.AssetID == "" {
		return
	}

	asks, err := decodeLevels(ev.Asks)
	if err != nil {
		slog.Warn("Dropping book event with bad asks", slog.String("asset_id", ev.AssetID), slog.Any("error", err))
		return
	}
	bids, err := decodeLevels(ev.Bids)
	if err != nil {
		slog.Warn("Dropping book event with bad bids", slog.String("asset_id", ev.AssetID), slog.Any("error", err))
		return
	}

	sort.Slice(asks, func(i, j int) bool { return asks[i].Price.LessThan(asks[j].Price) })
	sort.Slice(bids, func(i, j int) bool { return bids[i].Price.GreaterThan(bids[j].Price) })

	snapshot := &domain.OrderBook{
		TokenID:   ev.AssetID,
		Asks:      asks,
		Bids:      bids,
		Timestamp: time.Now().UTC(),
	}

	s.mu.Lock()
	s.books[ev.AssetID] = snapshot
	s.mu.Unlock()
}

// Book returns the last streamed snapshot for a token. Before the first
// snapshot arrives this reports a retriable network error so the cycle
// aborts cleanly.
func (s *BookStream) Book(_ context.Context, tokenID string) (*domain.OrderBook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ob, ok := s.books[tokenID]
	if !ok {
		return nil, domain.NewNetworkError("book stream", fmt.Errorf("no snapshot yet for %s", tokenID))
	}
	return ob, nil
}

func (s *BookStream) closeConnection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}

// Disconnect stops the stream and waits for the background loop to exit.
func (s *BookStream) Disconnect() {
	if s.cancel != nil {
		s.cancel()
	}
	s.closeConnection()
	s.wg.Wait()
}
