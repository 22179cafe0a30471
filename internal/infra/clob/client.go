// Package clob talks to the order-book exchange: book snapshots over REST,
// a streaming book cache over WebSocket, and the live order sink.
package clob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"updown_go/internal/domain"
)

// wireLevel is one book level on the wire; prices and sizes arrive as
// strings and are decoded into decimals, never floats.
type wireLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

type wireBook struct {
	Asks []wireLevel `json:"asks"`
	Bids []wireLevel `json:"bids"`
}

// Credentials are pre-derived API credentials for the order endpoint.
// Deriving them from a wallet key is outside this client's scope.
type Credentials struct {
	APIKey        string
	Secret        string
	Passphrase    string
	FunderAddress string
}

// Client is the REST client for the exchange.
type Client struct {
	baseURL    string
	creds      Credentials
	userAgent  string
	httpClient *http.Client
}

// NewClient creates an exchange REST client.
func NewClient(baseURL string, creds Credentials, userAgent string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		creds:      creds,
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Book fetches the current order book for a token. Asks come back sorted
// ascending and bids descending regardless of wire order.
func (c *Client) Book(ctx context.Context, tokenID string) (*domain.OrderBook, error) {
	q := url.Values{}
	q.Set("token_id", tokenID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/book?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewNetworkError("book fetch", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewNetworkError("book fetch", fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewNetworkError("book read", err)
	}

	var wire wireBook
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("unexpected book payload: %w", err)
	}

	asks, err := decodeLevels(wire.Asks)
	if err != nil {
		return nil, fmt.Errorf("asks: %w", err)
	}
	bids, err := decodeLevels(wire.Bids)
	if err != nil {
		return nil, fmt.Errorf("bids: %w", err)
	}

	sort.Slice(asks, func(i, j int) bool { return asks[i].Price.LessThan(asks[j].Price) })
	sort.Slice(bids, func(i, j int) bool { return bids[i].Price.GreaterThan(bids[j].Price) })

	return &domain.OrderBook{
		TokenID:   tokenID,
		Asks:      asks,
		Bids:      bids,
		Timestamp: time.Now().UTC(),
	}, nil
}

// orderRequest is a FOK market buy by notional amount.
type orderRequest struct {
	TokenID   string `json:"token_id"`
	Amount    string `json:"amount"`
	Side      string `json:"side"`
	OrderType string `json:"order_type"`
	Funder    string `json:"funder,omitempty"`
}

type orderResponse struct {
	Success      bool   `json:"success"`
	ErrorMsg     string `json:"errorMsg"`
	OrderID      string `json:"orderID"`
	MakingAmount string `json:"makingAmount"` // USD actually spent
	TakingAmount string `json:"takingAmount"` // shares actually received
}

// MarketBuy submits a fill-or-kill market buy and reports the amounts the
// exchange says actually matched. An unconfirmed or unmatched submission
// yields domain.ErrOrderFailed with no fill.
func (c *Client) MarketBuy(ctx context.Context, tokenID string, notional decimal.Decimal) (*domain.FillConfirmation, error) {
	order := orderRequest{
		TokenID:   tokenID,
		Amount:    notional.Round(2).String(),
		Side:      "BUY",
		OrderType: "FOK",
		Funder:    c.creds.FunderAddress,
	}
	payload, err := json.Marshal(order)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/order", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewNetworkError("order submit", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewNetworkError("order read", err)
	}

	var ores orderResponse
	if err := json.Unmarshal(body, &ores); err != nil {
		return nil, fmt.Errorf("unexpected order payload: %w", err)
	}
	if resp.StatusCode != http.StatusOK || !ores.Success {
		return nil, fmt.Errorf("%w: %s", domain.ErrOrderFailed, ores.ErrorMsg)
	}

	cost, err := decimal.NewFromString(ores.MakingAmount)
	if err != nil {
		return nil, fmt.Errorf("%w: bad makingAmount %q", domain.ErrOrderFailed, ores.MakingAmount)
	}
	shares, err := decimal.NewFromString(ores.TakingAmount)
	if err != nil {
		return nil, fmt.Errorf("%w: bad takingAmount %q", domain.ErrOrderFailed, ores.TakingAmount)
	}
	if !cost.IsPositive() || !shares.IsPositive() {
		return nil, fmt.Errorf("%w: empty fill", domain.ErrOrderFailed)
	}

	return &domain.FillConfirmation{
		Cost:     cost,
		Shares:   shares,
		AvgPrice: cost.Div(shares),
		Time:     time.Now().UTC(),
	}, nil
}

func (c *Client) setHeaders(req *http.Request) {
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.creds.APIKey != "" {
		req.Header.Set("POLY-API-KEY", c.creds.APIKey)
		req.Header.Set("POLY-PASSPHRASE", c.creds.Passphrase)
	}
}

func decodeLevels(wire []wireLevel) ([]domain.PriceLevel, error) {
	out := make([]domain.PriceLevel, 0, len(wire))
	for _, lvl := range wire {
		price, err := decimal.NewFromString(lvl.Price)
		if err != nil {
			return nil, fmt.Errorf("bad price %q: %w", lvl.Price, err)
		}
		size, err := decimal.NewFromString(lvl.Size)
		if err != nil {
			return nil, fmt.Errorf("bad size %q: %w", lvl.Size, err)
		}
		out = append(out, domain.PriceLevel{Price: price, Size: size})
	}
	return out, nil
}
