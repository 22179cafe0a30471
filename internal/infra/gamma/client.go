// Package gamma implements the client for the market-metadata service. It
// discovers the currently active up/down window by slug prefix and maps the
// two outcome token IDs.
package gamma

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"updown_go/internal/domain"
)

const defaultListLimit = 200

// rawMarket mirrors the fields we need from the markets listing. The
// service sometimes returns outcomes/clobTokenIds as JSON-encoded strings
// instead of arrays, so both are decoded leniently.
type rawMarket struct {
	Slug         string          `json:"slug"`
	ConditionID  string          `json:"conditionId"`
	StartDate    string          `json:"startDate"`
	EndDate      string          `json:"endDate"`
	Outcomes     json.RawMessage `json:"outcomes"`
	ClobTokenIDs json.RawMessage `json:"clobTokenIds"`
}

// Client polls the metadata service for the active market window.
type Client struct {
	baseURL      string
	slugPrefixes []string
	userAgent    string
	httpClient   *http.Client
	now          func() time.Time
}

// NewClient creates a metadata client.
func NewClient(baseURL string, slugPrefixes []string, userAgent string, timeout time.Duration) *Client {
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		slugPrefixes: slugPrefixes,
		userAgent:    userAgent,
		httpClient:   &http.Client{Timeout: timeout},
		now:          time.Now,
	}
}

// ActiveMarket returns the window whose slug matches a configured prefix
// and whose start/end bracket the current time. Returns
// domain.ErrNoActiveMarket when nothing matches.
func (c *Client) ActiveMarket(ctx context.Context) (*domain.MarketInfo, error) {
	markets, err := c.listMarkets(ctx)
	if err != nil {
		return nil, err
	}

	now := c.now().UTC()
	for _, m := range markets {
		if !c.matchesPrefix(m.Slug) {
			continue
		}
		start, err := time.Parse(time.RFC3339, m.StartDate)
		if err != nil {
			continue
		}
		end, err := time.Parse(time.RFC3339, m.EndDate)
		if err != nil {
			continue
		}
		if now.Before(start) || !now.Before(end) {
			continue
		}

		info, err := extractMarket(m, start, end)
		if err != nil {
			slog.Warn("Skipping malformed market", slog.String("slug", m.Slug), slog.Any("error", err))
			continue
		}
		return info, nil
	}
	return nil, domain.ErrNoActiveMarket
}

func (c *Client) listMarkets(ctx context.Context) ([]rawMarket, error) {
	// Listing is retried with exponential backoff: 1s, 2s.
	var lastErr error
	for i := 0; i < 3; i++ {
		if i > 0 {
			delay := time.Duration(1<<uint(i-1)) * time.Second
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		markets, err := c.doList(ctx)
		if err == nil {
			return markets, nil
		}
		lastErr = err
		slog.Warn("Market listing attempt failed", slog.Int("attempt", i+1), slog.Any("error", err))
	}
	return nil, domain.NewNetworkError("gamma list", lastErr)
}

func (c *Client) doList(ctx context.Context) ([]rawMarket, error) {
	q := url.Values{}
	q.Set("limit", fmt.Sprint(defaultListLimit))
	q.Set("offset", "0")
	q.Set("order", "endDate")
	q.Set("ascending", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/markets?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var markets []rawMarket
	if err := json.Unmarshal(body, &markets); err != nil {
		return nil, fmt.Errorf("unexpected markets payload: %w", err)
	}
	return markets, nil
}

func (c *Client) matchesPrefix(slug string) bool {
	for _, p := range c.slugPrefixes {
		if strings.HasPrefix(slug, p) {
			return true
		}
	}
	return false
}

func extractMarket(m rawMarket, start, end time.Time) (*domain.MarketInfo, error) {
	if m.ConditionID == "" {
		return nil, fmt.Errorf("market %s missing conditionId", m.Slug)
	}

	outcomes, err := stringArray(m.Outcomes)
	if err != nil {
		return nil, fmt.Errorf("outcomes: %w", err)
	}
	tokens, err := stringArray(m.ClobTokenIDs)
	if err != nil {
		return nil, fmt.Errorf("clobTokenIds: %w", err)
	}
	if len(outcomes) != len(tokens) {
		return nil, fmt.Errorf("outcomes/token length mismatch: %d vs %d", len(outcomes), len(tokens))
	}

	var up, down string
	for i, o := range outcomes {
		switch strings.ToLower(strings.TrimSpace(o)) {
		case "up":
			up = tokens[i]
		case "down":
			down = tokens[i]
		}
	}
	if up == "" || down == "" {
		return nil, fmt.Errorf("could not map up/down tokens from outcomes %v", outcomes)
	}

	return &domain.MarketInfo{
		Slug:        m.Slug,
		ConditionID: m.ConditionID,
		StartDate:   start,
		EndDate:     end,
		UpTokenID:   up,
		DownTokenID: down,
	}, nil
}

// stringArray decodes either a JSON array of strings or a JSON string that
// itself contains such an array.
func stringArray(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("missing array")
	}

	var direct []string
	if err := json.Unmarshal(raw, &direct); err == nil {
		return direct, nil
	}

	var encoded string
	if err := json.Unmarshal(raw, &encoded); err != nil {
		return nil, fmt.Errorf("neither array nor string")
	}
	var nested []string
	if err := json.Unmarshal([]byte(encoded), &nested); err != nil {
		return nil, fmt.Errorf("string does not contain an array: %w", err)
	}
	return nested, nil
}
