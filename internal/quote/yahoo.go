package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const (
	defaultBaseURL = "https://query1.finance.yahoo.com"
	httpTimeout    = 5 * time.Second
)

// Yahoo fetches prices from the Yahoo Finance chart API. Futures symbols
// like GC=F (gold) and SI=F (silver) quote front-month contracts in USD.
type Yahoo struct {
	baseURL string
	client  *http.Client
}

// NewYahoo creates a Yahoo source with a bounded HTTP client.
func NewYahoo() *Yahoo {
	return &Yahoo{
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: httpTimeout},
	}
}

// NewYahooWithTimeout creates a Yahoo source with a custom request timeout.
// A non-positive timeout keeps the default.
func NewYahooWithTimeout(timeout time.Duration) *Yahoo {
	y := NewYahoo()
	if timeout > 0 {
		y.client.Timeout = timeout
	}
	return y
}

// NewYahooWithBaseURL is used by tests to point the client at a stub server.
func NewYahooWithBaseURL(baseURL string) *Yahoo {
	y := NewYahoo()
	y.baseURL = baseURL
	return y
}

// chartResponse mirrors the slice of the chart API payload we care about.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice float64 `json:"regularMarketPrice"`
			} `json:"meta"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Fetch returns the latest close for symbol. It prefers the chart's
// regular-market price and falls back to the last non-null close in the
// daily series. An answer without either yields ErrNoData.
func (y *Yahoo) Fetch(ctx context.Context, symbol string) (float64, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&range=1d", y.baseURL, url.PathEscape(symbol))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	// Yahoo rejects requests with no identifiable agent.
	req.Header.Set("User-Agent", "troy/1.0")
	req.Header.Set("Accept", "application/json")

	resp, err := y.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("fetch %s: unexpected status %d", symbol, resp.StatusCode)
	}

	var payload chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("decode %s response: %w", symbol, err)
	}

	if payload.Chart.Error != nil {
		return 0, fmt.Errorf("fetch %s: %s: %s", symbol, payload.Chart.Error.Code, payload.Chart.Error.Description)
	}
	if len(payload.Chart.Result) == 0 {
		return 0, ErrNoData
	}

	result := payload.Chart.Result[0]
	if p := result.Meta.RegularMarketPrice; p != 0 {
		return p, nil
	}

	// Fall back to the last close in the series; nulls mark gaps.
	for _, q := range result.Indicators.Quote {
		for i := len(q.Close) - 1; i >= 0; i-- {
			if q.Close[i] != nil {
				return *q.Close[i], nil
			}
		}
	}
	return 0, ErrNoData
}
