/**
 * @description
 * HTTP client for the stock quote provider (Yahoo Finance chart API).
 *
 * @dependencies
 * - net/http
 * - encoding/json
 * - backend/internal/config
 */

package quotes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/snapnbuy/backend/internal/config"
)

const DefaultTimeout = 10 * time.Second

// ErrUnknownTicker means the provider has no quote for the symbol.
var ErrUnknownTicker = errors.New("unknown ticker")

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		BaseURL: cfg.Services.QuoteAPIURL,
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// Quote is a point-in-time price snapshot for one symbol.
type Quote struct {
	Ticker       string  `json:"ticker"`
	Name         string  `json:"name"`
	CurrentPrice float64 `json:"currentPrice"`
	LogoURL      string  `json:"logoUrl"`
	Currency     string  `json:"currency"`
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				ShortName          string  `json:"shortName"`
				LongName           string  `json:"longName"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				PreviousClose      float64 `json:"previousClose"`
				Currency           string  `json:"currency"`
			} `json:"meta"`
		} `json:"result"`
	} `json:"chart"`
}

// GetQuote fetches the latest price for a ticker.
func (c *Client) GetQuote(ctx context.Context, ticker string) (*Quote, error) {
	symbol := strings.ToUpper(strings.TrimSpace(ticker))

	u := fmt.Sprintf("%s/%s?range=1d&interval=1d", c.BaseURL, url.PathEscape(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrUnknownTicker
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quote api error: status %d", resp.StatusCode)
	}

	var chart chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&chart); err != nil {
		return nil, fmt.Errorf("quote response decode failed: %w", err)
	}
	if len(chart.Chart.Result) == 0 {
		return nil, ErrUnknownTicker
	}

	meta := chart.Chart.Result[0].Meta
	price := meta.RegularMarketPrice
	if price == 0 {
		price = meta.PreviousClose
	}
	name := meta.ShortName
	if name == "" {
		name = meta.LongName
	}
	if name == "" {
		name = symbol
	}

	return &Quote{
		Ticker:       symbol,
		Name:         name,
		CurrentPrice: price,
		LogoURL:      "https://assets.parqet.com/logos/symbol/" + symbol,
		Currency:     orDefault(meta.Currency, "USD"),
	}, nil
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
