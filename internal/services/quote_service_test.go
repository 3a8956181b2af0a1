package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/snapnbuy/backend/internal/integrations/quotes"
)

func newQuoteTestService(t *testing.T, upstreamCalls *int) (*QuoteService, *miniredis.Miniredis) {
	t.Helper()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*upstreamCalls++
		if r.URL.Path == "/UNKNOWN" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, `{"chart":{"result":[{"meta":{
			"symbol":"TSLA","shortName":"Tesla, Inc.",
			"regularMarketPrice":412.5,"previousClose":405.1,"currency":"USD"
		}}]}}`)
	}))
	t.Cleanup(upstream.Close)

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := &quotes.Client{
		BaseURL:    upstream.URL,
		HTTPClient: upstream.Client(),
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewQuoteService(client, rdb), mr
}

func TestGetQuoteServesFromCacheWhileFresh(t *testing.T) {
	calls := 0
	svc, mr := newQuoteTestService(t, &calls)
	ctx := context.Background()

	first, err := svc.GetQuote(ctx, "tsla")
	if err != nil {
		t.Fatalf("first GetQuote failed: %v", err)
	}
	if first.Ticker != "TSLA" || first.CurrentPrice != 412.5 {
		t.Errorf("quote = %+v, want TSLA at 412.5", first)
	}
	if first.Name != "Tesla, Inc." {
		t.Errorf("name = %q, want %q", first.Name, "Tesla, Inc.")
	}

	second, err := svc.GetQuote(ctx, "TSLA")
	if err != nil {
		t.Fatalf("second GetQuote failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("upstream calls = %d, want 1 (second read should hit the cache)", calls)
	}
	if second.CurrentPrice != first.CurrentPrice {
		t.Errorf("cached price %v differs from fetched price %v", second.CurrentPrice, first.CurrentPrice)
	}

	// Past the TTL the upstream is consulted again.
	mr.FastForward(QuoteCacheTTL + time.Second)
	if _, err := svc.GetQuote(ctx, "TSLA"); err != nil {
		t.Fatalf("post-expiry GetQuote failed: %v", err)
	}
	if calls != 2 {
		t.Errorf("upstream calls = %d, want 2 after cache expiry", calls)
	}
}

func TestGetQuoteUnknownTicker(t *testing.T) {
	calls := 0
	svc, _ := newQuoteTestService(t, &calls)

	if _, err := svc.GetQuote(context.Background(), "unknown"); !errors.Is(err, quotes.ErrUnknownTicker) {
		t.Errorf("got %v, want ErrUnknownTicker", err)
	}
}

func TestGetQuoteSurvivesCacheOutage(t *testing.T) {
	calls := 0
	svc, mr := newQuoteTestService(t, &calls)
	mr.Close()

	quote, err := svc.GetQuote(context.Background(), "TSLA")
	if err != nil {
		t.Fatalf("GetQuote with dead cache failed: %v", err)
	}
	if quote.Ticker != "TSLA" {
		t.Errorf("ticker = %q, want TSLA", quote.Ticker)
	}
}
