/**
 * @description
 * Quote Service.
 * Fetches stock quotes from the upstream provider and caches them in Redis
 * so the scan → confirm flow doesn't hammer the quote API.
 *
 * @dependencies
 * - backend/internal/integrations/quotes
 * - github.com/redis/go-redis/v9
 */

package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/snapnbuy/backend/internal/integrations/quotes"
	"github.com/snapnbuy/backend/internal/logger"
)

// QuoteCacheTTL keeps prices fresh enough for purchase confirmation.
const QuoteCacheTTL = 60 * time.Second

type QuoteService struct {
	Client *quotes.Client
	Redis  *redis.Client
}

func NewQuoteService(client *quotes.Client, rdb *redis.Client) *QuoteService {
	return &QuoteService{Client: client, Redis: rdb}
}

func quoteCacheKey(ticker string) string {
	return fmt.Sprintf("quote:%s", strings.ToUpper(ticker))
}

// GetQuote returns a quote for the ticker, serving from cache when fresh.
func (s *QuoteService) GetQuote(ctx context.Context, ticker string) (*quotes.Quote, error) {
	key := quoteCacheKey(ticker)

	if s.Redis != nil {
		data, err := s.Redis.Get(ctx, key).Bytes()
		if err == nil {
			var cached quotes.Quote
			if err := json.Unmarshal(data, &cached); err == nil {
				return &cached, nil
			}
		} else if err != redis.Nil {
			logger.Error("quote cache read for %s failed: %v", ticker, err)
		}
	}

	quote, err := s.Client.GetQuote(ctx, ticker)
	if err != nil {
		return nil, err
	}

	if s.Redis != nil {
		if data, err := json.Marshal(quote); err == nil {
			if err := s.Redis.Set(ctx, key, data, QuoteCacheTTL).Err(); err != nil {
				logger.Error("quote cache write for %s failed: %v", ticker, err)
			}
		}
	}

	return quote, nil
}
