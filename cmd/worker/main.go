/**
 * @description
 * Worker Service Entry Point.
 * Consumes the quote provider's websocket stream for the supported tickers
 * and republishes price ticks into Redis for the SSE feed.
 *
 * @dependencies
 * - backend/internal/config
 * - backend/internal/db
 * - backend/internal/integrations/quotes
 * - backend/internal/integrations/vision
 */

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/snapnbuy/backend/internal/config"
	"github.com/snapnbuy/backend/internal/db"
	"github.com/snapnbuy/backend/internal/integrations/quotes"
	"github.com/snapnbuy/backend/internal/integrations/vision"
	"github.com/snapnbuy/backend/internal/logger"
)

func main() {
	logger.Info("🔥 Starting Snap'n'Buy Worker...")

	// 1. Load Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config: %v", err)
	}

	if cfg.Services.QuoteStreamURL == "" {
		logger.Fatal("QUOTE_STREAM_URL is required for the worker")
	}

	// 2. Connect Redis
	redisClient, err := db.ConnectRedis(cfg)
	if err != nil {
		logger.Fatal("Redis connection failed: %v", err)
	}

	// 3. Context with Cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 4. Connect the price stream and subscribe to the supported tickers
	streamClient := quotes.NewStreamClient(cfg.Services.QuoteStreamURL, redisClient)
	go func() {
		if err := streamClient.Connect(ctx); err != nil {
			logger.Error("❌ Quote stream client failed: %v", err)
			return
		}

		tickers := make([]string, 0, len(vision.SupportedTickers))
		for ticker := range vision.SupportedTickers {
			tickers = append(tickers, ticker)
		}
		if err := streamClient.Subscribe(tickers); err != nil {
			logger.Error("Failed to subscribe to tickers: %v", err)
		}
	}()

	// 5. Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("Shutting down worker...")
	streamClient.Close()
}
