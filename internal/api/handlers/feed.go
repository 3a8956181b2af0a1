/**
 * @description
 * Live feed handlers (Server-Sent Events).
 * Streams mint events and price ticks to the UI.
 *
 * @dependencies
 * - backend/internal/services
 * - backend/internal/integrations/quotes
 * - github.com/gofiber/fiber/v2
 */

package handlers

import (
	"bufio"
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/snapnbuy/backend/internal/integrations/quotes"
	"github.com/snapnbuy/backend/internal/services"
)

type FeedHandler struct {
	Hub   *services.MintTickerHub
	Redis *redis.Client
}

func NewFeedHandler(hub *services.MintTickerHub, rdb *redis.Client) *FeedHandler {
	return &FeedHandler{Hub: hub, Redis: rdb}
}

// StreamMints pushes mint events over SSE.
// GET /api/v1/feed/mints
func (h *FeedHandler) StreamMints(c *fiber.Ctx) error {
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	requestCtx := c.Context()
	ch, unsubscribe := h.Hub.Subscribe()

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer unsubscribe()

		requestDone := requestCtx.Done()

		for {
			select {
			case <-requestDone:
				return
			case payload, ok := <-ch:
				if !ok {
					return
				}
				fmt.Fprintf(w, "data: %s\n\n", payload)
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	})

	return nil
}

// StreamPrices pushes price ticks over SSE.
// GET /api/v1/feed/prices
func (h *FeedHandler) StreamPrices(c *fiber.Ctx) error {
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	requestCtx := c.Context()

	ctx, cancel := context.WithCancel(context.Background())

	pubsub := h.Redis.Subscribe(ctx, quotes.PriceUpdateChannel)
	ch := pubsub.Channel()

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer func() {
			cancel()
			_ = pubsub.Close()
		}()

		requestDone := requestCtx.Done()

		for {
			select {
			case <-requestDone:
				return
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				fmt.Fprintf(w, "data: %s\n\n", msg.Payload)
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	})

	return nil
}
