/**
 * @description
 * WebSocket client for the quote provider's streaming endpoint.
 * Manages the persistent connection, subscriptions, and keep-alive logic,
 * and republishes price ticks into Redis for the SSE feed.
 *
 * Key features:
 * - Automatic reconnection with exponential backoff.
 * - Thread-safe writes and resubscription after reconnect.
 *
 * @dependencies
 * - github.com/gorilla/websocket
 * - github.com/redis/go-redis/v9
 */

package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/snapnbuy/backend/internal/logger"
)

const (
	// PriceUpdateChannel is the Redis pub/sub channel price ticks are republished on.
	PriceUpdateChannel = "prices:events"

	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxConnectRetries = 5
)

// subscribeMessage asks the provider to stream the given symbols.
type subscribeMessage struct {
	Subscribe []string `json:"subscribe"`
}

// PriceTick is one streamed price update, as republished to Redis.
type PriceTick struct {
	Ticker string  `json:"ticker"`
	Price  float64 `json:"price"`
	Time   int64   `json:"time"`
}

// StreamClient consumes the provider's websocket feed.
type StreamClient struct {
	url   string
	redis *redis.Client

	conn *websocket.Conn
	mu   sync.Mutex
	done chan struct{}

	subscriptions []string
	subMu         sync.Mutex

	reconnecting bool
	reconnectMu  sync.Mutex
}

func NewStreamClient(url string, rdb *redis.Client) *StreamClient {
	return &StreamClient{
		url:   url,
		redis: rdb,
		done:  make(chan struct{}),
	}
}

// Connect establishes the WebSocket connection and starts the read loop.
func (c *StreamClient) Connect(ctx context.Context) error {
	return c.connectWithRetry(ctx)
}

func (c *StreamClient) connectWithRetry(ctx context.Context) error {
	var err error
	backoff := 1 * time.Second

	for i := 0; i < maxConnectRetries; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return fmt.Errorf("client closed")
		default:
		}

		logger.Info("Connecting to quote stream: %s (Attempt %d)", c.url, i+1)
		c.conn, _, err = websocket.DefaultDialer.Dial(c.url, nil)
		if err == nil {
			logger.Info("✅ Connected to quote stream")

			c.subMu.Lock()
			if len(c.subscriptions) > 0 {
				go c.sendSubscribe(c.subscriptions)
			}
			c.subMu.Unlock()

			go c.readLoop(ctx)
			go c.pingLoop(ctx)
			return nil
		}

		logger.Error("Failed to connect: %v. Retrying in %v...", err, backoff)
		time.Sleep(backoff)
		backoff *= 2
	}

	return fmt.Errorf("failed to connect after %d attempts: %w", maxConnectRetries, err)
}

// Subscribe adds symbols to the tracking list and sends the subscription message.
func (c *StreamClient) Subscribe(tickers []string) error {
	c.subMu.Lock()
	c.subscriptions = append(c.subscriptions, tickers...)
	subs := append([]string(nil), c.subscriptions...)
	c.subMu.Unlock()

	return c.sendSubscribe(subs)
}

func (c *StreamClient) sendSubscribe(tickers []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("not connected")
	}

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(subscribeMessage{Subscribe: tickers})
}

func (c *StreamClient) readLoop(ctx context.Context) {
	defer c.scheduleReconnect(ctx)

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		default:
		}

		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			logger.Error("quote stream read failed: %v", err)
			return
		}

		var tick PriceTick
		if err := json.Unmarshal(payload, &tick); err != nil || tick.Ticker == "" {
			continue
		}

		data, err := json.Marshal(tick)
		if err != nil {
			continue
		}
		if err := c.redis.Publish(ctx, PriceUpdateChannel, data).Err(); err != nil {
			logger.Error("price tick publish failed: %v", err)
		}
	}
}

func (c *StreamClient) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case <-ticker.C:
			c.mu.Lock()
			conn := c.conn
			c.mu.Unlock()
			if conn == nil {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *StreamClient) scheduleReconnect(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-c.done:
		return
	default:
	}

	c.reconnectMu.Lock()
	if c.reconnecting {
		c.reconnectMu.Unlock()
		return
	}
	c.reconnecting = true
	c.reconnectMu.Unlock()

	defer func() {
		c.reconnectMu.Lock()
		c.reconnecting = false
		c.reconnectMu.Unlock()
	}()

	if err := c.connectWithRetry(ctx); err != nil {
		logger.Error("quote stream reconnect failed: %v", err)
	}
}

// Close shuts the client down.
func (c *StreamClient) Close() {
	close(c.done)
	c.mu.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.mu.Unlock()
}
