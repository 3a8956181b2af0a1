/**
 * @description
 * Mint Ticker Hub.
 * Fans recent "mint" events (new holdings) out from Redis pub/sub to many
 * websocket clients without spawning a Redis subscription per connection.
 *
 * @dependencies
 * - github.com/redis/go-redis/v9
 */

package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// MintEventChannel is the Redis pub/sub channel mint events flow through.
const MintEventChannel = "mints:events"

// MintEvent is published whenever a holding is created.
type MintEvent struct {
	Ticker   string    `json:"ticker"`
	Name     string    `json:"name"`
	Shares   float64   `json:"shares"`
	Amount   float64   `json:"amount"`
	MintedAt time.Time `json:"minted_at"`
}

// MintTickerHub multiplexes Redis pub/sub messages to many websocket clients.
type MintTickerHub struct {
	redis       *redis.Client
	channelName string

	mu          sync.RWMutex
	subscribers map[chan []byte]struct{}
}

func NewMintTickerHub(rdb *redis.Client, channel string) *MintTickerHub {
	hub := &MintTickerHub{
		redis:       rdb,
		channelName: channel,
		subscribers: make(map[chan []byte]struct{}),
	}

	go hub.run()

	return hub
}

func (h *MintTickerHub) run() {
	ctx := context.Background()

	for {
		pubsub := h.redis.Subscribe(ctx, h.channelName)
		ch := pubsub.Channel(redis.WithChannelSize(4096))

		for msg := range ch {
			h.broadcast([]byte(msg.Payload))
		}

		_ = pubsub.Close()

		// Avoid tight loop if Redis connection drops
		time.Sleep(time.Second)
	}
}

func (h *MintTickerHub) broadcast(payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subscribers {
		select {
		case sub <- payload:
		default:
			// Subscriber is too slow; drop the oldest message to keep the hub responsive
			select {
			case <-sub:
			default:
			}
			select {
			case sub <- payload:
			default:
			}
		}
	}
}

// Subscribe registers a new listener and returns a channel plus cleanup function.
func (h *MintTickerHub) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, 256)

	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()

	unsubscribe := func() {
		h.mu.Lock()
		if _, ok := h.subscribers[ch]; ok {
			delete(h.subscribers, ch)
			close(ch)
		}
		h.mu.Unlock()
	}

	return ch, unsubscribe
}

// Publish pushes a mint event onto the channel for all hub instances.
func (h *MintTickerHub) Publish(ctx context.Context, event MintEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return h.redis.Publish(ctx, h.channelName, payload).Err()
}
