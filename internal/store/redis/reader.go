package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"pnf-systemv1/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

// ReaderConfig configures the Redis reader.
type ReaderConfig struct {
	Addr     string
	Password string
	DB       int
}

// Reader reads chart events and summaries written by the engine. It serves
// the websocket gateway: live events via pubsub, recent history via the
// per-symbol streams.
type Reader struct {
	client *goredis.Client
}

// Client returns the underlying Redis client for health checks.
func (r *Reader) Client() *goredis.Client { return r.client }

// NewReader creates a new Redis Reader and pings the server.
func NewReader(cfg ReaderConfig) (*Reader, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis-reader] connected to %s", cfg.Addr)
	return &Reader{client: client}, nil
}

// SubscribeEvents subscribes to the pub:pnf:* PubSub pattern and feeds
// decoded chart events into the output channel. Sends are non-blocking; a
// full channel drops the event (clients recover via replay).
// Blocks until ctx is cancelled.
func (r *Reader) SubscribeEvents(ctx context.Context, out chan<- model.ChartEvent) error {
	pubsub := r.client.PSubscribe(ctx, "pub:pnf:*")
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev model.ChartEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Printf("[redis-reader] unmarshal event error: %v", err)
				continue
			}
			select {
			case out <- ev:
			default:
			}
		}
	}
}

// RecentEvents returns up to count of the newest events for a symbol from
// its stream, oldest first.
func (r *Reader) RecentEvents(ctx context.Context, symbol string, count int64) ([]model.ChartEvent, error) {
	stream := "pnf:stream:" + symbol
	msgs, err := r.client.XRevRangeN(ctx, stream, "+", "-", count).Result()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("xrevrange %s: %w", stream, err)
	}

	events := make([]model.ChartEvent, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		data, ok := msgs[i].Values["data"].(string)
		if !ok {
			continue
		}
		var ev model.ChartEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// LatestEvent returns the newest event of a type for a symbol, or nil, nil
// when none is stored.
func (r *Reader) LatestEvent(ctx context.Context, typ model.EventType, symbol string) (*model.ChartEvent, error) {
	key := "pnf:latest:" + string(typ) + ":" + symbol
	data, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}

	var ev model.ChartEvent
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}
	return &ev, nil
}

// Summary returns the stored chart summary for a symbol, or "" when none
// is stored.
func (r *Reader) Summary(ctx context.Context, symbol string) (string, error) {
	data, err := r.client.Get(ctx, "pnf:summary:"+symbol).Result()
	if err != nil {
		if err == goredis.Nil {
			return "", nil
		}
		return "", fmt.Errorf("redis get summary %s: %w", symbol, err)
	}
	return data, nil
}

// SubscribeChannel subscribes to a single Redis Pub/Sub channel.
// Returns the PubSub handle so the caller can listen on .Channel().
func (r *Reader) SubscribeChannel(ctx context.Context, channel string) *goredis.PubSub {
	pubsub := r.client.Subscribe(ctx, channel)
	// Wait for confirmation
	if _, err := pubsub.Receive(ctx); err != nil {
		log.Printf("[redis-reader] subscribe to %s failed: %v", channel, err)
		pubsub.Close()
		return nil
	}
	return pubsub
}

// Close closes the Redis client.
func (r *Reader) Close() error {
	return r.client.Close()
}
