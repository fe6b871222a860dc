package redis

import (
	"context"
	"fmt"
	"log"
	"time"
	"unsafe"

	"pnf-systemv1/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

const (
	// Stream trimming: column/signal/pattern events are sparse, a couple
	// thousand covers months of chart history per symbol.
	defaultStreamMaxLen = 2048
	defaultLatestTTL    = 30 * time.Minute
)

// WriterConfig configures the Redis writer.
type WriterConfig struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
}

// Writer writes chart events and summaries to Redis.
type Writer struct {
	client *goredis.Client

	// OnWrite is called after each successful event write (optional).
	OnWrite func(took time.Duration)
}

// Client returns the underlying Redis client for health checks.
func (w *Writer) Client() *goredis.Client { return w.client }

// New creates a new Redis Writer and pings the server.
func New(cfg WriterConfig) (*Writer, error) {
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

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Writer{client: client}, nil
}

// Run reads chart events from evCh and writes them to Redis.
// Blocks until ctx is cancelled or evCh is closed.
func (w *Writer) Run(ctx context.Context, evCh <-chan model.ChartEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-evCh:
			if !ok {
				return
			}
			if err := w.WriteEvent(ctx, ev); err != nil {
				log.Printf("[redis] %v", err)
			}
		}
	}
}

// WriteEvent performs the pipelined writes for a single chart event:
// XADD to the symbol stream, SET latest per event type, SET the column
// cell for column events, PUBLISH for real-time subscribers.
func (w *Writer) WriteEvent(ctx context.Context, ev model.ChartEvent) error {
	jsonBytes := ev.JSON()
	// Zero-copy []byte→string (safe: jsonBytes is not mutated after this)
	jsonData := *(*string)(unsafe.Pointer(&jsonBytes))

	start := time.Now()
	pipe := w.client.Pipeline()
	w.queueEvent(ctx, pipe, ev, jsonData)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("event pipeline %s %s: %w", ev.Type, ev.Symbol, err)
	}
	if w.OnWrite != nil {
		w.OnWrite(time.Since(start))
	}
	return nil
}

// WriteEventBatch writes multiple chart events in a single Redis pipeline.
// This batches XADD + SET + PUBLISH for all events into one network roundtrip.
func (w *Writer) WriteEventBatch(ctx context.Context, events []model.ChartEvent) error {
	if len(events) == 0 {
		return nil
	}

	pipe := w.client.Pipeline()
	for i := range events {
		ev := &events[i]
		jsonBytes := ev.JSON()
		jsonData := *(*string)(unsafe.Pointer(&jsonBytes))
		w.queueEvent(ctx, pipe, *ev, jsonData)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("event batch pipeline (%d events): %w", len(events), err)
	}
	return nil
}

// queueEvent adds the writes for one event to an open pipeline.
func (w *Writer) queueEvent(ctx context.Context, pipe goredis.Pipeliner, ev model.ChartEvent, jsonData string) {
	// XADD to the per-symbol event stream with auto-trimming
	pipe.XAdd(ctx, &goredis.XAddArgs{
		Stream: ev.StreamKey(),
		MaxLen: defaultStreamMaxLen,
		Approx: true,
		Values: map[string]interface{}{"data": jsonData},
	})

	// SET latest event per type with TTL
	latestKey := "pnf:latest:" + string(ev.Type) + ":" + ev.Symbol
	pipe.Set(ctx, latestKey, jsonData, defaultLatestTTL)

	// Column events also fill the per-column cell used by chart readers
	if ev.Type == model.EventColumn {
		colKey := "pnf:col:" + ev.Symbol + ":" + model.Itoa(ev.ColumnIdx)
		pipe.Set(ctx, colKey, jsonData, 0)
	}

	// PUBLISH to pubsub channel
	pipe.Publish(ctx, ev.PubSubChannel(), jsonData)
}

// WriteSummary stores the rendered chart summary for a symbol.
func (w *Writer) WriteSummary(ctx context.Context, symbol, summary string) error {
	if err := w.client.Set(ctx, "pnf:summary:"+symbol, summary, defaultLatestTTL).Err(); err != nil {
		return fmt.Errorf("redis set summary %s: %w", symbol, err)
	}
	return nil
}

// Close closes the Redis client.
func (w *Writer) Close() error {
	return w.client.Close()
}
