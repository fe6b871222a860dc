// Package gateway fans chart events out to websocket subscribers. The hub
// keeps the latest event per symbol and type plus a per-symbol replay ring
// so a connecting client can catch up before going live.
package gateway

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"sync"
	"time"

	"pnf-systemv1/internal/model"
	"pnf-systemv1/internal/ringbuf"

	"github.com/gorilla/websocket"
)

const defaultReplayDepth = 256

// Hub manages WebSocket clients and chart event fan-out. Events arrive on
// a single channel (from the engine bus or a Redis subscription) and are
// broadcast to every client whose subscription covers the symbol.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool

	// latest holds the newest envelope payload per "TYPE:SYMBOL" key so a
	// fresh client can be primed without waiting for the next event.
	latest map[string]latestEntry

	seq        int64
	symbolSeqs map[string]int64

	// replays buffers recent events per symbol for catch-up on subscribe.
	// Ring access is serialized by mu.
	replays     map[string]*ringbuf.Ring
	replayDepth int

	// Latency tracks event-timestamp to broadcast delay (optional).
	Latency *LatencyTracker

	// OnBroadcast is called after each event fan-out (optional, metrics).
	OnBroadcast func(symbol string)
}

type latestEntry struct {
	Data json.RawMessage
	TS   time.Time
	Seq  int64
}

// NewHub creates a hub whose per-symbol replay rings hold replayDepth
// events (0 uses the default).
func NewHub(replayDepth int) *Hub {
	if replayDepth <= 0 {
		replayDepth = defaultReplayDepth
	}
	return &Hub{
		clients:     make(map[*Client]bool),
		latest:      make(map[string]latestEntry),
		symbolSeqs:  make(map[string]int64),
		replays:     make(map[string]*ringbuf.Ring),
		replayDepth: replayDepth,
		Latency:     NewLatencyTracker(8192),
	}
}

// Run consumes chart events and broadcasts them.
// Blocks until ctx is cancelled or events is closed.
func (h *Hub) Run(ctx context.Context, events <-chan model.ChartEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			h.Broadcast(ev)
		}
	}
}

// Broadcast wraps ev in an envelope and fans it out to subscribed clients.
// Slow clients are skipped rather than blocked on.
func (h *Hub) Broadcast(ev model.ChartEvent) {
	now := time.Now().UTC()

	if h.Latency != nil && ev.Timestamp > 0 {
		if ms := float64(now.UnixMilli() - ev.Timestamp); ms >= 0 {
			h.Latency.Record(ms)
		}
	}

	data := ev.JSON()

	h.mu.Lock()
	h.seq++
	seq := h.seq
	h.symbolSeqs[ev.Symbol]++
	symbolSeq := h.symbolSeqs[ev.Symbol]
	buf := buildEnvelope(ev.Symbol, data, now, seq, symbolSeq)
	h.latest[string(ev.Type)+":"+ev.Symbol] = latestEntry{Data: data, TS: now, Seq: symbolSeq}

	ring, ok := h.replays[ev.Symbol]
	if !ok {
		ring = ringbuf.New(h.replayDepth)
		h.replays[ev.Symbol] = ring
	}
	ring.PushLatest(ev)
	h.mu.Unlock()

	h.mu.RLock()
	for client := range h.clients {
		if !client.matchesSymbol(ev.Symbol) {
			continue
		}
		select {
		case client.send <- buf:
		default:
		}
	}
	h.mu.RUnlock()

	if h.OnBroadcast != nil {
		h.OnBroadcast(ev.Symbol)
	}
}

// Seed stores an event in the latest cache and replay ring without
// fanning out or recording latency. Used to prime the hub from a
// persisted stream before clients connect.
func (h *Hub) Seed(ev model.ChartEvent) {
	now := time.Now().UTC()
	data := ev.JSON()

	h.mu.Lock()
	defer h.mu.Unlock()
	h.seq++
	h.symbolSeqs[ev.Symbol]++
	h.latest[string(ev.Type)+":"+ev.Symbol] = latestEntry{Data: data, TS: now, Seq: h.symbolSeqs[ev.Symbol]}

	ring, ok := h.replays[ev.Symbol]
	if !ok {
		ring = ringbuf.New(h.replayDepth)
		h.replays[ev.Symbol] = ring
	}
	ring.PushLatest(ev)
}

// buildEnvelope hand-crafts the envelope JSON around an already-encoded
// event payload, avoiding a second json.Marshal on the hot path.
func buildEnvelope(symbol string, data []byte, now time.Time, seq, symbolSeq int64) []byte {
	buf := make([]byte, 0, len(symbol)+len(data)+128)
	buf = append(buf, `{"symbol":"`...)
	buf = append(buf, symbol...)
	buf = append(buf, `","data":`...)
	buf = append(buf, data...)
	buf = append(buf, `,"ts":"`...)
	buf = now.AppendFormat(buf, time.RFC3339Nano)
	buf = append(buf, `","seq":`...)
	buf = strconv.AppendInt(buf, seq, 10)
	buf = append(buf, `,"symbol_seq":`...)
	buf = strconv.AppendInt(buf, symbolSeq, 10)
	buf = append(buf, '}')
	return buf
}

// HandleWSRequest registers an upgraded websocket connection with the hub.
func (h *Hub) HandleWSRequest(conn *websocket.Conn) {
	client := &Client{
		conn: conn,
		send: make(chan []byte, 256),
		hub:  h,
		subs: make(map[string]bool),
	}

	conn.EnableWriteCompression(true)

	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	log.Printf("[gateway] ws client connected (%d total)", count)

	go client.writePump()
	go client.readPump()
}

// RemoveClient removes a client from the hub.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	h.mu.Unlock()
	close(c.send)
}

// ClientCount returns the number of connected WS clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// LatestAll returns a snapshot of the newest payload per TYPE:SYMBOL key.
func (h *Hub) LatestAll() map[string]json.RawMessage {
	h.mu.RLock()
	defer h.mu.RUnlock()
	cp := make(map[string]json.RawMessage, len(h.latest))
	for k, v := range h.latest {
		cp[k] = v.Data
	}
	return cp
}

// ReplayEvents returns the buffered recent events for a symbol, oldest
// first. Nil when the symbol has no history yet.
func (h *Hub) ReplayEvents(symbol string) []model.ChartEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	ring, ok := h.replays[symbol]
	if !ok {
		return nil
	}
	return ring.Snapshot()
}

// ReplayOverflow sums overwrites of unreplayed events across all
// symbol rings.
func (h *Hub) ReplayOverflow() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var n uint64
	for _, ring := range h.replays {
		n += ring.Overflow()
	}
	return n
}

// StartMetricsBroadcast sends gateway metrics to all WS clients every 2s.
// Blocks until ctx is cancelled.
func (h *Hub) StartMetricsBroadcast(ctx context.Context, start time.Time) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m := CollectMetrics(start)
			if h.Latency != nil {
				m.LatencyP50, m.LatencyP95, m.LatencyP99 = h.Latency.Percentiles()
			}
			envelope, _ := json.Marshal(map[string]interface{}{
				"type":    "metrics",
				"metrics": m,
				"clients": h.ClientCount(),
			})
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- envelope:
				default:
				}
			}
			h.mu.RUnlock()
		}
	}
}
