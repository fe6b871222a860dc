package gateway

import (
	"encoding/json"
	"testing"
	"time"

	"pnf-systemv1/internal/model"
)

// envelope is the parsed WS message structure.
type envelope struct {
	Symbol    string          `json:"symbol"`
	Data      json.RawMessage `json:"data"`
	TS        string          `json:"ts"`
	Seq       int64           `json:"seq"`
	SymbolSeq int64           `json:"symbol_seq"`
}

func columnEvent(symbol string, ts int64, idx int) model.ChartEvent {
	ev := model.NewChartEvent(model.EventColumn, symbol, ts)
	ev.ColumnIdx = idx
	ev.Kind = "X"
	ev.Price = 100
	ev.BoxCount = 1
	return ev
}

func TestBuildEnvelopeFormat(t *testing.T) {
	data := []byte(`{"id":"abc","type":"SIGNAL","symbol":"BTCUSD","ts":1700000000000}`)
	now := time.Date(2024, 3, 1, 10, 0, 1, 0, time.UTC)

	buf := buildEnvelope("BTCUSD", data, now, 42, 7)

	var env envelope
	if err := json.Unmarshal(buf, &env); err != nil {
		t.Fatalf("envelope is not valid JSON: %v\nraw: %s", err, buf)
	}
	if env.Symbol != "BTCUSD" {
		t.Errorf("symbol: got %q, want %q", env.Symbol, "BTCUSD")
	}
	if env.Seq != 42 {
		t.Errorf("seq: got %d, want 42", env.Seq)
	}
	if env.SymbolSeq != 7 {
		t.Errorf("symbol_seq: got %d, want 7", env.SymbolSeq)
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		t.Fatalf("data is not valid JSON: %v", err)
	}
	if payload["type"] != "SIGNAL" {
		t.Errorf("data type: got %v, want SIGNAL", payload["type"])
	}

	parsed, err := time.Parse(time.RFC3339Nano, env.TS)
	if err != nil {
		t.Errorf("ts is not valid RFC3339Nano: %v", err)
	}
	if !parsed.Equal(now) {
		t.Errorf("ts: got %v, want %v", parsed, now)
	}
}

func TestHubBroadcastKeepsLatestAndReplay(t *testing.T) {
	h := NewHub(8)

	h.Broadcast(columnEvent("BTCUSD", 1, 0))
	h.Broadcast(columnEvent("BTCUSD", 2, 1))
	sig := model.NewChartEvent(model.EventSignal, "BTCUSD", 3)
	sig.Kind = "BUY"
	h.Broadcast(sig)

	latest := h.LatestAll()
	if _, ok := latest["COLUMN:BTCUSD"]; !ok {
		t.Error("missing COLUMN:BTCUSD latest entry")
	}
	if _, ok := latest["SIGNAL:BTCUSD"]; !ok {
		t.Error("missing SIGNAL:BTCUSD latest entry")
	}

	replay := h.ReplayEvents("BTCUSD")
	if len(replay) != 3 {
		t.Fatalf("replay length = %d, want 3", len(replay))
	}
	for i, want := range []int64{1, 2, 3} {
		if replay[i].Timestamp != want {
			t.Errorf("replay[%d].Timestamp = %d, want %d", i, replay[i].Timestamp, want)
		}
	}

	if h.ReplayEvents("ETHUSD") != nil {
		t.Error("expected nil replay for unknown symbol")
	}
}

func TestHubReplayOverwritesOldest(t *testing.T) {
	h := NewHub(2)
	for ts := int64(1); ts <= 5; ts++ {
		h.Broadcast(columnEvent("BTCUSD", ts, int(ts)))
	}
	replay := h.ReplayEvents("BTCUSD")
	if len(replay) != 2 {
		t.Fatalf("replay length = %d, want 2", len(replay))
	}
	if replay[0].Timestamp != 4 || replay[1].Timestamp != 5 {
		t.Errorf("replay timestamps = [%d, %d], want [4, 5]", replay[0].Timestamp, replay[1].Timestamp)
	}
}

func TestHubSymbolSeqsAreIndependent(t *testing.T) {
	h := NewHub(8)
	h.Broadcast(columnEvent("BTCUSD", 1, 0))
	h.Broadcast(columnEvent("ETHUSD", 2, 0))
	h.Broadcast(columnEvent("BTCUSD", 3, 1))

	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.symbolSeqs["BTCUSD"] != 2 {
		t.Errorf("BTCUSD seq = %d, want 2", h.symbolSeqs["BTCUSD"])
	}
	if h.symbolSeqs["ETHUSD"] != 1 {
		t.Errorf("ETHUSD seq = %d, want 1", h.symbolSeqs["ETHUSD"])
	}
	if h.seq != 3 {
		t.Errorf("global seq = %d, want 3", h.seq)
	}
}

func TestClientMatchesSymbol(t *testing.T) {
	c := &Client{subs: make(map[string]bool)}

	if !c.matchesSymbol("BTCUSD") {
		t.Error("client with no subscriptions should receive everything")
	}

	c.subs["ETHUSD"] = true
	if c.matchesSymbol("BTCUSD") {
		t.Error("unsubscribed symbol should not match")
	}
	if !c.matchesSymbol("ETHUSD") {
		t.Error("subscribed symbol should match")
	}
}

func TestHubBroadcastReachesSubscribedClient(t *testing.T) {
	h := NewHub(8)
	c := &Client{send: make(chan []byte, 4), hub: h, subs: map[string]bool{"BTCUSD": true}}
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()

	h.Broadcast(columnEvent("ETHUSD", 1, 0))
	h.Broadcast(columnEvent("BTCUSD", 2, 0))

	if got := len(c.send); got != 1 {
		t.Fatalf("client received %d messages, want 1", got)
	}
	var env envelope
	if err := json.Unmarshal(<-c.send, &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if env.Symbol != "BTCUSD" {
		t.Errorf("symbol = %q, want BTCUSD", env.Symbol)
	}
}
