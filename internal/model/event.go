package model

import (
	"encoding/json"

	"github.com/google/uuid"
)

// EventType discriminates the chart events flowing through the bus.
type EventType string

const (
	EventColumn  EventType = "COLUMN"
	EventSignal  EventType = "SIGNAL"
	EventPattern EventType = "PATTERN"
)

// ChartEvent is the wire record emitted by chart runners and fanned out
// to the stores and the websocket gateway.
type ChartEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Symbol    string    `json:"symbol"`
	Timestamp int64     `json:"ts"` // unix millis
	ColumnIdx int       `json:"column_idx"`
	Kind      string    `json:"kind"` // column kind, signal side, or pattern name
	Price     float64   `json:"price"`
	BoxCount  int       `json:"box_count,omitempty"`
}

// NewChartEvent returns an event with a fresh ID and the common fields set.
func NewChartEvent(t EventType, symbol string, ts int64) ChartEvent {
	return ChartEvent{ID: uuid.NewString(), Type: t, Symbol: symbol, Timestamp: ts}
}

// JSON returns the JSON-encoded event (ignoring errors for hot-path usage).
func (e *ChartEvent) JSON() []byte {
	b, _ := json.Marshal(e)
	return b
}

// StreamKey is the redis stream this event is appended to.
func (e *ChartEvent) StreamKey() string {
	return "pnf:stream:" + e.Symbol
}

// PubSubChannel is the redis channel this event is published on.
func (e *ChartEvent) PubSubChannel() string {
	return "pub:pnf:" + e.Symbol
}

// Itoa is a minimal int-to-string converter for hot-path key building.
// Avoids importing strconv to eliminate unnecessary overhead.
func Itoa(n int) string {
	if n == 0 {
		return "0"
	}
	buf := [20]byte{}
	i := len(buf)
	neg := n < 0
	if neg {
		n = -n
	}
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
