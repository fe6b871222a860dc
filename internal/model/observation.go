package model

import (
	"encoding/json"
	"time"
)

// Observation is one OHLC record from the sequential price feed. Charts
// consume high/low/close; Open is carried for export and resampling.
type Observation struct {
	Symbol string    `json:"symbol"`
	Time   time.Time `json:"ts"` // UTC
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
}

// JSON returns the JSON-encoded observation (ignoring errors for hot-path usage).
func (o *Observation) JSON() []byte {
	b, _ := json.Marshal(o)
	return b
}
