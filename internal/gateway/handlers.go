package gateway

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	redisstore "pnf-systemv1/internal/store/redis"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// SetCORS sets CORS headers for REST endpoints.
func SetCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

// RegisterRoutes registers all HTTP routes on the provided mux. reader may
// be nil when the hub is fed in-process; the Redis-backed endpoints then
// fall back to the hub's own buffers.
func RegisterRoutes(mux *http.ServeMux, hub *Hub, reader *redisstore.Reader, symbols []string, processStart time.Time) {
	// WebSocket endpoint
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("[gateway] ws upgrade error: %v", err)
			return
		}
		hub.HandleWSRequest(conn)
	})

	// REST: configured symbols
	mux.HandleFunc("/api/symbols", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"symbols": symbols})
	})

	// REST: recent chart events for a symbol
	mux.HandleFunc("/api/events", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		w.Header().Set("Content-Type", "application/json")

		symbol := r.URL.Query().Get("symbol")
		if symbol == "" && len(symbols) > 0 {
			symbol = symbols[0]
		}
		count := 200
		if s := r.URL.Query().Get("count"); s != "" {
			if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 1000 {
				count = n
			}
		}

		if reader != nil {
			events, err := reader.RecentEvents(r.Context(), symbol, int64(count))
			if err != nil {
				log.Printf("[gateway] recent events error: %v", err)
				json.NewEncoder(w).Encode([]interface{}{})
				return
			}
			json.NewEncoder(w).Encode(events)
			return
		}

		events := hub.ReplayEvents(symbol)
		if len(events) > count {
			events = events[len(events)-count:]
		}
		json.NewEncoder(w).Encode(events)
	})

	// REST: newest payload per TYPE:SYMBOL key
	mux.HandleFunc("/api/latest", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(hub.LatestAll())
	})

	// REST: rendered chart summary
	mux.HandleFunc("/api/summary", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		w.Header().Set("Content-Type", "application/json")

		symbol := r.URL.Query().Get("symbol")
		if symbol == "" && len(symbols) > 0 {
			symbol = symbols[0]
		}

		summary := ""
		if reader != nil {
			s, err := reader.Summary(r.Context(), symbol)
			if err != nil {
				log.Printf("[gateway] summary error: %v", err)
			}
			summary = s
		}
		json.NewEncoder(w).Encode(map[string]string{"symbol": symbol, "summary": summary})
	})

	// REST: gateway metrics snapshot
	mux.HandleFunc("/api/metrics", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		w.Header().Set("Content-Type", "application/json")
		m := CollectMetrics(processStart)
		if hub.Latency != nil {
			m.LatencyP50, m.LatencyP95, m.LatencyP99 = hub.Latency.Percentiles()
		}
		json.NewEncoder(w).Encode(m)
	})

	// Health endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		w.Header().Set("Content-Type", "application/json")

		redisOK := false
		if reader != nil {
			redisOK = reader.Client().Ping(r.Context()).Err() == nil
		}

		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":     "ok",
			"redis":      redisOK,
			"ws_clients": hub.ClientCount(),
			"uptime_sec": int64(time.Since(processStart).Seconds()),
			"ts":         time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
}
