package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"pnf-systemv1/internal/chart"
	"pnf-systemv1/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// Reader provides read-only access to SQLite for backfill and snapshot restore.
type Reader struct {
	db *sql.DB
}

// NewReader opens a SQLite connection for reading.
func NewReader(dbPath string) (*Reader, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open reader: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)

	log.Printf("[sqlite-reader] opened %s", dbPath)
	return &Reader{db: db}, nil
}

// ReadEvents reads chart events for a symbol newer than afterTS (unix millis),
// ordered by timestamp ascending for correct replay order. limit <= 0 means
// no limit.
func (r *Reader) ReadEvents(symbol string, afterTS int64, limit int) ([]model.ChartEvent, error) {
	q := `
		SELECT id, type, symbol, ts, column_idx, kind, price, box_count
		FROM chart_events
		WHERE symbol = ? AND ts > ?
		ORDER BY ts ASC
	`
	args := []any{symbol, afterTS}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite query chart_events: %w", err)
	}
	defer rows.Close()

	var events []model.ChartEvent
	for rows.Next() {
		var ev model.ChartEvent
		if err := rows.Scan(&ev.ID, &ev.Type, &ev.Symbol, &ev.Timestamp, &ev.ColumnIdx, &ev.Kind, &ev.Price, &ev.BoxCount); err != nil {
			return nil, fmt.Errorf("sqlite scan chart_events: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// ReadObservations reads stored observations for a symbol newer than afterTS
// (unix millis), ordered by timestamp ascending.
func (r *Reader) ReadObservations(symbol string, afterTS int64) ([]model.Observation, error) {
	rows, err := r.db.Query(`
		SELECT symbol, ts, open, high, low, close
		FROM observations
		WHERE symbol = ? AND ts > ?
		ORDER BY ts ASC
	`, symbol, afterTS)
	if err != nil {
		return nil, fmt.Errorf("sqlite query observations: %w", err)
	}
	defer rows.Close()

	var obs []model.Observation
	for rows.Next() {
		var o model.Observation
		var tsMilli int64
		if err := rows.Scan(&o.Symbol, &tsMilli, &o.Open, &o.High, &o.Low, &o.Close); err != nil {
			return nil, fmt.Errorf("sqlite scan observations: %w", err)
		}
		o.Time = time.UnixMilli(tsMilli).UTC()
		obs = append(obs, o)
	}
	return obs, rows.Err()
}

// ReadLatestSnapshot loads the most recent chart snapshot for a symbol.
// Returns nil, nil when the symbol has no stored snapshot.
func (r *Reader) ReadLatestSnapshot(symbol string) (*chart.Snapshot, error) {
	var data string
	err := r.db.QueryRow(`
		SELECT data FROM chart_snapshots
		WHERE symbol = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, symbol).Scan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // no snapshot
		}
		return nil, fmt.Errorf("sqlite read snapshot: %w", err)
	}

	var snap chart.Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}

	return &snap, nil
}

// Symbols returns the distinct symbols present in the observations table.
func (r *Reader) Symbols() ([]string, error) {
	rows, err := r.db.Query(`SELECT DISTINCT symbol FROM observations ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("sqlite query symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("sqlite scan symbols: %w", err)
		}
		symbols = append(symbols, s)
	}
	return symbols, rows.Err()
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.db.Close()
}
