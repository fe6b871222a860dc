package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"pnf-systemv1/internal/chart"
	"pnf-systemv1/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

const (
	defaultBatchSize  = 100
	defaultFlushDelay = 200 * time.Millisecond
	snapshotsKept     = 10
)

// WriterConfig configures the SQLite writer.
type WriterConfig struct {
	DBPath string // path to SQLite database file, e.g. "data/pnf.db"
}

// Writer is a single-goroutine SQLite writer with transaction batching.
type Writer struct {
	db *sql.DB

	// OnCommit is called after each successful event batch (optional).
	OnCommit func(events int, took time.Duration)
}

// DB returns the underlying sql.DB for health checks.
func (w *Writer) DB() *sql.DB { return w.db }

// New creates a new SQLite Writer, initializes the database with WAL mode and schema.
func New(cfg WriterConfig) (*Writer, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Set connection pool for single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", cfg.DBPath)
	return &Writer{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS observations (
			symbol TEXT    NOT NULL,
			ts     INTEGER NOT NULL,
			open   REAL    NOT NULL,
			high   REAL    NOT NULL,
			low    REAL    NOT NULL,
			close  REAL    NOT NULL,
			PRIMARY KEY (symbol, ts)
		);

		CREATE TABLE IF NOT EXISTS chart_events (
			id         TEXT    PRIMARY KEY,
			type       TEXT    NOT NULL,
			symbol     TEXT    NOT NULL,
			ts         INTEGER NOT NULL,
			column_idx INTEGER NOT NULL,
			kind       TEXT    NOT NULL,
			price      REAL    NOT NULL,
			box_count  INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_chart_events_symbol_ts ON chart_events (symbol, ts);

		CREATE TABLE IF NOT EXISTS chart_snapshots (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol     TEXT    NOT NULL,
			data       TEXT    NOT NULL,
			created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
		);
	`)
	return err
}

// Run reads chart events from evCh and inserts them in batched transactions.
// Flushes every batchSize events OR every flushDelay, whichever first.
// Blocks until ctx is cancelled or evCh is closed.
func (w *Writer) Run(ctx context.Context, evCh <-chan model.ChartEvent) {
	batch := make([]model.ChartEvent, 0, defaultBatchSize)
	timer := time.NewTimer(defaultFlushDelay)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		start := time.Now()
		if err := w.insertEvents(batch); err != nil {
			log.Printf("[sqlite] event batch insert error: %v", err)
		} else {
			took := time.Since(start)
			log.Printf("[sqlite] committed %d events in %v", len(batch), took)
			if w.OnCommit != nil {
				w.OnCommit(len(batch), took)
			}
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case ev, ok := <-evCh:
			if !ok {
				flush()
				return
			}
			batch = append(batch, ev)
			if len(batch) >= defaultBatchSize {
				flush()
				timer.Reset(defaultFlushDelay)
			}

		case <-timer.C:
			flush()
			timer.Reset(defaultFlushDelay)
		}
	}
}

// insertEvents inserts a batch of chart events in a single transaction.
func (w *Writer) insertEvents(events []model.ChartEvent) error {
	tx, err := w.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO chart_events (id, type, symbol, ts, column_idx, kind, price, box_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, ev := range events {
		_, err := stmt.Exec(ev.ID, ev.Type, ev.Symbol, ev.Timestamp, ev.ColumnIdx, ev.Kind, ev.Price, ev.BoxCount)
		if err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// RunObservations reads observations from a channel and inserts them in
// batched transactions. Blocks until ctx is cancelled or obsCh is closed.
func (w *Writer) RunObservations(ctx context.Context, obsCh <-chan model.Observation) {
	batch := make([]model.Observation, 0, defaultBatchSize)
	timer := time.NewTimer(defaultFlushDelay)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		start := time.Now()
		if err := w.insertObservations(batch); err != nil {
			log.Printf("[sqlite] observation batch insert error: %v", err)
		} else {
			log.Printf("[sqlite] committed %d observations in %v", len(batch), time.Since(start))
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case o, ok := <-obsCh:
			if !ok {
				flush()
				return
			}
			batch = append(batch, o)
			if len(batch) >= defaultBatchSize {
				flush()
				timer.Reset(defaultFlushDelay)
			}
		case <-timer.C:
			flush()
			timer.Reset(defaultFlushDelay)
		}
	}
}

// insertObservations inserts a batch of observations in a single transaction.
func (w *Writer) insertObservations(obs []model.Observation) error {
	tx, err := w.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO observations (symbol, ts, open, high, low, close)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, o := range obs {
		_, err := stmt.Exec(o.Symbol, o.Time.UnixMilli(), o.Open, o.High, o.Low, o.Close)
		if err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// LastEventTimestamp returns the newest stored event timestamp for a symbol
// in unix milliseconds. Returns 0 if no events exist.
func (w *Writer) LastEventTimestamp(symbol string) (int64, error) {
	var ts sql.NullInt64
	err := w.db.QueryRow(
		`SELECT MAX(ts) FROM chart_events WHERE symbol = ?`,
		symbol,
	).Scan(&ts)
	if err != nil {
		return 0, err
	}
	if !ts.Valid {
		return 0, nil
	}
	return ts.Int64, nil
}

// LastObservationTimestamp returns the newest stored observation timestamp
// for a symbol in unix milliseconds. Returns 0 if none exist.
func (w *Writer) LastObservationTimestamp(symbol string) (int64, error) {
	var ts sql.NullInt64
	err := w.db.QueryRow(
		`SELECT MAX(ts) FROM observations WHERE symbol = ?`,
		symbol,
	).Scan(&ts)
	if err != nil {
		return 0, err
	}
	if !ts.Valid {
		return 0, nil
	}
	return ts.Int64, nil
}

// SaveSnapshot saves a chart snapshot for a symbol.
func (w *Writer) SaveSnapshot(symbol string, snap *chart.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	_, err = w.db.Exec(`INSERT INTO chart_snapshots (symbol, data) VALUES (?, ?)`, symbol, string(data))
	if err != nil {
		return fmt.Errorf("sqlite insert snapshot: %w", err)
	}

	// Keep only the newest snapshots for the symbol.
	_, err = w.db.Exec(
		`DELETE FROM chart_snapshots WHERE symbol = ? AND id NOT IN
			(SELECT id FROM chart_snapshots WHERE symbol = ? ORDER BY created_at DESC, id DESC LIMIT ?)`,
		symbol, symbol, snapshotsKept,
	)
	if err != nil {
		log.Printf("[sqlite] prune snapshots warning: %v", err)
	}

	return nil
}

// Close closes the database.
func (w *Writer) Close() error {
	return w.db.Close()
}
