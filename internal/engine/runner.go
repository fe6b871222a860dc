// Package engine drives point-and-figure charts from an observation
// stream. Each symbol gets its own chart and indicator suite; chart
// changes are turned into column, signal, and pattern events for the
// downstream consumers.
package engine

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"pnf-systemv1/internal/chart"
	"pnf-systemv1/internal/indicator"
	"pnf-systemv1/internal/model"
	"pnf-systemv1/internal/pattern"
)

// Config holds the chart parameters applied to every symbol.
type Config struct {
	Construction chart.ConstructionMode
	BoxMode      chart.BoxSizeMode
	BoxParam     float64
	Reversal     int
}

// chartState holds the chart, its indicators, and the emission cursors
// for one symbol.
type chartState struct {
	chart   *chart.Chart
	suite   *indicator.Suite
	columns int
	boxes   int // newest column's box count at the last recompute
	signals int
	// Pattern entries for the newest column can mutate as it extends,
	// so a plain count cursor is not enough.
	patterns []pattern.Pattern
}

// Runner owns one chart per symbol. Charts are mutated only by the
// goroutine calling Process/Run; the lock makes WithChart safe for
// export and snapshot jobs running elsewhere.
type Runner struct {
	mu     sync.RWMutex
	cfg    Config
	states map[string]*chartState

	// Metrics hooks (optional, set externally)
	OnProcessed    func(symbol string, changed bool, took time.Duration)
	OnDroppedEvent func()
}

// New creates a Runner, validating the chart config up front so
// per-symbol chart creation cannot fail later.
func New(cfg Config) (*Runner, error) {
	if _, err := chart.New(cfg.Construction, cfg.BoxMode, cfg.BoxParam, cfg.Reversal); err != nil {
		return nil, fmt.Errorf("engine: invalid chart config: %w", err)
	}
	return &Runner{
		cfg:    cfg,
		states: make(map[string]*chartState),
	}, nil
}

// Process feeds one observation into its symbol's chart. When the chart
// changes, indicators are recomputed and the resulting events returned
// in column, signal, pattern order.
func (r *Runner) Process(o model.Observation) []model.ChartEvent {
	start := time.Now()

	r.mu.Lock()
	st, ok := r.states[o.Symbol]
	if !ok {
		c, err := chart.New(r.cfg.Construction, r.cfg.BoxMode, r.cfg.BoxParam, r.cfg.Reversal)
		if err != nil {
			// Unreachable: the config was validated in New.
			r.mu.Unlock()
			log.Printf("[engine] chart for %s: %v", o.Symbol, err)
			return nil
		}
		st = &chartState{chart: c, suite: indicator.NewSuite()}
		r.states[o.Symbol] = st
	}

	// The return value only reports the missing-trend-manager case,
	// which New rules out; actual change is read off the columns.
	st.chart.AddObservation(o.High, o.Low, o.Close, o.Time)

	cols := st.chart.Columns()
	last := 0
	if len(cols) > 0 {
		last = cols[len(cols)-1].Count()
	}
	changed := len(cols) != st.columns || last != st.boxes

	var events []model.ChartEvent
	if changed {
		st.suite.Calculate(cols)
		events = st.collect(o)
		st.boxes = last
	}
	r.mu.Unlock()

	if r.OnProcessed != nil {
		r.OnProcessed(o.Symbol, changed, time.Since(start))
	}
	return events
}

// collect advances the emission cursors and returns events for whatever
// the last observation added.
func (st *chartState) collect(o model.Observation) []model.ChartEvent {
	var events []model.ChartEvent
	ts := o.Time.UnixMilli()

	cols := st.chart.Columns()
	for i := st.columns; i < len(cols); i++ {
		col := cols[i]
		ev := model.NewChartEvent(model.EventColumn, o.Symbol, ts)
		ev.ColumnIdx = i
		ev.Kind = string(col.Kind)
		ev.Price = col.Boxes[len(col.Boxes)-1].Price
		ev.BoxCount = col.Count()
		events = append(events, ev)
	}
	st.columns = len(cols)

	sigs := st.suite.Signals.Signals()
	for i := st.signals; i < len(sigs); i++ {
		s := sigs[i]
		ev := model.NewChartEvent(model.EventSignal, o.Symbol, ts)
		ev.ColumnIdx = s.ColumnIndex
		ev.Kind = string(s.Side)
		ev.Price = s.Price
		events = append(events, ev)
	}
	st.signals = len(sigs)

	// Emit everything past the longest unchanged prefix. A pattern on
	// the newest column re-emits when an extension moves its price.
	pats := st.suite.Patterns.Patterns()
	common := 0
	for common < len(pats) && common < len(st.patterns) && pats[common] == st.patterns[common] {
		common++
	}
	for _, p := range pats[common:] {
		ev := model.NewChartEvent(model.EventPattern, o.Symbol, ts)
		ev.ColumnIdx = p.EndColumn
		ev.Kind = string(p.Type)
		ev.Price = p.Price
		events = append(events, ev)
	}
	st.patterns = append(st.patterns[:0], pats...)

	return events
}

// Run consumes observations from inCh until it closes or ctx is
// cancelled, pushing events into outCh. Sends are non-blocking so a
// stuck consumer cannot stall charting; drops are counted via
// OnDroppedEvent.
func (r *Runner) Run(ctx context.Context, inCh <-chan model.Observation, outCh chan<- model.ChartEvent) {
	for {
		select {
		case <-ctx.Done():
			log.Printf("[engine] cancelled, %d charts live", r.SymbolCount())
			return
		case o, ok := <-inCh:
			if !ok {
				log.Printf("[engine] input closed, %d charts live", r.SymbolCount())
				return
			}
			for _, ev := range r.Process(o) {
				select {
				case outCh <- ev:
				default:
					if r.OnDroppedEvent != nil {
						r.OnDroppedEvent()
					} else {
						log.Printf("[engine] outCh full, dropping %s event for %s", ev.Type, ev.Symbol)
					}
				}
			}
		}
	}
}

// Restore seeds a symbol's chart from a persisted snapshot. Call it
// before feeding observations; a symbol with a live chart is refused.
func (r *Runner) Restore(symbol string, snap *chart.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.states[symbol]; ok {
		return fmt.Errorf("engine: %s already has a live chart", symbol)
	}
	c, err := chart.Restore(snap)
	if err != nil {
		return fmt.Errorf("engine: restore %s: %w", symbol, err)
	}
	st := &chartState{chart: c, suite: indicator.NewSuite()}
	st.suite.Calculate(c.Columns())

	// Start the emission cursors at the restored shape so history is
	// not re-emitted as fresh events.
	st.columns = c.ColumnCount()
	if last := c.LastColumn(); last != nil {
		st.boxes = last.Count()
	}
	st.signals = len(st.suite.Signals.Signals())
	st.patterns = append(st.patterns[:0], st.suite.Patterns.Patterns()...)

	r.states[symbol] = st
	return nil
}

// Symbols returns the charted symbols in sorted order.
func (r *Runner) Symbols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	syms := make([]string, 0, len(r.states))
	for s := range r.states {
		syms = append(syms, s)
	}
	sort.Strings(syms)
	return syms
}

// SymbolCount returns how many charts are live.
func (r *Runner) SymbolCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.states)
}

// WithChart runs fn with the symbol's chart and indicator suite under
// the read lock, so the chart cannot advance mid-read. fn must not
// mutate either. Returns false for an unknown symbol.
func (r *Runner) WithChart(symbol string, fn func(c *chart.Chart, s *indicator.Suite)) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.states[symbol]
	if !ok {
		return false
	}
	fn(st.chart, st.suite)
	return true
}

// Summary returns the indicator digest for one symbol, or "" if the
// symbol has no chart.
func (r *Runner) Summary(symbol string) string {
	var out string
	if !r.WithChart(symbol, func(_ *chart.Chart, s *indicator.Suite) {
		out = s.Summary()
	}) {
		return ""
	}
	return out
}
