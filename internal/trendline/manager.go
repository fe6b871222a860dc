package trendline

import "pnf-systemv1/internal/model"

// significantLookback bounds how many preceding columns a significant
// high or low is compared against.
const significantLookback = 3

// Manager owns every trend line derived from a chart and tracks the one
// currently active. The box size used for line slope is snapshotted at
// chart construction.
type Manager struct {
	lines   []*Line
	active  *Line
	boxSize float64
}

// NewManager returns an empty manager with the given box size snapshot.
func NewManager(boxSize float64) *Manager {
	return &Manager{boxSize: boxSize}
}

// Update processes the column appended at newIndex: first the active
// line is tested for a break or a touch, then a new line may form on a
// column-type transition. A line broken by this very column frees the
// slot for the new one.
func (m *Manager) Update(columns []*model.Column, newIndex int) {
	m.checkBreak(columns, newIndex)
	m.processNewColumn(columns, newIndex)
}

func (m *Manager) hasActive() bool {
	return m.active != nil && m.active.Active
}

// checkBreak tests the active line against the new column's facing
// extreme: the low for support, the high for resistance. A break
// deactivates the line, otherwise a near miss counts as a touch.
func (m *Manager) checkBreak(columns []*model.Column, idx int) {
	if !m.hasActive() || idx < 0 || idx >= len(columns) {
		return
	}
	col := columns[idx]
	probe := col.Lowest()
	if m.active.Kind == BearishResistance {
		probe = col.Highest()
	}
	if m.active.IsBroken(idx, probe) {
		m.active.Active = false
		return
	}
	m.active.Touch(idx, probe)
}

// processNewColumn forms a new line when a pure column-type transition
// lands while no line is active: O to X anchors bullish support at the
// most recent significant low, X to O anchors bearish resistance at the
// most recent significant high.
func (m *Manager) processNewColumn(columns []*model.Column, idx int) {
	if idx < 1 || idx >= len(columns) || m.hasActive() {
		return
	}
	cur, prev := columns[idx], columns[idx-1]

	switch {
	case cur.Kind == model.ColumnX && prev.Kind == model.ColumnO:
		if low := m.FindSignificantLow(columns, idx-1); low >= 0 {
			m.startLine(BullishSupport, low, columns[low].Lowest())
		}
	case cur.Kind == model.ColumnO && prev.Kind == model.ColumnX:
		if high := m.FindSignificantHigh(columns, idx-1); high >= 0 {
			m.startLine(BearishResistance, high, columns[high].Highest())
		}
	}
}

func (m *Manager) startLine(kind Kind, columnIndex int, price float64) {
	l := NewLine(kind, columnIndex, price, 0, m.boxSize)
	m.lines = append(m.lines, l)
	m.active = l
}

// IsSignificantLow reports whether the column at idx sets a local low:
// an O column whose low undercuts the preceding X column's high, with no
// lower low among up to significantLookback columns before it.
func IsSignificantLow(columns []*model.Column, idx int) bool {
	if idx < 1 || idx >= len(columns) {
		return false
	}
	col := columns[idx]
	if col.Kind != model.ColumnO || columns[idx-1].Kind != model.ColumnX {
		return false
	}
	low := col.Lowest()
	if low >= columns[idx-1].Highest() {
		return false
	}
	lookback := significantLookback
	if idx < lookback {
		lookback = idx
	}
	for i := 1; i <= lookback; i++ {
		if columns[idx-i].Lowest() < low {
			return false
		}
	}
	return true
}

// IsSignificantHigh mirrors IsSignificantLow for X columns topping the
// preceding O column.
func IsSignificantHigh(columns []*model.Column, idx int) bool {
	if idx < 1 || idx >= len(columns) {
		return false
	}
	col := columns[idx]
	if col.Kind != model.ColumnX || columns[idx-1].Kind != model.ColumnO {
		return false
	}
	high := col.Highest()
	if high <= columns[idx-1].Lowest() {
		return false
	}
	lookback := significantLookback
	if idx < lookback {
		lookback = idx
	}
	for i := 1; i <= lookback; i++ {
		if columns[idx-i].Highest() > high {
			return false
		}
	}
	return true
}

// FindSignificantLow scans from fromColumn back to the chart start and
// returns the most recent significant low, or -1.
func (m *Manager) FindSignificantLow(columns []*model.Column, fromColumn int) int {
	if fromColumn >= len(columns) {
		fromColumn = len(columns) - 1
	}
	for i := fromColumn; i >= 0; i-- {
		if IsSignificantLow(columns, i) {
			return i
		}
	}
	return -1
}

// FindSignificantHigh scans from fromColumn back to the chart start and
// returns the most recent significant high, or -1.
func (m *Manager) FindSignificantHigh(columns []*model.Column, fromColumn int) int {
	if fromColumn >= len(columns) {
		fromColumn = len(columns) - 1
	}
	for i := fromColumn; i >= 0; i-- {
		if IsSignificantHigh(columns, i) {
			return i
		}
	}
	return -1
}

// HasBullishBias reports an active bullish support line.
func (m *Manager) HasBullishBias() bool {
	return m.hasActive() && m.active.Kind == BullishSupport
}

// HasBearishBias reports an active bearish resistance line.
func (m *Manager) HasBearishBias() bool {
	return m.hasActive() && m.active.Kind == BearishResistance
}

// IsAboveBullishSupport reports whether price clears the active support
// line projected at columnIndex. Without a bullish bias it is false.
func (m *Manager) IsAboveBullishSupport(columnIndex int, price float64) bool {
	return m.HasBullishBias() && price > m.active.PriceAt(columnIndex)
}

// IsBelowBearishResistance reports whether price stays under the active
// resistance line projected at columnIndex. Without a bearish bias it is
// false.
func (m *Manager) IsBelowBearishResistance(columnIndex int, price float64) bool {
	return m.HasBearishBias() && price < m.active.PriceAt(columnIndex)
}

// Active returns the line currently tracked, which may already be
// broken. Nil before any line has formed.
func (m *Manager) Active() *Line { return m.active }

// Lines returns every line ever formed, in formation order.
func (m *Manager) Lines() []*Line { return m.lines }

// BoxSize returns the slope snapshot.
func (m *Manager) BoxSize() float64 { return m.boxSize }

// Clear drops all lines.
func (m *Manager) Clear() {
	m.lines = nil
	m.active = nil
}
