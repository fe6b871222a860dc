package indicator

import (
	"github.com/markcheno/go-talib"

	"pnf-systemv1/internal/model"
)

// MovingAverage is a simple moving average of column midpoints. Indices
// below period-1 carry no value and read as zero.
type MovingAverage struct {
	period int
	values []float64
}

// NewMovingAverage creates a moving average with the given period.
func NewMovingAverage(period int) *MovingAverage {
	return &MovingAverage{period: period}
}

// Calculate rebuilds the series from the current columns.
func (m *MovingAverage) Calculate(cols []*model.Column) {
	mids := Midpoints(cols)
	if len(mids) < m.period {
		// talib reads past the end of inputs shorter than the period;
		// the series would be all leading zeros anyway.
		m.values = make([]float64, len(mids))
		return
	}
	m.values = talib.Sma(mids, m.period)
}

// Value returns the average at the given column index, or zero when the
// index is out of range or below the warmup window.
func (m *MovingAverage) Value(columnIndex int) float64 {
	if columnIndex < 0 || columnIndex >= len(m.values) {
		return 0
	}
	return m.values[columnIndex]
}

// HasValue reports whether the series carries a value at the index.
func (m *MovingAverage) HasValue(columnIndex int) bool {
	return columnIndex >= m.period-1 && columnIndex < len(m.values)
}

// Period returns the configured window length.
func (m *MovingAverage) Period() int { return m.period }

// Values returns the full series, one entry per column.
func (m *MovingAverage) Values() []float64 { return m.values }
