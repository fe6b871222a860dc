package indicator

import (
	"github.com/markcheno/go-talib"

	"pnf-systemv1/internal/model"
)

// Bands is a Bollinger-style envelope over column midpoints: middle is
// the period SMA, upper and lower sit width population standard
// deviations above and below it. The i < period-1 warmup rule matches
// MovingAverage.
type Bands struct {
	period int
	width  float64

	middle []float64
	upper  []float64
	lower  []float64
}

// NewBands creates an envelope with the given window and width in
// standard deviations.
func NewBands(period int, width float64) *Bands {
	return &Bands{period: period, width: width}
}

// Calculate rebuilds all three series from the current columns.
func (b *Bands) Calculate(cols []*model.Column) {
	mids := Midpoints(cols)
	if len(mids) < b.period {
		b.upper = make([]float64, len(mids))
		b.middle = make([]float64, len(mids))
		b.lower = make([]float64, len(mids))
		return
	}
	b.upper, b.middle, b.lower = talib.BBands(mids, b.period, b.width, b.width, talib.SMA)
}

// Middle returns the center line at the index, or zero out of range.
func (b *Bands) Middle(columnIndex int) float64 {
	if columnIndex < 0 || columnIndex >= len(b.middle) {
		return 0
	}
	return b.middle[columnIndex]
}

// Upper returns the upper band at the index, or zero out of range.
func (b *Bands) Upper(columnIndex int) float64 {
	if columnIndex < 0 || columnIndex >= len(b.upper) {
		return 0
	}
	return b.upper[columnIndex]
}

// Lower returns the lower band at the index, or zero out of range.
func (b *Bands) Lower(columnIndex int) float64 {
	if columnIndex < 0 || columnIndex >= len(b.lower) {
		return 0
	}
	return b.lower[columnIndex]
}

// HasValue reports whether the bands carry values at the index.
func (b *Bands) HasValue(columnIndex int) bool {
	return columnIndex >= b.period-1 && columnIndex < len(b.middle)
}

// IsAboveUpper reports whether price closed above the upper band at the
// index. Indices without a value are never above.
func (b *Bands) IsAboveUpper(columnIndex int, price float64) bool {
	if !b.HasValue(columnIndex) {
		return false
	}
	return price > b.upper[columnIndex]
}

// IsBelowLower reports whether price closed below the lower band at the
// index.
func (b *Bands) IsBelowLower(columnIndex int, price float64) bool {
	if !b.HasValue(columnIndex) {
		return false
	}
	return price < b.lower[columnIndex]
}

// Period returns the configured window length.
func (b *Bands) Period() int { return b.period }

// Width returns the configured band width in standard deviations.
func (b *Bands) Width() float64 { return b.width }
