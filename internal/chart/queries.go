package chart

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"pnf-systemv1/internal/model"
	"pnf-systemv1/internal/trendline"
)

// priceEps treats box prices within this distance as the same level when
// deduplicating.
const priceEps = 1e-5

// ColumnCount returns the number of columns on the chart.
func (c *Chart) ColumnCount() int { return len(c.columns) }

// Column returns the column at index i, failing fast when i is out of
// range.
func (c *Chart) Column(i int) (*model.Column, error) {
	if i < 0 || i >= len(c.columns) {
		return nil, fmt.Errorf("%w: %d of %d", ErrColumnOutOfRange, i, len(c.columns))
	}
	return c.columns[i], nil
}

// LastColumn returns the current column, or nil on an empty chart.
func (c *Chart) LastColumn() *model.Column {
	if len(c.columns) == 0 {
		return nil
	}
	return c.columns[len(c.columns)-1]
}

// Columns exposes the column list for indicators and renderers. The
// returned slice is the chart's own backing store and must be treated as
// read-only.
func (c *Chart) Columns() []*model.Column { return c.columns }

// XColumnCount counts pure X columns.
func (c *Chart) XColumnCount() int { return c.countKind(model.ColumnX) }

// OColumnCount counts pure O columns.
func (c *Chart) OColumnCount() int { return c.countKind(model.ColumnO) }

// MixedColumnCount counts one-box-reversal mixed columns.
func (c *Chart) MixedColumnCount() int { return c.countKind(model.ColumnMixed) }

func (c *Chart) countKind(k model.ColumnKind) int {
	n := 0
	for _, col := range c.columns {
		if col.Kind == k {
			n++
		}
	}
	return n
}

// XColumnIndices returns the indices of pure X columns, ascending.
func (c *Chart) XColumnIndices() []int { return c.kindIndices(model.ColumnX) }

// OColumnIndices returns the indices of pure O columns, ascending.
func (c *Chart) OColumnIndices() []int { return c.kindIndices(model.ColumnO) }

// MixedColumnIndices returns the indices of mixed columns, ascending.
func (c *Chart) MixedColumnIndices() []int { return c.kindIndices(model.ColumnMixed) }

func (c *Chart) kindIndices(k model.ColumnKind) []int {
	var idx []int
	for i, col := range c.columns {
		if col.Kind == k {
			idx = append(idx, i)
		}
	}
	return idx
}

// AllPrices returns every distinct box price on the chart in strictly
// descending order. Prices within priceEps collapse to one level.
func (c *Chart) AllPrices() []float64 {
	var prices []float64
	for _, col := range c.columns {
		for _, b := range col.Boxes {
			seen := false
			for _, p := range prices {
				if math.Abs(p-b.Price) < priceEps {
					seen = true
					break
				}
			}
			if !seen {
				prices = append(prices, b.Price)
			}
		}
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(prices)))
	return prices
}

// TrendManager exposes the trend-line manager for renderers and tests.
func (c *Chart) TrendManager() *trendline.Manager { return c.trend }

// HasBullishBias reports whether an active bullish support line exists.
func (c *Chart) HasBullishBias() bool {
	return c.trend != nil && c.trend.HasBullishBias()
}

// HasBearishBias reports whether an active bearish resistance line
// exists.
func (c *Chart) HasBearishBias() bool {
	return c.trend != nil && c.trend.HasBearishBias()
}

// ShouldTakeBullishSignals is true under an active bullish bias and also
// when no bias is active at all, when both directions are tradeable.
func (c *Chart) ShouldTakeBullishSignals() bool {
	return c.HasBullishBias() || !c.HasBearishBias()
}

// ShouldTakeBearishSignals mirrors ShouldTakeBullishSignals.
func (c *Chart) ShouldTakeBearishSignals() bool {
	return c.HasBearishBias() || !c.HasBullishBias()
}

// IsAboveBullishSupport reports whether price sits above the active
// support line projected at the current column.
func (c *Chart) IsAboveBullishSupport(price float64) bool {
	if c.trend == nil {
		return false
	}
	return c.trend.IsAboveBullishSupport(len(c.columns)-1, price)
}

// IsBelowBearishResistance reports whether price sits below the active
// resistance line projected at the current column.
func (c *Chart) IsBelowBearishResistance(price float64) bool {
	if c.trend == nil {
		return false
	}
	return c.trend.IsBelowBearishResistance(len(c.columns)-1, price)
}

// Construction returns the configured construction mode.
func (c *Chart) Construction() ConstructionMode { return c.construction }

// BoxMode returns the configured box sizing mode.
func (c *Chart) BoxMode() BoxSizeMode { return c.boxMode }

// BoxSize returns the remembered effective box size.
func (c *Chart) BoxSize() float64 { return c.boxSize }

// BoxParam returns the configured box size parameter.
func (c *Chart) BoxParam() float64 { return c.boxParam }

// ReversalCount returns the configured reversal count.
func (c *Chart) ReversalCount() int { return c.reversal }

// LastProcessed returns the timestamp of the latest observation, zero
// before any data.
func (c *Chart) LastProcessed() time.Time { return c.lastProcessed }

// SetConstruction switches the construction mode for subsequent
// observations. History is not rebuilt.
func (c *Chart) SetConstruction(m ConstructionMode) { c.construction = m }

// SetBoxMode switches the sizing mode for subsequent observations.
// History is not rebuilt.
func (c *Chart) SetBoxMode(m BoxSizeMode) { c.boxMode = m }

// SetBoxSize replaces the box size parameter and the remembered size.
// History is not rebuilt.
func (c *Chart) SetBoxSize(size float64) {
	c.boxParam = size
	c.boxSize = size
}

// SetReversalCount replaces the reversal count for subsequent
// observations. History is not rebuilt.
func (c *Chart) SetReversalCount(n int) { c.reversal = n }

// String renders a one-look textual summary of the chart state.
func (c *Chart) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "P&F chart: %s/%s box=%.5f reversal=%d columns=%d (X=%d O=%d mixed=%d)\n",
		c.construction, c.boxMode, c.boxSize, c.reversal,
		len(c.columns), c.XColumnCount(), c.OColumnCount(), c.MixedColumnCount())
	for i, col := range c.columns {
		fmt.Fprintf(&b, "  col %2d %-5s boxes=%2d lo=%.5f hi=%.5f\n",
			i, col.Kind, col.Count(), col.Lowest(), col.Highest())
	}
	if c.trend != nil {
		if l := c.trend.Active(); l != nil {
			fmt.Fprintf(&b, "  trend: %s from col %d @ %.5f active=%v touches=%d\n",
				l.Kind, l.Start.ColumnIndex, l.Start.Price, l.Active, l.TouchCount)
		}
	}
	return b.String()
}
