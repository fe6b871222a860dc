// Package chart implements point-and-figure chart construction: price
// observations are filtered into columns of X and O boxes according to
// the configured box size and reversal count. Construction is
// single-threaded; callers that feed a chart from multiple goroutines
// must serialize access themselves.
package chart

import (
	"fmt"
	"strings"
	"time"

	"pnf-systemv1/internal/model"
	"pnf-systemv1/internal/trendline"
)

// ConstructionMode selects which prices of an observation drive the
// chart.
type ConstructionMode string

const (
	// HighLow feeds the observation's high and low through the reversal
	// logic.
	HighLow ConstructionMode = "HIGH_LOW"

	// ClosePrice feeds only the closing price.
	ClosePrice ConstructionMode = "CLOSE_PRICE"
)

// ParseConstructionMode maps a config string to a ConstructionMode.
func ParseConstructionMode(s string) (ConstructionMode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "HIGH_LOW", "HIGHLOW", "HL":
		return HighLow, nil
	case "CLOSE_PRICE", "CLOSE", "":
		return ClosePrice, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownConstruction, s)
	}
}

// Chart accumulates point-and-figure columns from a price stream.
type Chart struct {
	construction ConstructionMode
	boxMode      BoxSizeMode
	boxParam     float64

	// boxSize is the remembered effective size. It equals boxParam for
	// the parameterized modes and tracks the tier table in Default mode.
	boxSize  float64
	reversal int

	columns []*model.Column
	trend   *trendline.Manager

	// lastProcessed is zero until the first observation lands, which is
	// what makes the first box carry a month marker.
	lastProcessed time.Time
}

// New validates the configuration and returns an empty chart. Fixed,
// Points and Percentage modes require a positive box parameter; Default
// mode ignores it and starts from a unit box until priced data arrives.
func New(construction ConstructionMode, boxMode BoxSizeMode, boxParam float64, reversal int) (*Chart, error) {
	if reversal < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidReversal, reversal)
	}
	if boxMode != BoxSizeDefault && boxParam <= 0 {
		return nil, fmt.Errorf("%w: got %v for mode %s", ErrInvalidBoxParam, boxParam, boxMode)
	}
	size := boxParam
	if boxMode == BoxSizeDefault {
		size = 1.0
	}
	return &Chart{
		construction: construction,
		boxMode:      boxMode,
		boxParam:     boxParam,
		boxSize:      size,
		reversal:     reversal,
		trend:        trendline.NewManager(size),
	}, nil
}

// AddObservation feeds one OHLC observation to the chart. It returns
// false only when a reversal column was opened with no trend-line
// manager wired in; the observation's timestamp is recorded either way.
func (c *Chart) AddObservation(high, low, close float64, ts time.Time) bool {
	if c.construction == HighLow {
		return c.processHighLow(high, low, ts)
	}
	return c.processClose(close, ts)
}

// AddClose is the close-only convenience form of AddObservation.
func (c *Chart) AddClose(price float64, ts time.Time) bool {
	return c.AddObservation(price, price, price, ts)
}

func (c *Chart) processHighLow(high, low float64, ts time.Time) bool {
	marker := c.monthMarkerFor(ts)

	// The fill step always derives from the high, even when the move is
	// down. Down fills still walk the down-rounded target.
	bs := c.BoxSizeFor(high)

	last := c.LastColumn()
	if last == nil {
		c.seedFirstColumn(high, bs, marker)
		c.lastProcessed = ts
		return true
	}

	var (
		revDir   model.Direction
		revPrice float64
		reversed bool
	)
	// The high is tested first and governs when both extremes would
	// reverse.
	if dir, ok := c.isReversal(high, last); ok {
		revDir, revPrice, reversed = dir, high, true
	} else if dir, ok := c.isReversal(low, last); ok {
		revDir, revPrice, reversed = dir, low, true
	}

	if reversed {
		if !c.openReversalColumn(revDir, revPrice, bs, marker) {
			c.lastProcessed = ts
			return false
		}
	} else {
		switch {
		case last.Kind == model.ColumnX && high > last.Highest():
			c.extendUp(last, high, bs, marker)
		case last.Kind == model.ColumnO && low < last.Lowest():
			c.extendDown(last, low, bs, marker)
		}
	}

	c.lastProcessed = ts
	return true
}

func (c *Chart) processClose(close float64, ts time.Time) bool {
	marker := c.monthMarkerFor(ts)
	bs := c.BoxSizeFor(close)

	last := c.LastColumn()
	if last == nil {
		c.seedFirstColumn(close, bs, marker)
		c.lastProcessed = ts
		return true
	}

	if dir, ok := c.isReversal(close, last); ok {
		if !c.openReversalColumn(dir, close, bs, marker) {
			c.lastProcessed = ts
			return false
		}
	} else {
		switch {
		case (last.Kind == model.ColumnX || last.Kind == model.ColumnMixed) && close > last.Highest():
			c.extendUp(last, close, bs, marker)
		case (last.Kind == model.ColumnO || last.Kind == model.ColumnMixed) && close < last.Lowest():
			c.extendDown(last, close, bs, marker)
		}
	}

	c.lastProcessed = ts
	return true
}

// isReversal tests price against the last column's extremes and returns
// the direction of the column a reversal would open. Mixed columns only
// reverse at reversal count one, and need a full box beyond the extreme.
func (c *Chart) isReversal(price float64, col *model.Column) (model.Direction, bool) {
	if col == nil || col.Count() == 0 {
		return "", false
	}
	bs := c.BoxSizeFor(price)
	switch col.Kind {
	case model.ColumnX:
		if price <= col.Highest()-float64(c.reversal)*bs {
			return model.DirO, true
		}
	case model.ColumnO:
		if price >= col.Lowest()+float64(c.reversal)*bs {
			return model.DirX, true
		}
	case model.ColumnMixed:
		if c.reversal == 1 {
			if price > col.Highest()+bs {
				return model.DirX, true
			}
			if price < col.Lowest()-bs {
				return model.DirO, true
			}
		}
	}
	return "", false
}

// seedFirstColumn opens the chart with a single X box at the reference
// price rounded down onto the box grid.
func (c *Chart) seedFirstColumn(ref, bs float64, marker string) {
	col := model.NewColumn(model.ColumnX, bs)
	col.Add(model.Box{Price: c.RoundToBoxSize(ref, false), Direction: model.DirX, Marker: marker})
	c.columns = append(c.columns, col)
}

// openReversalColumn appends a new column after a reversal, filling from
// one box beyond the prior column's opposite extreme up or down to the
// reversal price rounded in the direction of the move. At reversal count
// one the new column is Mixed. Returns false when no trend-line manager
// is present to observe the transition.
func (c *Chart) openReversalColumn(dir model.Direction, price, bs float64, marker string) bool {
	kind := model.ColumnX
	if dir == model.DirO {
		kind = model.ColumnO
	}
	if c.reversal == 1 {
		kind = model.ColumnMixed
	}

	prev := c.LastColumn()
	col := model.NewColumn(kind, bs)

	if dir == model.DirX {
		target := c.RoundToBoxSize(price, true)
		for p := prev.Lowest() + bs; p <= target; p += bs {
			col.Add(model.Box{Price: p, Direction: model.DirX, Marker: marker})
			marker = ""
		}
	} else {
		target := c.RoundToBoxSize(price, false)
		for p := prev.Highest() - bs; p >= target; p -= bs {
			col.Add(model.Box{Price: p, Direction: model.DirO, Marker: marker})
			marker = ""
		}
	}

	c.columns = append(c.columns, col)

	if c.trend == nil {
		return false
	}
	c.trend.Update(c.columns, len(c.columns)-1)
	return true
}

// extendUp grows the current column toward price rounded up. In a Mixed
// column boxes at or below the column low keep the O direction.
func (c *Chart) extendUp(col *model.Column, price, bs float64, marker string) {
	target := c.RoundToBoxSize(price, true)
	low := col.Lowest()
	for p := col.Highest() + bs; p <= target; p += bs {
		dir := model.DirX
		if col.Kind == model.ColumnMixed && p <= low {
			dir = model.DirO
		}
		col.Add(model.Box{Price: p, Direction: dir, Marker: marker})
		marker = ""
	}
}

// extendDown grows the current column toward price rounded down. In a
// Mixed column boxes at or above the column high keep the X direction.
func (c *Chart) extendDown(col *model.Column, price, bs float64, marker string) {
	target := c.RoundToBoxSize(price, false)
	high := col.Highest()
	for p := col.Lowest() - bs; p >= target; p -= bs {
		dir := model.DirO
		if col.Kind == model.ColumnMixed && p >= high {
			dir = model.DirX
		}
		col.Add(model.Box{Price: p, Direction: dir, Marker: marker})
		marker = ""
	}
}

// monthMarkerFor returns the month label when ts opens a new calendar
// month relative to the last processed observation, or on the very first
// observation. Otherwise it returns "".
func (c *Chart) monthMarkerFor(ts time.Time) string {
	if c.lastProcessed.IsZero() {
		return model.MonthMarker(ts.Month())
	}
	if ts.Year() != c.lastProcessed.Year() || ts.Month() != c.lastProcessed.Month() {
		return model.MonthMarker(ts.Month())
	}
	return ""
}

// Clear drops all columns, trend lines and the processed-time watermark,
// returning the chart to its freshly constructed state. The configured
// modes and parameters are kept.
func (c *Chart) Clear() {
	c.columns = nil
	c.lastProcessed = time.Time{}
	if c.trend != nil {
		c.trend.Clear()
	}
}
