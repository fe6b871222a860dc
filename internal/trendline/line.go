// Package trendline tracks 45-degree point-and-figure trend lines:
// bullish support rising one box per column from a significant low, and
// bearish resistance falling one box per column from a significant high.
package trendline

import (
	"fmt"
	"math"
)

// Kind discriminates the two line directions.
type Kind string

const (
	BullishSupport    Kind = "BULLISH_SUPPORT"
	BearishResistance Kind = "BEARISH_RESISTANCE"
)

// Point anchors a line to a box on the chart.
type Point struct {
	ColumnIndex int     `json:"column_index"`
	Price       float64 `json:"price"`
	BoxIndex    int     `json:"box_index"`
}

// Line is one 45-degree trend line. The slope is exactly one box size
// per column from the start point.
type Line struct {
	Kind       Kind    `json:"kind"`
	Start      Point   `json:"start"`
	End        Point   `json:"end"`
	BoxSize    float64 `json:"box_size"`
	Active     bool    `json:"active"`
	Touched    bool    `json:"touched"`
	TouchCount int     `json:"touch_count"`
}

// NewLine returns an active line anchored at the given box. The end
// point starts out equal to the start point.
func NewLine(kind Kind, columnIndex int, price float64, boxIndex int, boxSize float64) *Line {
	p := Point{ColumnIndex: columnIndex, Price: price, BoxIndex: boxIndex}
	return &Line{Kind: kind, Start: p, End: p, BoxSize: boxSize, Active: true}
}

// PriceAt projects the line's price at columnIndex. Columns before the
// start have no projection and read as zero.
func (l *Line) PriceAt(columnIndex int) float64 {
	if columnIndex < l.Start.ColumnIndex {
		return 0
	}
	diff := float64(columnIndex - l.Start.ColumnIndex)
	if l.Kind == BullishSupport {
		return l.Start.Price + diff*l.BoxSize
	}
	return l.Start.Price - diff*l.BoxSize
}

// IsBroken reports whether price crosses the line at columnIndex by more
// than one box size. Inactive lines and columns at or before the start
// never break.
func (l *Line) IsBroken(columnIndex int, price float64) bool {
	if !l.Active || columnIndex <= l.Start.ColumnIndex {
		return false
	}
	at := l.PriceAt(columnIndex)
	if l.Kind == BullishSupport {
		return price < at-l.BoxSize
	}
	return price > at+l.BoxSize
}

// Touch tests whether price comes within half a box of the line at
// columnIndex and records the touch when it does.
func (l *Line) Touch(columnIndex int, price float64) bool {
	if !l.Active || columnIndex <= l.Start.ColumnIndex {
		return false
	}
	if math.Abs(price-l.PriceAt(columnIndex)) < l.BoxSize*0.5 {
		l.Touched = true
		l.TouchCount++
		return true
	}
	return false
}

// UpdateEnd moves the drawn end of the line. Renderers extend the end
// point as the chart grows.
func (l *Line) UpdateEnd(columnIndex int, price float64, boxIndex int) {
	l.End = Point{ColumnIndex: columnIndex, Price: price, BoxIndex: boxIndex}
}

func (l *Line) String() string {
	state := "active"
	if !l.Active {
		state = "broken"
	}
	return fmt.Sprintf("%s from col %d @ %.5f (%s, touches=%d)",
		l.Kind, l.Start.ColumnIndex, l.Start.Price, state, l.TouchCount)
}
