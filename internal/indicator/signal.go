package indicator

import (
	"time"

	"pnf-systemv1/internal/model"
)

// Side labels a detected signal.
type Side string

const (
	SideNone Side = "NONE"
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Signal records one buy or sell trigger at a column.
type Signal struct {
	Side        Side      `json:"side"`
	ColumnIndex int       `json:"column_index"`
	Price       float64   `json:"price"`
	Time        time.Time `json:"time"`
}

// SignalDetector scans the column history for simple breakouts: an X
// column topping the previous X column's high is a buy, an O column
// undercutting the previous O column's low is a sell.
type SignalDetector struct {
	signals []Signal
	current Side
}

// NewSignalDetector returns an empty detector.
func NewSignalDetector() *SignalDetector {
	return &SignalDetector{current: SideNone}
}

// Detect rebuilds the signal log from the current columns, oldest first.
// A column emits at most one signal.
func (d *SignalDetector) Detect(cols []*model.Column) {
	d.signals = d.signals[:0]
	d.current = SideNone
	for i := range cols {
		if d.isBuy(cols, i) {
			d.signals = append(d.signals, Signal{
				Side:        SideBuy,
				ColumnIndex: i,
				Price:       cols[i].Highest(),
				Time:        time.Now(),
			})
			d.current = SideBuy
		} else if d.isSell(cols, i) {
			d.signals = append(d.signals, Signal{
				Side:        SideSell,
				ColumnIndex: i,
				Price:       cols[i].Lowest(),
				Time:        time.Now(),
			})
			d.current = SideSell
		}
	}
}

func (d *SignalDetector) isBuy(cols []*model.Column, idx int) bool {
	if idx < 2 || cols[idx].Kind != model.ColumnX {
		return false
	}
	prev := previousOfKind(cols, idx-1, model.ColumnX)
	if prev < 0 {
		return false
	}
	return cols[idx].Highest() > cols[prev].Highest()
}

func (d *SignalDetector) isSell(cols []*model.Column, idx int) bool {
	if idx < 2 || cols[idx].Kind != model.ColumnO {
		return false
	}
	prev := previousOfKind(cols, idx-1, model.ColumnO)
	if prev < 0 {
		return false
	}
	return cols[idx].Lowest() < cols[prev].Lowest()
}

// Signals returns the full log in detection order.
func (d *SignalDetector) Signals() []Signal { return d.signals }

// Last returns the most recent signal, or a none record with column
// index -1.
func (d *SignalDetector) Last() Signal {
	if len(d.signals) == 0 {
		return Signal{Side: SideNone, ColumnIndex: -1, Time: time.Now()}
	}
	return d.signals[len(d.signals)-1]
}

// Current returns the side of the most recent signal.
func (d *SignalDetector) Current() Side { return d.current }

// HasBuy reports whether the most recent signal is a buy.
func (d *SignalDetector) HasBuy() bool { return d.current == SideBuy }

// HasSell reports whether the most recent signal is a sell.
func (d *SignalDetector) HasSell() bool { return d.current == SideSell }

// previousOfKind returns the most recent column of the given kind at or
// before from, or -1.
func previousOfKind(cols []*model.Column, from int, kind model.ColumnKind) int {
	for i := from; i >= 0; i-- {
		if cols[i].Kind == kind {
			return i
		}
	}
	return -1
}
