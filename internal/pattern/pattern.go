// Package pattern scans point-and-figure column history for classic
// chart formations, from double tops through catapults, poles and
// traps.
package pattern

// Type names one recognizable formation.
type Type string

const (
	None Type = "NONE"

	DoubleTopBreakout        Type = "DOUBLE_TOP_BREAKOUT"
	DoubleBottomBreakdown    Type = "DOUBLE_BOTTOM_BREAKDOWN"
	TripleTopBreakout        Type = "TRIPLE_TOP_BREAKOUT"
	TripleBottomBreakdown    Type = "TRIPLE_BOTTOM_BREAKDOWN"
	QuadrupleTopBreakout     Type = "QUADRUPLE_TOP_BREAKOUT"
	QuadrupleBottomBreakdown Type = "QUADRUPLE_BOTTOM_BREAKDOWN"
	AscendingTripleTop       Type = "ASCENDING_TRIPLE_TOP"
	DescendingTripleBottom   Type = "DESCENDING_TRIPLE_BOTTOM"
	BullishCatapult          Type = "BULLISH_CATAPULT"
	BearishCatapult          Type = "BEARISH_CATAPULT"
	BullishSignalReversed    Type = "BULLISH_SIGNAL_REVERSED"
	BearishSignalReversed    Type = "BEARISH_SIGNAL_REVERSED"
	BullishTriangle          Type = "BULLISH_TRIANGLE"
	BearishTriangle          Type = "BEARISH_TRIANGLE"
	LongTailDown             Type = "LONG_TAIL_DOWN"
	HighPole                 Type = "HIGH_POLE"
	LowPole                  Type = "LOW_POLE"
	BullTrap                 Type = "BULL_TRAP"
	BearTrap                 Type = "BEAR_TRAP"
	SpreadTripleTop          Type = "SPREAD_TRIPLE_TOP"
	SpreadTripleBottom       Type = "SPREAD_TRIPLE_BOTTOM"
)

var labels = map[Type]string{
	None:                     "None",
	DoubleTopBreakout:        "Double Top Breakout",
	DoubleBottomBreakdown:    "Double Bottom Breakdown",
	TripleTopBreakout:        "Triple Top Breakout",
	TripleBottomBreakdown:    "Triple Bottom Breakdown",
	QuadrupleTopBreakout:     "Quadruple Top Breakout",
	QuadrupleBottomBreakdown: "Quadruple Bottom Breakdown",
	AscendingTripleTop:       "Ascending Triple Top",
	DescendingTripleBottom:   "Descending Triple Bottom",
	BullishCatapult:          "Bullish Catapult",
	BearishCatapult:          "Bearish Catapult",
	BullishSignalReversed:    "Bullish Signal Reversed",
	BearishSignalReversed:    "Bearish Signal Reversed",
	BullishTriangle:          "Bullish Triangle",
	BearishTriangle:          "Bearish Triangle",
	LongTailDown:             "Long Tail Down",
	HighPole:                 "High Pole",
	LowPole:                  "Low Pole",
	BullTrap:                 "Bull Trap",
	BearTrap:                 "Bear Trap",
	SpreadTripleTop:          "Spread Triple Top",
	SpreadTripleBottom:       "Spread Triple Bottom",
}

// Label returns the display name of the formation.
func (t Type) Label() string {
	if s, ok := labels[t]; ok {
		return s
	}
	return "Unknown"
}

var bullishTypes = map[Type]bool{
	DoubleTopBreakout:     true,
	TripleTopBreakout:     true,
	QuadrupleTopBreakout:  true,
	AscendingTripleTop:    true,
	BullishCatapult:       true,
	BullishSignalReversed: true,
	BullishTriangle:       true,
	LongTailDown:          true,
	LowPole:               true,
	BearTrap:              true,
	SpreadTripleTop:       true,
}

var bearishTypes = map[Type]bool{
	DoubleBottomBreakdown:    true,
	TripleBottomBreakdown:    true,
	QuadrupleBottomBreakdown: true,
	DescendingTripleBottom:   true,
	BearishCatapult:          true,
	BearishSignalReversed:    true,
	BearishTriangle:          true,
	HighPole:                 true,
	BullTrap:                 true,
	SpreadTripleBottom:       true,
}

// Bullish reports whether the formation resolves upward. A high pole or
// a bull trap is bearish even though it begins with an X thrust.
func (t Type) Bullish() bool { return bullishTypes[t] }

// Bearish reports whether the formation resolves downward.
func (t Type) Bearish() bool { return bearishTypes[t] }

// Pattern records one detected formation and where it happened.
type Pattern struct {
	Type        Type    `json:"type"`
	StartColumn int     `json:"start_column"`
	EndColumn   int     `json:"end_column"`
	Price       float64 `json:"price"`
}
