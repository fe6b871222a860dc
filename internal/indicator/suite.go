package indicator

import (
	"fmt"
	"strings"

	"pnf-systemv1/internal/model"
	"pnf-systemv1/internal/pattern"
)

// Default configuration of the bundled suite.
const (
	shortMAPeriod = 5
	longMAPeriod  = 10
	bandsPeriod   = 5
	bandsWidth    = 2.0

	// significantTouches is the touch count a level needs before the
	// summary counts it as significant.
	significantTouches = 3
)

// Suite bundles every analyzer over one chart so they can be recomputed
// as a group. Fields are exported for direct querying after Calculate.
type Suite struct {
	SMA5       *MovingAverage
	SMA10      *MovingAverage
	Bands      *Bands
	Signals    *SignalDetector
	Patterns   *pattern.Recognizer
	Levels     *SupportResistance
	Objectives *PriceObjective
}

// NewSuite creates the default bundle: 5 and 10 period moving averages,
// a 5-period double-width band envelope, and a one-percent level join
// threshold.
func NewSuite() *Suite {
	return &Suite{
		SMA5:       NewMovingAverage(shortMAPeriod),
		SMA10:      NewMovingAverage(longMAPeriod),
		Bands:      NewBands(bandsPeriod, bandsWidth),
		Signals:    NewSignalDetector(),
		Patterns:   pattern.NewRecognizer(),
		Levels:     NewSupportResistance(DefaultLevelThreshold),
		Objectives: NewPriceObjective(),
	}
}

// Calculate recomputes every analyzer from the columns. An empty column
// list is a no-op; previously computed series are kept.
func (s *Suite) Calculate(cols []*model.Column) {
	if len(cols) == 0 {
		return
	}
	s.SMA5.Calculate(cols)
	s.SMA10.Calculate(cols)
	s.Bands.Calculate(cols)
	s.Signals.Detect(cols)
	s.Patterns.Detect(cols)
	s.Levels.Identify(cols)
	s.Objectives.Calculate(cols)
}

// Summary renders a short human-readable digest of the current state.
func (s *Suite) Summary() string {
	var sb strings.Builder
	sb.WriteString("=== P&F INDICATORS SUMMARY ===\n\n")

	sb.WriteString("CURRENT SIGNAL: ")
	switch s.Signals.Current() {
	case SideBuy:
		sb.WriteString("BUY\n")
	case SideSell:
		sb.WriteString("SELL\n")
	default:
		sb.WriteString("NONE\n")
	}

	sb.WriteString("\nLATEST PATTERN: ")
	if latest := s.Patterns.Latest(); latest.Type != pattern.None {
		sb.WriteString(latest.Type.Label() + "\n")
	} else {
		sb.WriteString("None detected\n")
	}

	fmt.Fprintf(&sb, "\nBULLISH PATTERNS: %d\n", len(s.Patterns.Bullish()))
	fmt.Fprintf(&sb, "BEARISH PATTERNS: %d\n", len(s.Patterns.Bearish()))

	fmt.Fprintf(&sb, "\nSIGNIFICANT S/R LEVELS: %d\n", len(s.Levels.Significant(significantTouches)))

	if obj := s.Objectives.Latest(); obj.ColumnIndex != -1 {
		side := "Bullish"
		if !obj.Bullish {
			side = "Bearish"
		}
		fmt.Fprintf(&sb, "\nLATEST PRICE TARGET: %.5f (%s)\n", obj.Target, side)
	}

	return sb.String()
}
