package indicator

import (
	"math"

	"pnf-systemv1/internal/model"
)

const (
	// DefaultLevelThreshold is the relative distance within which a touch
	// joins an existing level.
	DefaultLevelThreshold = 0.01

	// DefaultProximityTolerance is a reasonable tolerance for the
	// NearSupport and NearResistance queries.
	DefaultProximityTolerance = 0.02
)

// Level aggregates repeated touches of one price area. Support levels
// collect O column lows, resistance levels X column highs.
type Level struct {
	Price       float64 `json:"price"`
	TouchCount  int     `json:"touch_count"`
	Support     bool    `json:"support"`
	FirstColumn int     `json:"first_column"`
	LastColumn  int     `json:"last_column"`
}

// SupportResistance clusters column extremes into price levels.
type SupportResistance struct {
	threshold float64
	levels    []Level
}

// NewSupportResistance creates a clusterer with the given relative join
// threshold. Non-positive thresholds fall back to the default.
func NewSupportResistance(threshold float64) *SupportResistance {
	if threshold <= 0 {
		threshold = DefaultLevelThreshold
	}
	return &SupportResistance{threshold: threshold}
}

// Identify rebuilds the level list from the current columns. A touch
// joins the first same-kind level within the threshold of the incoming
// price; the level keeps its original price and updates its touch count
// and last column. Mixed columns are skipped. A final pass merges
// same-kind levels that still sit within the threshold of each other.
func (s *SupportResistance) Identify(cols []*model.Column) {
	s.levels = s.levels[:0]
	for i, col := range cols {
		switch col.Kind {
		case model.ColumnO:
			s.touch(col.Lowest(), true, i)
		case model.ColumnX:
			s.touch(col.Highest(), false, i)
		}
	}
	s.merge()
}

func (s *SupportResistance) touch(price float64, support bool, columnIndex int) {
	for k := range s.levels {
		lv := &s.levels[k]
		if lv.Support == support && math.Abs(lv.Price-price)/price < s.threshold {
			lv.TouchCount++
			lv.LastColumn = columnIndex
			return
		}
	}
	s.levels = append(s.levels, Level{
		Price:       price,
		TouchCount:  1,
		Support:     support,
		FirstColumn: columnIndex,
		LastColumn:  columnIndex,
	})
}

// merge collapses level pairs of the same kind within the threshold into
// one level at their touch-count-weighted average price. The earlier
// level's first column is kept, the later last column wins.
func (s *SupportResistance) merge() {
	for i := 0; i < len(s.levels); i++ {
		for j := i + 1; j < len(s.levels); {
			a := &s.levels[i]
			b := s.levels[j]
			if a.Support == b.Support && math.Abs(a.Price-b.Price)/a.Price < s.threshold {
				a.Price = (a.Price*float64(a.TouchCount) + b.Price*float64(b.TouchCount)) /
					float64(a.TouchCount+b.TouchCount)
				a.TouchCount += b.TouchCount
				if b.LastColumn > a.LastColumn {
					a.LastColumn = b.LastColumn
				}
				s.levels = append(s.levels[:j], s.levels[j+1:]...)
			} else {
				j++
			}
		}
	}
}

// Levels returns every identified level.
func (s *SupportResistance) Levels() []Level { return s.levels }

// Supports returns only the support levels.
func (s *SupportResistance) Supports() []Level {
	var out []Level
	for _, lv := range s.levels {
		if lv.Support {
			out = append(out, lv)
		}
	}
	return out
}

// Resistances returns only the resistance levels.
func (s *SupportResistance) Resistances() []Level {
	var out []Level
	for _, lv := range s.levels {
		if !lv.Support {
			out = append(out, lv)
		}
	}
	return out
}

// Significant returns levels touched at least minTouches times.
func (s *SupportResistance) Significant(minTouches int) []Level {
	var out []Level
	for _, lv := range s.levels {
		if lv.TouchCount >= minTouches {
			out = append(out, lv)
		}
	}
	return out
}

// NearSupport reports whether price lies within the relative tolerance
// of any support level. The tolerance is relative to the level price.
func (s *SupportResistance) NearSupport(price, tolerance float64) bool {
	for _, lv := range s.levels {
		if lv.Support && math.Abs(price-lv.Price)/lv.Price < tolerance {
			return true
		}
	}
	return false
}

// NearResistance reports whether price lies within the relative
// tolerance of any resistance level.
func (s *SupportResistance) NearResistance(price, tolerance float64) bool {
	for _, lv := range s.levels {
		if !lv.Support && math.Abs(price-lv.Price)/lv.Price < tolerance {
			return true
		}
	}
	return false
}

// Threshold returns the configured join threshold.
func (s *SupportResistance) Threshold() float64 { return s.threshold }
