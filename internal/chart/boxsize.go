package chart

import (
	"fmt"
	"math"
	"strings"
)

// BoxSizeMode selects how the box size is derived from price.
type BoxSizeMode string

const (
	// BoxSizeFixed and BoxSizePoints use the configured parameter as an
	// absolute price increment.
	BoxSizeFixed  BoxSizeMode = "FIXED"
	BoxSizePoints BoxSizeMode = "POINTS"

	// BoxSizeDefault picks the increment from a price-tier table.
	BoxSizeDefault BoxSizeMode = "DEFAULT"

	// BoxSizePercentage reads the parameter as a percent of price.
	BoxSizePercentage BoxSizeMode = "PERCENTAGE"
)

// ParseBoxSizeMode maps a config string to a BoxSizeMode.
func ParseBoxSizeMode(s string) (BoxSizeMode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "FIXED":
		return BoxSizeFixed, nil
	case "POINTS":
		return BoxSizePoints, nil
	case "DEFAULT", "":
		return BoxSizeDefault, nil
	case "PERCENTAGE", "PERCENT":
		return BoxSizePercentage, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownBoxSizeMode, s)
	}
}

// defaultTiers is the classic chartist box-size table for Default mode:
// the first row whose bound exceeds the price supplies the size.
var defaultTiers = []struct {
	below float64
	size  float64
}{
	{0.25, 0.0625},
	{1, 0.125},
	{5, 0.25},
	{20, 0.5},
	{100, 1},
	{200, 2},
	{500, 4},
	{1000, 5},
	{25000, 50},
}

// defaultTopSize applies to prices at or above the last tier bound.
const defaultTopSize = 500.0

// BoxSizeFor returns the box size in effect for price under the
// configured sizing mode. In Default mode the tiered size also becomes
// the chart's remembered box size, so the size tracks the latest price
// the chart has seen.
func (c *Chart) BoxSizeFor(price float64) float64 {
	switch c.boxMode {
	case BoxSizeFixed, BoxSizePoints:
		return c.boxParam
	case BoxSizePercentage:
		return price * c.boxParam / 100
	default:
		for _, t := range defaultTiers {
			if price < t.below {
				c.boxSize = t.size
				return c.boxSize
			}
		}
		c.boxSize = defaultTopSize
		return c.boxSize
	}
}

// RoundToBoxSize snaps price onto the box grid implied by BoxSizeFor,
// rounding up or down as requested.
func (c *Chart) RoundToBoxSize(price float64, roundUp bool) float64 {
	bs := c.BoxSizeFor(price)
	if roundUp {
		return math.Ceil(price/bs) * bs
	}
	return math.Floor(price/bs) * bs
}
