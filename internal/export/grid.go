// Package export renders a chart's price-by-column grid as text and as
// an Excel workbook. Both layouts are identical: one row per distinct
// box price (descending), one cell per column, each occupied cell
// showing the box's month marker when present or its X/O symbol.
package export

import (
	"fmt"
	"math"
	"strings"

	"pnf-systemv1/internal/chart"
	"pnf-systemv1/internal/model"
)

// priceEps matches grid rows to box prices.
const priceEps = 1e-5

// boxAt finds the box plotted at price, if any.
func boxAt(col *model.Column, price float64) (model.Box, bool) {
	for _, b := range col.Boxes {
		if math.Abs(b.Price-price) < priceEps {
			return b, true
		}
	}
	return model.Box{}, false
}

// symbolFor returns the plotted string for a box: its month marker when
// present, else its direction.
func symbolFor(b model.Box) string {
	if b.Marker != "" {
		return b.Marker
	}
	return string(b.Direction)
}

// Grid renders the chart as fixed-width text for terminals and logs.
// Empty charts render as an empty string.
func Grid(c *chart.Chart) string {
	cols := c.Columns()
	prices := c.AllPrices()
	if len(cols) == 0 || len(prices) == 0 {
		return ""
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%10s |", "Price")
	for i := range cols {
		fmt.Fprintf(&sb, "%3d", i+1)
	}
	sb.WriteString(" | Price\n")

	for _, price := range prices {
		fmt.Fprintf(&sb, "%10.4f |", price)
		for _, col := range cols {
			if b, ok := boxAt(col, price); ok {
				fmt.Fprintf(&sb, "%3s", symbolFor(b))
			} else {
				fmt.Fprintf(&sb, "%3s", ".")
			}
		}
		fmt.Fprintf(&sb, " | %.4f\n", price)
	}
	return sb.String()
}
