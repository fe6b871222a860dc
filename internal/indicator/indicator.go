// Package indicator holds the batch analyzers derived from a chart's
// column history: moving averages, bands, breakout signals, support and
// resistance levels, and vertical-count price objectives. Every analyzer
// recomputes its series from scratch on each call and is stateless
// between calls; none of them mutate the columns they read.
package indicator

import "pnf-systemv1/internal/model"

// Midpoints returns the (highest+lowest)/2 proxy price per column.
// Empty columns contribute zero.
func Midpoints(cols []*model.Column) []float64 {
	mids := make([]float64, len(cols))
	for i, c := range cols {
		mids[i] = c.Midpoint()
	}
	return mids
}
