package chart

import (
	"fmt"
	"time"

	"pnf-systemv1/internal/model"
)

// Snapshot is the serializable state of a chart. It carries the full
// configuration alongside the column history so a restored chart keeps
// producing the same boxes the live one would have.
type Snapshot struct {
	Construction  ConstructionMode `json:"construction"`
	BoxMode       BoxSizeMode      `json:"box_mode"`
	BoxParam      float64          `json:"box_param"`
	BoxSize       float64          `json:"box_size"`
	Reversal      int              `json:"reversal"`
	LastProcessed time.Time        `json:"last_processed"`
	Columns       []*model.Column  `json:"columns"`
}

// Snapshot copies the chart state for persistence. Columns are deep
// copied so later chart updates cannot reach into the snapshot.
func (c *Chart) Snapshot() *Snapshot {
	return &Snapshot{
		Construction:  c.construction,
		BoxMode:       c.boxMode,
		BoxParam:      c.boxParam,
		BoxSize:       c.boxSize,
		Reversal:      c.reversal,
		LastProcessed: c.lastProcessed,
		Columns:       copyColumns(c.columns),
	}
}

// Restore rebuilds a chart from a snapshot. Trend lines are not stored;
// they are replayed from the column history, one update per reversal
// column, which reproduces the live anchors from the final column shapes.
func Restore(s *Snapshot) (*Chart, error) {
	if s == nil {
		return nil, fmt.Errorf("restore chart: nil snapshot")
	}
	c, err := New(s.Construction, s.BoxMode, s.BoxParam, s.Reversal)
	if err != nil {
		return nil, fmt.Errorf("restore chart: %w", err)
	}
	c.columns = copyColumns(s.Columns)
	for i := 1; i < len(c.columns); i++ {
		c.trend.Update(c.columns, i)
	}
	if s.BoxSize > 0 {
		c.boxSize = s.BoxSize
	}
	c.lastProcessed = s.LastProcessed
	return c, nil
}

func copyColumns(cols []*model.Column) []*model.Column {
	if cols == nil {
		return nil
	}
	out := make([]*model.Column, len(cols))
	for i, col := range cols {
		cp := *col
		cp.Boxes = append([]model.Box(nil), col.Boxes...)
		out[i] = &cp
	}
	return out
}
