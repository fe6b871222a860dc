package indicator

import (
	"math"

	"pnf-systemv1/internal/model"
)

// Objective is one vertical-count price target.
type Objective struct {
	Target      float64 `json:"target"`
	ColumnIndex int     `json:"column_index"`
	Boxes       int     `json:"boxes"`
	Bullish     bool    `json:"bullish"`
}

// PriceObjective derives vertical-count targets: a column's box count
// times its box step, projected past its extreme in the column's own
// direction. X columns yield bullish targets, O columns bearish ones,
// Mixed columns none.
type PriceObjective struct {
	objectives []Objective
}

// NewPriceObjective returns an empty calculator.
func NewPriceObjective() *PriceObjective { return &PriceObjective{} }

// Calculate rebuilds the target list with one objective per X or O
// column.
func (p *PriceObjective) Calculate(cols []*model.Column) {
	p.objectives = p.objectives[:0]
	for i := range cols {
		p.CalculateAt(cols, i)
	}
}

// CalculateAt appends the target for one column. Short columns still
// count: a single-box column projects one step from its extreme, using
// the column's recorded box size for the step.
func (p *PriceObjective) CalculateAt(cols []*model.Column, idx int) {
	if idx < 0 || idx >= len(cols) {
		return
	}
	col := cols[idx]
	n := col.Count()
	if n == 0 {
		return
	}
	step := stepOf(col)
	switch col.Kind {
	case model.ColumnX:
		p.objectives = append(p.objectives, Objective{
			Target:      col.Highest() + float64(n)*step,
			ColumnIndex: idx,
			Boxes:       n,
			Bullish:     true,
		})
	case model.ColumnO:
		p.objectives = append(p.objectives, Objective{
			Target:      col.Lowest() - float64(n)*step,
			ColumnIndex: idx,
			Boxes:       n,
			Bullish:     false,
		})
	}
}

// Objectives returns every computed target in column order.
func (p *PriceObjective) Objectives() []Objective { return p.objectives }

// Latest returns the most recent target, or a zero bullish record with
// column index -1.
func (p *PriceObjective) Latest() Objective {
	if len(p.objectives) == 0 {
		return Objective{ColumnIndex: -1, Bullish: true}
	}
	return p.objectives[len(p.objectives)-1]
}

// stepOf derives the box increment from a column's last two boxes,
// falling back to the recorded box size for columns shorter than two.
func stepOf(col *model.Column) float64 {
	n := col.Count()
	if n < 2 {
		return col.BoxSize
	}
	return math.Abs(col.Boxes[n-1].Price - col.Boxes[n-2].Price)
}
