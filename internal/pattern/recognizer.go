package pattern

import (
	"math"

	"pnf-systemv1/internal/model"
)

const (
	// priceTol treats two extremes this close as the same price level
	// when matching tops and bottoms.
	priceTol = 1e-4

	// longTailMinBoxes is the minimum length of the falling column
	// behind a long tail reversal.
	longTailMinBoxes = 20

	// poleMinRiseBoxes and poleRetraceRatio qualify a pole: a thrust of
	// at least three boxes retraced by at least half.
	poleMinRiseBoxes = 3
	poleRetraceRatio = 0.5

	// signalWindow is the column span checked by the reversed-signal and
	// triangle formations.
	signalWindow = 5
)

// Recognizer scans a column history for formations. Detect rebuilds the
// log from scratch on every call; results accumulate in detection order,
// which the catapult checks rely on.
type Recognizer struct {
	patterns []Pattern
}

// NewRecognizer returns an empty recognizer.
func NewRecognizer() *Recognizer { return &Recognizer{} }

// Detect evaluates every formation at every column, oldest first.
func (r *Recognizer) Detect(cols []*model.Column) {
	r.patterns = r.patterns[:0]
	for i := range cols {
		r.detectDoubleTop(cols, i)
		r.detectDoubleBottom(cols, i)
		r.detectTripleTop(cols, i)
		r.detectTripleBottom(cols, i)
		r.detectQuadrupleTop(cols, i)
		r.detectQuadrupleBottom(cols, i)
		r.detectAscendingTripleTop(cols, i)
		r.detectDescendingTripleBottom(cols, i)
		r.detectBullishCatapult(cols, i)
		r.detectBearishCatapult(cols, i)
		r.detectBullishSignalReversed(cols, i)
		r.detectBearishSignalReversed(cols, i)
		r.detectBullishTriangle(cols, i)
		r.detectBearishTriangle(cols, i)
		r.detectLongTailDown(cols, i)
		r.detectHighPole(cols, i)
		r.detectLowPole(cols, i)
		r.detectBullTrap(cols, i)
		r.detectBearTrap(cols, i)
		r.detectSpreadTripleTop(cols, i)
		r.detectSpreadTripleBottom(cols, i)
	}
}

// Patterns returns every detected formation in detection order.
func (r *Recognizer) Patterns() []Pattern { return r.patterns }

// Latest returns the most recently detected formation, or a None record
// with column indices of -1.
func (r *Recognizer) Latest() Pattern {
	if len(r.patterns) == 0 {
		return Pattern{Type: None, StartColumn: -1, EndColumn: -1}
	}
	return r.patterns[len(r.patterns)-1]
}

// Has reports whether a formation of type t was detected.
func (r *Recognizer) Has(t Type) bool {
	for _, p := range r.patterns {
		if p.Type == t {
			return true
		}
	}
	return false
}

// Bullish returns the detected upward-resolving formations.
func (r *Recognizer) Bullish() []Pattern {
	var out []Pattern
	for _, p := range r.patterns {
		if p.Type.Bullish() {
			out = append(out, p)
		}
	}
	return out
}

// Bearish returns the detected downward-resolving formations.
func (r *Recognizer) Bearish() []Pattern {
	var out []Pattern
	for _, p := range r.patterns {
		if p.Type.Bearish() {
			out = append(out, p)
		}
	}
	return out
}

func (r *Recognizer) add(t Type, start, end int, price float64) {
	r.patterns = append(r.patterns, Pattern{Type: t, StartColumn: start, EndColumn: end, Price: price})
}

// prevOfKind returns the most recent column of the given kind at or
// before from, or -1.
func prevOfKind(cols []*model.Column, from int, kind model.ColumnKind) int {
	for i := from; i >= 0; i-- {
		if cols[i].Kind == kind {
			return i
		}
	}
	return -1
}

// kindIndices collects column indices of the given kind scanning down
// from from, most recent first. max <= 0 collects them all.
func kindIndices(cols []*model.Column, from int, kind model.ColumnKind, max int) []int {
	var idx []int
	for i := from; i >= 0; i-- {
		if cols[i].Kind == kind {
			idx = append(idx, i)
			if max > 0 && len(idx) == max {
				break
			}
		}
	}
	return idx
}

// boxStep derives the box increment from a column's last two boxes,
// falling back to the recorded box size for columns shorter than two.
func boxStep(col *model.Column) float64 {
	n := col.Count()
	if n < 2 {
		return col.BoxSize
	}
	return math.Abs(col.Boxes[n-1].Price - col.Boxes[n-2].Price)
}

// ────────────────────────────────────────────────────────────
// Breakouts and breakdowns
// ────────────────────────────────────────────────────────────

func (r *Recognizer) detectDoubleTop(cols []*model.Column, idx int) {
	if idx < 2 || cols[idx].Kind != model.ColumnX {
		return
	}
	prev := prevOfKind(cols, idx-1, model.ColumnX)
	if prev < 0 {
		return
	}
	high := cols[idx].Highest()
	if high > cols[prev].Highest() {
		r.add(DoubleTopBreakout, prev, idx, high)
	}
}

func (r *Recognizer) detectDoubleBottom(cols []*model.Column, idx int) {
	if idx < 2 || cols[idx].Kind != model.ColumnO {
		return
	}
	prev := prevOfKind(cols, idx-1, model.ColumnO)
	if prev < 0 {
		return
	}
	low := cols[idx].Lowest()
	if low < cols[prev].Lowest() {
		r.add(DoubleBottomBreakdown, prev, idx, low)
	}
}

func (r *Recognizer) detectTripleTop(cols []*model.Column, idx int) {
	if idx < 4 || cols[idx].Kind != model.ColumnX {
		return
	}
	xs := kindIndices(cols, idx, model.ColumnX, 3)
	if len(xs) < 3 {
		return
	}
	h0, h1, h2 := cols[xs[0]].Highest(), cols[xs[1]].Highest(), cols[xs[2]].Highest()
	if math.Abs(h1-h2) < priceTol && h0 > h1 {
		r.add(TripleTopBreakout, xs[2], idx, h0)
	}
}

func (r *Recognizer) detectTripleBottom(cols []*model.Column, idx int) {
	if idx < 4 || cols[idx].Kind != model.ColumnO {
		return
	}
	os := kindIndices(cols, idx, model.ColumnO, 3)
	if len(os) < 3 {
		return
	}
	l0, l1, l2 := cols[os[0]].Lowest(), cols[os[1]].Lowest(), cols[os[2]].Lowest()
	if math.Abs(l1-l2) < priceTol && l0 < l1 {
		r.add(TripleBottomBreakdown, os[2], idx, l0)
	}
}

func (r *Recognizer) detectQuadrupleTop(cols []*model.Column, idx int) {
	if idx < 6 || cols[idx].Kind != model.ColumnX {
		return
	}
	xs := kindIndices(cols, idx, model.ColumnX, 4)
	if len(xs) < 4 {
		return
	}
	h0, h1 := cols[xs[0]].Highest(), cols[xs[1]].Highest()
	h2, h3 := cols[xs[2]].Highest(), cols[xs[3]].Highest()
	if math.Abs(h1-h2) < priceTol && math.Abs(h2-h3) < priceTol && h0 > h1 {
		r.add(QuadrupleTopBreakout, xs[3], idx, h0)
	}
}

func (r *Recognizer) detectQuadrupleBottom(cols []*model.Column, idx int) {
	if idx < 6 || cols[idx].Kind != model.ColumnO {
		return
	}
	os := kindIndices(cols, idx, model.ColumnO, 4)
	if len(os) < 4 {
		return
	}
	l0, l1 := cols[os[0]].Lowest(), cols[os[1]].Lowest()
	l2, l3 := cols[os[2]].Lowest(), cols[os[3]].Lowest()
	if math.Abs(l1-l2) < priceTol && math.Abs(l2-l3) < priceTol && l0 < l1 {
		r.add(QuadrupleBottomBreakdown, os[3], idx, l0)
	}
}

func (r *Recognizer) detectAscendingTripleTop(cols []*model.Column, idx int) {
	if idx < 4 || cols[idx].Kind != model.ColumnX {
		return
	}
	xs := kindIndices(cols, idx, model.ColumnX, 3)
	if len(xs) < 3 {
		return
	}
	h0, h1, h2 := cols[xs[0]].Highest(), cols[xs[1]].Highest(), cols[xs[2]].Highest()
	if h0 > h1 && h1 > h2 {
		r.add(AscendingTripleTop, xs[2], idx, h0)
	}
}

func (r *Recognizer) detectDescendingTripleBottom(cols []*model.Column, idx int) {
	if idx < 4 || cols[idx].Kind != model.ColumnO {
		return
	}
	os := kindIndices(cols, idx, model.ColumnO, 3)
	if len(os) < 3 {
		return
	}
	l0, l1, l2 := cols[os[0]].Lowest(), cols[os[1]].Lowest(), cols[os[2]].Lowest()
	if l0 < l1 && l1 < l2 {
		r.add(DescendingTripleBottom, os[2], idx, l0)
	}
}

// ────────────────────────────────────────────────────────────
// Catapults
// ────────────────────────────────────────────────────────────

// A catapult is a triple breakout followed immediately by a double
// breakout ending at the current column; both must be the last two
// entries in the log.
func (r *Recognizer) detectBullishCatapult(cols []*model.Column, idx int) {
	if len(r.patterns) < 2 {
		return
	}
	last := r.patterns[len(r.patterns)-1]
	if last.Type != DoubleTopBreakout || last.EndColumn != idx {
		return
	}
	second := r.patterns[len(r.patterns)-2]
	if second.Type != TripleTopBreakout {
		return
	}
	r.add(BullishCatapult, second.StartColumn, idx, last.Price)
}

func (r *Recognizer) detectBearishCatapult(cols []*model.Column, idx int) {
	if len(r.patterns) < 2 {
		return
	}
	last := r.patterns[len(r.patterns)-1]
	if last.Type != DoubleBottomBreakdown || last.EndColumn != idx {
		return
	}
	second := r.patterns[len(r.patterns)-2]
	if second.Type != TripleBottomBreakdown {
		return
	}
	r.add(BearishCatapult, second.StartColumn, idx, last.Price)
}

// ────────────────────────────────────────────────────────────
// Reversed signals and triangles
// ────────────────────────────────────────────────────────────

func (r *Recognizer) detectBullishSignalReversed(cols []*model.Column, idx int) {
	if idx < 6 || cols[idx].Kind != model.ColumnO {
		return
	}
	// Rising highs and rising lows across the window, then a break under
	// the previous O column's low.
	for i := idx - 1; i >= idx-signalWindow; i-- {
		if cols[i].Highest() >= cols[i+1].Highest() || cols[i].Lowest() >= cols[i+1].Lowest() {
			return
		}
	}
	prev := prevOfKind(cols, idx-1, model.ColumnO)
	if prev < 0 {
		return
	}
	low := cols[idx].Lowest()
	if low < cols[prev].Lowest() {
		r.add(BullishSignalReversed, idx-signalWindow, idx, low)
	}
}

func (r *Recognizer) detectBearishSignalReversed(cols []*model.Column, idx int) {
	if idx < 6 || cols[idx].Kind != model.ColumnX {
		return
	}
	for i := idx - 1; i >= idx-signalWindow; i-- {
		if cols[i].Highest() <= cols[i+1].Highest() || cols[i].Lowest() <= cols[i+1].Lowest() {
			return
		}
	}
	prev := prevOfKind(cols, idx-1, model.ColumnX)
	if prev < 0 {
		return
	}
	high := cols[idx].Highest()
	if high > cols[prev].Highest() {
		r.add(BearishSignalReversed, idx-signalWindow, idx, high)
	}
}

func (r *Recognizer) detectBullishTriangle(cols []*model.Column, idx int) {
	if idx < 6 || cols[idx].Kind != model.ColumnX {
		return
	}
	risingBottoms, fallingTops := true, true
	for i := idx - 1; i >= idx-signalWindow; i-- {
		if cols[i].Lowest() >= cols[i+1].Lowest() {
			risingBottoms = false
		}
		if cols[i].Highest() <= cols[i+1].Highest() {
			fallingTops = false
		}
	}
	if !risingBottoms || !fallingTops {
		return
	}
	prev := prevOfKind(cols, idx-1, model.ColumnX)
	if prev < 0 {
		return
	}
	high := cols[idx].Highest()
	if high > cols[prev].Highest() {
		r.add(BullishTriangle, idx-signalWindow, idx, high)
	}
}

func (r *Recognizer) detectBearishTriangle(cols []*model.Column, idx int) {
	if idx < 6 || cols[idx].Kind != model.ColumnO {
		return
	}
	risingBottoms, fallingTops := true, true
	for i := idx - 1; i >= idx-signalWindow; i-- {
		if cols[i].Lowest() >= cols[i+1].Lowest() {
			risingBottoms = false
		}
		if cols[i].Highest() <= cols[i+1].Highest() {
			fallingTops = false
		}
	}
	if !risingBottoms || !fallingTops {
		return
	}
	prev := prevOfKind(cols, idx-1, model.ColumnO)
	if prev < 0 {
		return
	}
	low := cols[idx].Lowest()
	if low < cols[prev].Lowest() {
		r.add(BearishTriangle, idx-signalWindow, idx, low)
	}
}

// ────────────────────────────────────────────────────────────
// Tails, poles and traps
// ────────────────────────────────────────────────────────────

func (r *Recognizer) detectLongTailDown(cols []*model.Column, idx int) {
	if idx < 1 || cols[idx].Kind != model.ColumnX {
		return
	}
	prev := cols[idx-1]
	if prev.Kind == model.ColumnO && prev.Count() >= longTailMinBoxes {
		r.add(LongTailDown, idx-1, idx, cols[idx].Highest())
	}
}

func (r *Recognizer) detectHighPole(cols []*model.Column, idx int) {
	if idx < 2 || cols[idx].Kind != model.ColumnO {
		return
	}
	pole := cols[idx-1]
	if pole.Kind != model.ColumnX {
		return
	}
	previousHigh := 0.0
	if j := prevOfKind(cols, idx-2, model.ColumnX); j >= 0 {
		previousHigh = cols[j].Highest()
	}
	if previousHigh <= 0 {
		return
	}
	rise := pole.Highest() - previousHigh
	step := boxStep(pole)
	retrace := pole.Highest() - cols[idx].Lowest()
	if rise >= poleMinRiseBoxes*step && retrace >= poleRetraceRatio*rise {
		r.add(HighPole, idx-1, idx, pole.Highest())
	}
}

func (r *Recognizer) detectLowPole(cols []*model.Column, idx int) {
	if idx < 2 || cols[idx].Kind != model.ColumnX {
		return
	}
	pole := cols[idx-1]
	if pole.Kind != model.ColumnO {
		return
	}
	previousLow := 0.0
	if j := prevOfKind(cols, idx-2, model.ColumnO); j >= 0 {
		previousLow = cols[j].Lowest()
	}
	if previousLow <= 0 {
		return
	}
	fall := previousLow - pole.Lowest()
	step := boxStep(pole)
	retrace := cols[idx].Highest() - pole.Lowest()
	if fall >= poleMinRiseBoxes*step && retrace >= poleRetraceRatio*fall {
		r.add(LowPole, idx-1, idx, pole.Lowest())
	}
}

// A bull trap is a one-box breakout above a double top that immediately
// reverses down.
func (r *Recognizer) detectBullTrap(cols []*model.Column, idx int) {
	if idx < 2 || cols[idx].Kind != model.ColumnO {
		return
	}
	breakoutCol := cols[idx-1]
	if breakoutCol.Kind != model.ColumnX || breakoutCol.Count() != 1 {
		return
	}
	xs := kindIndices(cols, idx-2, model.ColumnX, 3)
	if len(xs) < 2 {
		return
	}
	h0, h1 := cols[xs[0]].Highest(), cols[xs[1]].Highest()
	if math.Abs(h0-h1) < priceTol && breakoutCol.Highest() > h0 {
		r.add(BullTrap, xs[1], idx, breakoutCol.Highest())
	}
}

func (r *Recognizer) detectBearTrap(cols []*model.Column, idx int) {
	if idx < 2 || cols[idx].Kind != model.ColumnX {
		return
	}
	breakdownCol := cols[idx-1]
	if breakdownCol.Kind != model.ColumnO || breakdownCol.Count() != 1 {
		return
	}
	os := kindIndices(cols, idx-2, model.ColumnO, 3)
	if len(os) < 2 {
		return
	}
	l0, l1 := cols[os[0]].Lowest(), cols[os[1]].Lowest()
	if math.Abs(l0-l1) < priceTol && breakdownCol.Lowest() < l0 {
		r.add(BearTrap, os[1], idx, breakdownCol.Lowest())
	}
}

// ────────────────────────────────────────────────────────────
// Spread formations
// ────────────────────────────────────────────────────────────

// A spread triple top matches the current X high against any two prior X
// highs at the same level, not just adjacent ones.
func (r *Recognizer) detectSpreadTripleTop(cols []*model.Column, idx int) {
	if idx < 4 || cols[idx].Kind != model.ColumnX {
		return
	}
	xs := kindIndices(cols, idx, model.ColumnX, 0)
	if len(xs) < 3 {
		return
	}
	high := cols[xs[0]].Highest()
	matches := 0
	for _, j := range xs[1:] {
		if math.Abs(cols[j].Highest()-high) < priceTol {
			matches++
			if matches >= 2 {
				break
			}
		}
	}
	if matches >= 2 {
		r.add(SpreadTripleTop, xs[2], idx, high)
	}
}

func (r *Recognizer) detectSpreadTripleBottom(cols []*model.Column, idx int) {
	if idx < 4 || cols[idx].Kind != model.ColumnO {
		return
	}
	os := kindIndices(cols, idx, model.ColumnO, 0)
	if len(os) < 3 {
		return
	}
	low := cols[os[0]].Lowest()
	matches := 0
	for _, j := range os[1:] {
		if math.Abs(cols[j].Lowest()-low) < priceTol {
			matches++
			if matches >= 2 {
				break
			}
		}
	}
	if matches >= 2 {
		r.add(SpreadTripleBottom, os[2], idx, low)
	}
}
