package pattern

import (
	"testing"

	"pnf-systemv1/internal/model"
)

// ────────────────────────────────────────────────────────────
// Helpers
// ────────────────────────────────────────────────────────────

func col(kind model.ColumnKind, prices ...float64) *model.Column {
	c := model.NewColumn(kind, 1.0)
	dir := model.DirX
	if kind == model.ColumnO {
		dir = model.DirO
	}
	for _, p := range prices {
		c.Add(model.Box{Price: p, Direction: dir})
	}
	return c
}

func xcol(prices ...float64) *model.Column { return col(model.ColumnX, prices...) }
func ocol(prices ...float64) *model.Column { return col(model.ColumnO, prices...) }

func wantLog(t *testing.T, got, want []Pattern) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("pattern log length = %d, want %d\ngot:  %+v\nwant: %+v", len(got), len(want), got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("log[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

// ────────────────────────────────────────────────────────────
// Empty and trivial inputs
// ────────────────────────────────────────────────────────────

func TestRecognizer_EmptyChart(t *testing.T) {
	r := NewRecognizer()
	r.Detect(nil)
	if len(r.Patterns()) != 0 {
		t.Errorf("Patterns() = %v, want empty", r.Patterns())
	}
	latest := r.Latest()
	if latest.Type != None || latest.StartColumn != -1 || latest.EndColumn != -1 {
		t.Errorf("Latest() = %+v, want None/-1/-1", latest)
	}
	if r.Has(DoubleTopBreakout) {
		t.Error("Has() on empty log = true, want false")
	}
}

func TestRecognizer_TooFewColumns(t *testing.T) {
	r := NewRecognizer()
	r.Detect([]*model.Column{xcol(100, 101), ocol(100, 99)})
	if len(r.Patterns()) != 0 {
		t.Errorf("Patterns() = %v, want empty for two columns", r.Patterns())
	}
}

func TestRecognizer_RecomputeIsIdempotent(t *testing.T) {
	cols := []*model.Column{
		xcol(100, 101, 102),
		ocol(101, 100),
		xcol(101, 102, 103),
	}
	r := NewRecognizer()
	r.Detect(cols)
	first := len(r.Patterns())
	r.Detect(cols)
	if len(r.Patterns()) != first {
		t.Errorf("second Detect() log length = %d, want %d", len(r.Patterns()), first)
	}
}

// ────────────────────────────────────────────────────────────
// Double and triple breakouts
// ────────────────────────────────────────────────────────────

func TestDoubleTopBreakout(t *testing.T) {
	cols := []*model.Column{
		xcol(100, 101, 102),
		ocol(101, 100),
		xcol(101, 102, 103),
	}
	r := NewRecognizer()
	r.Detect(cols)
	wantLog(t, r.Patterns(), []Pattern{
		{DoubleTopBreakout, 0, 2, 103},
	})
}

func TestDoubleBottomBreakdown(t *testing.T) {
	cols := []*model.Column{
		ocol(102, 101, 100),
		xcol(101, 102),
		ocol(101, 100, 99),
	}
	r := NewRecognizer()
	r.Detect(cols)
	wantLog(t, r.Patterns(), []Pattern{
		{DoubleBottomBreakdown, 0, 2, 99},
	})
}

func TestTripleTopBreakout(t *testing.T) {
	// Two equal tops at 102 and a breakout to 103. The double top fires
	// first at the same column, then the triple top.
	cols := []*model.Column{
		xcol(100, 101, 102),
		ocol(101, 100),
		xcol(101, 102),
		ocol(101, 100),
		xcol(101, 102, 103),
	}
	r := NewRecognizer()
	r.Detect(cols)
	wantLog(t, r.Patterns(), []Pattern{
		{DoubleTopBreakout, 2, 4, 103},
		{TripleTopBreakout, 0, 4, 103},
	})
	if r.Latest().Type != TripleTopBreakout {
		t.Errorf("Latest() = %v, want TripleTopBreakout", r.Latest().Type)
	}
}

func TestQuadrupleTopBreakout(t *testing.T) {
	// Three equal tops at 102, then the breakout. Double and triple both
	// fire alongside at the breakout column.
	cols := []*model.Column{
		xcol(100, 101, 102),
		ocol(101, 100),
		xcol(101, 102),
		ocol(101, 100),
		xcol(101, 102),
		ocol(101, 100),
		xcol(101, 102, 103),
	}
	r := NewRecognizer()
	r.Detect(cols)
	wantLog(t, r.Patterns(), []Pattern{
		{DoubleTopBreakout, 4, 6, 103},
		{TripleTopBreakout, 2, 6, 103},
		{QuadrupleTopBreakout, 0, 6, 103},
	})
}

func TestAscendingTripleTop(t *testing.T) {
	// Strictly rising tops 102 < 103 < 104.
	cols := []*model.Column{
		xcol(100, 101, 102),
		ocol(101, 100),
		xcol(101, 102, 103),
		ocol(102, 101),
		xcol(102, 103, 104),
	}
	r := NewRecognizer()
	r.Detect(cols)
	wantLog(t, r.Patterns(), []Pattern{
		{DoubleTopBreakout, 0, 2, 103},
		{DoubleTopBreakout, 2, 4, 104},
		{AscendingTripleTop, 0, 4, 104},
	})
}

func TestDescendingTripleBottom(t *testing.T) {
	cols := []*model.Column{
		ocol(101, 100),
		xcol(101, 102),
		ocol(100, 99),
		xcol(100, 101),
		ocol(99, 98),
	}
	r := NewRecognizer()
	r.Detect(cols)
	wantLog(t, r.Patterns(), []Pattern{
		{DoubleBottomBreakdown, 0, 2, 99},
		{DoubleBottomBreakdown, 2, 4, 98},
		{DescendingTripleBottom, 0, 4, 98},
	})
}

// ────────────────────────────────────────────────────────────
// Catapults and their order dependence
// ────────────────────────────────────────────────────────────

func TestBullishCatapult(t *testing.T) {
	// Triple top breakout at column 4, pullback, failed rally, pullback,
	// then a clean double top at column 8. The triple top entry is still
	// the last-but-one in the log, so the catapult fires.
	cols := []*model.Column{
		xcol(100, 101, 102), // 0
		ocol(101, 100),      // 1
		xcol(101, 102),      // 2
		ocol(101, 100),      // 3
		xcol(101, 102, 103), // 4: triple top breakout
		ocol(102, 101),      // 5
		xcol(100, 101),      // 6: failed rally below the breakout high
		ocol(101),           // 7
		xcol(102, 103, 104), // 8: double top over the failed rally
	}
	r := NewRecognizer()
	r.Detect(cols)
	wantLog(t, r.Patterns(), []Pattern{
		{DoubleTopBreakout, 2, 4, 103},
		{TripleTopBreakout, 0, 4, 103},
		{DoubleTopBreakout, 6, 8, 104},
		{BullishCatapult, 0, 8, 104},
	})
	if !r.Has(BullishCatapult) {
		t.Error("Has(BullishCatapult) = false")
	}
}

func TestBullishCatapult_BlockedBySameColumnTripleTop(t *testing.T) {
	// When the double top and the triple top fire at the same column the
	// triple top lands last in the log and no catapult forms.
	cols := []*model.Column{
		xcol(100, 101, 102),
		ocol(101, 100),
		xcol(101, 102),
		ocol(101, 100),
		xcol(101, 102, 103),
	}
	r := NewRecognizer()
	r.Detect(cols)
	if r.Has(BullishCatapult) {
		t.Error("catapult must not fire when the triple top lands after the double top")
	}
}

func TestBearishCatapult(t *testing.T) {
	cols := []*model.Column{
		ocol(102, 101, 100), // 0
		xcol(101, 102),      // 1
		ocol(101, 100),      // 2
		xcol(101, 102),      // 3
		ocol(101, 100, 99),  // 4: triple bottom breakdown
		xcol(100, 101),      // 5
		ocol(102, 101),      // 6: failed dip above the breakdown low
		xcol(101),           // 7
		ocol(100, 99, 98),   // 8: double bottom under the failed dip
	}
	r := NewRecognizer()
	r.Detect(cols)
	wantLog(t, r.Patterns(), []Pattern{
		{DoubleBottomBreakdown, 2, 4, 99},
		{TripleBottomBreakdown, 0, 4, 99},
		{DoubleBottomBreakdown, 6, 8, 98},
		{BearishCatapult, 0, 8, 98},
	})
}

// ────────────────────────────────────────────────────────────
// Reversed signals and triangles
// ────────────────────────────────────────────────────────────

func TestBullishSignalReversed(t *testing.T) {
	// Five strictly rising columns, then an O column that still makes a
	// higher high and low but breaks the last O low on record (the tall
	// O column far behind the run).
	cols := []*model.Column{
		ocol(105, 104),   // 0: the prior O low at 104
		xcol(95, 96),     // 1
		xcol(96, 97),     // 2
		xcol(97, 98),     // 3
		xcol(98, 99),     // 4
		xcol(99, 100),    // 5
		ocol(101, 100),   // 6: rising extremes, low under 104
	}
	r := NewRecognizer()
	r.Detect(cols)
	wantLog(t, r.Patterns(), []Pattern{
		{DoubleTopBreakout, 1, 2, 97},
		{DoubleTopBreakout, 2, 3, 98},
		{DoubleTopBreakout, 3, 4, 99},
		{AscendingTripleTop, 2, 4, 99},
		{DoubleTopBreakout, 4, 5, 100},
		{AscendingTripleTop, 3, 5, 100},
		{DoubleBottomBreakdown, 0, 6, 100},
		{BullishSignalReversed, 1, 6, 100},
	})
	if r.Latest().Type != BullishSignalReversed {
		t.Errorf("Latest() = %v, want BullishSignalReversed", r.Latest().Type)
	}
}

func TestBearishSignalReversed(t *testing.T) {
	cols := []*model.Column{
		xcol(94, 95),     // 0: the prior X high at 95
		ocol(104, 103),   // 1
		ocol(103, 102),   // 2
		ocol(102, 101),   // 3
		ocol(101, 100),   // 4
		ocol(100, 99),    // 5
		xcol(99, 98),     // 6: falling extremes, high over 95
	}
	r := NewRecognizer()
	r.Detect(cols)
	wantLog(t, r.Patterns(), []Pattern{
		{DoubleBottomBreakdown, 1, 2, 102},
		{DoubleBottomBreakdown, 2, 3, 101},
		{DoubleBottomBreakdown, 3, 4, 100},
		{DescendingTripleBottom, 2, 4, 100},
		{DoubleBottomBreakdown, 4, 5, 99},
		{DescendingTripleBottom, 3, 5, 99},
		{DoubleTopBreakout, 0, 6, 99},
		{BearishSignalReversed, 1, 6, 99},
	})
}

func TestBullishTriangle(t *testing.T) {
	// A converging wedge of O and mixed columns, then an X breakout over
	// the last X high on record before the wedge.
	cols := []*model.Column{
		xcol(100, 101), // 0
		ocol(110, 90),  // 1
		col(model.ColumnMixed, 108, 92), // 2
		ocol(106, 94), // 3
		col(model.ColumnMixed, 104, 96), // 4
		ocol(103, 97),  // 5
		xcol(98, 102),  // 6
	}
	r := NewRecognizer()
	r.Detect(cols)
	wantLog(t, r.Patterns(), []Pattern{
		{DoubleTopBreakout, 0, 6, 102},
		{BullishTriangle, 1, 6, 102},
	})
}

func TestBearishTriangle(t *testing.T) {
	cols := []*model.Column{
		ocol(100, 99), // 0
		xcol(110, 90), // 1
		col(model.ColumnMixed, 108, 92), // 2
		xcol(106, 94), // 3
		col(model.ColumnMixed, 104, 96), // 4
		xcol(103, 97), // 5
		ocol(102, 98), // 6
	}
	r := NewRecognizer()
	r.Detect(cols)
	wantLog(t, r.Patterns(), []Pattern{
		{DoubleBottomBreakdown, 0, 6, 98},
		{BearishTriangle, 1, 6, 98},
	})
}

// ────────────────────────────────────────────────────────────
// Tails, poles and traps
// ────────────────────────────────────────────────────────────

func TestLongTailDown(t *testing.T) {
	tail := model.NewColumn(model.ColumnO, 1.0)
	for p := 119.0; p >= 100; p-- {
		tail.Add(model.Box{Price: p, Direction: model.DirO})
	}
	if tail.Count() != 20 {
		t.Fatalf("setup: tail has %d boxes, want 20", tail.Count())
	}
	cols := []*model.Column{tail, xcol(101, 102)}
	r := NewRecognizer()
	r.Detect(cols)
	wantLog(t, r.Patterns(), []Pattern{
		{LongTailDown, 0, 1, 102},
	})
	if !r.Latest().Type.Bullish() {
		t.Error("a long tail down is a bullish formation")
	}
}

func TestLongTailDown_NineteenBoxesIsNotEnough(t *testing.T) {
	tail := model.NewColumn(model.ColumnO, 1.0)
	for p := 118.0; p >= 100; p-- {
		tail.Add(model.Box{Price: p, Direction: model.DirO})
	}
	cols := []*model.Column{tail, xcol(101, 102)}
	r := NewRecognizer()
	r.Detect(cols)
	if r.Has(LongTailDown) {
		t.Error("19 boxes must not qualify as a long tail")
	}
}

func TestHighPole(t *testing.T) {
	// The pole at column 2 rises 4 boxes over the previous X high and
	// column 3 retraces more than half of it.
	cols := []*model.Column{
		xcol(100, 101),
		ocol(100, 99),
		xcol(100, 101, 102, 103, 104, 105),
		ocol(104, 103, 102),
	}
	r := NewRecognizer()
	r.Detect(cols)
	wantLog(t, r.Patterns(), []Pattern{
		{DoubleTopBreakout, 0, 2, 105},
		{HighPole, 2, 3, 105},
	})
	if !r.Has(HighPole) || !HighPole.Bearish() {
		t.Error("high pole should be detected and classified bearish")
	}
}

func TestHighPole_ShallowRetracementIgnored(t *testing.T) {
	cols := []*model.Column{
		xcol(100, 101),
		ocol(100, 99),
		xcol(100, 101, 102, 103, 104, 105),
		ocol(104), // retraces 1 of a 4 box rise
	}
	r := NewRecognizer()
	r.Detect(cols)
	if r.Has(HighPole) {
		t.Error("a shallow retracement must not make a high pole")
	}
}

func TestLowPole(t *testing.T) {
	cols := []*model.Column{
		ocol(101, 100),
		xcol(101, 102),
		ocol(101, 100, 99, 98, 97, 96),
		xcol(97, 98, 99),
	}
	r := NewRecognizer()
	r.Detect(cols)
	wantLog(t, r.Patterns(), []Pattern{
		{DoubleBottomBreakdown, 0, 2, 96},
		{LowPole, 2, 3, 96},
	})
	if !LowPole.Bullish() {
		t.Error("low pole should be classified bullish")
	}
}

func TestBullTrap(t *testing.T) {
	// A one-box breakout over a double top at 102 that reverses at once.
	// The single-box breakout column exercises the box step fallback.
	cols := []*model.Column{
		xcol(100, 101, 102), // 0
		ocol(101, 100),      // 1
		xcol(101, 102),      // 2
		ocol(101, 100),      // 3
		xcol(103),           // 4: one-box breakout
		ocol(102, 101),      // 5
	}
	r := NewRecognizer()
	r.Detect(cols)
	wantLog(t, r.Patterns(), []Pattern{
		{DoubleTopBreakout, 2, 4, 103},
		{TripleTopBreakout, 0, 4, 103},
		{BullTrap, 0, 5, 103},
	})
	if !BullTrap.Bearish() {
		t.Error("a bull trap resolves downward")
	}
}

func TestBullTrap_MultiBoxBreakoutIsNoTrap(t *testing.T) {
	cols := []*model.Column{
		xcol(100, 101, 102),
		ocol(101, 100),
		xcol(101, 102),
		ocol(101, 100),
		xcol(103, 104), // two boxes: a real breakout, not a trap
		ocol(103, 102),
	}
	r := NewRecognizer()
	r.Detect(cols)
	if r.Has(BullTrap) {
		t.Error("a multi-box breakout column must not be a bull trap")
	}
}

func TestBearTrap(t *testing.T) {
	cols := []*model.Column{
		ocol(100, 99),  // 0
		xcol(100, 101), // 1
		ocol(100, 99),  // 2
		xcol(100, 101), // 3
		ocol(98),       // 4: one-box breakdown
		xcol(99, 100),  // 5
	}
	r := NewRecognizer()
	r.Detect(cols)
	wantLog(t, r.Patterns(), []Pattern{
		{DoubleBottomBreakdown, 2, 4, 98},
		{TripleBottomBreakdown, 0, 4, 98},
		{BearTrap, 0, 5, 98},
	})
	if !BearTrap.Bullish() {
		t.Error("a bear trap resolves upward")
	}
}

// ────────────────────────────────────────────────────────────
// Spread formations
// ────────────────────────────────────────────────────────────

func TestSpreadTripleTop(t *testing.T) {
	// The current top at 102 matches two earlier tops with a higher
	// column in between.
	cols := []*model.Column{
		xcol(100, 102),      // 0: top 102
		ocol(101, 100),      // 1
		xcol(101, 102),      // 2: top 102
		ocol(102, 101),      // 3
		xcol(102, 103),      // 4: higher top in between
		ocol(102, 101),      // 5
		xcol(101, 102),      // 6: top 102 again
	}
	r := NewRecognizer()
	r.Detect(cols)
	wantLog(t, r.Patterns(), []Pattern{
		{DoubleTopBreakout, 2, 4, 103},
		{TripleTopBreakout, 0, 4, 103},
		{SpreadTripleTop, 2, 6, 102},
	})
}

func TestSpreadTripleBottom(t *testing.T) {
	cols := []*model.Column{
		ocol(101, 99),  // 0: bottom 99
		xcol(100, 101), // 1
		ocol(100, 99),  // 2: bottom 99
		xcol(100, 101), // 3
		ocol(100, 98),  // 4: lower bottom in between
		xcol(99, 100),  // 5
		ocol(100, 99),  // 6: bottom 99 again
	}
	r := NewRecognizer()
	r.Detect(cols)
	wantLog(t, r.Patterns(), []Pattern{
		{DoubleBottomBreakdown, 2, 4, 98},
		{TripleBottomBreakdown, 0, 4, 98},
		{SpreadTripleBottom, 2, 6, 99},
	})
}

// ────────────────────────────────────────────────────────────
// Classification and labels
// ────────────────────────────────────────────────────────────

func TestBullishBearishFilters(t *testing.T) {
	cols := []*model.Column{
		xcol(100, 101, 102),
		ocol(101, 100),
		xcol(101, 102, 103), // double top breakout (bullish)
		ocol(102, 101, 100, 99), // double bottom breakdown (bearish)
	}
	r := NewRecognizer()
	r.Detect(cols)

	bull, bear := r.Bullish(), r.Bearish()
	if len(bull) != 1 || bull[0].Type != DoubleTopBreakout {
		t.Errorf("Bullish() = %+v, want one double top", bull)
	}
	if len(bear) != 1 || bear[0].Type != DoubleBottomBreakdown {
		t.Errorf("Bearish() = %+v, want one double bottom", bear)
	}
}

func TestTypeLabels(t *testing.T) {
	cases := map[Type]string{
		DoubleTopBreakout:      "Double Top Breakout",
		QuadrupleBottomBreakdown: "Quadruple Bottom Breakdown",
		BullishCatapult:        "Bullish Catapult",
		LongTailDown:           "Long Tail Down",
		SpreadTripleBottom:     "Spread Triple Bottom",
		None:                   "None",
	}
	for typ, want := range cases {
		if got := typ.Label(); got != want {
			t.Errorf("%s.Label() = %q, want %q", typ, got, want)
		}
	}
	if got := Type("BOGUS").Label(); got != "Unknown" {
		t.Errorf("unknown label = %q, want Unknown", got)
	}
}

// ────────────────────────────────────────────────────────────
// Benchmarks
// ────────────────────────────────────────────────────────────

func BenchmarkRecognizerDetect(b *testing.B) {
	// 200 alternating columns with drifting tops, enough history for every
	// predicate to run at every index.
	cols := make([]*model.Column, 0, 200)
	for i := 0; i < 100; i++ {
		base := 100 + float64(i%10)
		cols = append(cols, xcol(base, base+1, base+2), ocol(base+1, base))
	}

	r := NewRecognizer()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.Detect(cols)
	}
}
