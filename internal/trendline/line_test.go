package trendline

import "testing"

// ────────────────────────────────────────────────────────────
// Line geometry
// ────────────────────────────────────────────────────────────

func TestLine_PriceAt_SupportRisesOneBoxPerColumn(t *testing.T) {
	l := NewLine(BullishSupport, 0, 100, 0, 1.0)
	cases := map[int]float64{0: 100, 1: 101, 5: 105}
	for col, want := range cases {
		if got := l.PriceAt(col); got != want {
			t.Errorf("PriceAt(%d) = %v, want %v", col, got, want)
		}
	}
}

func TestLine_PriceAt_ResistanceFallsOneBoxPerColumn(t *testing.T) {
	l := NewLine(BearishResistance, 2, 100, 0, 2.0)
	if got := l.PriceAt(2); got != 100 {
		t.Errorf("PriceAt(2) = %v, want 100", got)
	}
	if got := l.PriceAt(5); got != 94 {
		t.Errorf("PriceAt(5) = %v, want 94", got)
	}
}

func TestLine_PriceAt_BeforeStartIsZero(t *testing.T) {
	l := NewLine(BullishSupport, 3, 100, 0, 1.0)
	if got := l.PriceAt(2); got != 0 {
		t.Errorf("PriceAt(2) = %v, want 0 before the start column", got)
	}
}

func TestLine_NewLineState(t *testing.T) {
	l := NewLine(BullishSupport, 1, 97, 0, 1.0)
	if !l.Active || l.Touched || l.TouchCount != 0 {
		t.Errorf("fresh line state = active=%v touched=%v touches=%d", l.Active, l.Touched, l.TouchCount)
	}
	if l.End != l.Start {
		t.Errorf("End = %+v, want equal to Start %+v", l.End, l.Start)
	}
}

// ────────────────────────────────────────────────────────────
// Breaks
// ────────────────────────────────────────────────────────────

func TestLine_IsBroken_SupportNeedsMoreThanOneBox(t *testing.T) {
	l := NewLine(BullishSupport, 0, 100, 0, 1.0)
	// Projected price at column 2 is 102.
	if l.IsBroken(2, 101.5) {
		t.Error("price within one box of the line should not break it")
	}
	if l.IsBroken(2, 101.0) {
		t.Error("price exactly one box under the line should not break it")
	}
	if !l.IsBroken(2, 100.5) {
		t.Error("price more than one box under the line should break it")
	}
}

func TestLine_IsBroken_Resistance(t *testing.T) {
	l := NewLine(BearishResistance, 0, 100, 0, 1.0)
	// Projected price at column 3 is 97.
	if l.IsBroken(3, 97.5) {
		t.Error("97.5 should not break a resistance at 97")
	}
	if !l.IsBroken(3, 98.5) {
		t.Error("98.5 should break a resistance at 97")
	}
}

func TestLine_IsBroken_AtOrBeforeStartNeverBreaks(t *testing.T) {
	l := NewLine(BullishSupport, 2, 100, 0, 1.0)
	if l.IsBroken(2, 0) || l.IsBroken(1, 0) {
		t.Error("columns at or before the start must never break the line")
	}
}

func TestLine_IsBroken_InactiveNeverBreaks(t *testing.T) {
	l := NewLine(BullishSupport, 0, 100, 0, 1.0)
	l.Active = false
	if l.IsBroken(5, 0) {
		t.Error("inactive line reported a break")
	}
}

// ────────────────────────────────────────────────────────────
// Touches
// ────────────────────────────────────────────────────────────

func TestLine_Touch_WithinHalfBox(t *testing.T) {
	l := NewLine(BullishSupport, 0, 100, 0, 1.0)
	// Projected price at column 1 is 101.
	if !l.Touch(1, 101.4) {
		t.Error("Touch(1, 101.4) = false, want true (|diff| < 0.5)")
	}
	if !l.Touched || l.TouchCount != 1 {
		t.Errorf("after touch: touched=%v count=%d, want true/1", l.Touched, l.TouchCount)
	}
	if l.Touch(1, 101.6) {
		t.Error("Touch(1, 101.6) = true, want false")
	}
	if l.TouchCount != 1 {
		t.Errorf("TouchCount = %d, want 1", l.TouchCount)
	}
}

func TestLine_Touch_AtStartColumnIgnored(t *testing.T) {
	l := NewLine(BullishSupport, 1, 100, 0, 1.0)
	if l.Touch(1, 100) {
		t.Error("touch at the start column should be ignored")
	}
}

func TestLine_UpdateEnd(t *testing.T) {
	l := NewLine(BearishResistance, 0, 100, 0, 1.0)
	l.UpdateEnd(4, 96, 2)
	if l.End.ColumnIndex != 4 || l.End.Price != 96 || l.End.BoxIndex != 2 {
		t.Errorf("End = %+v, want col 4 @ 96 box 2", l.End)
	}
	if l.Start.ColumnIndex != 0 {
		t.Error("UpdateEnd must not move the start point")
	}
}
