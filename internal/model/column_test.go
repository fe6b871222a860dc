package model

import (
	"testing"
	"time"
)

// ────────────────────────────────────────────────────────────
// Month markers
// ────────────────────────────────────────────────────────────

func TestMonthMarker_AllMonths(t *testing.T) {
	want := map[time.Month]string{
		time.January: "1", time.February: "2", time.March: "3",
		time.April: "4", time.May: "5", time.June: "6",
		time.July: "7", time.August: "8", time.September: "9",
		time.October: "A", time.November: "B", time.December: "C",
	}
	for m, label := range want {
		if got := MonthMarker(m); got != label {
			t.Errorf("MonthMarker(%v) = %q, want %q", m, got, label)
		}
	}
}

func TestMonthMarker_OutOfRange(t *testing.T) {
	if got := MonthMarker(time.Month(0)); got != "" {
		t.Errorf("MonthMarker(0) = %q, want empty", got)
	}
	if got := MonthMarker(time.Month(13)); got != "" {
		t.Errorf("MonthMarker(13) = %q, want empty", got)
	}
}

func TestIsMonthMarker(t *testing.T) {
	for _, s := range []string{"1", "5", "9", "A", "B", "C"} {
		if !IsMonthMarker(s) {
			t.Errorf("IsMonthMarker(%q) = false, want true", s)
		}
	}
	for _, s := range []string{"", "0", "D", "X", "O", "10"} {
		if IsMonthMarker(s) {
			t.Errorf("IsMonthMarker(%q) = true, want false", s)
		}
	}
}

// ────────────────────────────────────────────────────────────
// Column operations
// ────────────────────────────────────────────────────────────

func TestColumn_AddAndCount(t *testing.T) {
	col := NewColumn(ColumnX, 1.0)
	if col.Count() != 0 {
		t.Fatalf("new column Count() = %d, want 0", col.Count())
	}

	if !col.Add(Box{Price: 100, Direction: DirX}) {
		t.Error("Add(100) = false, want true")
	}
	if !col.Add(Box{Price: 101, Direction: DirX}) {
		t.Error("Add(101) = false, want true")
	}
	if col.Count() != 2 {
		t.Errorf("Count() = %d, want 2", col.Count())
	}
}

func TestColumn_AddRejectsDuplicatePrice(t *testing.T) {
	col := NewColumn(ColumnX, 1.0)
	col.Add(Box{Price: 100, Direction: DirX})

	if col.Add(Box{Price: 100, Direction: DirX}) {
		t.Error("duplicate Add(100) = true, want false")
	}
	if col.Count() != 1 {
		t.Errorf("Count() after duplicate = %d, want 1", col.Count())
	}
}

func TestColumn_HighestLowest(t *testing.T) {
	col := NewColumn(ColumnO, 1.0)
	// Insertion order is irrelevant to the extremes.
	for _, p := range []float64{102, 100, 104, 101} {
		col.Add(Box{Price: p, Direction: DirO})
	}
	if col.Highest() != 104 {
		t.Errorf("Highest() = %v, want 104", col.Highest())
	}
	if col.Lowest() != 100 {
		t.Errorf("Lowest() = %v, want 100", col.Lowest())
	}
	if col.Midpoint() != 102 {
		t.Errorf("Midpoint() = %v, want 102", col.Midpoint())
	}
}

func TestColumn_EmptyExtremesAreZero(t *testing.T) {
	col := NewColumn(ColumnX, 1.0)
	if col.Highest() != 0 || col.Lowest() != 0 || col.Midpoint() != 0 {
		t.Errorf("empty column extremes = (%v, %v, %v), want all 0",
			col.Highest(), col.Lowest(), col.Midpoint())
	}
}

func TestColumn_Remove(t *testing.T) {
	col := NewColumn(ColumnX, 1.0)
	col.Add(Box{Price: 100, Direction: DirX})
	col.Add(Box{Price: 101, Direction: DirX})

	if !col.Remove(100) {
		t.Error("Remove(100) = false, want true")
	}
	if col.Has(100) {
		t.Error("Has(100) = true after Remove")
	}
	if col.Count() != 1 {
		t.Errorf("Count() = %d, want 1", col.Count())
	}
	if col.Remove(999) {
		t.Error("Remove(999) = true for absent price, want false")
	}
}

func TestColumn_MarkerRoundTrip(t *testing.T) {
	col := NewColumn(ColumnX, 1.0)
	col.Add(Box{Price: 100, Direction: DirX, Marker: "3"})
	col.Add(Box{Price: 101, Direction: DirX})

	if got := col.Marker(100); got != "3" {
		t.Errorf("Marker(100) = %q, want \"3\"", got)
	}
	if got := col.Marker(101); got != "" {
		t.Errorf("Marker(101) = %q, want empty", got)
	}

	if !col.SetMarker(101, "A") {
		t.Error("SetMarker(101) = false, want true")
	}
	if got := col.Marker(101); got != "A" {
		t.Errorf("Marker(101) after SetMarker = %q, want \"A\"", got)
	}
	if col.SetMarker(999, "B") {
		t.Error("SetMarker(999) = true for absent price, want false")
	}
}

func TestColumn_Clear(t *testing.T) {
	col := NewColumn(ColumnO, 0.5)
	col.Add(Box{Price: 100, Direction: DirO})
	col.Add(Box{Price: 99.5, Direction: DirO})

	col.Clear()
	if col.Count() != 0 {
		t.Errorf("Count() after Clear = %d, want 0", col.Count())
	}
	if col.Kind != ColumnO || col.BoxSize != 0.5 {
		t.Errorf("Clear changed kind/box size: %s/%v", col.Kind, col.BoxSize)
	}
}

// ────────────────────────────────────────────────────────────
// Itoa
// ────────────────────────────────────────────────────────────

func TestItoa(t *testing.T) {
	cases := map[int]string{
		0: "0", 7: "7", 42: "42", 1024: "1024",
		-1: "-1", -999: "-999", 1000000: "1000000",
	}
	for n, want := range cases {
		if got := Itoa(n); got != want {
			t.Errorf("Itoa(%d) = %q, want %q", n, got, want)
		}
	}
}
