package resample

import (
	"context"
	"testing"
	"time"

	"pnf-systemv1/internal/model"
)

func bar(symbol string, ts time.Time, o, h, l, c float64) model.Observation {
	return model.Observation{Symbol: symbol, Time: ts, Open: o, High: h, Low: l, Close: c}
}

func TestResampler_HourlyIntoDaily(t *testing.T) {
	r, err := New(24 * time.Hour)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	day1 := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	feed := []model.Observation{
		bar("EURUSD", day1.Add(1*time.Hour), 1.0850, 1.0870, 1.0840, 1.0860),
		bar("EURUSD", day1.Add(2*time.Hour), 1.0860, 1.0910, 1.0855, 1.0900),
		bar("EURUSD", day1.Add(3*time.Hour), 1.0900, 1.0905, 1.0820, 1.0830),
	}
	for _, o := range feed {
		if _, ok := r.Add(o); ok {
			t.Fatalf("no bar should finalize inside day one")
		}
	}

	fin, ok := r.Add(bar("EURUSD", day2.Add(1*time.Hour), 1.0830, 1.0840, 1.0800, 1.0810))
	if !ok {
		t.Fatal("expected day-one bar to finalize when day two opens")
	}
	if fin.Symbol != "EURUSD" {
		t.Errorf("symbol = %q", fin.Symbol)
	}
	if !fin.Time.Equal(day1) {
		t.Errorf("bar time = %v, want %v", fin.Time, day1)
	}
	if fin.Open != 1.0850 || fin.High != 1.0910 || fin.Low != 1.0820 || fin.Close != 1.0830 {
		t.Errorf("merged OHLC = %+v", fin)
	}

	tail := r.Flush()
	if len(tail) != 1 {
		t.Fatalf("expected 1 tail bar, got %d", len(tail))
	}
	if !tail[0].Time.Equal(day2) || tail[0].Close != 1.0810 {
		t.Errorf("tail bar = %+v", tail[0])
	}
}

func TestResampler_LateObservationDropped(t *testing.T) {
	r, err := New(time.Hour)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	drops := 0
	r.OnDrop = func() { drops++ }

	base := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	r.Add(bar("BTCUSD", base, 100, 110, 95, 105))
	r.Add(bar("BTCUSD", base.Add(time.Hour), 105, 115, 100, 110))

	// An observation from the already-closed bucket must not reopen it.
	if _, ok := r.Add(bar("BTCUSD", base.Add(10*time.Minute), 50, 60, 40, 55)); ok {
		t.Fatal("late observation must not finalize anything")
	}
	if r.Dropped() != 1 || drops != 1 {
		t.Fatalf("dropped = %d, hook fired %d times; want 1 and 1", r.Dropped(), drops)
	}

	tail := r.Flush()
	if len(tail) != 1 || tail[0].Low != 100 {
		t.Fatalf("forming bar corrupted by late observation: %+v", tail)
	}
}

func TestResampler_PerSymbolIsolation(t *testing.T) {
	r, err := New(time.Hour)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	base := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	r.Add(bar("EURUSD", base.Add(5*time.Minute), 1.0, 1.1, 0.9, 1.05))
	r.Add(bar("BTCUSD", base.Add(6*time.Minute), 100, 110, 95, 105))

	// Rolling EURUSD into the next hour finalizes only EURUSD.
	fin, ok := r.Add(bar("EURUSD", base.Add(time.Hour), 1.05, 1.06, 1.0, 1.02))
	if !ok || fin.Symbol != "EURUSD" {
		t.Fatalf("expected EURUSD to finalize, got ok=%v %+v", ok, fin)
	}

	tail := r.Flush()
	if len(tail) != 2 {
		t.Fatalf("expected 2 forming bars, got %d", len(tail))
	}
	// Flush is sorted by symbol.
	if tail[0].Symbol != "BTCUSD" || tail[1].Symbol != "EURUSD" {
		t.Errorf("flush order = %q, %q", tail[0].Symbol, tail[1].Symbol)
	}
}

func TestResampler_SameBucketMergesOutOfOrder(t *testing.T) {
	r, err := New(time.Hour)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	base := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	r.Add(bar("BTCUSD", base.Add(30*time.Minute), 100, 110, 95, 105))
	r.Add(bar("BTCUSD", base.Add(10*time.Minute), 99, 120, 90, 98))

	tail := r.Flush()
	if len(tail) != 1 {
		t.Fatalf("expected 1 bar, got %d", len(tail))
	}
	got := tail[0]
	// Open stays from the first-seen observation; close follows the last.
	if got.Open != 100 || got.High != 120 || got.Low != 90 || got.Close != 98 {
		t.Errorf("merged bar = %+v", got)
	}
}

func TestResampler_InvalidPeriod(t *testing.T) {
	if _, err := New(0); err == nil {
		t.Fatal("expected error for zero period")
	}
	if _, err := New(-time.Minute); err == nil {
		t.Fatal("expected error for negative period")
	}
}

func TestResampler_Run(t *testing.T) {
	r, err := New(time.Hour)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	base := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	inCh := make(chan model.Observation, 8)
	outCh := make(chan model.Observation, 8)

	inCh <- bar("BTCUSD", base.Add(5*time.Minute), 100, 110, 95, 105)
	inCh <- bar("BTCUSD", base.Add(30*time.Minute), 105, 112, 101, 108)
	inCh <- bar("BTCUSD", base.Add(time.Hour), 108, 109, 104, 106)
	close(inCh)

	done := make(chan struct{})
	go func() {
		r.Run(context.Background(), inCh, outCh)
		close(done)
	}()
	<-done

	var got []model.Observation
	for len(outCh) > 0 {
		got = append(got, <-outCh)
	}

	if len(got) != 2 {
		t.Fatalf("expected 1 rolled bar + 1 flushed bar, got %d", len(got))
	}
	if !got[0].Time.Equal(base) || got[0].High != 112 || got[0].Close != 108 {
		t.Errorf("rolled bar = %+v", got[0])
	}
	if !got[1].Time.Equal(base.Add(time.Hour)) || got[1].Close != 106 {
		t.Errorf("flushed bar = %+v", got[1])
	}
}
