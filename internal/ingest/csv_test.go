package ingest

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeBars(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bars.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write bars.csv: %v", err)
	}
	return path
}

func TestCSVLoader_Load(t *testing.T) {
	content := "timestamp,date,open,high,low,close\n" +
		"2023.01.02 00:00:00,2023.01.02,16547.31,16630.00,16499.00,16615.93\n" +
		"\n" +
		"2023.01.02 01:00:00,garbage-date,16615.93,16622.45,16580.10,16612.00\n" +
		"2023.01.02 02:00:00,2023.01.02,not-a-number,1,2,3\n" +
		"too,few,fields\n" +
		"bad stamp,2023.01.02,1,2,3,4\n" +
		"2023.01.02 03:00:00,2023.01.02,16612.00,16640.00,16601.55,16633.20\n"

	l := NewCSVLoader(writeBars(t, content), "BTCUSD")
	obs, err := l.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(obs) != 3 {
		t.Fatalf("expected 3 observations, got %d", len(obs))
	}
	if l.Skipped() != 3 {
		t.Fatalf("expected 3 skipped rows, got %d", l.Skipped())
	}

	first := obs[0]
	if first.Symbol != "BTCUSD" {
		t.Errorf("symbol = %q, want BTCUSD", first.Symbol)
	}
	want := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	if !first.Time.Equal(want) {
		t.Errorf("time = %v, want %v", first.Time, want)
	}
	if first.Open != 16547.31 || first.High != 16630.00 || first.Low != 16499.00 || first.Close != 16615.93 {
		t.Errorf("first OHLC = %+v", first)
	}

	// The date column is never parsed, so the garbage-date row survives.
	if obs[1].Close != 16612.00 {
		t.Errorf("second close = %v, want 16612.00", obs[1].Close)
	}
	if obs[2].High != 16640.00 {
		t.Errorf("third high = %v, want 16640.00", obs[2].High)
	}
}

func TestCSVLoader_MissingFile(t *testing.T) {
	l := NewCSVLoader(filepath.Join(t.TempDir(), "absent.csv"), "EURUSD")
	if _, err := l.Load(); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestCSVLoader_HeaderOnly(t *testing.T) {
	l := NewCSVLoader(writeBars(t, "timestamp,date,open,high,low,close\n"), "EURUSD")
	obs, err := l.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(obs) != 0 {
		t.Fatalf("expected no observations, got %d", len(obs))
	}
	if l.Skipped() != 0 {
		t.Fatalf("expected no skipped rows, got %d", l.Skipped())
	}
}

func TestCSVLoader_SkipCountResetsPerLoad(t *testing.T) {
	content := "timestamp,date,open,high,low,close\n" +
		"broken row\n" +
		"2023.01.02 00:00:00,2023.01.02,1,2,0.5,1.5\n"

	l := NewCSVLoader(writeBars(t, content), "BTCUSD")
	if _, err := l.Load(); err != nil {
		t.Fatalf("first Load: %v", err)
	}
	if l.Skipped() != 1 {
		t.Fatalf("first Load skipped = %d, want 1", l.Skipped())
	}

	obs, err := l.Load()
	if err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if len(obs) != 1 || l.Skipped() != 1 {
		t.Fatalf("second Load: %d obs, %d skipped; want 1 and 1", len(obs), l.Skipped())
	}
}
