package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"pnf-systemv1/internal/model"
)

func TestCircuitBreaker_StartsClosed(t *testing.T) {
	cb := NewCircuitBreaker(3, 100*time.Millisecond)
	if cb.CurrentState() != StateClosed {
		t.Errorf("expected Closed, got %v", cb.CurrentState())
	}
}

func TestCircuitBreaker_OpensAfterFailures(t *testing.T) {
	cb := NewCircuitBreaker(3, 100*time.Millisecond)
	errFail := errors.New("fail")

	for i := 0; i < 3; i++ {
		err := cb.Execute(func() error { return errFail })
		if err != errFail {
			t.Fatalf("expected errFail, got %v", err)
		}
	}

	if cb.CurrentState() != StateOpen {
		t.Errorf("expected Open after 3 failures, got %v", cb.CurrentState())
	}

	// Calls should be rejected immediately
	err := cb.Execute(func() error { return nil })
	if err != ErrCircuitOpen {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	cb := NewCircuitBreaker(2, 50*time.Millisecond)

	// Trip the breaker
	errFail := errors.New("fail")
	for i := 0; i < 2; i++ {
		cb.Execute(func() error { return errFail })
	}
	if cb.CurrentState() != StateOpen {
		t.Fatal("expected Open")
	}

	// Wait for reset timeout
	time.Sleep(60 * time.Millisecond)

	// Next call should succeed and close the circuit
	err := cb.Execute(func() error { return nil })
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if cb.CurrentState() != StateClosed {
		t.Errorf("expected Closed after successful probe, got %v", cb.CurrentState())
	}
}

func TestCircuitBreaker_HalfOpenFailure(t *testing.T) {
	cb := NewCircuitBreaker(2, 50*time.Millisecond)
	errFail := errors.New("fail")

	// Trip
	for i := 0; i < 2; i++ {
		cb.Execute(func() error { return errFail })
	}

	// Wait and fail the probe
	time.Sleep(60 * time.Millisecond)
	cb.Execute(func() error { return errFail })

	if cb.CurrentState() != StateOpen {
		t.Errorf("expected Open after failed probe, got %v", cb.CurrentState())
	}
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(3, 100*time.Millisecond)
	errFail := errors.New("fail")

	// 2 failures, then a success
	cb.Execute(func() error { return errFail })
	cb.Execute(func() error { return errFail })
	cb.Execute(func() error { return nil }) // resets counter

	// 2 more failures shouldn't trip because counter was reset
	cb.Execute(func() error { return errFail })
	cb.Execute(func() error { return errFail })

	if cb.CurrentState() != StateClosed {
		t.Errorf("expected Closed (counter should have reset), got %v", cb.CurrentState())
	}
}

func TestCircuitBreaker_OnStateChangeCallback(t *testing.T) {
	var transitions []State
	cb := NewCircuitBreaker(1, 50*time.Millisecond)
	cb.OnStateChange = func(from, to State) {
		transitions = append(transitions, to)
	}

	cb.Execute(func() error { return errors.New("fail") })

	if len(transitions) != 1 || transitions[0] != StateOpen {
		t.Errorf("expected [Open], got %v", transitions)
	}

	time.Sleep(60 * time.Millisecond)
	cb.Execute(func() error { return nil })

	if len(transitions) != 3 {
		t.Fatalf("expected 3 transitions, got %d: %v", len(transitions), transitions)
	}
	if transitions[1] != StateHalfOpen || transitions[2] != StateClosed {
		t.Errorf("expected [Open, HalfOpen, Closed], got %v", transitions)
	}
}

func TestBufferedWriter_BuffersWhileOpen(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Hour)
	bw := NewBufferedWriter(context.Background(), &Writer{}, cb, 100)

	buffered := 0
	bw.OnBuffer = func() { buffered++ }

	// Trip the breaker without touching the writer
	cb.Execute(func() error { return errors.New("fail") })
	if cb.CurrentState() != StateOpen {
		t.Fatal("expected Open")
	}

	ev := model.NewChartEvent(model.EventSignal, "BTCUSD", 1700000000000)
	if err := bw.WriteEvent(ev); err != nil {
		t.Fatalf("expected buffered write to return nil, got %v", err)
	}
	if bw.PendingCount() != 1 {
		t.Errorf("pending = %d, want 1", bw.PendingCount())
	}
	if buffered != 1 {
		t.Errorf("OnBuffer calls = %d, want 1", buffered)
	}
}

func TestBufferedWriter_DropsOldestWhenFull(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Hour)
	bw := NewBufferedWriter(context.Background(), &Writer{}, cb, 2)

	cb.Execute(func() error { return errors.New("fail") })

	for ts := int64(1); ts <= 3; ts++ {
		bw.WriteEvent(model.NewChartEvent(model.EventColumn, "BTCUSD", ts))
	}

	if bw.PendingCount() != 2 {
		t.Fatalf("pending = %d, want 2", bw.PendingCount())
	}
	bw.mu.Lock()
	defer bw.mu.Unlock()
	if bw.buffer[0].Timestamp != 2 || bw.buffer[1].Timestamp != 3 {
		t.Errorf("buffer timestamps = [%d, %d], want [2, 3]", bw.buffer[0].Timestamp, bw.buffer[1].Timestamp)
	}
}
