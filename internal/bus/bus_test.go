package bus

import (
	"context"
	"testing"
	"time"

	"pnf-systemv1/internal/model"
)

func TestFanOut_BroadcastsToAll(t *testing.T) {
	fo := New(10)
	out1 := fo.Subscribe()
	out2 := fo.Subscribe()

	input := make(chan model.ChartEvent, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go fo.Run(ctx, input)

	ev := model.NewChartEvent(model.EventSignal, "BTCUSD", 1700000000000)
	ev.Kind = "BUY"
	ev.Price = 37000.5
	input <- ev

	for i, out := range []<-chan model.ChartEvent{out1, out2} {
		select {
		case got := <-out:
			if got.Symbol != "BTCUSD" || got.Kind != "BUY" {
				t.Errorf("out%d: unexpected event %+v", i+1, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("out%d: timed out waiting for event", i+1)
		}
	}
}

func TestFanOut_SlowConsumerDropsWithoutBlocking(t *testing.T) {
	fo := New(1)
	slow := fo.Subscribe()

	drops := 0
	fo.OnDrop = func(idx int) {
		if idx != 0 {
			t.Errorf("drop reported for subscriber %d, want 0", idx)
		}
		drops++
	}

	input := make(chan model.ChartEvent, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go fo.Run(ctx, input)

	// The subscriber never reads: first event fills the buffer, the next
	// two are dropped.
	for i := 0; i < 3; i++ {
		input <- model.NewChartEvent(model.EventColumn, "EURUSD", int64(i))
	}
	time.Sleep(50 * time.Millisecond)

	if drops != 2 {
		t.Errorf("expected 2 drops, got %d", drops)
	}
	if len(slow) != 1 {
		t.Errorf("expected 1 buffered event, got %d", len(slow))
	}
}

func TestFanOut_ClosesSubscribersOnInputClose(t *testing.T) {
	fo := New(4)
	out := fo.Subscribe()

	input := make(chan model.ChartEvent)
	close(input)
	fo.Run(context.Background(), input)

	select {
	case _, ok := <-out:
		if ok {
			t.Fatal("expected closed channel, got event")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for subscriber close")
	}
}

func TestFanOut_ChannelStats(t *testing.T) {
	fo := New(8)
	fo.Subscribe()
	fo.Subscribe()

	input := make(chan model.ChartEvent, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go fo.Run(ctx, input)

	input <- model.NewChartEvent(model.EventPattern, "BTCUSD", 1)
	time.Sleep(50 * time.Millisecond)

	stats := fo.ChannelStats()
	if len(stats) != 2 {
		t.Fatalf("expected 2 stats, got %d", len(stats))
	}
	for i, st := range stats {
		if st.Cap != 8 {
			t.Errorf("stat %d cap = %d, want 8", i, st.Cap)
		}
		if st.Len != 1 {
			t.Errorf("stat %d len = %d, want 1", i, st.Len)
		}
	}
}
