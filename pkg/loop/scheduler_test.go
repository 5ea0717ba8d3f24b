package loop

import (
	"testing"
	"time"
)

func TestManualFire(t *testing.T) {
	m := NewManual()
	var order []int
	m.Schedule(func() { order = append(order, 1) })
	cancel := m.Schedule(func() { order = append(order, 2) })
	m.Schedule(func() {
		order = append(order, 3)
		m.Schedule(func() { order = append(order, 4) })
	})
	cancel()

	if m.Pending() != 2 {
		t.Errorf("Expected 2 pending, got %d", m.Pending())
	}
	if n := m.Fire(); n != 2 {
		t.Errorf("Expected 2 callbacks to run, got %d", n)
	}
	if len(order) != 2 || order[0] != 1 || order[1] != 3 {
		t.Errorf("Expected [1 3], got %v", order)
	}

	// Rescheduled during Fire waits for the next one
	m.Fire()
	if len(order) != 3 || order[2] != 4 {
		t.Errorf("Expected rescheduled callback on second fire, got %v", order)
	}
}

func TestTickerRunsAndCancels(t *testing.T) {
	tk := NewTicker(100)
	defer tk.Stop()

	ran := make(chan struct{}, 1)
	tk.Schedule(func() { ran <- struct{}{} })
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("ticker did not run the callback")
	}

	cancelled := make(chan struct{}, 1)
	cancel := tk.Schedule(func() { cancelled <- struct{}{} })
	cancel()
	select {
	case <-cancelled:
		t.Error("cancelled callback ran")
	case <-time.After(100 * time.Millisecond):
	}
}
