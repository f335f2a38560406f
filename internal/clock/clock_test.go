package clock

import "testing"

func TestRescaleTSIdentity(t *testing.T) {
	if got := RescaleTS(12345, SysTimeBase, SysTimeBase); got != 12345 {
		t.Fatalf("got %d, want 12345", got)
	}
}

func TestRescaleTSConversion(t *testing.T) {
	// 1 second at 1000Hz (1000 ticks) becomes 1 second at 90kHz (90000 ticks).
	tb1000 := TimeBase{Num: 1, Den: 1000}
	got := RescaleTS(1000, tb1000, SysTimeBase)
	if got != 90000 {
		t.Fatalf("got %d, want 90000", got)
	}
}

func TestRescaleTSRoundsToNearest(t *testing.T) {
	// 1 tick at 3Hz -> ticks at 90kHz: 90000/3 = 30000 exactly.
	tb3 := TimeBase{Num: 1, Den: 3}
	if got := RescaleTS(1, tb3, SysTimeBase); got != 30000 {
		t.Fatalf("got %d, want 30000", got)
	}
	// 1 tick at 7Hz -> 90000/7 = 12857.14..., should round to 12857.
	tb7 := TimeBase{Num: 1, Den: 7}
	if got := RescaleTS(1, tb7, SysTimeBase); got != 12857 {
		t.Fatalf("got %d, want 12857", got)
	}
}

func TestClockIncrementIgnoresNegative(t *testing.T) {
	c := NewClock(100)
	c.Increment(-50)
	if c.Now() != 100 {
		t.Fatalf("got %d, want 100 (negative delta should be dropped)", c.Now())
	}
	c.Increment(50)
	if c.Now() != 150 {
		t.Fatalf("got %d, want 150", c.Now())
	}
}

func TestTSTickerFirstTickAdvancesByFullTS(t *testing.T) {
	c := NewClock(0)
	ticker := NewTSTicker(c)
	ticker.Tick(1000)
	if c.Now() != 1000 {
		t.Fatalf("got %d, want 1000 after first tick (implicit previous ts is zero)", c.Now())
	}
	ticker.Tick(1090)
	if c.Now() != 1090 {
		t.Fatalf("got %d, want 1090 after second tick", c.Now())
	}
}

func TestTSRescalerZeroesOnFirstCall(t *testing.T) {
	c := NewClock(1000)
	r := ClockRelative(c, SysTimeBase)
	if got := r.RescaleToClock(5000); got != 1000 {
		t.Fatalf("got %d, want 1000 (first call establishes zero point)", got)
	}
	if got := r.RescaleToClock(5090); got != 1090 {
		t.Fatalf("got %d, want 1090", got)
	}
}
