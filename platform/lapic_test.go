package platform

import "testing"

// TestLAPICTimerOneShot covers testable property 8: a one-shot timer with
// initial=K, divider=D delivers its vector exactly once after >= K ticks of
// BASE_HZ/D, and not again afterward.
func TestLAPICTimerOneShot(t *testing.T) {
	l := NewLAPIC(0xFEE00000, 1_000_000_000)
	l.lvtTimer = 0x20 // vector 0x20, not masked, not periodic
	l.initCount = 10
	l.curCount = 10
	l.divider = 0x0 // divisorValue() == 2

	var delivered []byte
	deliver := func(v byte) { delivered = append(delivered, v) }

	l.Tick(19, deliver) // 19/2 == 9 steps, not yet at K
	if len(delivered) != 0 {
		t.Fatalf("expected no delivery before K ticks, got %v", delivered)
	}

	l.Tick(2, deliver) // crosses the remaining step
	if len(delivered) != 1 {
		t.Fatalf("expected exactly one delivery, got %v", delivered)
	}
	if delivered[0] != 0x20 {
		t.Errorf("delivered vector = %#x, want 0x20", delivered[0])
	}

	l.Tick(1000, deliver) // one-shot: no further delivery
	if len(delivered) != 1 {
		t.Errorf("expected no further delivery after one-shot fires, got %v", delivered)
	}
}

// TestLAPICTimerPeriodicReloads checks the periodic mode reloads initCount
// and can deliver more than once.
func TestLAPICTimerPeriodicReloads(t *testing.T) {
	l := NewLAPIC(0xFEE00000, 1_000_000_000)
	l.lvtTimer = 0x21 | (1 << 17) // vector 0x21, periodic
	l.initCount = 4
	l.curCount = 4
	l.divider = 0x0 // divisor 2

	var count int
	l.Tick(16, func(v byte) { count++ }) // 16/2=8 steps == 2 periods of 4

	if count != 2 {
		t.Errorf("expected 2 periodic deliveries, got %d", count)
	}
}

// TestLAPICEOIClearsISR checks a write to the EOI register clears the
// highest-numbered set in-service bit.
func TestLAPICEOIClearsISR(t *testing.T) {
	l := NewLAPIC(0xFEE00000, 1_000_000_000)
	l.setISR(0x30)

	if err := l.WriteByte(l.Base+lapicEOI, 0); err != nil {
		t.Fatalf("WriteByte(EOI) returned error: %v", err)
	}
	if l.isr[1]&(1<<16) != 0 {
		t.Error("expected ISR bit cleared after EOI")
	}
}
