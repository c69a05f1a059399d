package platform

import (
	"testing"
	"time"
)

func fixedClock(tm time.Time) func() time.Time {
	return func() time.Time { return tm }
}

// TestCMOSReadsBCDByDefault checks the register file reports BCD-encoded
// time fields unless Status B's binary bit is set.
func TestCMOSReadsBCDByDefault(t *testing.T) {
	c := NewCMOS()
	c.Clock = fixedClock(time.Date(2026, time.July, 30, 14, 37, 9, 0, time.UTC))

	c.WritePort(CMOSIndexPort, 1, cmosSeconds)
	v, err := c.ReadPort(CMOSDataPort, 1)
	if err != nil {
		t.Fatalf("ReadPort seconds: %v", err)
	}
	if v != 0x09 {
		t.Errorf("seconds (BCD) = %#x, want 0x09", v)
	}

	c.WritePort(CMOSIndexPort, 1, cmosMinutes)
	v, _ = c.ReadPort(CMOSDataPort, 1)
	if v != 0x37 {
		t.Errorf("minutes (BCD) = %#x, want 0x37", v)
	}
}

// TestCMOSReadsBinaryWhenStatusBSet checks Status B's binary bit switches
// register decoding away from BCD.
func TestCMOSReadsBinaryWhenStatusBSet(t *testing.T) {
	c := NewCMOS()
	c.Clock = fixedClock(time.Date(2026, time.July, 30, 14, 37, 9, 0, time.UTC))

	c.WritePort(CMOSIndexPort, 1, cmosStatusB)
	c.WritePort(CMOSDataPort, 1, statusBBinary)

	c.WritePort(CMOSIndexPort, 1, cmosMinutes)
	v, _ := c.ReadPort(CMOSDataPort, 1)
	if v != 37 {
		t.Errorf("minutes (binary) = %d, want 37", v)
	}
}
