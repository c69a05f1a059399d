package platform

import "testing"

// TestPICIRQRoundTrip covers spec.md scenario S6 and testable property 7:
// raising IRQ0 after ICW init delivers the master's base vector, sets the
// ISR bit, and a specific EOI clears it.
func TestPICIRQRoundTrip(t *testing.T) {
	p := NewPIC()

	p.WritePort(PICMasterCmdPort, 1, uint64(icw1Init|icw1IC4))
	p.WritePort(PICMasterDataPort, 1, 0x20) // ICW2: vector base
	p.WritePort(PICMasterDataPort, 1, 0x04) // ICW3: cascade line (ignored on master role check)
	p.WritePort(PICMasterDataPort, 1, 0x01) // ICW4
	p.WritePort(PICMasterDataPort, 1, 0xFF) // mask all
	p.WritePort(PICMasterDataPort, 1, 0xFE) // unmask IRQ0

	if !p.RaiseIRQ(0) {
		t.Fatal("RaiseIRQ(0) rejected, queue should have room")
	}
	p.Drain()

	vector, ok := p.Pending()
	if !ok {
		t.Fatal("Pending() reported nothing pending after RaiseIRQ(0)")
	}
	if vector != 0x20 {
		t.Errorf("Pending() vector = %#x, want 0x20", vector)
	}
	if p.Master.isr&0x01 == 0 {
		t.Error("expected master ISR bit 0 set after acceptance")
	}

	// Specific EOI for IRQ0 (OCW2 with the specific + EOI bits, level 0).
	p.WritePort(PICMasterCmdPort, 1, uint64(ocw2EOI|ocw2Specif|0))
	if p.Master.isr&0x01 != 0 {
		t.Error("expected master ISR bit 0 cleared after specific EOI")
	}
}

// TestPICNonSpecificEOIClearsHighestPriority covers the non-specific-EOI
// half of testable property 7.
func TestPICNonSpecificEOIClearsHighestPriority(t *testing.T) {
	p := NewPIC()
	p.Master.imr = 0
	p.Master.irr = 0x03 // lines 0 and 1 pending
	p.Master.isr = 0x03 // both already in service (simulating nested delivery)

	p.WritePort(PICMasterCmdPort, 1, uint64(ocw2EOI))
	if p.Master.isr != 0x02 {
		t.Errorf("non-specific EOI should clear the lowest-numbered ISR bit, got isr=%#x", p.Master.isr)
	}
}

// TestPICSlaveCascade checks an IRQ >= 8 is delivered through the slave and
// cascades a pending indication on the master's line 2.
func TestPICSlaveCascade(t *testing.T) {
	p := NewPIC()
	p.Master.vectorBase = 0x08
	p.Slave.vectorBase = 0x70
	p.Master.imr = 0
	p.Slave.imr = 0

	p.RaiseIRQ(8) // slave IRQ0
	p.Drain()

	vector, ok := p.Pending()
	if !ok {
		t.Fatal("expected a pending vector for slave IRQ0")
	}
	if vector != 0x70 {
		t.Errorf("vector = %#x, want 0x70", vector)
	}
}
