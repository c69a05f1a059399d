package platform

import "testing"

func writeReg32(a *IOAPIC, index uint32, v uint32) {
	for i := 0; i < 4; i++ {
		a.WriteByte(a.Base+ioregselOff+uint64(i), byte(index>>(8*uint(i))))
	}
	for i := 0; i < 4; i++ {
		a.WriteByte(a.Base+iowinOff+uint64(i), byte(v>>(8*uint(i))))
	}
}

// TestIOAPICRedirectionDelivers checks an unmasked redirection entry
// delivers its configured vector on Drain.
func TestIOAPICRedirectionDelivers(t *testing.T) {
	a := NewIOAPIC(0xFEC00000)
	writeReg32(a, 0x10, 0x30) // redir entry 0, low dword: vector 0x30, unmasked

	a.RaiseIRQ(0)
	var delivered byte
	var got bool
	a.Drain(func(v byte) { delivered, got = v, true })

	if !got {
		t.Fatal("expected a delivered vector")
	}
	if delivered != 0x30 {
		t.Errorf("delivered vector = %#x, want 0x30", delivered)
	}
}

// TestIOAPICMaskedEntrySuppressesDelivery checks the mask bit (bit 16)
// prevents delivery.
func TestIOAPICMaskedEntrySuppressesDelivery(t *testing.T) {
	a := NewIOAPIC(0xFEC00000)
	writeReg32(a, 0x10, 0x30|(1<<16))

	a.RaiseIRQ(0)
	got := false
	a.Drain(func(v byte) { got = true })

	if got {
		t.Error("expected no delivery for a masked redirection entry")
	}
}

// TestIOAPICVersionRegister checks the version register reports the
// maximum redirection entry index.
func TestIOAPICVersionRegister(t *testing.T) {
	a := NewIOAPIC(0xFEC00000)
	for i := 0; i < 4; i++ {
		a.WriteByte(a.Base+ioregselOff+uint64(i), byte(0x01>>(8*uint(i))))
	}
	var v uint32
	for i := 0; i < 4; i++ {
		b, err := a.ReadByte(a.Base + iowinOff + uint64(i))
		if err != nil {
			t.Fatalf("ReadByte: %v", err)
		}
		v |= uint32(b) << (8 * uint(i))
	}
	if v&0xFF != 0x11 {
		t.Errorf("version low byte = %#x, want 0x11", v&0xFF)
	}
	if (v>>16)&0xFF != uint32(len(a.redir)-1) {
		t.Errorf("max redirection entry = %#x, want %#x", (v>>16)&0xFF, len(a.redir)-1)
	}
}
