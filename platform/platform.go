package platform

// Platform bundles the device models a vm.VM is wired to. It is passed by
// pointer into vm.NewVM and never held as package-level state; tests and
// multiple concurrently-running VMs each construct their own (Design Note
// "Global mutable state... no singletons").
type Platform struct {
	PIC    *PIC
	LAPIC  *LAPIC
	IOAPIC *IOAPIC
	CMOS   *CMOS
}

// New returns a Platform with every device constructed at its conventional
// address/port. lapicBaseHz configures the LAPIC timer's bus-cycle rate.
func New(lapicBaseHz uint64) *Platform {
	return &Platform{
		PIC:    NewPIC(),
		LAPIC:  NewLAPIC(lapicMMIOBase, lapicBaseHz),
		IOAPIC: NewIOAPIC(IoapicMMIOBase),
		CMOS:   NewCMOS(),
	}
}

// lapicMMIOBase and IoapicMMIOBase are the conventional PC physical
// addresses for the two APIC MMIO windows (spec.md S6).
const (
	lapicMMIOBase    = 0xFEE00000
	IoapicMMIOBase   = 0xFEC00000
)

// DeliverToCPU is the callback LAPIC.Tick/IOAPIC.Drain invoke with a raw
// interrupt vector; vm.VM supplies the concrete implementation that feeds
// its exception pipeline.
type DeliverToCPU func(vector byte)
