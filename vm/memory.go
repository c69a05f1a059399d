package vm

import "fmt"

// Bus is the physical address space the CPU fetches and reads/writes
// through: flat RAM plus the MMIO windows routed to device models. It
// replaces the teacher's segmented-permission MemorySegment model, which
// had no notion of a device bus (spec.md S4.3).
type Bus interface {
	ReadByte(addr uint64) (uint8, error)
	WriteByte(addr uint64, v uint8) error
	ReadBytes(addr uint64, n int) (uint64, error)
	WriteBytes(addr uint64, n int, v uint64) error
	ReadPort(port uint16, w int) (uint64, error)
	WritePort(port uint16, w int, v uint64) error
}

// MMIORegion is a byte-addressed device window mapped into physical
// memory, dispatched ahead of RAM in Memory.ReadByte/WriteByte.
type MMIORegion interface {
	Contains(addr uint64) bool
	ReadByte(addr uint64) (uint8, error)
	WriteByte(addr uint64, v uint8) error
}

// PortDevice backs IN/OUT access to a range of I/O ports (spec.md S4.6).
type PortDevice interface {
	ContainsPort(port uint16) bool
	ReadPort(port uint16, w int) (uint64, error)
	WritePort(port uint16, w int, v uint64) error
}

// Memory is the default Bus implementation: flat byte-addressable RAM with
// a list of MMIO windows (LAPIC, IOAPIC, framebuffer, ...) and port devices
// checked before falling through to RAM.
type Memory struct {
	RAM   []byte
	MMIO  []MMIORegion
	Ports []PortDevice
}

// NewMemory allocates size bytes of RAM.
func NewMemory(size int) *Memory {
	return &Memory{RAM: make([]byte, size)}
}

// AddMMIO registers a device window, checked in registration order.
func (m *Memory) AddMMIO(r MMIORegion) { m.MMIO = append(m.MMIO, r) }

// AddPort registers a port device, checked in registration order.
func (m *Memory) AddPort(p PortDevice) { m.Ports = append(m.Ports, p) }

// ErrBusFault reports an access outside any mapped region.
type ErrBusFault struct {
	Addr uint64
}

func (e *ErrBusFault) Error() string {
	return fmt.Sprintf("bus fault: unmapped address %#x", e.Addr)
}

func (m *Memory) findMMIO(addr uint64) MMIORegion {
	for _, r := range m.MMIO {
		if r.Contains(addr) {
			return r
		}
	}
	return nil
}

// ReadByte dispatches to the first matching MMIO window, else RAM.
func (m *Memory) ReadByte(addr uint64) (uint8, error) {
	if r := m.findMMIO(addr); r != nil {
		return r.ReadByte(addr)
	}
	if addr >= uint64(len(m.RAM)) {
		return 0, &ErrBusFault{Addr: addr}
	}
	return m.RAM[addr], nil
}

// WriteByte dispatches to the first matching MMIO window, else RAM.
func (m *Memory) WriteByte(addr uint64, v uint8) error {
	if r := m.findMMIO(addr); r != nil {
		return r.WriteByte(addr, v)
	}
	if addr >= uint64(len(m.RAM)) {
		return &ErrBusFault{Addr: addr}
	}
	m.RAM[addr] = v
	return nil
}

func (m *Memory) findPort(port uint16) PortDevice {
	for _, p := range m.Ports {
		if p.ContainsPort(port) {
			return p
		}
	}
	return nil
}

// ReadPort dispatches IN to the registered port device, if any.
func (m *Memory) ReadPort(port uint16, w int) (uint64, error) {
	if p := m.findPort(port); p != nil {
		return p.ReadPort(port, w)
	}
	return maskOf(w), nil // unmapped ports float high, conventional for absent hardware
}

// WritePort dispatches OUT to the registered port device, if any; writes
// to unmapped ports are discarded.
func (m *Memory) WritePort(port uint16, w int, v uint64) error {
	if p := m.findPort(port); p != nil {
		return p.WritePort(port, w, v)
	}
	return nil
}

// ReadBytes reads a little-endian multi-byte value at addr.
func (m *Memory) ReadBytes(addr uint64, n int) (uint64, error) {
	var v uint64
	for i := 0; i < n; i++ {
		b, err := m.ReadByte(addr + uint64(i))
		if err != nil {
			return 0, err
		}
		v |= uint64(b) << (8 * uint(i))
	}
	return v, nil
}

// WriteBytes writes a little-endian multi-byte value at addr.
func (m *Memory) WriteBytes(addr uint64, n int, v uint64) error {
	for i := 0; i < n; i++ {
		if err := m.WriteByte(addr+uint64(i), uint8(v>>(8*uint(i)))); err != nil {
			return err
		}
	}
	return nil
}

// Linear computes the linear address for segment:offset as the segment's
// cached Base plus offset, applying the A20 gate when disabled (bit 20
// forced to the historical wraparound alias) (spec.md S4.3). The real-mode
// selector<<4 base is set when a segment is loaded, not here.
func (c *CPU) Linear(seg int, offset uint64) uint64 {
	addr := c.Seg[seg].Base + offset
	if !c.A20Enabled {
		addr &^= 1 << 20
	}
	return addr
}

// EffectiveSegment resolves which segment register governs an access,
// honoring an active segment-override prefix and falling back to the
// supplied default (spec.md S4.4 -- segment override prefixes).
func (c *CPU) EffectiveSegment(def int) int {
	if c.Prefixes.SegmentOverride >= 0 {
		return c.Prefixes.SegmentOverride
	}
	return def
}
