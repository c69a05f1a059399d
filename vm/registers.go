package vm

// CPU holds the architectural register file: sixteen 64-bit general purpose
// slots (8..15 reachable only with REX) with overlapping byte/word/dword/qword views, six segment selectors
// with hidden descriptor caches, control/debug registers, the instruction
// pointer, EFLAGS, and the mode attributes that govern decode and
// addressing (spec.md S3 "Register File").
type CPU struct {
	// General purpose registers, indexed 0..15 (REX.B/R/X extend beyond 0..7).
	GPR [16]uint64

	RIP uint64

	Seg [6]Segment

	CR [5]uint64 // CR0..CR4
	DR [8]uint64 // DR0..DR7

	GDTR DTR
	IDTR DTR
	TR   DTR // task register: base/limit of the loaded TSS, for the I/O bitmap

	Flags EFLAGS

	// Mode attributes (spec.md S3).
	ProtectedMode  bool
	LongMode       bool
	CompatMode     bool
	A20Enabled     bool
	CPL            int
	IOPL           int
	NT             bool
	IDFlag         bool

	// Prefix state for the instruction currently being decoded, threaded
	// explicitly rather than re-entering dispatch (spec.md Design Note 2).
	Prefixes Prefixes

	// STI defers interrupt acceptance for exactly one instruction.
	InterruptShadow int

	Halted bool
	Cycles uint64
}

// DTR is a descriptor table register (GDTR/IDTR): a linear base and a
// byte limit, loaded by LGDT/LIDT (spec.md S4.8).
type DTR struct {
	Base  uint64
	Limit uint16
}

// Segment is a selector plus its hidden descriptor cache (spec.md S3).
type Segment struct {
	Selector   uint16
	Base       uint64
	Limit      uint32
	Present    bool
	Executable bool
	Conforming bool
	DPL        int
	DB         bool // D/B bit: 0 = 16-bit default, 1 = 32-bit default
	Long       bool // L bit (64-bit code segment)
}

// NewCPU returns a CPU in its architectural reset state: real mode,
// CS:IP = F000:FFF0, A20 disabled, CR0.PE=0 (spec.md S6).
func NewCPU() *CPU {
	c := &CPU{}
	c.Reset()
	return c
}

// Reset restores architectural reset values.
func (c *CPU) Reset() {
	for i := range c.GPR {
		c.GPR[i] = 0
	}
	for i := range c.Seg {
		c.Seg[i] = Segment{}
	}
	c.Seg[SegCS] = Segment{Selector: ResetCS, Base: uint64(ResetCS) << 4, Limit: 0xFFFF, Present: true, Executable: true}
	c.RIP = uint64(ResetIP)
	c.CR = [5]uint64{}
	c.DR = [8]uint64{}
	c.GDTR = DTR{}
	c.IDTR = DTR{}
	c.TR = DTR{}
	c.Flags = EFLAGS{}
	c.ProtectedMode = false
	c.LongMode = false
	c.CompatMode = false
	c.A20Enabled = A20EnabledAtReset
	c.CPL = 0
	c.IOPL = 0
	c.NT = false
	c.IDFlag = false
	c.Prefixes = Prefixes{SegmentOverride: -1}
	c.InterruptShadow = 0
	c.Halted = false
	c.Cycles = 0
}

// regByteHigh reports whether register code `code` addresses a legacy
// high-byte register (AH/CH/DH/BH). High-byte addressing is only available
// when no REX prefix is present; with REX, codes 4..7 mean SPL/BPL/SIL/DIL.
func regByteHigh(code int, rexPresent bool) bool {
	return !rexPresent && code >= 4 && code <= 7
}

// ReadByte returns the 8-bit view of register `code`.
func (c *CPU) ReadByte(code int, rexPresent bool) uint8 {
	if regByteHigh(code, rexPresent) {
		return uint8(c.GPR[code-4] >> 8)
	}
	return uint8(c.GPR[code&0xF])
}

// WriteByte writes the 8-bit view of register `code`, preserving all other
// bits of the slot.
func (c *CPU) WriteByte(code int, rexPresent bool, v uint8) {
	if regByteHigh(code, rexPresent) {
		reg := code - 4
		c.GPR[reg] = (c.GPR[reg] &^ 0xFF00) | uint64(v)<<8
		return
	}
	reg := code & 0xF
	c.GPR[reg] = (c.GPR[reg] &^ 0xFF) | uint64(v)
}

// ReadWord returns the 16-bit view.
func (c *CPU) ReadWord(code int) uint16 { return uint16(c.GPR[code&0xF]) }

// WriteWord writes the 16-bit view, preserving the rest of the slot.
func (c *CPU) WriteWord(code int, v uint16) {
	reg := code & 0xF
	c.GPR[reg] = (c.GPR[reg] &^ 0xFFFF) | uint64(v)
}

// ReadDword returns the 32-bit view.
func (c *CPU) ReadDword(code int) uint32 { return uint32(c.GPR[code&0xF]) }

// WriteDword writes the 32-bit view. In 64-bit mode, per spec.md S4.2, a
// 32-bit write zero-extends bits 63..32 (inherited x86-64 behavior);
// outside long mode the upper bits are left untouched.
func (c *CPU) WriteDword(code int, v uint32) {
	reg := code & 0xF
	if c.LongMode {
		c.GPR[reg] = uint64(v)
	} else {
		c.GPR[reg] = (c.GPR[reg] &^ 0xFFFFFFFF) | uint64(v)
	}
}

// ReadQword returns the full 64-bit slot.
func (c *CPU) ReadQword(code int) uint64 { return c.GPR[code&0xF] }

// WriteQword writes the full 64-bit slot.
func (c *CPU) WriteQword(code int, v uint64) { c.GPR[code&0xF] = v }

// ReadBySize reads register `code` at width W, zero-extended into a uint64.
func (c *CPU) ReadBySize(code int, w int, rexPresent bool) uint64 {
	switch w {
	case Width8:
		return uint64(c.ReadByte(code, rexPresent))
	case Width16:
		return uint64(c.ReadWord(code))
	case Width32:
		return uint64(c.ReadDword(code))
	default:
		return c.ReadQword(code)
	}
}

// WriteBySize writes register `code` at width W. This is the one entry
// point handlers should use for RM/reg writes so the long-mode
// zero-extension rule in WriteDword is never accidentally bypassed.
func (c *CPU) WriteBySize(code int, w int, v uint64, rexPresent bool) {
	switch w {
	case Width8:
		c.WriteByte(code, rexPresent, uint8(v))
	case Width16:
		c.WriteWord(code, uint16(v))
	case Width32:
		c.WriteDword(code, uint32(v))
	default:
		c.WriteQword(code, v)
	}
}

// StackWidth returns the width of the stack pointer view that PUSH/POP
// should use: operand size override in real/virtual-8086 mode, SS.D/B in
// protected mode, 64 bits in long mode (spec.md S4.3).
func (c *CPU) StackWidth() int {
	if c.LongMode {
		return Width64
	}
	if c.ProtectedMode {
		if c.Seg[SegSS].DB {
			return Width32
		}
		return Width16
	}
	if c.Prefixes.OperandSizeOverride {
		return Width32
	}
	return Width16
}

// OperandWidth returns the default operand width for the current mode and
// active prefixes/REX.
func (c *CPU) OperandWidth() int {
	if c.Prefixes.RexW {
		return Width64
	}
	def := Width16
	if c.ProtectedMode && !c.CompatModeDefault16() {
		def = Width32
	}
	if c.LongMode && c.Seg[SegCS].Long {
		def = Width32
	}
	if c.Prefixes.OperandSizeOverride {
		if def == Width32 {
			return Width16
		}
		return Width32
	}
	return def
}

// CompatModeDefault16 reports whether the current code segment's D/B bit
// selects a 16-bit operand-size default while in protected mode.
func (c *CPU) CompatModeDefault16() bool {
	return !c.Seg[SegCS].DB
}

// AddressWidth returns the default address width, honoring the address-size
// override prefix (0x67).
func (c *CPU) AddressWidth() int {
	def := Width16
	if c.ProtectedMode {
		def = Width32
	}
	if c.LongMode {
		def = Width64
	}
	if c.Prefixes.AddressSizeOverride {
		switch def {
		case Width64:
			return Width32
		case Width32:
			return Width16
		default:
			return Width32
		}
	}
	return def
}
