package vm

import "fmt"

// RepKind identifies which REP-family prefix, if any, preceded a string
// instruction (spec.md S4.4).
type RepKind int

const (
	RepNone RepKind = iota
	RepEqual
	RepNotEqual
)

// Prefixes captures the legacy prefix bytes and REX byte collected ahead of
// an opcode, threaded explicitly through decode and execute rather than
// re-parsed by each handler (spec.md Design Note 2).
type Prefixes struct {
	Lock bool
	Rep  RepKind

	// SegmentOverride is one of Seg{ES,CS,SS,DS,FS,GS}, or -1 if absent.
	SegmentOverride int

	OperandSizeOverride bool
	AddressSizeOverride bool

	RexPresent bool
	RexW       bool
	RexR       bool
	RexX       bool
	RexB       bool
}

// Cursor is a sequential little-endian reader over the instruction stream,
// bound to a linear start address for fault reporting.
type Cursor struct {
	Bus   Bus
	Base  uint64 // linear address of the first byte
	Pos   uint64 // bytes consumed so far
}

// NewCursor returns a cursor that will fetch bytes starting at linear
// address `at`.
func NewCursor(bus Bus, at uint64) *Cursor {
	return &Cursor{Bus: bus, Base: at}
}

func (c *Cursor) addr() uint64 { return c.Base + c.Pos }

// U8 fetches the next byte.
func (c *Cursor) U8() (uint8, error) {
	v, err := c.Bus.ReadByte(c.addr())
	if err != nil {
		return 0, fmt.Errorf("fetch at %#x: %w", c.addr(), err)
	}
	c.Pos++
	return v, nil
}

// I8 fetches the next byte as a sign-extended value.
func (c *Cursor) I8() (int8, error) {
	v, err := c.U8()
	return int8(v), err
}

// U16 fetches a little-endian 16-bit value.
func (c *Cursor) U16() (uint16, error) {
	lo, err := c.U8()
	if err != nil {
		return 0, err
	}
	hi, err := c.U8()
	if err != nil {
		return 0, err
	}
	return uint16(lo) | uint16(hi)<<8, nil
}

// U32 fetches a little-endian 32-bit value.
func (c *Cursor) U32() (uint32, error) {
	lo, err := c.U16()
	if err != nil {
		return 0, err
	}
	hi, err := c.U16()
	if err != nil {
		return 0, err
	}
	return uint32(lo) | uint32(hi)<<16, nil
}

// U64 fetches a little-endian 64-bit value.
func (c *Cursor) U64() (uint64, error) {
	lo, err := c.U32()
	if err != nil {
		return 0, err
	}
	hi, err := c.U32()
	if err != nil {
		return 0, err
	}
	return uint64(lo) | uint64(hi)<<32, nil
}

// I32 fetches a little-endian 32-bit value as a sign-extended int64, used
// for rel32 branch displacements and imm32-sign-extended-to-64 operands.
func (c *Cursor) I32() (int64, error) {
	v, err := c.U32()
	return int64(int32(v)), err
}

// ImmBySize fetches an immediate of the given operand width. imm8, imm16
// and the imm32 read for Width64 are sign-extended to 64 bits; Width32
// reads imm32 zero-extended (imm64 is only ever a literal move operand).
func (c *Cursor) ImmBySize(w int) (uint64, error) {
	switch w {
	case Width8:
		v, err := c.I8()
		return uint64(int64(v)), err
	case Width16:
		v, err := c.U16()
		return uint64(int64(int16(v))), err
	case Width64:
		v, err := c.I32()
		return uint64(v), err
	default:
		v, err := c.I32()
		return uint64(uint32(v)), err
	}
}

// ModRM holds the decoded ModR/M + SIB + displacement fields (spec.md S4.4).
type ModRM struct {
	Mod int
	Reg int // reg/opcode extension field, before REX.R
	RM  int // before REX.B

	IsMemory bool

	// SIB fields, valid only when IsMemory and the raw RM encoded [SIB].
	HasSIB bool
	Scale  int
	Index  int // before REX.X; -1 means "no index" (encoded as 4)
	Base   int // before REX.B; -1 means "no base" (mod==0, base==5)

	Disp int64
}

// DecodeModRM reads a ModR/M byte, any SIB byte, and any displacement,
// honoring the current address width for the [disp32]-vs-[disp16] special
// cases (spec.md S4.4).
func DecodeModRM(c *Cursor, addrWidth int) (ModRM, error) {
	raw, err := c.U8()
	if err != nil {
		return ModRM{}, err
	}
	m := ModRM{
		Mod: int(raw >> 6),
		Reg: int((raw >> 3) & 0x7),
		RM:  int(raw & 0x7),
	}
	if m.Mod == 3 {
		return m, nil
	}
	m.IsMemory = true

	if addrWidth == Width16 {
		return decodeModRM16(c, m)
	}
	return decodeModRM3264(c, m)
}

func decodeModRM16(c *Cursor, m ModRM) (ModRM, error) {
	if m.Mod == 0 && m.RM == 6 {
		disp, err := c.U16()
		if err != nil {
			return ModRM{}, err
		}
		m.Base = -1
		m.Index = -1
		m.Disp = int64(int16(disp))
		return m, nil
	}
	switch m.Mod {
	case 1:
		d, err := c.I8()
		if err != nil {
			return ModRM{}, err
		}
		m.Disp = int64(d)
	case 2:
		d, err := c.U16()
		if err != nil {
			return ModRM{}, err
		}
		m.Disp = int64(int16(d))
	}
	return m, nil
}

func decodeModRM3264(c *Cursor, m ModRM) (ModRM, error) {
	if m.RM == 4 {
		sib, err := c.U8()
		if err != nil {
			return ModRM{}, err
		}
		m.HasSIB = true
		m.Scale = 1 << (sib >> 6)
		m.Index = int((sib >> 3) & 0x7)
		m.Base = int(sib & 0x7)
		if m.Index == 4 {
			m.Index = -1 // no index register; RSP/R12 cannot be an index
		}
		if m.Mod == 0 && m.Base == 5 {
			d, err := c.I32()
			if err != nil {
				return ModRM{}, err
			}
			m.Base = -1
			m.Disp = d
			return m, nil
		}
	} else if m.Mod == 0 && m.RM == 5 {
		// RIP-relative in long mode, or [disp32] in protected mode.
		d, err := c.I32()
		if err != nil {
			return ModRM{}, err
		}
		m.Base = -1
		m.Index = -1
		m.Disp = d
		m.RM = 5 // retained so the caller can special-case RIP-relative
		return m, nil
	}
	switch m.Mod {
	case 1:
		d, err := c.I8()
		if err != nil {
			return ModRM{}, err
		}
		m.Disp = int64(d)
	case 2:
		d, err := c.I32()
		if err != nil {
			return ModRM{}, err
		}
		m.Disp = d
	}
	return m, nil
}

// RegWithRex applies the REX.R extension bit to a ModR/M reg field.
func RegWithRex(reg int, rexR bool) int {
	if rexR {
		return reg | 0x8
	}
	return reg
}

// RMWithRex applies the REX.B extension bit to a ModR/M rm field when it
// addresses a register (mod==3) or a SIB base/index.
func RMWithRex(rm int, rexB bool) int {
	if rexB {
		return rm | 0x8
	}
	return rm
}

// collectPrefixes consumes legacy prefix bytes and an optional REX byte
// ahead of the opcode, per spec.md S4.4's prefix-stacking rules: later
// bytes of the same class silently replace earlier ones; the REX byte, if
// present, must immediately precede the opcode. 0x40..0x4F only decode as
// REX in long mode; outside long mode they are the INC/DEC r32 opcodes and
// must be left for the opcode dispatcher.
func collectPrefixes(c *Cursor, longMode bool) (Prefixes, error) {
	p := Prefixes{SegmentOverride: -1}
	for {
		b, err := c.U8()
		if err != nil {
			return p, err
		}
		switch b {
		case 0xF0:
			p.Lock = true
		case 0xF2:
			p.Rep = RepNotEqual
		case 0xF3:
			p.Rep = RepEqual
		case 0x2E:
			p.SegmentOverride = SegCS
		case 0x36:
			p.SegmentOverride = SegSS
		case 0x3E:
			p.SegmentOverride = SegDS
		case 0x26:
			p.SegmentOverride = SegES
		case 0x64:
			p.SegmentOverride = SegFS
		case 0x65:
			p.SegmentOverride = SegGS
		case 0x66:
			p.OperandSizeOverride = true
		case 0x67:
			p.AddressSizeOverride = true
		default:
			if longMode && b >= 0x40 && b <= 0x4F {
				p.RexPresent = true
				p.RexW = b&0x8 != 0
				p.RexR = b&0x4 != 0
				p.RexX = b&0x2 != 0
				p.RexB = b&0x1 != 0
				return p, nil
			}
			c.Pos--
			return p, nil
		}
	}
}
