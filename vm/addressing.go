package vm

// baseRegCode indexes the eight base GPR names in encoding order, used only
// for effective-address base/index resolution (RSP/ESP/SP never serve as a
// SIB index, enforced upstream in DecodeModRM).
var baseRegCode = [8]int{RegAX, RegCX, RegDX, RegBX, RegSP, RegBP, RegSI, RegDI}

// EffectiveAddress describes a decoded memory operand: the default segment
// (subject to override), the linear offset within that segment, and -- in
// long mode -- whether it was RIP-relative.
type EffectiveAddress struct {
	Segment    int
	Offset     uint64
	RipRelative bool
}

// Resolve computes the effective address for a decoded ModR/M memory
// operand, covering 16-bit, 32-bit and SIB-based addressing plus long-mode
// RIP-relative encodings (spec.md S4.4).
func (c *CPU) Resolve(m ModRM, addrWidth int, defSeg int) EffectiveAddress {
	seg := c.EffectiveSegment(defSeg)
	if addrWidth == Width16 {
		return EffectiveAddress{Segment: seg, Offset: c.resolve16(m)}
	}
	if c.LongMode && m.RM == 5 && !m.HasSIB && m.Mod == 0 {
		// RIP-relative: displacement is relative to the address of the
		// NEXT instruction, added by the caller once decode length is known.
		return EffectiveAddress{Segment: seg, Offset: uint64(m.Disp), RipRelative: true}
	}
	return EffectiveAddress{Segment: seg, Offset: c.resolve3264(m, addrWidth)}
}

func (c *CPU) resolve16(m ModRM) uint64 {
	if m.Base == -1 && m.Index == -1 {
		return uint64(uint16(m.Disp))
	}
	var base, index uint64
	switch m.RM {
	case 0:
		base, index = c.GPR[RegBX], c.GPR[RegSI]
	case 1:
		base, index = c.GPR[RegBX], c.GPR[RegDI]
	case 2:
		base, index = c.GPR[RegBP], c.GPR[RegSI]
	case 3:
		base, index = c.GPR[RegBP], c.GPR[RegDI]
	case 4:
		base, index = c.GPR[RegSI], 0
	case 5:
		base, index = c.GPR[RegDI], 0
	case 6:
		base, index = c.GPR[RegBP], 0
	case 7:
		base, index = c.GPR[RegBX], 0
	}
	return uint64(uint16(base + index + uint64(m.Disp)))
}

func (c *CPU) resolve3264(m ModRM, addrWidth int) uint64 {
	var addr uint64
	if m.HasSIB {
		if m.Index >= 0 {
			addr += c.GPR[baseRegCode[m.Index]] * uint64(m.Scale)
		}
		if m.Base >= 0 {
			addr += c.GPR[baseRegCode[m.Base]]
		}
	} else if m.Base >= 0 {
		addr += c.GPR[baseRegCode[m.RM]]
	}
	addr += uint64(m.Disp)
	if addrWidth == Width32 {
		return addr & 0xFFFFFFFF
	}
	return addr
}

// ReadRM reads an RM operand (register or memory) at width w. For memory
// operands it resolves the effective address and issues a bus read through
// the VM's current segmentation/A20 state.
func (vm *VM) ReadRM(m ModRM, w int, addrWidth int, defSeg int, instrEnd uint64) (uint64, error) {
	if !m.IsMemory {
		return vm.CPU.ReadBySize(RMWithRex(m.RM, vm.CPU.Prefixes.RexB), w, vm.CPU.Prefixes.RexPresent), nil
	}
	ea := vm.CPU.Resolve(m, addrWidth, defSeg)
	offset := ea.Offset
	if ea.RipRelative {
		offset += instrEnd
	}
	lin := vm.CPU.Linear(ea.Segment, offset)
	return vm.Bus.ReadBytes(lin, w/8)
}

// WriteRM writes an RM operand (register or memory) at width w.
func (vm *VM) WriteRM(m ModRM, w int, v uint64, addrWidth int, defSeg int, instrEnd uint64) error {
	if !m.IsMemory {
		vm.CPU.WriteBySize(RMWithRex(m.RM, vm.CPU.Prefixes.RexB), w, v, vm.CPU.Prefixes.RexPresent)
		return nil
	}
	ea := vm.CPU.Resolve(m, addrWidth, defSeg)
	offset := ea.Offset
	if ea.RipRelative {
		offset += instrEnd
	}
	lin := vm.CPU.Linear(ea.Segment, offset)
	return vm.Bus.WriteBytes(lin, w/8, v)
}
