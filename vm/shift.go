package vm

// shiftExt maps a ModR/M reg-extension field (0..7) to the ShiftType it
// selects in the group 2 opcode family (spec.md S4.7).
var shiftExt = [8]ShiftType{ShiftROL, ShiftROR, ShiftRCL, ShiftRCR, ShiftSHL, ShiftSHR, ShiftSHL, ShiftSAR}

// registerShiftGroup wires 0xC0/0xC1 (count = imm8), 0xD0/0xD1
// (count = 1), and 0xD2/0xD3 (count = CL).
func registerShiftGroup() {
	reg(&opTable, 0xC0, shiftGroup(false, shiftCountImm))
	reg(&opTable, 0xC1, shiftGroup(true, shiftCountImm))
	reg(&opTable, 0xD0, shiftGroup(false, shiftCountOne))
	reg(&opTable, 0xD1, shiftGroup(true, shiftCountOne))
	reg(&opTable, 0xD2, shiftGroup(false, shiftCountCL))
	reg(&opTable, 0xD3, shiftGroup(true, shiftCountCL))
}

type shiftCountSource int

const (
	shiftCountImm shiftCountSource = iota
	shiftCountOne
	shiftCountCL
)

func shiftGroup(wide bool, src shiftCountSource) opHandler {
	return func(vm *VM, c *Cursor, p Prefixes, instrStart uint64) (ExecutionStatus, error) {
		w := vm.opWidth(wide)
		aw := vm.CPU.AddressWidth()
		m, err := DecodeModRM(c, aw)
		if err != nil {
			return StatusFault, err
		}
		end := instrStart
		var count uint64
		switch src {
		case shiftCountImm:
			imm, err := c.U8()
			if err != nil {
				return StatusFault, err
			}
			count = uint64(imm)
		case shiftCountOne:
			count = 1
		case shiftCountCL:
			count = vm.CPU.ReadBySize(RegCX, Width8, false)
		}
		end = instrStart + c.Pos
		v, err := vm.ReadRM(m, w, aw, SegDS, end)
		if err != nil {
			return StatusFault, err
		}
		result := vm.CPU.Flags.Shift(v, count, w, shiftExt[m.Reg])
		if err := vm.WriteRM(m, w, result, aw, SegDS, end); err != nil {
			return StatusFault, err
		}
		return StatusContinue, nil
	}
}
