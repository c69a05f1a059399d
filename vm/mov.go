package vm

// registerMov wires MOV reg/rm, MOV reg/imm, and MOV sreg (spec.md S4.7).
func registerMov() {
	reg(&opTable, 0x88, movMR(false))
	reg(&opTable, 0x89, movMR(true))
	reg(&opTable, 0x8A, movRM(false))
	reg(&opTable, 0x8B, movRM(true))
	reg(&opTable, 0x8C, movSregToRM)
	reg(&opTable, 0x8E, movRMToSreg)

	for i := byte(0); i < 8; i++ {
		i := i
		reg(&opTable, 0xB0+i, movRegImm(i, false))
		reg(&opTable, 0xB8+i, movRegImm(i, true))
	}

	reg(&opTable, 0xC6, movRMImm(false))
	reg(&opTable, 0xC7, movRMImm(true))
}

func movMR(wide bool) opHandler {
	return func(vm *VM, c *Cursor, p Prefixes, instrStart uint64) (ExecutionStatus, error) {
		w := vm.opWidth(wide)
		aw := vm.CPU.AddressWidth()
		m, err := DecodeModRM(c, aw)
		if err != nil {
			return StatusFault, err
		}
		regCode := RegWithRex(m.Reg, p.RexR)
		v := vm.CPU.ReadBySize(regCode, w, p.RexPresent)
		if err := vm.WriteRM(m, w, v, aw, SegDS, instrStart+c.Pos); err != nil {
			return StatusFault, err
		}
		return StatusContinue, nil
	}
}

func movRM(wide bool) opHandler {
	return func(vm *VM, c *Cursor, p Prefixes, instrStart uint64) (ExecutionStatus, error) {
		w := vm.opWidth(wide)
		aw := vm.CPU.AddressWidth()
		m, err := DecodeModRM(c, aw)
		if err != nil {
			return StatusFault, err
		}
		regCode := RegWithRex(m.Reg, p.RexR)
		v, err := vm.ReadRM(m, w, aw, SegDS, instrStart+c.Pos)
		if err != nil {
			return StatusFault, err
		}
		vm.CPU.WriteBySize(regCode, w, v, p.RexPresent)
		return StatusContinue, nil
	}
}

func movRegImm(regCode byte, wide bool) opHandler {
	return func(vm *VM, c *Cursor, p Prefixes, instrStart uint64) (ExecutionStatus, error) {
		w := vm.opWidth(wide)
		code := RMWithRex(int(regCode), p.RexB)
		if w == Width64 {
			imm, err := c.U64()
			if err != nil {
				return StatusFault, err
			}
			vm.CPU.WriteQword(code, imm)
			return StatusContinue, nil
		}
		immW := w
		imm, err := c.ImmBySize(immW)
		if err != nil {
			return StatusFault, err
		}
		vm.CPU.WriteBySize(code, w, imm&maskOf(w), p.RexPresent)
		return StatusContinue, nil
	}
}

func movRMImm(wide bool) opHandler {
	return func(vm *VM, c *Cursor, p Prefixes, instrStart uint64) (ExecutionStatus, error) {
		w := vm.opWidth(wide)
		aw := vm.CPU.AddressWidth()
		m, err := DecodeModRM(c, aw)
		if err != nil {
			return StatusFault, err
		}
		immW := w
		if immW > Width32 {
			immW = Width32
		}
		imm, err := c.ImmBySize(immW)
		if err != nil {
			return StatusFault, err
		}
		if err := vm.WriteRM(m, w, imm&maskOf(w), aw, SegDS, instrStart+c.Pos); err != nil {
			return StatusFault, err
		}
		return StatusContinue, nil
	}
}

func movSregToRM(vm *VM, c *Cursor, p Prefixes, instrStart uint64) (ExecutionStatus, error) {
	aw := vm.CPU.AddressWidth()
	m, err := DecodeModRM(c, aw)
	if err != nil {
		return StatusFault, err
	}
	v := uint64(vm.CPU.Seg[m.Reg&0x7].Selector)
	if err := vm.WriteRM(m, Width16, v, aw, SegDS, instrStart+c.Pos); err != nil {
		return StatusFault, err
	}
	return StatusContinue, nil
}

func movRMToSreg(vm *VM, c *Cursor, p Prefixes, instrStart uint64) (ExecutionStatus, error) {
	aw := vm.CPU.AddressWidth()
	m, err := DecodeModRM(c, aw)
	if err != nil {
		return StatusFault, err
	}
	v, err := vm.ReadRM(m, Width16, aw, SegDS, instrStart+c.Pos)
	if err != nil {
		return StatusFault, err
	}
	segIdx := m.Reg & 0x7
	if segIdx > SegGS {
		return vm.deliverFault(&Fault{Kind: FaultException, Vector: VecUD})
	}
	sel := uint16(v)
	if vm.CPU.ProtectedMode {
		// Loading a segment selector in protected mode resolves it against
		// the GDT; this engine models only the real-mode flat-base shape.
		vm.CPU.Seg[segIdx].Selector = sel
	} else {
		vm.CPU.Seg[segIdx] = Segment{Selector: sel, Base: uint64(sel) << 4, Present: true, Executable: segIdx == SegCS}
	}
	return StatusContinue, nil
}
