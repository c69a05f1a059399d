package vm

// registerBCD wires the six BCD adjust instructions (spec.md S4.7 "BCD
// adjust family", supplemented per SPEC_FULL.md S11 to the Glossary's full
// pseudo-code, not merely a mention).
func registerBCD() {
	reg(&opTable, 0x27, opDAA)
	reg(&opTable, 0x2F, opDAS)
	reg(&opTable, 0x37, opAAA)
	reg(&opTable, 0x3F, opAAS)
	reg(&opTable, 0xD5, opAAD)
	reg(&opTable, 0xD4, opAAM)
}

func opDAA(vm *VM, c *Cursor, p Prefixes, instrStart uint64) (ExecutionStatus, error) {
	f := &vm.CPU.Flags
	al := uint8(vm.CPU.ReadByte(RegAX, false))
	oldAL, oldCF := al, f.CF
	if al&0x0F > 9 || f.AF {
		carry := al > 0xF9
		al += 6
		f.AF = true
		f.CF = oldCF || carry
	} else {
		f.AF = false
	}
	if oldAL > 0x99 || oldCF {
		al += 0x60
		f.CF = true
	} else {
		f.CF = false
	}
	vm.CPU.WriteByte(RegAX, false, al)
	f.updateSZP(uint64(al), Width8)
	return StatusContinue, nil
}

func opDAS(vm *VM, c *Cursor, p Prefixes, instrStart uint64) (ExecutionStatus, error) {
	f := &vm.CPU.Flags
	al := uint8(vm.CPU.ReadByte(RegAX, false))
	oldAL, oldCF := al, f.CF
	if al&0x0F > 9 || f.AF {
		borrow := al < 6
		al -= 6
		f.AF = true
		f.CF = oldCF || borrow
	} else {
		f.AF = false
	}
	if oldAL > 0x99 || oldCF {
		al -= 0x60
		f.CF = true
	}
	vm.CPU.WriteByte(RegAX, false, al)
	f.updateSZP(uint64(al), Width8)
	return StatusContinue, nil
}

func opAAA(vm *VM, c *Cursor, p Prefixes, instrStart uint64) (ExecutionStatus, error) {
	f := &vm.CPU.Flags
	al := uint8(vm.CPU.ReadByte(RegAX, false))
	ah := uint8(vm.CPU.ReadByte(4, false))
	if al&0x0F > 9 || f.AF {
		al += 6
		ah += 1
		f.AF = true
		f.CF = true
	} else {
		f.AF = false
		f.CF = false
	}
	al &= 0x0F
	vm.CPU.WriteByte(RegAX, false, al)
	vm.CPU.WriteByte(4, false, ah)
	return StatusContinue, nil
}

func opAAS(vm *VM, c *Cursor, p Prefixes, instrStart uint64) (ExecutionStatus, error) {
	f := &vm.CPU.Flags
	al := uint8(vm.CPU.ReadByte(RegAX, false))
	ah := uint8(vm.CPU.ReadByte(4, false))
	if al&0x0F > 9 || f.AF {
		al -= 6
		ah -= 1
		f.AF = true
		f.CF = true
	} else {
		f.AF = false
		f.CF = false
	}
	al &= 0x0F
	vm.CPU.WriteByte(RegAX, false, al)
	vm.CPU.WriteByte(4, false, ah)
	return StatusContinue, nil
}

func opAAD(vm *VM, c *Cursor, p Prefixes, instrStart uint64) (ExecutionStatus, error) {
	base, err := c.U8()
	if err != nil {
		return StatusFault, err
	}
	al := uint8(vm.CPU.ReadByte(RegAX, false))
	ah := uint8(vm.CPU.ReadByte(4, false))
	result := ah*base + al
	vm.CPU.WriteByte(RegAX, false, result)
	vm.CPU.WriteByte(4, false, 0)
	vm.CPU.Flags.updateSZP(uint64(result), Width8)
	return StatusContinue, nil
}

func opAAM(vm *VM, c *Cursor, p Prefixes, instrStart uint64) (ExecutionStatus, error) {
	base, err := c.U8()
	if err != nil {
		return StatusFault, err
	}
	if base == 0 {
		return vm.deliverFault(&Fault{Kind: FaultException, Vector: VecDE})
	}
	al := uint8(vm.CPU.ReadByte(RegAX, false))
	ah := al / base
	al = al % base
	vm.CPU.WriteByte(RegAX, false, al)
	vm.CPU.WriteByte(4, false, ah)
	vm.CPU.Flags.updateSZP(uint64(al), Width8)
	return StatusContinue, nil
}
