package vm

// registerSystem wires CLI/STI/HLT, LGDT/LIDT, MOV to/from control and
// debug registers, and the INT/IRET family (spec.md S4.7).
func registerSystem() {
	reg(&opTable, 0xFA, opCLI)
	reg(&opTable, 0xFB, opSTI)
	reg(&opTable, 0xF4, opHLT)
	reg(&opTable, 0xCC, opINT3)
	reg(&opTable, 0xCD, opINTimm)
	reg(&opTable, 0xCE, opINTO)
	reg(&opTable, 0xCF, opIRET)

	reg(&opTable0F, 0x01, op0F01)
	reg(&opTable0F, 0x20, movCRFromReg)
	reg(&opTable0F, 0x22, movRegFromCR)
	reg(&opTable0F, 0x21, movDRFromReg)
	reg(&opTable0F, 0x23, movRegFromDR)
}

func opCLI(vm *VM, c *Cursor, p Prefixes, instrStart uint64) (ExecutionStatus, error) {
	if err := vm.checkIOPermission(0); err != nil {
		return StatusFault, err
	}
	vm.CPU.Flags.IF = false
	vm.CPU.InterruptShadow = 0
	return StatusContinue, nil
}

// opSTI sets IF but defers interrupt acceptance for exactly one more
// instruction, per the architectural "shadow" rule (spec.md S4.8).
func opSTI(vm *VM, c *Cursor, p Prefixes, instrStart uint64) (ExecutionStatus, error) {
	if err := vm.checkIOPermission(0); err != nil {
		return StatusFault, err
	}
	vm.CPU.Flags.IF = true
	vm.CPU.InterruptShadow = 1
	return StatusContinue, nil
}

func opHLT(vm *VM, c *Cursor, p Prefixes, instrStart uint64) (ExecutionStatus, error) {
	return StatusHalt, nil
}

func opINT3(vm *VM, c *Cursor, p Prefixes, instrStart uint64) (ExecutionStatus, error) {
	return vm.deliverFault(&Fault{Kind: FaultSoftware, Vector: VecBP})
}

func opINTimm(vm *VM, c *Cursor, p Prefixes, instrStart uint64) (ExecutionStatus, error) {
	n, err := c.U8()
	if err != nil {
		return StatusFault, err
	}
	return vm.deliverFault(&Fault{Kind: FaultSoftware, Vector: int(n)})
}

func opINTO(vm *VM, c *Cursor, p Prefixes, instrStart uint64) (ExecutionStatus, error) {
	if !vm.CPU.Flags.OF {
		return StatusContinue, nil
	}
	return vm.deliverFault(&Fault{Kind: FaultSoftware, Vector: VecOF})
}

func opIRET(vm *VM, c *Cursor, p Prefixes, instrStart uint64) (ExecutionStatus, error) {
	if err := vm.iret(); err != nil {
		return StatusFault, err
	}
	return StatusContinue, nil
}

// op0F01 dispatches the 0x0F 0x01 group: /2 LGDT, /3 LIDT (SGDT/SIDT/SMSW/
// LMSW are decoded but unimplemented, falling through to #UD).
func op0F01(vm *VM, c *Cursor, p Prefixes, instrStart uint64) (ExecutionStatus, error) {
	aw := vm.CPU.AddressWidth()
	m, err := DecodeModRM(c, aw)
	if err != nil {
		return StatusFault, err
	}
	if !m.IsMemory {
		return vm.deliverFault(&Fault{Kind: FaultException, Vector: VecUD})
	}
	ea := vm.CPU.Resolve(m, aw, SegDS)
	lin := vm.CPU.Linear(ea.Segment, ea.Offset)
	limit, err := vm.Bus.ReadBytes(lin, 2)
	if err != nil {
		return StatusFault, err
	}
	baseWidth := 4
	if vm.CPU.LongMode {
		baseWidth = 8
	}
	base, err := vm.Bus.ReadBytes(lin+2, baseWidth)
	if err != nil {
		return StatusFault, err
	}
	switch m.Reg {
	case 2:
		vm.CPU.GDTR = DTR{Base: base, Limit: uint16(limit)}
	case 3:
		vm.CPU.IDTR = DTR{Base: base, Limit: uint16(limit)}
	default:
		return vm.deliverFault(&Fault{Kind: FaultException, Vector: VecUD})
	}
	return StatusContinue, nil
}

func movCRFromReg(vm *VM, c *Cursor, p Prefixes, instrStart uint64) (ExecutionStatus, error) {
	m, err := DecodeModRM(c, vm.CPU.AddressWidth())
	if err != nil {
		return StatusFault, err
	}
	crIdx := RegWithRex(m.Reg, p.RexR)
	if crIdx >= len(vm.CPU.CR) {
		return vm.deliverFault(&Fault{Kind: FaultException, Vector: VecUD})
	}
	rmCode := RMWithRex(m.RM, p.RexB)
	vm.CPU.CR[crIdx] = vm.CPU.ReadQword(rmCode)
	if crIdx == 0 {
		vm.CPU.ProtectedMode = vm.CPU.CR[0]&1 != 0
	}
	return StatusContinue, nil
}

func movRegFromCR(vm *VM, c *Cursor, p Prefixes, instrStart uint64) (ExecutionStatus, error) {
	m, err := DecodeModRM(c, vm.CPU.AddressWidth())
	if err != nil {
		return StatusFault, err
	}
	crIdx := RegWithRex(m.Reg, p.RexR)
	if crIdx >= len(vm.CPU.CR) {
		return vm.deliverFault(&Fault{Kind: FaultException, Vector: VecUD})
	}
	rmCode := RMWithRex(m.RM, p.RexB)
	vm.CPU.WriteQword(rmCode, vm.CPU.CR[crIdx])
	return StatusContinue, nil
}

func movDRFromReg(vm *VM, c *Cursor, p Prefixes, instrStart uint64) (ExecutionStatus, error) {
	m, err := DecodeModRM(c, vm.CPU.AddressWidth())
	if err != nil {
		return StatusFault, err
	}
	drIdx := RegWithRex(m.Reg, p.RexR)
	rmCode := RMWithRex(m.RM, p.RexB)
	vm.CPU.DR[drIdx&0x7] = vm.CPU.ReadQword(rmCode)
	return StatusContinue, nil
}

func movRegFromDR(vm *VM, c *Cursor, p Prefixes, instrStart uint64) (ExecutionStatus, error) {
	m, err := DecodeModRM(c, vm.CPU.AddressWidth())
	if err != nil {
		return StatusFault, err
	}
	drIdx := RegWithRex(m.Reg, p.RexR)
	rmCode := RMWithRex(m.RM, p.RexB)
	vm.CPU.WriteQword(rmCode, vm.CPU.DR[drIdx&0x7])
	return StatusContinue, nil
}
