package vm

// registerStack wires PUSH/POP reg, PUSH imm, PUSHA/POPA, PUSHF/POPF
// (spec.md S4.7). PUSH/POP r/m live in group45 (0xFF /6) and a dedicated
// 0x8F /0 handler here.
func registerStack() {
	for i := byte(0); i < 8; i++ {
		i := i
		reg(&opTable, 0x50+i, pushReg(i))
		reg(&opTable, 0x58+i, popReg(i))
	}
	reg(&opTable, 0x6A, pushImm8)
	reg(&opTable, 0x68, pushImm)
	reg(&opTable, 0x60, opPUSHA)
	reg(&opTable, 0x61, opPOPA)
	reg(&opTable, 0x9C, opPUSHF)
	reg(&opTable, 0x9D, opPOPF)
	reg(&opTable, 0x8F, popRM0)
}

func pushReg(code byte) opHandler {
	return func(vm *VM, c *Cursor, p Prefixes, instrStart uint64) (ExecutionStatus, error) {
		rc := RMWithRex(int(code), p.RexB)
		v := vm.CPU.ReadBySize(rc, vm.CPU.StackWidth(), p.RexPresent)
		if err := vm.push(v); err != nil {
			return StatusFault, err
		}
		return StatusContinue, nil
	}
}

func popReg(code byte) opHandler {
	return func(vm *VM, c *Cursor, p Prefixes, instrStart uint64) (ExecutionStatus, error) {
		v, err := vm.pop()
		if err != nil {
			return StatusFault, err
		}
		rc := RMWithRex(int(code), p.RexB)
		vm.CPU.WriteBySize(rc, vm.CPU.StackWidth(), v, p.RexPresent)
		return StatusContinue, nil
	}
}

func pushImm8(vm *VM, c *Cursor, p Prefixes, instrStart uint64) (ExecutionStatus, error) {
	v, err := c.I8()
	if err != nil {
		return StatusFault, err
	}
	if err := vm.push(uint64(int64(v)) & maskOf(vm.CPU.StackWidth())); err != nil {
		return StatusFault, err
	}
	return StatusContinue, nil
}

func pushImm(vm *VM, c *Cursor, p Prefixes, instrStart uint64) (ExecutionStatus, error) {
	w := vm.CPU.OperandWidth()
	immW := w
	if immW > Width32 {
		immW = Width32
	}
	v, err := c.ImmBySize(immW)
	if err != nil {
		return StatusFault, err
	}
	if err := vm.push(v & maskOf(vm.CPU.StackWidth())); err != nil {
		return StatusFault, err
	}
	return StatusContinue, nil
}

// pushaOrder is the architectural PUSHA/POPA register order: AX,CX,DX,BX,
// (original SP),BP,SI,DI.
var pushaOrder = [8]int{RegAX, RegCX, RegDX, RegBX, RegSP, RegBP, RegSI, RegDI}

func opPUSHA(vm *VM, c *Cursor, p Prefixes, instrStart uint64) (ExecutionStatus, error) {
	w := vm.CPU.OperandWidth()
	origSP := vm.CPU.ReadBySize(RegSP, w, false)
	for _, r := range pushaOrder {
		var v uint64
		if r == RegSP {
			v = origSP
		} else {
			v = vm.CPU.ReadBySize(r, w, false)
		}
		if err := vm.push(v); err != nil {
			return StatusFault, err
		}
	}
	return StatusContinue, nil
}

func opPOPA(vm *VM, c *Cursor, p Prefixes, instrStart uint64) (ExecutionStatus, error) {
	w := vm.CPU.OperandWidth()
	for i := len(pushaOrder) - 1; i >= 0; i-- {
		v, err := vm.pop()
		if err != nil {
			return StatusFault, err
		}
		if pushaOrder[i] == RegSP {
			continue // discarded per architecture
		}
		vm.CPU.WriteBySize(pushaOrder[i], w, v, false)
	}
	return StatusContinue, nil
}

func opPUSHF(vm *VM, c *Cursor, p Prefixes, instrStart uint64) (ExecutionStatus, error) {
	w := vm.CPU.StackWidth()
	if err := vm.push(vm.CPU.Flags.ToUint64() & maskOf(w)); err != nil {
		return StatusFault, err
	}
	return StatusContinue, nil
}

func opPOPF(vm *VM, c *Cursor, p Prefixes, instrStart uint64) (ExecutionStatus, error) {
	v, err := vm.pop()
	if err != nil {
		return StatusFault, err
	}
	vm.CPU.Flags.FromUint64(v)
	return StatusContinue, nil
}

func popRM0(vm *VM, c *Cursor, p Prefixes, instrStart uint64) (ExecutionStatus, error) {
	aw := vm.CPU.AddressWidth()
	m, err := DecodeModRM(c, aw)
	if err != nil {
		return StatusFault, err
	}
	v, err := vm.pop()
	if err != nil {
		return StatusFault, err
	}
	if err := vm.WriteRM(m, vm.CPU.StackWidth(), v, aw, SegDS, instrStart+c.Pos); err != nil {
		return StatusFault, err
	}
	return StatusContinue, nil
}
